package models

import "time"

// RaceStatus соответствует ENUM race_status в БД.
type RaceStatus string

const (
	RaceStatusScheduled RaceStatus = "scheduled"
	RaceStatusCompleted RaceStatus = "completed"
)

type Race struct {
	ID          int        `json:"id" db:"id"`
	SeasonID    int        `json:"season_id" db:"season_id"`
	Name        string     `json:"name" db:"name"`
	Track       string     `json:"track" db:"track"`
	Format      string     `json:"format" db:"format"`
	Laps        int        `json:"laps" db:"laps"`
	ScheduledAt time.Time  `json:"scheduled_at" db:"scheduled_at"`
	Status      RaceStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`

	Results []RaceResult `json:"results,omitempty" db:"-"`
}
