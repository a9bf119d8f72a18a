package models

import "time"

// ChampionshipStanding: сохранённая строка турнирной таблицы сезона.
// Перезаписывается целиком при каждой подаче результатов.
type ChampionshipStanding struct {
	ID                int       `json:"id" db:"id"`
	SeasonID          int       `json:"season_id" db:"season_id"`
	DriverID          int       `json:"driver_id" db:"driver_id"`
	Rank              int       `json:"rank" db:"rank"`
	TotalPoints       int       `json:"total_points" db:"total_points"`
	Wins              int       `json:"wins" db:"wins"`
	Podiums           int       `json:"podiums" db:"podiums"`
	Poles             int       `json:"poles" db:"poles"`
	FastestLaps       int       `json:"fastest_laps" db:"fastest_laps"`
	DNFs              int       `json:"dnfs" db:"dnfs"`
	RacesParticipated int       `json:"races_participated" db:"races_participated"`
	AveragePosition   *float64  `json:"average_position" db:"average_position"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
