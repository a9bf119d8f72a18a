package models

import "time"

// RaceResult: строка результата (гонка, пилот). Набор строк гонки всегда
// заменяется целиком.
type RaceResult struct {
	ID            int       `json:"id" db:"id"`
	RaceID        int       `json:"race_id" db:"race_id"`
	DriverID      int       `json:"driver_id" db:"driver_id"`
	TeamID        *int      `json:"team_id" db:"team_id"` // команда на момент подачи
	Position      *int      `json:"position" db:"position"`
	DNF           bool      `json:"dnf" db:"dnf"`
	DNFReason     string    `json:"dnf_reason,omitempty" db:"dnf_reason"`
	PolePosition  bool      `json:"pole_position" db:"pole_position"`
	FastestLap    bool      `json:"fastest_lap" db:"fastest_lap"`
	PointsPenalty int       `json:"points_penalty" db:"points_penalty"`
	TimePenalty   int       `json:"time_penalty" db:"time_penalty"`
	Points        int       `json:"points" db:"points"` // только для отображения
	CreatedAt     time.Time `json:"created_at" db:"created_at"`

	Driver *Driver `json:"driver,omitempty" db:"-"`
}
