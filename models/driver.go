package models

import "time"

// Driver: пилот лиги. Пилоты не удаляются, пока на них ссылаются результаты:
// вместо удаления используется Retired.
type Driver struct {
	ID           int       `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	DriverNumber int       `json:"driver_number" db:"driver_number"`
	TeamID       *int      `json:"team_id" db:"team_id"` // nil = Independent
	Platform     string    `json:"platform" db:"platform"`
	Country      string    `json:"country" db:"country"`
	Bio          *string   `json:"bio,omitempty" db:"bio"`
	Retired      bool      `json:"retired" db:"retired"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	LiveryKey *string `json:"-" db:"livery_key"`
	LiveryURL *string `json:"livery_url,omitempty" db:"-"`

	// Заполняется сервисом
	TeamName *string `json:"team_name,omitempty" db:"-"`
}
