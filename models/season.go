package models

import "time"

// Season задаёт окно подсчёта очков. Активным может быть только один сезон.
type Season struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Year      int       `json:"year" db:"year"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
