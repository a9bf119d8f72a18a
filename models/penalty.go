package models

import "time"

// PenaltyType соответствует ENUM penalty_type в БД.
type PenaltyType string

const (
	PenaltyWarning          PenaltyType = "warning"
	PenaltyTime             PenaltyType = "time_penalty"
	PenaltyPointsDeduction  PenaltyType = "points_deduction"
	PenaltyGridDrop         PenaltyType = "grid_drop"
	PenaltyDisqualification PenaltyType = "disqualification"
)

func (t PenaltyType) Valid() bool {
	switch t {
	case PenaltyWarning, PenaltyTime, PenaltyPointsDeduction, PenaltyGridDrop, PenaltyDisqualification:
		return true
	}
	return false
}

// Penalty: решение стюардов. Только points_deduction с гонкой меняет очки.
type Penalty struct {
	ID        int         `json:"id" db:"id"`
	DriverID  int         `json:"driver_id" db:"driver_id"`
	RaceID    *int        `json:"race_id,omitempty" db:"race_id"`
	Type      PenaltyType `json:"type" db:"type"`
	Value     *int        `json:"value,omitempty" db:"value"`
	Reason    string      `json:"reason" db:"reason"`
	AppliedBy *int        `json:"applied_by,omitempty" db:"applied_by"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// AffectsPoints сообщает, влияет ли штраф на очки за гонку.
func (p *Penalty) AffectsPoints() bool {
	return p.Type == PenaltyPointsDeduction && p.RaceID != nil && p.Value != nil && *p.Value > 0
}
