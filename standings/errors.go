package standings

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("race results validation failed")
	ErrRaceAlreadyApplied = errors.New("race results already applied to the ledger")
	ErrInconsistentState  = errors.New("standings ledger is inconsistent with stored results")
	ErrUnknownMetric      = errors.New("unknown statistics metric")
	ErrInvalidRules       = errors.New("invalid scoring rules")
)

// Reason: машинно-читаемая причина отказа при валидации результатов гонки.
type Reason string

const (
	ReasonNoEntries           Reason = "no_entries"
	ReasonInvalidDriver       Reason = "invalid_driver"
	ReasonUnknownDriver       Reason = "unknown_driver"
	ReasonDuplicateDriver     Reason = "duplicate_driver"
	ReasonInvalidPosition     Reason = "invalid_position"
	ReasonDuplicatePosition   Reason = "duplicate_position"
	ReasonPositionGap         Reason = "position_gap"
	ReasonMultiplePoles       Reason = "multiple_poles"
	ReasonMultipleFastestLaps Reason = "multiple_fastest_laps"
	ReasonNegativePenalty     Reason = "negative_penalty"
)

// ValidationError описывает конкретную причину, по которой набор результатов
// отклонён. errors.Is(err, ErrValidation) срабатывает для любой причины.
type ValidationError struct {
	RaceID   int    `json:"race_id"`
	Reason   Reason `json:"reason"`
	DriverID int    `json:"driver_id,omitempty"`
	Position int    `json:"position,omitempty"`
	Message  string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("race %d: %s (%s)", e.RaceID, e.Message, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(raceID int, reason Reason, driverID, position int, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		RaceID:   raceID,
		Reason:   reason,
		DriverID: driverID,
		Position: position,
		Message:  fmt.Sprintf(format, args...),
	}
}
