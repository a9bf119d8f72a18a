package standings

import (
	"encoding/json"
	"sort"
)

// Entry: строка результата одного пилота в одной гонке, как её подал администратор.
type Entry struct {
	DriverID      int
	TeamID        *int // команда на момент подачи результата, nil = Independent
	Finish        Finish
	Pole          bool
	FastestLap    bool
	PointsPenalty int
	TimePenalty   int // seconds, informational only
	DNFReason     string
}

// ResultSet is a validated, canonically ordered set of entries for one race.
// Only Normalize produces sets the ledger accepts.
type ResultSet struct {
	RaceID  int
	Entries []Entry

	normalized bool
}

// Normalize проверяет набор результатов гонки и возвращает его в каноническом
// порядке: позиции по возрастанию, сходы в конце в порядке подачи.
// Входной срез не изменяется.
func Normalize(raceID int, entries []Entry) (*ResultSet, error) {
	if len(entries) == 0 {
		return nil, NewValidationError(raceID, ReasonNoEntries, 0, 0, "at least one result is required")
	}

	seenDrivers := make(map[int]struct{}, len(entries))
	positions := make(map[int]int, len(entries)) // position -> driver
	poleHolder, fastestLapHolder := 0, 0
	finished := 0

	for _, e := range entries {
		if e.DriverID <= 0 {
			return nil, NewValidationError(raceID, ReasonInvalidDriver, e.DriverID, 0, "driver id must be positive, got %d", e.DriverID)
		}
		if _, dup := seenDrivers[e.DriverID]; dup {
			return nil, NewValidationError(raceID, ReasonDuplicateDriver, e.DriverID, 0, "driver %d is listed more than once", e.DriverID)
		}
		seenDrivers[e.DriverID] = struct{}{}

		if e.PointsPenalty < 0 || e.TimePenalty < 0 {
			return nil, NewValidationError(raceID, ReasonNegativePenalty, e.DriverID, 0, "penalties for driver %d must not be negative", e.DriverID)
		}

		if position, ok := e.Finish.Position(); ok {
			if position <= 0 {
				return nil, NewValidationError(raceID, ReasonInvalidPosition, e.DriverID, position, "position must be a positive integer, got %d", position)
			}
			if other, dup := positions[position]; dup {
				return nil, NewValidationError(raceID, ReasonDuplicatePosition, e.DriverID, position, "position %d is assigned to drivers %d and %d", position, other, e.DriverID)
			}
			positions[position] = e.DriverID
			finished++
		}

		if e.Pole {
			if poleHolder != 0 {
				return nil, NewValidationError(raceID, ReasonMultiplePoles, e.DriverID, 0, "pole position is already credited to driver %d", poleHolder)
			}
			poleHolder = e.DriverID
		}
		if e.FastestLap {
			if fastestLapHolder != 0 {
				return nil, NewValidationError(raceID, ReasonMultipleFastestLaps, e.DriverID, 0, "fastest lap is already credited to driver %d", fastestLapHolder)
			}
			fastestLapHolder = e.DriverID
		}
	}

	// Позиции уникальны и положительны, значит достаточно проверить наличие 1..K.
	for position := 1; position <= finished; position++ {
		if _, ok := positions[position]; !ok {
			return nil, NewValidationError(raceID, ReasonPositionGap, 0, position, "classified positions must be contiguous from 1 to %d, P%d is missing", finished, position)
		}
	}

	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, finishedI := ordered[i].Finish.Position()
		pj, finishedJ := ordered[j].Finish.Position()
		switch {
		case !finishedI:
			return false
		case !finishedJ:
			return true
		default:
			return pi < pj
		}
	})

	return &ResultSet{RaceID: raceID, Entries: ordered, normalized: true}, nil
}

// ScoredEntry: вклад одной строки результата в статистику, с начисленными очками.
type ScoredEntry struct {
	Entry
	RaceID    int
	Points    int
	FieldSize int
}

func (e ScoredEntry) MarshalJSON() ([]byte, error) {
	var position *int
	if p, ok := e.Finish.Position(); ok {
		position = &p
	}
	return json.Marshal(struct {
		RaceID        int    `json:"race_id"`
		DriverID      int    `json:"driver_id"`
		TeamID        *int   `json:"team_id"`
		Position      *int   `json:"position"`
		DNF           bool   `json:"dnf"`
		DNFReason     string `json:"dnf_reason,omitempty"`
		Pole          bool   `json:"pole_position"`
		FastestLap    bool   `json:"fastest_lap"`
		PointsPenalty int    `json:"points_penalty"`
		TimePenalty   int    `json:"time_penalty"`
		Points        int    `json:"points"`
	}{
		RaceID:        e.RaceID,
		DriverID:      e.DriverID,
		TeamID:        e.TeamID,
		Position:      position,
		DNF:           e.Finish.IsDNF(),
		DNFReason:     e.DNFReason,
		Pole:          e.Pole,
		FastestLap:    e.FastestLap,
		PointsPenalty: e.PointsPenalty,
		TimePenalty:   e.TimePenalty,
		Points:        e.Points,
	})
}
