package standings

import (
	"errors"
	"fmt"
	"sort"
)

// Ledger: явное агрегированное состояние одного сезона: статистика пилотов и
// команд плюс сохранённый вклад каждой применённой гонки. Для вызывающего кода
// ledger неизменяем: каждая операция возвращает новый ledger.
type Ledger struct {
	seasonID int
	rules    Rules
	drivers  map[int]Statistics
	teams    map[int]Statistics
	races    map[int][]ScoredEntry
}

func NewLedger(seasonID int, rules Rules) (*Ledger, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{
		seasonID: seasonID,
		rules:    rules,
		drivers:  make(map[int]Statistics),
		teams:    make(map[int]Statistics),
		races:    make(map[int][]ScoredEntry),
	}, nil
}

// Aggregate folds a full result history into a fresh ledger.
func Aggregate(seasonID int, history []*ResultSet, rules Rules) (*Ledger, error) {
	l, err := NewLedger(seasonID, rules)
	if err != nil {
		return nil, err
	}
	for _, rs := range history {
		if err := l.checkApplicable(rs); err != nil {
			return nil, err
		}
		l.apply(rs)
	}
	return l, nil
}

// ApplyRace возвращает новый ledger с учётом результатов гонки.
// Повторное применение той же гонки запрещено: сначала RetractRace.
func ApplyRace(l *Ledger, rs *ResultSet) (*Ledger, error) {
	if err := l.checkApplicable(rs); err != nil {
		return nil, err
	}
	next := l.clone()
	next.apply(rs)
	return next, nil
}

// RetractRace возвращает новый ledger без вклада указанной гонки.
// Если вклад не найден или откат уводит счётчики в минус, операция отказывает.
func RetractRace(l *Ledger, raceID int) (*Ledger, error) {
	scored, ok := l.races[raceID]
	if !ok {
		return nil, fmt.Errorf("%w: no contribution recorded for race %d", ErrInconsistentState, raceID)
	}
	next := l.clone()
	if err := next.retract(raceID, scored); err != nil {
		return nil, err
	}
	return next, nil
}

// ReplaceRace заменяет результаты гонки целиком: откат старого вклада, затем
// применение нового. hadPrior сообщает, есть ли у гонки сохранённые результаты;
// расхождение с ledger считается повреждением данных.
func ReplaceRace(l *Ledger, rs *ResultSet, hadPrior bool) (*Ledger, error) {
	if rs == nil {
		return nil, fmt.Errorf("%w: result set is nil", ErrValidation)
	}
	_, applied := l.races[rs.RaceID]
	switch {
	case hadPrior && !applied:
		return nil, fmt.Errorf("%w: race %d has stored results but no recorded contribution", ErrInconsistentState, rs.RaceID)
	case !hadPrior && applied:
		return nil, fmt.Errorf("%w: race %d has a recorded contribution but no stored results", ErrInconsistentState, rs.RaceID)
	}

	base := l
	if applied {
		var err error
		base, err = RetractRace(l, rs.RaceID)
		if err != nil {
			return nil, err
		}
	}
	return ApplyRace(base, rs)
}

func (l *Ledger) checkApplicable(rs *ResultSet) error {
	if rs == nil || !rs.normalized {
		return fmt.Errorf("%w: result set must come from Normalize", ErrValidation)
	}
	if _, ok := l.races[rs.RaceID]; ok {
		return fmt.Errorf("race %d: %w", rs.RaceID, ErrRaceAlreadyApplied)
	}
	return nil
}

func (l *Ledger) apply(rs *ResultSet) {
	scored := make([]ScoredEntry, 0, len(rs.Entries))
	for _, e := range rs.Entries {
		se := ScoredEntry{
			Entry:     e,
			RaceID:    rs.RaceID,
			Points:    l.rules.Scheme.AwardWithPenalty(e.Finish, e.Pole, e.FastestLap, e.PointsPenalty),
			FieldSize: len(rs.Entries),
		}
		scored = append(scored, se)

		ds := l.drivers[e.DriverID]
		ds.fold(se, l.rules.Average, 1)
		l.drivers[e.DriverID] = ds

		if e.TeamID != nil {
			ts := l.teams[*e.TeamID]
			ts.fold(se, l.rules.Average, 1)
			l.teams[*e.TeamID] = ts
		}
	}
	l.races[rs.RaceID] = scored
}

var errMissingStats = errors.New("statistics missing for contributor")

func (l *Ledger) retract(raceID int, scored []ScoredEntry) error {
	for _, se := range scored {
		if err := retractFrom(l.drivers, se.DriverID, se, l.rules.Average); err != nil {
			return fmt.Errorf("%w: race %d, driver %d: %v", ErrInconsistentState, raceID, se.DriverID, err)
		}
		if se.TeamID != nil {
			if err := retractFrom(l.teams, *se.TeamID, se, l.rules.Average); err != nil {
				return fmt.Errorf("%w: race %d, team %d: %v", ErrInconsistentState, raceID, *se.TeamID, err)
			}
		}
	}
	delete(l.races, raceID)
	return nil
}

func retractFrom(stats map[int]Statistics, id int, se ScoredEntry, policy AveragePolicy) error {
	s, ok := stats[id]
	if !ok {
		return errMissingStats
	}
	s.fold(se, policy, -1)
	if s.negative() {
		return errors.New("retraction drives counters below zero")
	}
	if s.RacesParticipated == 0 {
		if !s.zero() {
			return errors.New("counters left over after last race was retracted")
		}
		// Пилот без гонок не должен отличаться от того, кто их не проводил.
		delete(stats, id)
		return nil
	}
	stats[id] = s
	return nil
}

func (l *Ledger) clone() *Ledger {
	next := &Ledger{
		seasonID: l.seasonID,
		rules:    l.rules,
		drivers:  make(map[int]Statistics, len(l.drivers)),
		teams:    make(map[int]Statistics, len(l.teams)),
		races:    make(map[int][]ScoredEntry, len(l.races)),
	}
	for id, s := range l.drivers {
		next.drivers[id] = s
	}
	for id, s := range l.teams {
		next.teams[id] = s
	}
	// Срезы вклада гонок не изменяются после записи, их можно разделять.
	for id, entries := range l.races {
		next.races[id] = entries
	}
	return next
}

func (l *Ledger) SeasonID() int {
	return l.seasonID
}

func (l *Ledger) Rules() Rules {
	return l.rules
}

func (l *Ledger) Driver(driverID int) (Statistics, bool) {
	s, ok := l.drivers[driverID]
	return s, ok
}

func (l *Ledger) Team(teamID int) (Statistics, bool) {
	s, ok := l.teams[teamID]
	return s, ok
}

// Drivers returns a copy of the per-driver statistics.
func (l *Ledger) Drivers() map[int]Statistics {
	out := make(map[int]Statistics, len(l.drivers))
	for id, s := range l.drivers {
		out[id] = s
	}
	return out
}

// Teams returns a copy of the per-team statistics.
func (l *Ledger) Teams() map[int]Statistics {
	out := make(map[int]Statistics, len(l.teams))
	for id, s := range l.teams {
		out[id] = s
	}
	return out
}

func (l *Ledger) HasRace(raceID int) bool {
	_, ok := l.races[raceID]
	return ok
}

// RaceEntries returns the scored entries of a race in canonical order.
func (l *Ledger) RaceEntries(raceID int) ([]ScoredEntry, bool) {
	entries, ok := l.races[raceID]
	if !ok {
		return nil, false
	}
	out := make([]ScoredEntry, len(entries))
	copy(out, entries)
	return out, true
}

func (l *Ledger) RaceIDs() []int {
	ids := make([]int, 0, len(l.races))
	for id := range l.races {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
