package standings

import (
	"fmt"
	"strconv"
)

// Finish: итог участия пилота в гонке: классифицированная позиция либо сход (DNF).
// Нулевое значение не является валидной позицией и отклоняется нормализатором.
type Finish struct {
	position int
	dnf      bool
}

func Finished(position int) Finish {
	return Finish{position: position}
}

func DNF() Finish {
	return Finish{dnf: true}
}

func (f Finish) IsDNF() bool {
	return f.dnf
}

// Position возвращает позицию и true для финишировавшего пилота, (0, false) для DNF.
func (f Finish) Position() (int, bool) {
	if f.dnf {
		return 0, false
	}
	return f.position, true
}

func (f Finish) String() string {
	if f.dnf {
		return "DNF"
	}
	return "P" + strconv.Itoa(f.position)
}

// PointsScheme: конфигурация начисления очков лиги.
type PointsScheme struct {
	Table           map[int]int // позиция -> базовые очки
	PoleBonus       int
	FastestLapBonus int
}

// DefaultPointsTable is the 25-18-15-12-10-8-6-4-2-1 table for the top ten.
func DefaultPointsTable() map[int]int {
	return map[int]int{1: 25, 2: 18, 3: 15, 4: 12, 5: 10, 6: 8, 7: 6, 8: 4, 9: 2, 10: 1}
}

// Award returns the points for a single race entry. A DNF scores nothing,
// positions missing from the table score no base points.
func (s PointsScheme) Award(finish Finish, pole, fastestLap bool) int {
	position, finished := finish.Position()
	if !finished {
		return 0
	}

	points := s.Table[position]
	if pole {
		points += s.PoleBonus
	}
	if fastestLap {
		points += s.FastestLapBonus
	}
	return points
}

// AwardWithPenalty применяет штраф в очках, итог не уходит ниже нуля.
func (s PointsScheme) AwardWithPenalty(finish Finish, pole, fastestLap bool, penalty int) int {
	points := s.Award(finish, pole, fastestLap) - penalty
	if points < 0 {
		return 0
	}
	return points
}

func (s PointsScheme) Validate() error {
	if len(s.Table) == 0 {
		return fmt.Errorf("%w: points table is empty", ErrInvalidRules)
	}
	for position, points := range s.Table {
		if position <= 0 {
			return fmt.Errorf("%w: points table position must be positive, got %d", ErrInvalidRules, position)
		}
		if points < 0 {
			return fmt.Errorf("%w: points for P%d must not be negative, got %d", ErrInvalidRules, position, points)
		}
	}
	if s.PoleBonus < 0 || s.FastestLapBonus < 0 {
		return fmt.Errorf("%w: bonus points must not be negative", ErrInvalidRules)
	}
	return nil
}

// AveragePolicy определяет, как сходы (DNF) учитываются в средней позиции.
// У политики нет значения по умолчанию: её нужно задать явно.
type AveragePolicy string

const (
	// AverageFinishedOnly исключает гонки со сходом из числителя и знаменателя.
	AverageFinishedOnly AveragePolicy = "finished_only"
	// AverageDNFAsLast засчитывает сход как последнее место: позиция = число участников гонки.
	AverageDNFAsLast AveragePolicy = "dnf_as_last"
)

func ParseAveragePolicy(s string) (AveragePolicy, error) {
	switch p := AveragePolicy(s); p {
	case AverageFinishedOnly, AverageDNFAsLast:
		return p, nil
	case "":
		return "", fmt.Errorf("%w: average position policy must be set explicitly (%s or %s)", ErrInvalidRules, AverageFinishedOnly, AverageDNFAsLast)
	default:
		return "", fmt.Errorf("%w: unknown average position policy %q", ErrInvalidRules, s)
	}
}

// Rules: всё, что влияет на свёртку результатов в статистику.
type Rules struct {
	Scheme  PointsScheme
	Average AveragePolicy
}

func (r Rules) Validate() error {
	if err := r.Scheme.Validate(); err != nil {
		return err
	}
	if _, err := ParseAveragePolicy(string(r.Average)); err != nil {
		return err
	}
	return nil
}
