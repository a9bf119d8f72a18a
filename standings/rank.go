package standings

import (
	"fmt"
	"sort"
)

// TiePolicy определяет нумерацию мест при равенстве по всей цепочке тай-брейков
// (очки, победы, подиумы, поулы).
type TiePolicy string

const (
	// TieSplit: места идут подряд 1..N, равных разводит id пилота.
	TieSplit TiePolicy = "split"
	// TieShared: равные делят место, следующее место пропускается (1, 1, 3).
	TieShared TiePolicy = "shared"
)

func ParseTiePolicy(s string) (TiePolicy, error) {
	switch p := TiePolicy(s); p {
	case TieSplit, TieShared:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown tie policy %q", ErrInvalidRules, s)
	}
}

type Standing struct {
	DriverID int `json:"driver_id"`
	Rank     int `json:"rank"`
	Statistics
}

type TeamStanding struct {
	TeamID int `json:"team_id"`
	Rank   int `json:"rank"`
	Statistics
}

// Rank builds the championship table: total points, wins, podiums and poles
// descending, then driver id ascending.
func Rank(stats map[int]Statistics, policy TiePolicy) []Standing {
	rows := rankRecords(stats, policy)
	out := make([]Standing, len(rows))
	for i, r := range rows {
		out[i] = Standing{DriverID: r.id, Rank: r.rank, Statistics: r.stats}
	}
	return out
}

// RankTeams applies the same chain to team statistics, team id last.
func RankTeams(stats map[int]Statistics, policy TiePolicy) []TeamStanding {
	rows := rankRecords(stats, policy)
	out := make([]TeamStanding, len(rows))
	for i, r := range rows {
		out[i] = TeamStanding{TeamID: r.id, Rank: r.rank, Statistics: r.stats}
	}
	return out
}

// PositionOf returns the driver's rank in a table produced by Rank.
func PositionOf(table []Standing, driverID int) (int, bool) {
	for _, s := range table {
		if s.DriverID == driverID {
			return s.Rank, true
		}
	}
	return 0, false
}

type rankedRecord struct {
	id    int
	rank  int
	stats Statistics
}

func rankRecords(stats map[int]Statistics, policy TiePolicy) []rankedRecord {
	rows := make([]rankedRecord, 0, len(stats))
	for id, s := range stats {
		rows = append(rows, rankedRecord{id: id, stats: s})
	}

	sort.Slice(rows, func(i, j int) bool {
		if c := compareRecords(rows[i].stats, rows[j].stats); c != 0 {
			return c < 0
		}
		return rows[i].id < rows[j].id
	})

	for i := range rows {
		rows[i].rank = i + 1
		if policy == TieShared && i > 0 && compareRecords(rows[i-1].stats, rows[i].stats) == 0 {
			rows[i].rank = rows[i-1].rank
		}
	}
	return rows
}

// compareRecords возвращает -1, если a выше b, 1 если ниже, 0 при полном равенстве.
func compareRecords(a, b Statistics) int {
	keys := [][2]int{
		{a.TotalPoints, b.TotalPoints},
		{a.Wins, b.Wins},
		{a.Podiums, b.Podiums},
		{a.Poles, b.Poles},
	}
	for _, k := range keys {
		if k[0] != k[1] {
			if k[0] > k[1] {
				return -1
			}
			return 1
		}
	}
	return 0
}
