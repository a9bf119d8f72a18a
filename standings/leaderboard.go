package standings

import (
	"fmt"
	"sort"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

type Metric string

const (
	MetricWins        Metric = "wins"
	MetricPoles       Metric = "poles"
	MetricFastestLaps Metric = "fastest_laps"
	MetricPodiums     Metric = "podiums"
	MetricTotalPoints Metric = "total_points"
	MetricDNFs        Metric = "dnfs"
)

// ParseMetric принимает имена метрик из API, включая короткие "points" и "dnf".
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "wins":
		return MetricWins, nil
	case "poles":
		return MetricPoles, nil
	case "fastest_laps":
		return MetricFastestLaps, nil
	case "podiums":
		return MetricPodiums, nil
	case "total_points", "points":
		return MetricTotalPoints, nil
	case "dnfs", "dnf":
		return MetricDNFs, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

func (m Metric) Value(s Statistics) int {
	switch m {
	case MetricWins:
		return s.Wins
	case MetricPoles:
		return s.Poles
	case MetricFastestLaps:
		return s.FastestLaps
	case MetricPodiums:
		return s.Podiums
	case MetricTotalPoints:
		return s.TotalPoints
	case MetricDNFs:
		return s.DNFs
	default:
		return 0
	}
}

type LeaderboardEntry struct {
	DriverID         int     `json:"driver_id"`
	Value            int     `json:"value"`
	DNFPercentage    float64 `json:"dnf_percentage"`
	AvgPointsPerRace float64 `json:"avg_points_per_race"`
	Statistics
}

// Leaderboard sorts drivers by one metric descending, then wins descending,
// then driver id ascending. Drivers with a zero value are left out.
func Leaderboard(stats map[int]Statistics, metric Metric, limit int) []LeaderboardEntry {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	out := make([]LeaderboardEntry, 0, len(stats))
	for id, s := range stats {
		v := metric.Value(s)
		if v <= 0 {
			continue
		}
		out = append(out, LeaderboardEntry{
			DriverID:         id,
			Value:            v,
			DNFPercentage:    s.DNFPercentage(),
			AvgPointsPerRace: s.AvgPointsPerRace(),
			Statistics:       s,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].DriverID < out[j].DriverID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
