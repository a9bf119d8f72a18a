package standings

// Overview: сводка по сезону для главной страницы и бота.
type Overview struct {
	SeasonID           int       `json:"season_id"`
	TotalRaces         int       `json:"total_races"`
	CompletedRaces     int       `json:"completed_races"`
	TotalDrivers       int       `json:"total_drivers"`
	TotalTeams         int       `json:"total_teams"`
	TotalResults       int       `json:"total_results"`
	TotalPointsAwarded int       `json:"total_points_awarded"`
	Leader             *Standing `json:"leader"`
}

// Summarize считает сводку сезона. calendar: id всех гонок сезона, включая
// ещё не проведённые; гонки с результатами учитываются, даже если их нет в calendar.
func Summarize(l *Ledger, calendar []int, policy TiePolicy) Overview {
	applied := l.RaceIDs()
	races := make(map[int]struct{}, len(calendar)+len(applied))
	for _, id := range calendar {
		races[id] = struct{}{}
	}
	for _, id := range applied {
		races[id] = struct{}{}
	}

	o := Overview{
		SeasonID:       l.seasonID,
		TotalRaces:     len(races),
		CompletedRaces: len(applied),
		TotalDrivers:   len(l.drivers),
		TotalTeams:     len(l.teams),
	}
	for _, entries := range l.races {
		o.TotalResults += len(entries)
		for _, e := range entries {
			o.TotalPointsAwarded += e.Points
		}
	}
	if table := Rank(l.drivers, policy); len(table) > 0 {
		leader := table[0]
		o.Leader = &leader
	}
	return o
}

// RecentResults returns up to limit entries of the driver, most recent first.
// chronology lists race ids oldest first; races missing from the ledger are skipped.
func RecentResults(l *Ledger, driverID int, chronology []int, limit int) []ScoredEntry {
	if limit <= 0 {
		return []ScoredEntry{}
	}
	out := make([]ScoredEntry, 0, limit)
	for i := len(chronology) - 1; i >= 0 && len(out) < limit; i-- {
		for _, e := range l.races[chronology[i]] {
			if e.DriverID == driverID {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
