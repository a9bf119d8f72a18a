package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/grid-league/live"
	"github.com/Dosada05/grid-league/models"
	"github.com/Dosada05/grid-league/standings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

type standingsFixture struct {
	svc       StandingsService
	tx        *fakeTx
	seasons   *fakeSeasonRepo
	races     *fakeRaceRepo
	results   *fakeResultRepo
	drivers   *fakeDriverRepo
	teams     *fakeTeamRepo
	snapshots *fakeStandingRepo
	hub       *fakeBroadcaster
	uploader  *fakeUploader
}

func testRules() standings.Rules {
	return standings.Rules{
		Scheme: standings.PointsScheme{
			Table:           standings.DefaultPointsTable(),
			PoleBonus:       1,
			FastestLapBonus: 1,
		},
		Average: standings.AverageFinishedOnly,
	}
}

func newStandingsFixture(t *testing.T, activeSeason bool) *standingsFixture {
	t.Helper()

	day := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	f := &standingsFixture{
		tx: &fakeTx{},
		seasons: newFakeSeasonRepo(
			&models.Season{ID: 1, Name: "Season 2026", Year: 2026, IsActive: activeSeason},
			&models.Season{ID: 2, Name: "Season 2025", Year: 2025},
		),
		teams: newFakeTeamRepo(
			&models.Team{ID: 1, Name: "Apex"},
			&models.Team{ID: 2, Name: "Slipstream"},
		),
		drivers: newFakeDriverRepo(
			&models.Driver{ID: 1, Username: "alice", DriverNumber: 11, TeamID: intPtr(1)},
			&models.Driver{ID: 2, Username: "bob", DriverNumber: 22, TeamID: intPtr(1)},
			&models.Driver{ID: 3, Username: "carol", DriverNumber: 33, TeamID: intPtr(2)},
			&models.Driver{ID: 4, Username: "dave", DriverNumber: 44},
		),
		snapshots: newFakeStandingRepo(),
		hub:       &fakeBroadcaster{},
		uploader:  newFakeUploader(),
	}
	f.races = newFakeRaceRepo(
		&models.Race{ID: 10, SeasonID: 1, Name: "Monza", Laps: 20, ScheduledAt: day, Status: models.RaceStatusScheduled},
		&models.Race{ID: 11, SeasonID: 1, Name: "Spa", Laps: 15, ScheduledAt: day.AddDate(0, 0, 7), Status: models.RaceStatusScheduled},
		&models.Race{ID: 20, SeasonID: 2, Name: "Suzuka", Laps: 18, ScheduledAt: day.AddDate(-1, 0, 0), Status: models.RaceStatusCompleted},
	)
	f.results = newFakeResultRepo(f.races)

	f.svc = f.build(t)
	return f
}

func (f *standingsFixture) build(t *testing.T) StandingsService {
	t.Helper()
	svc, err := NewStandingsService(f.tx, f.seasons, f.races, f.results, f.drivers, f.teams, f.snapshots,
		f.uploader, f.hub, StandingsConfig{Rules: testRules(), RecentResultsLimit: 5}, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Reload(context.Background()))
	return svc
}

// A P1 с поулом, B P2 с лучшим кругом, C сход.
func abcInputs() []ResultInput {
	return []ResultInput{
		{DriverID: 1, Position: intPtr(1), PolePosition: true},
		{DriverID: 2, Position: intPtr(2), FastestLap: true},
		{DriverID: 3, DNF: true, DNFReason: "gearbox"},
	}
}

func pointsByDriver(table []standings.Standing) map[int]int {
	out := make(map[int]int, len(table))
	for _, s := range table {
		out[s.DriverID] = s.TotalPoints
	}
	return out
}

func TestNewStandingsService_RejectsUnsetAveragePolicy(t *testing.T) {
	rules := testRules()
	rules.Average = ""
	_, err := NewStandingsService(&fakeTx{}, nil, nil, nil, nil, nil, nil, nil, nil, StandingsConfig{Rules: rules}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, standings.ErrInvalidRules))
}

func TestSubmitRaceResults_ScoresAndPersists(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	res, err := f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.NoError(t, err)

	assert.Equal(t, 10, res.RaceID)
	assert.Equal(t, 1, res.SeasonID)
	assert.False(t, res.Replaced)
	assert.Equal(t, map[int]int{1: 26, 2: 19, 3: 0}, pointsByDriver(res.Standings))
	require.Len(t, res.Standings, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{res.Standings[0].DriverID, res.Standings[1].DriverID, res.Standings[2].DriverID})

	rows := f.results.rows(10)
	require.Len(t, rows, 3)
	assert.Equal(t, 26, rows[0].Points)
	assert.Equal(t, intPtr(1), rows[0].TeamID)
	assert.True(t, rows[2].DNF)
	assert.Nil(t, rows[2].Position)
	assert.Equal(t, "gearbox", rows[2].DNFReason)
	assert.Equal(t, models.RaceStatusCompleted, f.races.status(10))

	snapshot, _ := f.snapshots.ListBySeason(ctx, nil, 1)
	require.Len(t, snapshot, 3)
	assert.Equal(t, 1, snapshot[0].DriverID)
	assert.Equal(t, 26, snapshot[0].TotalPoints)

	sent := f.hub.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, live.MessageStandingsUpdated, sent[0].Type)
	assert.Equal(t, 1, sent[0].SeasonID)

	teams, err := f.svc.GetTeamStandings(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "Apex", teams[0].TeamName)
	assert.Equal(t, 45, teams[0].TotalPoints)
	assert.Equal(t, 1, teams[1].DNFs)
}

func TestSubmitRaceResults_IdempotentResubmission(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	first, err := f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.NoError(t, err)
	second, err := f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.NoError(t, err)

	assert.True(t, second.Replaced)
	assert.Equal(t, first.Standings, second.Standings)
}

func TestSubmitRaceResults_ResubmissionDoesNotDoubleCount(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.NoError(t, err)

	corrected := []ResultInput{
		{DriverID: 1, Position: intPtr(2), PolePosition: true},
		{DriverID: 2, Position: intPtr(1), FastestLap: true},
		{DriverID: 3, DNF: true},
	}
	res, err := f.svc.SubmitRaceResults(ctx, 10, corrected)
	require.NoError(t, err)

	assert.Equal(t, map[int]int{1: 19, 2: 26, 3: 0}, pointsByDriver(res.Standings))
	detail, err := f.svc.GetDriverStatistics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Statistics.RacesParticipated)
	assert.Equal(t, 0, detail.Statistics.Wins)
	assert.Len(t, f.results.rows(10), 3)
}

func TestSubmitRaceResults_ValidationLeavesStateUntouched(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()
	txBefore := f.tx.calls

	_, err := f.svc.SubmitRaceResults(ctx, 10, []ResultInput{
		{DriverID: 1, Position: intPtr(1)},
		{DriverID: 2, Position: intPtr(1)},
		{DriverID: 3, Position: intPtr(3)},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, standings.ErrValidation))

	var verr *standings.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, standings.ReasonDuplicatePosition, verr.Reason)

	assert.Empty(t, f.results.rows(10))
	assert.Equal(t, txBefore, f.tx.calls)
	view, err := f.svc.GetStandings(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Standings)
	assert.Empty(t, f.hub.sent())
}

func TestSubmitRaceResults_InputErrors(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	tests := []struct {
		name   string
		inputs []ResultInput
		reason standings.Reason
	}{
		{
			name:   "unknown driver",
			inputs: []ResultInput{{DriverID: 99, Position: intPtr(1)}},
			reason: standings.ReasonUnknownDriver,
		},
		{
			name:   "missing position",
			inputs: []ResultInput{{DriverID: 1}},
			reason: standings.ReasonInvalidPosition,
		},
		{
			name:   "empty",
			inputs: nil,
			reason: standings.ReasonNoEntries,
		},
		{
			name: "two poles",
			inputs: []ResultInput{
				{DriverID: 1, Position: intPtr(1), PolePosition: true},
				{DriverID: 2, Position: intPtr(2), PolePosition: true},
			},
			reason: standings.ReasonMultiplePoles,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitRaceResults(ctx, 10, tt.inputs)
			var verr *standings.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.reason, verr.Reason)
		})
	}
}

func TestSubmitRaceResults_RaceChecks(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.SubmitRaceResults(ctx, 999, abcInputs())
	assert.ErrorIs(t, err, ErrRaceNotFound)

	_, err = f.svc.SubmitRaceResults(ctx, 20, abcInputs())
	assert.ErrorIs(t, err, ErrSeasonNotActive)
}

func TestSubmitRaceResults_FailsClosedOnMissingContribution(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	txBefore := f.tx.calls

	// строки появились в БД в обход сервиса: в статистике их нет
	f.results.set(11, &models.RaceResult{DriverID: 1, Position: intPtr(1)})

	_, err := f.svc.SubmitRaceResults(ctx, 11, abcInputs())
	require.Error(t, err)
	assert.ErrorIs(t, err, standings.ErrInconsistentState)

	rows := f.results.rows(11)
	require.Len(t, rows, 1)
	assert.Equal(t, txBefore, f.tx.calls)
}

func TestSubmitRaceResults_PersistFailureKeepsSnapshot(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	f.results.failNext = errors.New("connection reset")
	_, err := f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.Error(t, err)

	view, err := f.svc.GetStandings(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Standings)
	assert.Empty(t, f.hub.sent())

	f.tx.commitErr = errors.New("commit failed")
	_, err = f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.Error(t, err)
	view, err = f.svc.GetStandings(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Standings)
}

func TestSubmitRaceResults_TeamFrozenAtSubmission(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.NoError(t, err)

	// alice переходит в Slipstream
	require.NoError(t, f.drivers.SetTeam(ctx, 1, intPtr(2)))

	_, err = f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.NoError(t, err)
	_, err = f.svc.SubmitRaceResults(ctx, 11, []ResultInput{{DriverID: 1, Position: intPtr(1)}})
	require.NoError(t, err)

	apex, err := f.svc.GetTeamStatistics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 45, apex.Statistics.TotalPoints)

	slip, err := f.svc.GetTeamStatistics(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 25, slip.Statistics.TotalPoints)
	assert.Equal(t, 1, slip.Statistics.DNFs)
	require.Len(t, slip.Team.Members, 2)
	require.NotNil(t, apex.ChampionshipPosition)
	assert.Equal(t, 1, *apex.ChampionshipPosition)
}

func TestGetDriverStatistics(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.NoError(t, err)
	_, err = f.svc.SubmitRaceResults(ctx, 11, []ResultInput{
		{DriverID: 2, Position: intPtr(1)},
		{DriverID: 1, Position: intPtr(2)},
	})
	require.NoError(t, err)

	detail, err := f.svc.GetDriverStatistics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", detail.Driver.Username)
	assert.Equal(t, 1, detail.SeasonID)
	assert.Equal(t, 44, detail.Statistics.TotalPoints)
	assert.Equal(t, 2, detail.Statistics.RacesParticipated)
	assert.Equal(t, 22.0, detail.AvgPointsPerRace)
	require.NotNil(t, detail.ChampionshipPosition)
	assert.Equal(t, 1, *detail.ChampionshipPosition)
	require.Len(t, detail.RecentResults, 2)
	assert.Equal(t, 11, detail.RecentResults[0].RaceID)
	assert.Equal(t, 10, detail.RecentResults[1].RaceID)

	// пилот без результатов: нулевая статистика, без позиции
	idle, err := f.svc.GetDriverStatistics(ctx, 4)
	require.NoError(t, err)
	assert.Zero(t, idle.Statistics.RacesParticipated)
	assert.Nil(t, idle.ChampionshipPosition)
	assert.Empty(t, idle.RecentResults)

	_, err = f.svc.GetDriverStatistics(ctx, 404)
	assert.ErrorIs(t, err, ErrDriverNotFound)
}

func TestGetTeamStatistics_NotFound(t *testing.T) {
	f := newStandingsFixture(t, true)
	_, err := f.svc.GetTeamStatistics(context.Background(), 404)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestGetLeaderboard(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.NoError(t, err)

	board, err := f.svc.GetLeaderboard(ctx, "poles", 10)
	require.NoError(t, err)
	assert.Equal(t, standings.MetricPoles, board.Metric)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, 1, board.Entries[0].DriverID)
	require.NotNil(t, board.Entries[0].Driver)
	assert.Equal(t, "alice", board.Entries[0].Driver.Username)

	dnf, err := f.svc.GetLeaderboard(ctx, "dnf", 0)
	require.NoError(t, err)
	require.Len(t, dnf.Entries, 1)
	assert.Equal(t, 3, dnf.Entries[0].DriverID)
	assert.Equal(t, 100.0, dnf.Entries[0].DNFPercentage)

	_, err = f.svc.GetLeaderboard(ctx, "overtakes", 10)
	assert.ErrorIs(t, err, standings.ErrUnknownMetric)
}

func TestGetOverview(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.NoError(t, err)

	o, err := f.svc.GetOverview(ctx)
	require.NoError(t, err)
	// Monza проведена, Spa ещё в расписании
	assert.Equal(t, 2, o.TotalRaces)
	assert.Equal(t, 1, o.CompletedRaces)
	assert.Equal(t, 3, o.TotalDrivers)
	assert.Equal(t, 2, o.TotalTeams)
	assert.Equal(t, 3, o.TotalResults)
	assert.Equal(t, 45, o.TotalPointsAwarded)
	require.NotNil(t, o.Leader)
	require.NotNil(t, o.LeaderDriver)
	assert.Equal(t, "alice", o.LeaderDriver.Username)
	assert.Equal(t, "Season 2026", o.Season.Name)

	// гонка, добавленная после сборки таблицы, видна в сводке сразу
	require.NoError(t, f.races.Create(ctx, &models.Race{SeasonID: 1, Name: "Imola", Laps: 18, Status: models.RaceStatusScheduled}))
	o, err = f.svc.GetOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, o.TotalRaces)
}

func TestGetStandings_PastSeasonFromSnapshot(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	avg := 1.5
	require.NoError(t, f.snapshots.ReplaceForSeason(ctx, nil, 2, []*models.ChampionshipStanding{
		{SeasonID: 2, DriverID: 3, Rank: 1, TotalPoints: 43, Wins: 1, RacesParticipated: 2, AveragePosition: &avg},
		{SeasonID: 2, DriverID: 1, Rank: 2, TotalPoints: 36, RacesParticipated: 2},
	}))

	view, err := f.svc.GetStandings(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Season.ID)
	require.Len(t, view.Standings, 2)
	assert.Equal(t, 3, view.Standings[0].DriverID)
	assert.Equal(t, 43, view.Standings[0].TotalPoints)
	assert.Equal(t, "carol", view.Standings[0].Driver.Username)

	_, err = f.svc.GetStandings(ctx, 404)
	assert.ErrorIs(t, err, ErrSeasonNotFound)
}

func TestNoActiveSeason(t *testing.T) {
	f := newStandingsFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.GetStandings(ctx, 0)
	assert.ErrorIs(t, err, ErrNoActiveSeason)
	_, err = f.svc.GetOverview(ctx)
	assert.ErrorIs(t, err, ErrNoActiveSeason)
	_, err = f.svc.GetLeaderboard(ctx, "wins", 5)
	assert.ErrorIs(t, err, ErrNoActiveSeason)
	_, err = f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	assert.ErrorIs(t, err, ErrNoActiveSeason)

	detail, err := f.svc.GetDriverStatistics(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, detail.SeasonID)
	assert.Nil(t, detail.ChampionshipPosition)
}

func TestReload_RebuildsFromStoredResults(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.NoError(t, err)
	want, err := f.svc.GetStandings(ctx, 0)
	require.NoError(t, err)

	fresh := f.build(t)
	got, err := fresh.GetStandings(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, want.Standings, got.Standings)

	// после перезапуска повторная подача по-прежнему заменяет, а не удваивает
	res, err := fresh.SubmitRaceResults(ctx, 10, abcInputs())
	require.NoError(t, err)
	assert.True(t, res.Replaced)
	assert.Equal(t, map[int]int{1: 26, 2: 19, 3: 0}, pointsByDriver(res.Standings))
}

func TestReload_InvalidStoredResultsKeepPreviousSnapshot(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.SubmitRaceResults(ctx, 10, abcInputs())
	require.NoError(t, err)

	f.results.set(11,
		&models.RaceResult{DriverID: 1, Position: intPtr(1)},
		&models.RaceResult{DriverID: 2, Position: intPtr(1)},
	)
	err = f.svc.Reload(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, standings.ErrValidation)

	view, err := f.svc.GetStandings(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 26, 2: 19, 3: 0}, pointsByDriver(func() []standings.Standing {
		out := make([]standings.Standing, len(view.Standings))
		for i, s := range view.Standings {
			out[i] = s.Standing
		}
		return out
	}()))
}

func TestConcurrentReadsSeeWholeSnapshots(t *testing.T) {
	f := newStandingsFixture(t, true)
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 8)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				view, err := f.svc.GetStandings(ctx, 0)
				if err != nil {
					errs <- err
					return
				}
				if n := len(view.Standings); n != 0 && n != 3 {
					errs <- errors.New("partial standings observed")
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		_, err := f.svc.SubmitRaceResults(ctx, 10, abcInputs())
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
