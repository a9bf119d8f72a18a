package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Dosada05/grid-league/live"
	"github.com/Dosada05/grid-league/models"
	"github.com/Dosada05/grid-league/repositories"
	"github.com/Dosada05/grid-league/standings"
	"github.com/Dosada05/grid-league/storage"
	"golang.org/x/sync/errgroup"
)

// StandingsBroadcaster рассылает обновления подписчикам сезона. Реализуется live.Hub.
type StandingsBroadcaster interface {
	PublishSeason(seasonID int, messageType string, payload interface{})
}

type StandingsConfig struct {
	Rules              standings.Rules
	TiePolicy          standings.TiePolicy
	RecentResultsLimit int
}

// ResultInput: строка результата, как её присылает администратор.
type ResultInput struct {
	DriverID      int    `json:"driver_id"`
	Position      *int   `json:"position"`
	DNF           bool   `json:"dnf"`
	DNFReason     string `json:"dnf_reason"`
	PolePosition  bool   `json:"pole_position"`
	FastestLap    bool   `json:"fastest_lap"`
	PointsPenalty int    `json:"points_penalty"`
	TimePenalty   int    `json:"time_penalty"`
}

type DriverRef struct {
	ID           int     `json:"id"`
	Username     string  `json:"username"`
	DriverNumber int     `json:"driver_number"`
	TeamName     *string `json:"team_name,omitempty"`
}

type StandingView struct {
	standings.Standing
	Driver *DriverRef `json:"driver,omitempty"`
}

type TeamStandingView struct {
	standings.TeamStanding
	TeamName string `json:"team_name"`
}

type StandingsView struct {
	Season    *models.Season `json:"season"`
	Standings []StandingView `json:"standings"`
}

type SubmitResult struct {
	RaceID    int                     `json:"race_id"`
	SeasonID  int                     `json:"season_id"`
	Replaced  bool                    `json:"replaced"`
	Results   []standings.ScoredEntry `json:"results"`
	Standings []standings.Standing    `json:"standings"`
}

type DriverDetail struct {
	Driver               *models.Driver          `json:"driver"`
	SeasonID             int                     `json:"season_id,omitempty"`
	Statistics           standings.Statistics    `json:"statistics"`
	DNFPercentage        float64                 `json:"dnf_percentage"`
	AvgPointsPerRace     float64                 `json:"avg_points_per_race"`
	ChampionshipPosition *int                    `json:"championship_position"`
	RecentResults        []standings.ScoredEntry `json:"recent_results"`
}

type TeamDetail struct {
	Team                 *models.Team         `json:"team"`
	SeasonID             int                  `json:"season_id,omitempty"`
	Statistics           standings.Statistics `json:"statistics"`
	ChampionshipPosition *int                 `json:"championship_position"`
}

type LeaderboardRow struct {
	standings.LeaderboardEntry
	Driver *DriverRef `json:"driver,omitempty"`
}

type LeaderboardView struct {
	SeasonID int              `json:"season_id"`
	Metric   standings.Metric `json:"metric"`
	Entries  []LeaderboardRow `json:"entries"`
}

type OverviewView struct {
	standings.Overview
	Season       *models.Season `json:"season"`
	LeaderDriver *DriverRef     `json:"leader_driver,omitempty"`
}

type StandingsUpdatedPayload struct {
	SeasonID  int                  `json:"season_id"`
	RaceID    int                  `json:"race_id"`
	Standings []standings.Standing `json:"standings"`
}

type StandingsService interface {
	SubmitRaceResults(ctx context.Context, raceID int, inputs []ResultInput) (*SubmitResult, error)
	GetStandings(ctx context.Context, seasonID int) (*StandingsView, error)
	GetTeamStandings(ctx context.Context) ([]TeamStandingView, error)
	GetDriverStatistics(ctx context.Context, driverID int) (*DriverDetail, error)
	GetTeamStatistics(ctx context.Context, teamID int) (*TeamDetail, error)
	GetLeaderboard(ctx context.Context, metric string, limit int) (*LeaderboardView, error)
	GetOverview(ctx context.Context) (*OverviewView, error)
	// AdjustPointsPenalty меняет штраф очками в проведённой гонке активного сезона.
	AdjustPointsPenalty(ctx context.Context, raceID, driverID, delta int, persist func(exec repositories.SQLExecutor) error) (*SubmitResult, error)
	// Reload пересобирает статистику активного сезона из сохранённых результатов.
	Reload(ctx context.Context) error
}

// seasonSnapshot публикуется целиком и после публикации не изменяется.
type seasonSnapshot struct {
	season     *models.Season
	ledger     *standings.Ledger
	chronology []int // id гонок сезона, от ранних к поздним
}

type standingsService struct {
	tx           repositories.Transactor
	seasonRepo   repositories.SeasonRepository
	raceRepo     repositories.RaceRepository
	resultRepo   repositories.RaceResultRepository
	driverRepo   repositories.DriverRepository
	teamRepo     repositories.TeamRepository
	standingRepo repositories.StandingRepository
	uploader     storage.FileUploader
	broadcaster  StandingsBroadcaster
	cfg          StandingsConfig
	logger       *slog.Logger

	writeMu sync.Mutex // сериализует все записи

	mu   sync.RWMutex
	snap *seasonSnapshot
}

func NewStandingsService(
	tx repositories.Transactor,
	seasonRepo repositories.SeasonRepository,
	raceRepo repositories.RaceRepository,
	resultRepo repositories.RaceResultRepository,
	driverRepo repositories.DriverRepository,
	teamRepo repositories.TeamRepository,
	standingRepo repositories.StandingRepository,
	uploader storage.FileUploader,
	broadcaster StandingsBroadcaster,
	cfg StandingsConfig,
	logger *slog.Logger,
) (StandingsService, error) {
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	if cfg.TiePolicy == "" {
		cfg.TiePolicy = standings.TieSplit
	}
	if _, err := standings.ParseTiePolicy(string(cfg.TiePolicy)); err != nil {
		return nil, err
	}
	if cfg.RecentResultsLimit <= 0 {
		cfg.RecentResultsLimit = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &standingsService{
		tx:           tx,
		seasonRepo:   seasonRepo,
		raceRepo:     raceRepo,
		resultRepo:   resultRepo,
		driverRepo:   driverRepo,
		teamRepo:     teamRepo,
		standingRepo: standingRepo,
		uploader:     uploader,
		broadcaster:  broadcaster,
		cfg:          cfg,
		logger:       logger.With(slog.String("service", "standings")),
	}, nil
}

func (s *standingsService) current() *seasonSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *standingsService) publish(snap *seasonSnapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *standingsService) SubmitRaceResults(ctx context.Context, raceID int, inputs []ResultInput) (*SubmitResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, err := s.raceSnapshot(ctx, raceID)
	if err != nil {
		return nil, err
	}

	prior, err := s.resultRepo.ListByRace(ctx, nil, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prior results of race %d: %w", raceID, err)
	}

	entries, err := s.buildEntries(ctx, raceID, inputs, prior)
	if err != nil {
		return nil, err
	}

	return s.commitRace(ctx, snap, raceID, entries, len(prior) > 0, nil)
}

// AdjustPointsPenalty меняет штраф очками пилота в проведённой гонке на delta
// (итог не меньше нуля) и пересчитывает таблицу. persist выполняется в той же
// транзакции, что и запись результатов.
func (s *standingsService) AdjustPointsPenalty(ctx context.Context, raceID, driverID, delta int, persist func(exec repositories.SQLExecutor) error) (*SubmitResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, err := s.raceSnapshot(ctx, raceID)
	if err != nil {
		return nil, err
	}

	prior, err := s.resultRepo.ListByRace(ctx, nil, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results of race %d: %w", raceID, err)
	}

	entries := make([]standings.Entry, len(prior))
	found := false
	for i, rr := range prior {
		entries[i] = resultToEntry(rr)
		if rr.DriverID == driverID {
			found = true
			entries[i].PointsPenalty = max(0, entries[i].PointsPenalty+delta)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: driver %d, race %d", ErrResultNotFound, driverID, raceID)
	}

	return s.commitRace(ctx, snap, raceID, entries, true, persist)
}

// raceSnapshot проверяет, что гонка существует и относится к активному сезону.
func (s *standingsService) raceSnapshot(ctx context.Context, raceID int) (*seasonSnapshot, error) {
	race, err := s.raceRepo.GetByID(ctx, raceID)
	if err != nil {
		if errors.Is(err, repositories.ErrRaceNotFound) {
			return nil, ErrRaceNotFound
		}
		return nil, fmt.Errorf("failed to load race %d: %w", raceID, err)
	}

	snap := s.current()
	if snap == nil {
		return nil, ErrNoActiveSeason
	}
	if race.SeasonID != snap.season.ID {
		return nil, fmt.Errorf("%w: race %d belongs to season %d", ErrSeasonNotActive, raceID, race.SeasonID)
	}
	return snap, nil
}

// commitRace применяет набор гонки к ledger, сохраняет результаты и снимок таблицы
// в одной транзакции и только после коммита публикует новый ledger.
// Вызывается под writeMu.
func (s *standingsService) commitRace(
	ctx context.Context,
	snap *seasonSnapshot,
	raceID int,
	entries []standings.Entry,
	hadPrior bool,
	persist func(exec repositories.SQLExecutor) error,
) (*SubmitResult, error) {
	rs, err := standings.Normalize(raceID, entries)
	if err != nil {
		return nil, err
	}

	next, err := standings.ReplaceRace(snap.ledger, rs, hadPrior)
	if err != nil {
		s.logger.ErrorContext(ctx, "ledger replace failed",
			slog.Int("race_id", raceID), slog.Int("season_id", snap.season.ID), slog.Bool("had_prior", hadPrior), slog.Any("error", err))
		return nil, err
	}

	races, err := s.raceRepo.ListBySeason(ctx, nil, snap.season.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list races of season %d: %w", snap.season.ID, err)
	}

	scored, _ := next.RaceEntries(raceID)
	table := standings.Rank(next.Drivers(), s.cfg.TiePolicy)

	rows := make([]*models.RaceResult, len(scored))
	for i, se := range scored {
		rows[i] = scoredToResult(se)
	}
	snapshotRows := make([]*models.ChampionshipStanding, len(table))
	for i, st := range table {
		snapshotRows[i] = standingToRow(snap.season.ID, st)
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.resultRepo.ReplaceForRace(ctx, exec, raceID, rows); err != nil {
			return err
		}
		if err := s.raceRepo.UpdateStatus(ctx, exec, raceID, models.RaceStatusCompleted); err != nil {
			return err
		}
		if err := s.standingRepo.ReplaceForSeason(ctx, exec, snap.season.ID, snapshotRows); err != nil {
			return err
		}
		if persist != nil {
			return persist(exec)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDriverNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrDriverNotFound, err)
		}
		return nil, fmt.Errorf("failed to persist results of race %d: %w", raceID, err)
	}

	s.publish(&seasonSnapshot{season: snap.season, ledger: next, chronology: raceIDs(races)})

	s.logger.InfoContext(ctx, "race results committed",
		slog.Int("race_id", raceID), slog.Int("season_id", snap.season.ID),
		slog.Int("entries", len(scored)), slog.Bool("replaced", hadPrior))

	if s.broadcaster != nil {
		s.broadcaster.PublishSeason(snap.season.ID, live.MessageStandingsUpdated, StandingsUpdatedPayload{
			SeasonID:  snap.season.ID,
			RaceID:    raceID,
			Standings: table,
		})
	}

	return &SubmitResult{
		RaceID:    raceID,
		SeasonID:  snap.season.ID,
		Replaced:  hadPrior,
		Results:   scored,
		Standings: table,
	}, nil
}

// buildEntries проверяет существование пилотов и фиксирует их команду.
// При повторной подаче пилот сохраняет команду из прежнего набора.
func (s *standingsService) buildEntries(ctx context.Context, raceID int, inputs []ResultInput, prior []*models.RaceResult) ([]standings.Entry, error) {
	priorTeam := make(map[int]*int, len(prior))
	for _, rr := range prior {
		priorTeam[rr.DriverID] = rr.TeamID
	}

	ids := make([]int, 0, len(inputs))
	for _, in := range inputs {
		if in.DriverID > 0 {
			ids = append(ids, in.DriverID)
		}
	}
	drivers, err := s.driverRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve drivers for race %d: %w", raceID, err)
	}
	byID := make(map[int]*models.Driver, len(drivers))
	for _, d := range drivers {
		byID[d.ID] = d
	}

	entries := make([]standings.Entry, 0, len(inputs))
	for _, in := range inputs {
		var finish standings.Finish
		switch {
		case in.DNF:
			finish = standings.DNF()
		case in.Position == nil:
			return nil, standings.NewValidationError(raceID, standings.ReasonInvalidPosition, in.DriverID, 0,
				"driver %d needs a position or dnf", in.DriverID)
		default:
			finish = standings.Finished(*in.Position)
		}

		entry := standings.Entry{
			DriverID:      in.DriverID,
			Finish:        finish,
			Pole:          in.PolePosition,
			FastestLap:    in.FastestLap,
			PointsPenalty: in.PointsPenalty,
			TimePenalty:   in.TimePenalty,
		}
		if in.DNF {
			entry.DNFReason = in.DNFReason
		}

		if in.DriverID > 0 {
			driver, ok := byID[in.DriverID]
			if !ok {
				return nil, standings.NewValidationError(raceID, standings.ReasonUnknownDriver, in.DriverID, 0,
					"driver %d does not exist", in.DriverID)
			}
			if team, seen := priorTeam[in.DriverID]; seen {
				entry.TeamID = team
			} else {
				entry.TeamID = driver.TeamID
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *standingsService) GetStandings(ctx context.Context, seasonID int) (*StandingsView, error) {
	snap := s.current()

	var season *models.Season
	var table []standings.Standing

	if seasonID == 0 || (snap != nil && seasonID == snap.season.ID) {
		if snap == nil {
			return nil, ErrNoActiveSeason
		}
		season = snap.season
		table = standings.Rank(snap.ledger.Drivers(), s.cfg.TiePolicy)
	} else {
		var err error
		season, err = s.seasonRepo.GetByID(ctx, seasonID)
		if err != nil {
			if errors.Is(err, repositories.ErrSeasonNotFound) {
				return nil, ErrSeasonNotFound
			}
			return nil, fmt.Errorf("failed to get season %d: %w", seasonID, err)
		}
		rows, err := s.standingRepo.ListBySeason(ctx, nil, seasonID)
		if err != nil {
			return nil, fmt.Errorf("failed to load standings snapshot of season %d: %w", seasonID, err)
		}
		table = make([]standings.Standing, len(rows))
		for i, row := range rows {
			table[i] = rowToStanding(row)
		}
	}

	ids := make([]int, len(table))
	for i, st := range table {
		ids[i] = st.DriverID
	}
	refs, err := s.driverRefs(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &StandingsView{Season: season, Standings: make([]StandingView, len(table))}
	for i, st := range table {
		view.Standings[i] = StandingView{Standing: st, Driver: refs[st.DriverID]}
	}
	return view, nil
}

func (s *standingsService) GetTeamStandings(ctx context.Context) ([]TeamStandingView, error) {
	snap := s.current()
	if snap == nil {
		return nil, ErrNoActiveSeason
	}

	teams, err := s.teamRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	names := make(map[int]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}

	table := standings.RankTeams(snap.ledger.Teams(), s.cfg.TiePolicy)
	out := make([]TeamStandingView, len(table))
	for i, ts := range table {
		out[i] = TeamStandingView{TeamStanding: ts, TeamName: names[ts.TeamID]}
	}
	return out, nil
}

func (s *standingsService) GetDriverStatistics(ctx context.Context, driverID int) (*DriverDetail, error) {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repositories.ErrDriverNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("failed to get driver %d: %w", driverID, err)
	}
	populateDriverLiveryURL(driver, s.uploader)

	detail := &DriverDetail{Driver: driver, RecentResults: []standings.ScoredEntry{}}

	snap := s.current()
	if snap == nil {
		return detail, nil
	}

	detail.SeasonID = snap.season.ID
	if stats, ok := snap.ledger.Driver(driverID); ok {
		detail.Statistics = stats
		detail.DNFPercentage = stats.DNFPercentage()
		detail.AvgPointsPerRace = stats.AvgPointsPerRace()
		if rank, found := standings.PositionOf(standings.Rank(snap.ledger.Drivers(), s.cfg.TiePolicy), driverID); found {
			detail.ChampionshipPosition = &rank
		}
	}
	detail.RecentResults = standings.RecentResults(snap.ledger, driverID, snap.chronology, s.cfg.RecentResultsLimit)
	return detail, nil
}

func (s *standingsService) GetTeamStatistics(ctx context.Context, teamID int) (*TeamDetail, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", teamID, err)
	}
	populateTeamLogoURL(team, s.uploader)

	members, err := s.driverRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster of team %d: %w", teamID, err)
	}
	team.Members = make([]models.Driver, len(members))
	for i, m := range members {
		populateDriverLiveryURL(m, s.uploader)
		team.Members[i] = *m
	}

	detail := &TeamDetail{Team: team}

	snap := s.current()
	if snap == nil {
		return detail, nil
	}
	detail.SeasonID = snap.season.ID
	if stats, ok := snap.ledger.Team(teamID); ok {
		detail.Statistics = stats
		for _, ts := range standings.RankTeams(snap.ledger.Teams(), s.cfg.TiePolicy) {
			if ts.TeamID == teamID {
				rank := ts.Rank
				detail.ChampionshipPosition = &rank
				break
			}
		}
	}
	return detail, nil
}

func (s *standingsService) GetLeaderboard(ctx context.Context, metric string, limit int) (*LeaderboardView, error) {
	m, err := standings.ParseMetric(metric)
	if err != nil {
		return nil, err
	}
	snap := s.current()
	if snap == nil {
		return nil, ErrNoActiveSeason
	}

	entries := standings.Leaderboard(snap.ledger.Drivers(), m, limit)

	ids := make([]int, len(entries))
	for i, e := range entries {
		ids[i] = e.DriverID
	}
	refs, err := s.driverRefs(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &LeaderboardView{SeasonID: snap.season.ID, Metric: m, Entries: make([]LeaderboardRow, len(entries))}
	for i, e := range entries {
		view.Entries[i] = LeaderboardRow{LeaderboardEntry: e, Driver: refs[e.DriverID]}
	}
	return view, nil
}

func (s *standingsService) GetOverview(ctx context.Context) (*OverviewView, error) {
	snap := s.current()
	if snap == nil {
		return nil, ErrNoActiveSeason
	}

	// Календарь читается из БД: гонки, созданные после последней сборки, тоже в счёт.
	races, err := s.raceRepo.ListBySeason(ctx, nil, snap.season.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list races of season %d: %w", snap.season.ID, err)
	}

	view := &OverviewView{
		Overview: standings.Summarize(snap.ledger, raceIDs(races), s.cfg.TiePolicy),
		Season:   snap.season,
	}
	if view.Leader != nil {
		refs, err := s.driverRefs(ctx, []int{view.Leader.DriverID})
		if err != nil {
			return nil, err
		}
		view.LeaderDriver = refs[view.Leader.DriverID]
	}
	return view, nil
}

func (s *standingsService) Reload(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	season, err := s.seasonRepo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrNoActiveSeason) {
			s.logger.WarnContext(ctx, "no active season, standings are empty")
			s.publish(nil)
			return nil
		}
		return fmt.Errorf("failed to get active season: %w", err)
	}

	var races []*models.Race
	var results map[int][]*models.RaceResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		races, err = s.raceRepo.ListBySeason(gctx, nil, season.ID)
		return err
	})
	g.Go(func() error {
		var err error
		results, err = s.resultRepo.ListBySeason(gctx, nil, season.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to load season %d for reload: %w", season.ID, err)
	}

	history := make([]*standings.ResultSet, 0, len(results))
	for _, race := range races {
		rows, ok := results[race.ID]
		if !ok {
			continue
		}
		entries := make([]standings.Entry, len(rows))
		for i, rr := range rows {
			entries[i] = resultToEntry(rr)
		}
		rs, err := standings.Normalize(race.ID, entries)
		if err != nil {
			return fmt.Errorf("stored results of race %d are invalid: %w", race.ID, err)
		}
		history = append(history, rs)
	}

	ledger, err := standings.Aggregate(season.ID, history, s.cfg.Rules)
	if err != nil {
		return fmt.Errorf("failed to aggregate season %d: %w", season.ID, err)
	}

	table := standings.Rank(ledger.Drivers(), s.cfg.TiePolicy)
	snapshotRows := make([]*models.ChampionshipStanding, len(table))
	for i, st := range table {
		snapshotRows[i] = standingToRow(season.ID, st)
	}
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.standingRepo.ReplaceForSeason(ctx, exec, season.ID, snapshotRows)
	})
	if err != nil {
		return fmt.Errorf("failed to persist standings snapshot of season %d: %w", season.ID, err)
	}

	s.publish(&seasonSnapshot{season: season, ledger: ledger, chronology: raceIDs(races)})
	s.logger.InfoContext(ctx, "standings reloaded",
		slog.Int("season_id", season.ID), slog.Int("races", len(history)), slog.Int("drivers", len(table)))
	return nil
}

func (s *standingsService) driverRefs(ctx context.Context, ids []int) (map[int]*DriverRef, error) {
	refs := make(map[int]*DriverRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}
	drivers, err := s.driverRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load drivers: %w", err)
	}
	for _, d := range drivers {
		refs[d.ID] = &DriverRef{ID: d.ID, Username: d.Username, DriverNumber: d.DriverNumber, TeamName: d.TeamName}
	}
	return refs, nil
}

func raceIDs(races []*models.Race) []int {
	ids := make([]int, len(races))
	for i, r := range races {
		ids[i] = r.ID
	}
	return ids
}
