package handlers

import (
	"context"
	"io"

	"github.com/Dosada05/grid-league/models"
	"github.com/Dosada05/grid-league/repositories"
	"github.com/Dosada05/grid-league/services"
)

// Заглушки встраивают интерфейс: невызываемые в тесте методы паникуют.

type stubStandingsService struct {
	services.StandingsService

	submit      func(ctx context.Context, raceID int, inputs []services.ResultInput) (*services.SubmitResult, error)
	standings   func(ctx context.Context, seasonID int) (*services.StandingsView, error)
	leaderboard func(ctx context.Context, metric string, limit int) (*services.LeaderboardView, error)
	teamStats   func(ctx context.Context, teamID int) (*services.TeamDetail, error)
	reloadErr   error
	reloads     int
}

func (s *stubStandingsService) SubmitRaceResults(ctx context.Context, raceID int, inputs []services.ResultInput) (*services.SubmitResult, error) {
	return s.submit(ctx, raceID, inputs)
}

func (s *stubStandingsService) GetStandings(ctx context.Context, seasonID int) (*services.StandingsView, error) {
	return s.standings(ctx, seasonID)
}

func (s *stubStandingsService) GetLeaderboard(ctx context.Context, metric string, limit int) (*services.LeaderboardView, error) {
	return s.leaderboard(ctx, metric, limit)
}

func (s *stubStandingsService) GetTeamStatistics(ctx context.Context, teamID int) (*services.TeamDetail, error) {
	return s.teamStats(ctx, teamID)
}

func (s *stubStandingsService) Reload(ctx context.Context) error {
	s.reloads++
	return s.reloadErr
}

type stubDriverService struct {
	services.DriverService

	uploadedType string
	uploadedBody string
	uploadErr    error
}

func (s *stubDriverService) UploadLivery(ctx context.Context, driverID int, file io.Reader, contentType string) (*models.Driver, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	body, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	s.uploadedType = contentType
	s.uploadedBody = string(body)
	return &models.Driver{ID: driverID, Username: "alice"}, nil
}

type stubTeamService struct {
	services.TeamService

	addErr error
	team   *models.Team
}

func (s *stubTeamService) AddMember(ctx context.Context, teamID, driverID int) error {
	return s.addErr
}

func (s *stubTeamService) GetTeam(ctx context.Context, id int) (*models.Team, error) {
	if s.team == nil {
		return nil, services.ErrTeamNotFound
	}
	return s.team, nil
}

type stubPinger struct {
	err error
}

func (p stubPinger) PingContext(ctx context.Context) error {
	return p.err
}

type stubPenaltyService struct {
	services.PenaltyService

	filter    repositories.PenaltyFilter
	input     services.PenaltyInput
	appliedBy int
	revoked   int
	err       error
}

func (s *stubPenaltyService) ListPenalties(ctx context.Context, filter repositories.PenaltyFilter) ([]*models.Penalty, error) {
	s.filter = filter
	return []*models.Penalty{{ID: 1, DriverID: filter.DriverID, Type: models.PenaltyWarning, Reason: "track limits"}}, s.err
}

func (s *stubPenaltyService) ApplyPenalty(ctx context.Context, input services.PenaltyInput, appliedBy int) (*services.PenaltyResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.input = input
	s.appliedBy = appliedBy
	return &services.PenaltyResult{Penalty: &models.Penalty{ID: 5, DriverID: input.DriverID, Type: input.Type, Reason: input.Reason}}, nil
}

func (s *stubPenaltyService) RevokePenalty(ctx context.Context, id int) (*services.PenaltyResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.revoked = id
	return &services.PenaltyResult{Penalty: &models.Penalty{ID: id}}, nil
}
