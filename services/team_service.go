package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Dosada05/grid-league/models"
	"github.com/Dosada05/grid-league/repositories"
	"github.com/Dosada05/grid-league/storage"
)

var (
	ErrTeamNameRequired    = errors.New("team name is required")
	ErrDriverNotInTeam     = errors.New("driver is not a member of this team")
	ErrDriverAlreadyInTeam = errors.New("driver already belongs to a team")
)

type TeamService interface {
	ListTeams(ctx context.Context) ([]*models.Team, error)
	GetTeam(ctx context.Context, id int) (*models.Team, error)
	CreateTeam(ctx context.Context, input TeamInput) (*models.Team, error)
	UpdateTeam(ctx context.Context, id int, input TeamInput) (*models.Team, error)
	AddMember(ctx context.Context, teamID, driverID int) error
	RemoveMember(ctx context.Context, teamID, driverID int) error
	UploadLogo(ctx context.Context, teamID int, file io.Reader, contentType string) (*models.Team, error)
}

type TeamInput struct {
	Name string `json:"name"`
}

type teamService struct {
	teamRepo   repositories.TeamRepository
	driverRepo repositories.DriverRepository
	uploader   storage.FileUploader
	logger     *slog.Logger
}

func NewTeamService(teamRepo repositories.TeamRepository, driverRepo repositories.DriverRepository, uploader storage.FileUploader, logger *slog.Logger) TeamService {
	if logger == nil {
		logger = slog.Default()
	}
	return &teamService{
		teamRepo:   teamRepo,
		driverRepo: driverRepo,
		uploader:   uploader,
		logger:     logger.With(slog.String("service", "teams")),
	}
}

func mapTeamRepoError(err error, id int) error {
	switch {
	case errors.Is(err, repositories.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrTeamNameConflict):
		return ErrTeamNameConflict
	default:
		return fmt.Errorf("team repository failure (id: %d): %w", id, err)
	}
}

// ListTeams возвращает команды вместе с действующими составами.
func (s *teamService) ListTeams(ctx context.Context) ([]*models.Team, error) {
	teams, err := s.teamRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	drivers, err := s.driverRepo.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers for rosters: %w", err)
	}

	rosters := make(map[int][]models.Driver)
	for _, d := range drivers {
		if d.TeamID == nil {
			continue
		}
		populateDriverLiveryURL(d, s.uploader)
		rosters[*d.TeamID] = append(rosters[*d.TeamID], *d)
	}
	for _, t := range teams {
		populateTeamLogoURL(t, s.uploader)
		t.Members = rosters[t.ID]
		if t.Members == nil {
			t.Members = []models.Driver{}
		}
	}
	return teams, nil
}

func (s *teamService) GetTeam(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err, id)
	}
	members, err := s.driverRepo.ListByTeam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster of team %d: %w", id, err)
	}
	team.Members = make([]models.Driver, len(members))
	for i, m := range members {
		populateDriverLiveryURL(m, s.uploader)
		team.Members[i] = *m
	}
	populateTeamLogoURL(team, s.uploader)
	return team, nil
}

func (s *teamService) CreateTeam(ctx context.Context, input TeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, ErrTeamNameRequired)
	}
	team := &models.Team{Name: name}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, mapTeamRepoError(err, 0)
	}
	team.Members = []models.Driver{}
	return team, nil
}

func (s *teamService) UpdateTeam(ctx context.Context, id int, input TeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, ErrTeamNameRequired)
	}
	if err := s.teamRepo.Update(ctx, &models.Team{ID: id, Name: name}); err != nil {
		return nil, mapTeamRepoError(err, id)
	}
	return s.GetTeam(ctx, id)
}

// AddMember переводит пилота в команду. Уже поданные результаты сохраняют
// прежнюю команду.
func (s *teamService) AddMember(ctx context.Context, teamID, driverID int) error {
	if _, err := s.teamRepo.GetByID(ctx, teamID); err != nil {
		return mapTeamRepoError(err, teamID)
	}
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return mapDriverRepoError(err, driverID)
	}
	if driver.TeamID != nil {
		if *driver.TeamID == teamID {
			return nil
		}
		return ErrDriverAlreadyInTeam
	}
	if err := s.driverRepo.SetTeam(ctx, driverID, &teamID); err != nil {
		return mapDriverRepoError(err, driverID)
	}
	s.logger.InfoContext(ctx, "driver joined team", slog.Int("driver_id", driverID), slog.Int("team_id", teamID))
	return nil
}

func (s *teamService) RemoveMember(ctx context.Context, teamID, driverID int) error {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return mapDriverRepoError(err, driverID)
	}
	if driver.TeamID == nil || *driver.TeamID != teamID {
		return ErrDriverNotInTeam
	}
	if err := s.driverRepo.SetTeam(ctx, driverID, nil); err != nil {
		return mapDriverRepoError(err, driverID)
	}
	s.logger.InfoContext(ctx, "driver left team", slog.Int("driver_id", driverID), slog.Int("team_id", teamID))
	return nil
}

func (s *teamService) UploadLogo(ctx context.Context, teamID int, file io.Reader, contentType string) (*models.Team, error) {
	if s.uploader == nil {
		return nil, ErrStorageUnavailable
	}
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, mapTeamRepoError(err, teamID)
	}
	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, err
	}
	key := storage.LogoKey(teamID, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload logo for team %d: %w", teamID, err)
	}

	oldKey := team.LogoKey
	if err := s.teamRepo.UpdateLogoKey(ctx, teamID, &key); err != nil {
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned logo", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, mapTeamRepoError(err, teamID)
	}
	if oldKey != nil && *oldKey != "" {
		if err := s.uploader.Delete(ctx, *oldKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete previous logo", slog.String("key", *oldKey), slog.Any("error", err))
		}
	}
	team.LogoKey = &key
	populateTeamLogoURL(team, s.uploader)
	return team, nil
}
