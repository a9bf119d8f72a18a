package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/grid-league/live"
	"github.com/Dosada05/grid-league/models"
	"github.com/Dosada05/grid-league/repositories"
)

var (
	ErrSeasonNameRequired = errors.New("season name is required")
	ErrSeasonYearInvalid  = errors.New("season year is invalid")
)

type SeasonService interface {
	ListSeasons(ctx context.Context) ([]*models.Season, error)
	GetSeason(ctx context.Context, id int) (*models.Season, error)
	CreateSeason(ctx context.Context, input SeasonInput) (*models.Season, error)
	// ActivateSeason делает сезон активным и пересобирает турнирную таблицу.
	ActivateSeason(ctx context.Context, id int) (*models.Season, error)
}

type SeasonInput struct {
	Name string `json:"name"`
	Year int    `json:"year"`
}

type seasonService struct {
	tx          repositories.Transactor
	seasonRepo  repositories.SeasonRepository
	standings   StandingsService
	broadcaster StandingsBroadcaster
	logger      *slog.Logger
}

func NewSeasonService(
	tx repositories.Transactor,
	seasonRepo repositories.SeasonRepository,
	standingsService StandingsService,
	broadcaster StandingsBroadcaster,
	logger *slog.Logger,
) SeasonService {
	if logger == nil {
		logger = slog.Default()
	}
	return &seasonService{
		tx:          tx,
		seasonRepo:  seasonRepo,
		standings:   standingsService,
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("service", "seasons")),
	}
}

func (s *seasonService) ListSeasons(ctx context.Context) ([]*models.Season, error) {
	seasons, err := s.seasonRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasons: %w", err)
	}
	return seasons, nil
}

func (s *seasonService) GetSeason(ctx context.Context, id int) (*models.Season, error) {
	season, err := s.seasonRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSeasonNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, fmt.Errorf("failed to get season %d: %w", id, err)
	}
	return season, nil
}

func (s *seasonService) CreateSeason(ctx context.Context, input SeasonInput) (*models.Season, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, ErrSeasonNameRequired)
	}
	if input.Year < 2000 || input.Year > 2100 {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, ErrSeasonYearInvalid)
	}

	season := &models.Season{Name: name, Year: input.Year}
	if err := s.seasonRepo.Create(ctx, season); err != nil {
		if errors.Is(err, repositories.ErrSeasonNameConflict) {
			return nil, ErrSeasonNameConflict
		}
		return nil, fmt.Errorf("failed to create season: %w", err)
	}
	return season, nil
}

func (s *seasonService) ActivateSeason(ctx context.Context, id int) (*models.Season, error) {
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.seasonRepo.Activate(ctx, exec, id)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrSeasonNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, fmt.Errorf("failed to activate season %d: %w", id, err)
	}

	if err := s.standings.Reload(ctx); err != nil {
		return nil, fmt.Errorf("season %d activated but standings reload failed: %w", id, err)
	}

	season, err := s.GetSeason(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "season activated", slog.Int("season_id", id))
	if s.broadcaster != nil {
		s.broadcaster.PublishSeason(id, live.MessageSeasonActivated, season)
	}
	return season, nil
}
