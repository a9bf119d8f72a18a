package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/grid-league/models"
	"github.com/Dosada05/grid-league/repositories"
)

var (
	ErrRaceNameRequired = errors.New("race name is required")
	ErrRaceLapsInvalid  = errors.New("race laps must be positive")
	ErrRaceDateRequired = errors.New("race scheduled date is required")
)

type RaceService interface {
	// ListRaces возвращает гонки сезона; seasonID = 0 означает активный сезон.
	ListRaces(ctx context.Context, seasonID int) ([]*models.Race, error)
	GetRace(ctx context.Context, id int) (*models.Race, error)
	CreateRace(ctx context.Context, input CreateRaceInput) (*models.Race, error)
}

type CreateRaceInput struct {
	SeasonID    int       `json:"season_id"`
	Name        string    `json:"name"`
	Track       string    `json:"track"`
	Format      string    `json:"format"`
	Laps        int       `json:"laps"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type raceService struct {
	raceRepo   repositories.RaceRepository
	seasonRepo repositories.SeasonRepository
	resultRepo repositories.RaceResultRepository
	driverRepo repositories.DriverRepository
}

func NewRaceService(
	raceRepo repositories.RaceRepository,
	seasonRepo repositories.SeasonRepository,
	resultRepo repositories.RaceResultRepository,
	driverRepo repositories.DriverRepository,
) RaceService {
	return &raceService{
		raceRepo:   raceRepo,
		seasonRepo: seasonRepo,
		resultRepo: resultRepo,
		driverRepo: driverRepo,
	}
}

func (s *raceService) ListRaces(ctx context.Context, seasonID int) ([]*models.Race, error) {
	if seasonID == 0 {
		active, err := s.seasonRepo.GetActive(ctx)
		if err != nil {
			if errors.Is(err, repositories.ErrNoActiveSeason) {
				return nil, ErrNoActiveSeason
			}
			return nil, fmt.Errorf("failed to get active season: %w", err)
		}
		seasonID = active.ID
	} else if _, err := s.seasonRepo.GetByID(ctx, seasonID); err != nil {
		if errors.Is(err, repositories.ErrSeasonNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, fmt.Errorf("failed to get season %d: %w", seasonID, err)
	}

	races, err := s.raceRepo.ListBySeason(ctx, nil, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list races of season %d: %w", seasonID, err)
	}
	return races, nil
}

// GetRace возвращает гонку вместе с сохранёнными результатами и пилотами.
func (s *raceService) GetRace(ctx context.Context, id int) (*models.Race, error) {
	race, err := s.raceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRaceNotFound) {
			return nil, ErrRaceNotFound
		}
		return nil, fmt.Errorf("failed to get race %d: %w", id, err)
	}

	results, err := s.resultRepo.ListByRace(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list results of race %d: %w", id, err)
	}
	if len(results) == 0 {
		race.Results = []models.RaceResult{}
		return race, nil
	}

	ids := make([]int, len(results))
	for i, rr := range results {
		ids[i] = rr.DriverID
	}
	drivers, err := s.driverRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load drivers of race %d: %w", id, err)
	}
	byID := make(map[int]*models.Driver, len(drivers))
	for _, d := range drivers {
		byID[d.ID] = d
	}

	race.Results = make([]models.RaceResult, len(results))
	for i, rr := range results {
		rr.Driver = byID[rr.DriverID]
		race.Results[i] = *rr
	}
	return race, nil
}

func (s *raceService) CreateRace(ctx context.Context, input CreateRaceInput) (*models.Race, error) {
	race := &models.Race{
		SeasonID:    input.SeasonID,
		Name:        strings.TrimSpace(input.Name),
		Track:       strings.TrimSpace(input.Track),
		Format:      strings.TrimSpace(input.Format),
		Laps:        input.Laps,
		ScheduledAt: input.ScheduledAt,
		Status:      models.RaceStatusScheduled,
	}
	if race.Name == "" {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, ErrRaceNameRequired)
	}
	if race.Laps <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, ErrRaceLapsInvalid)
	}
	if race.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, ErrRaceDateRequired)
	}

	if _, err := s.seasonRepo.GetByID(ctx, race.SeasonID); err != nil {
		if errors.Is(err, repositories.ErrSeasonNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, fmt.Errorf("failed to get season %d: %w", race.SeasonID, err)
	}

	if err := s.raceRepo.Create(ctx, race); err != nil {
		if errors.Is(err, repositories.ErrRaceSeasonInvalid) {
			return nil, ErrSeasonNotFound
		}
		return nil, fmt.Errorf("failed to create race: %w", err)
	}
	return race, nil
}
