package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/grid-league/models"
	"github.com/Dosada05/grid-league/repositories"
)

var (
	ErrPenaltyReasonRequired = errors.New("penalty reason is required")
	ErrPenaltyTypeInvalid    = errors.New("unknown penalty type")
	ErrPenaltyValueInvalid   = errors.New("penalty value is invalid for its type")
)

type PenaltyService interface {
	ListPenalties(ctx context.Context, filter repositories.PenaltyFilter) ([]*models.Penalty, error)
	// ApplyPenalty записывает решение стюардов. Штраф очками за гонку сразу
	// пересчитывает таблицу, в той же транзакции.
	ApplyPenalty(ctx context.Context, input PenaltyInput, appliedBy int) (*PenaltyResult, error)
	// RevokePenalty удаляет штраф и возвращает снятые им очки.
	RevokePenalty(ctx context.Context, id int) (*PenaltyResult, error)
}

type PenaltyInput struct {
	DriverID int                `json:"driver_id"`
	RaceID   *int               `json:"race_id"`
	Type     models.PenaltyType `json:"type"`
	Value    *int               `json:"value"`
	Reason   string             `json:"reason"`
}

type PenaltyResult struct {
	Penalty *models.Penalty `json:"penalty"`
	// Submission заполнен, если штраф изменил очки.
	Submission *SubmitResult `json:"submission,omitempty"`
}

type penaltyService struct {
	penaltyRepo      repositories.PenaltyRepository
	driverRepo       repositories.DriverRepository
	raceRepo         repositories.RaceRepository
	standingsService StandingsService
	logger           *slog.Logger
}

func NewPenaltyService(
	penaltyRepo repositories.PenaltyRepository,
	driverRepo repositories.DriverRepository,
	raceRepo repositories.RaceRepository,
	standingsService StandingsService,
	logger *slog.Logger,
) PenaltyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &penaltyService{
		penaltyRepo:      penaltyRepo,
		driverRepo:       driverRepo,
		raceRepo:         raceRepo,
		standingsService: standingsService,
		logger:           logger.With(slog.String("service", "penalties")),
	}
}

func validatePenalty(input PenaltyInput) error {
	if input.DriverID <= 0 {
		return fmt.Errorf("%w: driver_id must be positive", ErrValidationFailed)
	}
	if !input.Type.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrValidationFailed, ErrPenaltyTypeInvalid, input.Type)
	}
	if strings.TrimSpace(input.Reason) == "" {
		return fmt.Errorf("%w: %w", ErrValidationFailed, ErrPenaltyReasonRequired)
	}
	if input.Value != nil && *input.Value < 0 {
		return fmt.Errorf("%w: %w: value must not be negative", ErrValidationFailed, ErrPenaltyValueInvalid)
	}

	switch input.Type {
	case models.PenaltyPointsDeduction:
		if input.RaceID == nil || input.Value == nil || *input.Value == 0 {
			return fmt.Errorf("%w: %w: points deduction needs race_id and a positive value", ErrValidationFailed, ErrPenaltyValueInvalid)
		}
	case models.PenaltyTime, models.PenaltyGridDrop:
		if input.Value == nil || *input.Value == 0 {
			return fmt.Errorf("%w: %w: %s needs a positive value", ErrValidationFailed, ErrPenaltyValueInvalid, input.Type)
		}
	}
	return nil
}

func (s *penaltyService) ListPenalties(ctx context.Context, filter repositories.PenaltyFilter) ([]*models.Penalty, error) {
	penalties, err := s.penaltyRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list penalties: %w", err)
	}
	return penalties, nil
}

func (s *penaltyService) ApplyPenalty(ctx context.Context, input PenaltyInput, appliedBy int) (*PenaltyResult, error) {
	if err := validatePenalty(input); err != nil {
		return nil, err
	}

	if _, err := s.driverRepo.GetByID(ctx, input.DriverID); err != nil {
		if errors.Is(err, repositories.ErrDriverNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("failed to load driver %d: %w", input.DriverID, err)
	}
	if input.RaceID != nil {
		if _, err := s.raceRepo.GetByID(ctx, *input.RaceID); err != nil {
			if errors.Is(err, repositories.ErrRaceNotFound) {
				return nil, ErrRaceNotFound
			}
			return nil, fmt.Errorf("failed to load race %d: %w", *input.RaceID, err)
		}
	}

	penalty := &models.Penalty{
		DriverID: input.DriverID,
		RaceID:   input.RaceID,
		Type:     input.Type,
		Value:    input.Value,
		Reason:   strings.TrimSpace(input.Reason),
	}
	if appliedBy > 0 {
		penalty.AppliedBy = &appliedBy
	}

	result := &PenaltyResult{Penalty: penalty}
	create := func(exec repositories.SQLExecutor) error {
		return s.penaltyRepo.Create(ctx, exec, penalty)
	}

	var err error
	if penalty.AffectsPoints() {
		result.Submission, err = s.standingsService.AdjustPointsPenalty(ctx, *penalty.RaceID, penalty.DriverID, *penalty.Value, create)
	} else {
		err = create(nil)
	}
	if err != nil {
		return nil, mapPenaltyError(err)
	}

	s.logger.InfoContext(ctx, "penalty applied",
		slog.Int("penalty_id", penalty.ID), slog.Int("driver_id", penalty.DriverID),
		slog.String("type", string(penalty.Type)), slog.Bool("points_changed", result.Submission != nil))
	return result, nil
}

func (s *penaltyService) RevokePenalty(ctx context.Context, id int) (*PenaltyResult, error) {
	penalty, err := s.penaltyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapPenaltyError(err)
	}

	result := &PenaltyResult{Penalty: penalty}
	remove := func(exec repositories.SQLExecutor) error {
		return s.penaltyRepo.Delete(ctx, exec, id)
	}

	if penalty.AffectsPoints() {
		result.Submission, err = s.standingsService.AdjustPointsPenalty(ctx, *penalty.RaceID, penalty.DriverID, -*penalty.Value, remove)
	} else {
		err = remove(nil)
	}
	if err != nil {
		return nil, mapPenaltyError(err)
	}

	s.logger.InfoContext(ctx, "penalty revoked",
		slog.Int("penalty_id", id), slog.Int("driver_id", penalty.DriverID),
		slog.Bool("points_changed", result.Submission != nil))
	return result, nil
}

func mapPenaltyError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrPenaltyNotFound):
		return fmt.Errorf("%w: %w", ErrPenaltyNotFound, err)
	case errors.Is(err, repositories.ErrPenaltyTargetInvalid):
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	default:
		return err
	}
}
