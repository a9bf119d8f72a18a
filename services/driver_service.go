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

const (
	maxDriverNumber   = 999
	defaultSearchSize = 10
	maxSearchSize     = 50
)

var (
	ErrDriverUsernameRequired = errors.New("driver username is required")
	ErrDriverNumberInvalid    = errors.New("driver number must be between 1 and 999")
	ErrSearchQueryRequired    = errors.New("search query is required")
)

type DriverService interface {
	ListDrivers(ctx context.Context, includeRetired bool) ([]*models.Driver, error)
	GetDriver(ctx context.Context, id int) (*models.Driver, error)
	SearchDrivers(ctx context.Context, query string, limit int) ([]*models.Driver, error)
	CreateDriver(ctx context.Context, input CreateDriverInput) (*models.Driver, error)
	UpdateDriver(ctx context.Context, id int, input UpdateDriverInput) (*models.Driver, error)
	RetireDriver(ctx context.Context, id int) error
	UploadLivery(ctx context.Context, driverID int, file io.Reader, contentType string) (*models.Driver, error)
}

type CreateDriverInput struct {
	Username     string  `json:"username"`
	DriverNumber int     `json:"driver_number"`
	TeamID       *int    `json:"team_id"`
	Platform     string  `json:"platform"`
	Country      string  `json:"country"`
	Bio          *string `json:"bio"`
}

// UpdateDriverInput: частичное обновление профиля, nil поля не меняются.
type UpdateDriverInput struct {
	Username     *string `json:"username"`
	DriverNumber *int    `json:"driver_number"`
	Platform     *string `json:"platform"`
	Country      *string `json:"country"`
	Bio          *string `json:"bio"`
}

type driverService struct {
	driverRepo repositories.DriverRepository
	uploader   storage.FileUploader
	logger     *slog.Logger
}

func NewDriverService(driverRepo repositories.DriverRepository, uploader storage.FileUploader, logger *slog.Logger) DriverService {
	if logger == nil {
		logger = slog.Default()
	}
	return &driverService{
		driverRepo: driverRepo,
		uploader:   uploader,
		logger:     logger.With(slog.String("service", "drivers")),
	}
}

func validateDriver(username string, number int) error {
	if username == "" {
		return fmt.Errorf("%w: %w", ErrValidationFailed, ErrDriverUsernameRequired)
	}
	if number < 1 || number > maxDriverNumber {
		return fmt.Errorf("%w: %w", ErrValidationFailed, ErrDriverNumberInvalid)
	}
	return nil
}

func mapDriverRepoError(err error, id int) error {
	switch {
	case errors.Is(err, repositories.ErrDriverNotFound):
		return ErrDriverNotFound
	case errors.Is(err, repositories.ErrDriverNumberConflict):
		return ErrDriverNumberConflict
	case errors.Is(err, repositories.ErrDriverUsernameTaken):
		return ErrDriverUsernameConflict
	case errors.Is(err, repositories.ErrDriverTeamInvalid):
		return ErrTeamNotFound
	default:
		return fmt.Errorf("driver repository failure (id: %d): %w", id, err)
	}
}

func (s *driverService) ListDrivers(ctx context.Context, includeRetired bool) ([]*models.Driver, error) {
	drivers, err := s.driverRepo.List(ctx, includeRetired)
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	for _, d := range drivers {
		populateDriverLiveryURL(d, s.uploader)
	}
	return drivers, nil
}

func (s *driverService) GetDriver(ctx context.Context, id int) (*models.Driver, error) {
	driver, err := s.driverRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapDriverRepoError(err, id)
	}
	populateDriverLiveryURL(driver, s.uploader)
	return driver, nil
}

func (s *driverService) SearchDrivers(ctx context.Context, query string, limit int) ([]*models.Driver, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, ErrSearchQueryRequired)
	}
	query = strings.TrimPrefix(query, "#")
	if limit <= 0 {
		limit = defaultSearchSize
	}
	if limit > maxSearchSize {
		limit = maxSearchSize
	}
	drivers, err := s.driverRepo.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search drivers: %w", err)
	}
	for _, d := range drivers {
		populateDriverLiveryURL(d, s.uploader)
	}
	return drivers, nil
}

func (s *driverService) CreateDriver(ctx context.Context, input CreateDriverInput) (*models.Driver, error) {
	driver := &models.Driver{
		Username:     strings.TrimSpace(input.Username),
		DriverNumber: input.DriverNumber,
		TeamID:       input.TeamID,
		Platform:     strings.TrimSpace(input.Platform),
		Country:      strings.TrimSpace(input.Country),
		Bio:          trimmedPtr(input.Bio),
	}
	if err := validateDriver(driver.Username, driver.DriverNumber); err != nil {
		return nil, err
	}

	if err := s.driverRepo.Create(ctx, driver); err != nil {
		return nil, mapDriverRepoError(err, 0)
	}
	s.logger.InfoContext(ctx, "driver created", slog.Int("driver_id", driver.ID), slog.Int("driver_number", driver.DriverNumber))
	return driver, nil
}

func (s *driverService) UpdateDriver(ctx context.Context, id int, input UpdateDriverInput) (*models.Driver, error) {
	driver, err := s.driverRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapDriverRepoError(err, id)
	}

	if input.Username != nil {
		driver.Username = strings.TrimSpace(*input.Username)
	}
	if input.DriverNumber != nil {
		driver.DriverNumber = *input.DriverNumber
	}
	if input.Platform != nil {
		driver.Platform = strings.TrimSpace(*input.Platform)
	}
	if input.Country != nil {
		driver.Country = strings.TrimSpace(*input.Country)
	}
	if input.Bio != nil {
		driver.Bio = trimmedPtr(input.Bio)
	}
	if err := validateDriver(driver.Username, driver.DriverNumber); err != nil {
		return nil, err
	}

	if err := s.driverRepo.Update(ctx, driver); err != nil {
		return nil, mapDriverRepoError(err, id)
	}
	populateDriverLiveryURL(driver, s.uploader)
	return driver, nil
}

// RetireDriver скрывает пилота из списков; его результаты остаются в статистике.
func (s *driverService) RetireDriver(ctx context.Context, id int) error {
	if err := s.driverRepo.SetRetired(ctx, id, true); err != nil {
		return mapDriverRepoError(err, id)
	}
	s.logger.InfoContext(ctx, "driver retired", slog.Int("driver_id", id))
	return nil
}

func (s *driverService) UploadLivery(ctx context.Context, driverID int, file io.Reader, contentType string) (*models.Driver, error) {
	if s.uploader == nil {
		return nil, ErrStorageUnavailable
	}
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, mapDriverRepoError(err, driverID)
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, err
	}
	key := storage.LiveryKey(driverID, ext)

	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload livery for driver %d: %w", driverID, err)
	}

	oldKey := driver.LiveryKey
	if err := s.driverRepo.UpdateLiveryKey(ctx, driverID, &key); err != nil {
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned livery", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, mapDriverRepoError(err, driverID)
	}
	if oldKey != nil && *oldKey != "" && *oldKey != key {
		if err := s.uploader.Delete(ctx, *oldKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete previous livery", slog.String("key", *oldKey), slog.Any("error", err))
		}
	}

	driver.LiveryKey = &key
	populateDriverLiveryURL(driver, s.uploader)
	return driver, nil
}
