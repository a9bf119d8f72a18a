package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/grid-league/models"
	"github.com/lib/pq"
)

var (
	ErrDriverNotFound       = errors.New("driver not found")
	ErrDriverNumberConflict = errors.New("driver number conflict")
	ErrDriverUsernameTaken  = errors.New("driver username conflict")
	ErrDriverTeamInvalid    = errors.New("driver team conflict or invalid")
)

type DriverRepository interface {
	Create(ctx context.Context, driver *models.Driver) error
	GetByID(ctx context.Context, id int) (*models.Driver, error)
	ListByIDs(ctx context.Context, ids []int) ([]*models.Driver, error)
	List(ctx context.Context, includeRetired bool) ([]*models.Driver, error)
	ListByTeam(ctx context.Context, teamID int) ([]*models.Driver, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Driver, error)
	Update(ctx context.Context, driver *models.Driver) error
	SetTeam(ctx context.Context, driverID int, teamID *int) error
	SetRetired(ctx context.Context, driverID int, retired bool) error
	UpdateLiveryKey(ctx context.Context, driverID int, key *string) error
}

type postgresDriverRepository struct {
	db *sql.DB
}

func NewPostgresDriverRepository(db *sql.DB) DriverRepository {
	return &postgresDriverRepository{db: db}
}

const driverColumns = `d.id, d.username, d.driver_number, d.team_id, d.platform, d.country, d.bio,
		d.retired, d.livery_key, d.created_at, t.name`

const driverFrom = `FROM drivers d LEFT JOIN teams t ON t.id = d.team_id`

func scanDriver(row rowScanner) (*models.Driver, error) {
	var d models.Driver
	var teamName sql.NullString
	err := row.Scan(
		&d.ID, &d.Username, &d.DriverNumber, &d.TeamID, &d.Platform, &d.Country, &d.Bio,
		&d.Retired, &d.LiveryKey, &d.CreatedAt, &teamName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	if teamName.Valid {
		d.TeamName = &teamName.String
	}
	return &d, nil
}

func (r *postgresDriverRepository) queryDrivers(ctx context.Context, query string, args ...interface{}) ([]*models.Driver, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drivers := make([]*models.Driver, 0)
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return drivers, nil
}

func mapDriverWriteError(err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			switch pqErr.Constraint {
			case "drivers_driver_number_key":
				return ErrDriverNumberConflict
			case "drivers_username_key":
				return ErrDriverUsernameTaken
			}
		case "23503": // foreign_key_violation
			if pqErr.Constraint == "drivers_team_id_fkey" {
				return ErrDriverTeamInvalid
			}
		}
	}
	return err
}

func (r *postgresDriverRepository) Create(ctx context.Context, driver *models.Driver) error {
	query := `
		INSERT INTO drivers (username, driver_number, team_id, platform, country, bio)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		driver.Username, driver.DriverNumber, driver.TeamID, driver.Platform, driver.Country, driver.Bio,
	).Scan(&driver.ID, &driver.CreatedAt)
	if err != nil {
		return mapDriverWriteError(err)
	}
	return nil
}

func (r *postgresDriverRepository) GetByID(ctx context.Context, id int) (*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` ` + driverFrom + ` WHERE d.id = $1`
	return scanDriver(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresDriverRepository) ListByIDs(ctx context.Context, ids []int) ([]*models.Driver, error) {
	if len(ids) == 0 {
		return []*models.Driver{}, nil
	}
	ids64 := make([]int64, len(ids))
	for i, id := range ids {
		ids64[i] = int64(id)
	}
	query := `SELECT ` + driverColumns + ` ` + driverFrom + ` WHERE d.id = ANY($1) ORDER BY d.id`
	return r.queryDrivers(ctx, query, pq.Array(ids64))
}

func (r *postgresDriverRepository) List(ctx context.Context, includeRetired bool) ([]*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` ` + driverFrom
	if !includeRetired {
		query += ` WHERE d.retired = FALSE`
	}
	query += ` ORDER BY d.username ASC`
	return r.queryDrivers(ctx, query)
}

func (r *postgresDriverRepository) ListByTeam(ctx context.Context, teamID int) ([]*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` ` + driverFrom + ` WHERE d.team_id = $1 ORDER BY d.driver_number ASC`
	return r.queryDrivers(ctx, query, teamID)
}

// Search ищет по части имени или по точному номеру пилота.
func (r *postgresDriverRepository) Search(ctx context.Context, q string, limit int) ([]*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` ` + driverFrom + `
		WHERE d.username ILIKE '%' || $1 || '%' OR d.driver_number::text = $1
		ORDER BY d.retired ASC, d.username ASC
		LIMIT $2`
	return r.queryDrivers(ctx, query, q, limit)
}

func (r *postgresDriverRepository) Update(ctx context.Context, driver *models.Driver) error {
	query := `
		UPDATE drivers SET username = $1, driver_number = $2, platform = $3, country = $4, bio = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query,
		driver.Username, driver.DriverNumber, driver.Platform, driver.Country, driver.Bio, driver.ID,
	)
	if err != nil {
		return mapDriverWriteError(err)
	}
	return checkAffectedRows(result, ErrDriverNotFound)
}

func (r *postgresDriverRepository) SetTeam(ctx context.Context, driverID int, teamID *int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE drivers SET team_id = $1 WHERE id = $2`, teamID, driverID)
	if err != nil {
		return mapDriverWriteError(err)
	}
	return checkAffectedRows(result, ErrDriverNotFound)
}

func (r *postgresDriverRepository) SetRetired(ctx context.Context, driverID int, retired bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE drivers SET retired = $1 WHERE id = $2`, retired, driverID)
	if err != nil {
		return fmt.Errorf("failed to update retired flag for driver %d: %w", driverID, err)
	}
	return checkAffectedRows(result, ErrDriverNotFound)
}

func (r *postgresDriverRepository) UpdateLiveryKey(ctx context.Context, driverID int, key *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE drivers SET livery_key = $1 WHERE id = $2`, key, driverID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrDriverNotFound)
}
