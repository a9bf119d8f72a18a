package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/grid-league/models"
	"github.com/lib/pq"
)

var (
	ErrRaceNotFound      = errors.New("race not found")
	ErrRaceSeasonInvalid = errors.New("race season conflict or invalid")
)

type RaceRepository interface {
	Create(ctx context.Context, race *models.Race) error
	GetByID(ctx context.Context, id int) (*models.Race, error)
	// ListBySeason возвращает гонки в хронологическом порядке.
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.Race, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.RaceStatus) error
}

type postgresRaceRepository struct {
	db *sql.DB
}

func NewPostgresRaceRepository(db *sql.DB) RaceRepository {
	return &postgresRaceRepository{db: db}
}

const raceColumns = `id, season_id, name, track, format, laps, scheduled_at, status, created_at`

func scanRace(row rowScanner) (*models.Race, error) {
	var race models.Race
	err := row.Scan(
		&race.ID, &race.SeasonID, &race.Name, &race.Track, &race.Format, &race.Laps,
		&race.ScheduledAt, &race.Status, &race.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRaceNotFound
		}
		return nil, err
	}
	return &race, nil
}

func (r *postgresRaceRepository) Create(ctx context.Context, race *models.Race) error {
	if race.Status == "" {
		race.Status = models.RaceStatusScheduled
	}
	query := `
		INSERT INTO races (season_id, name, track, format, laps, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		race.SeasonID, race.Name, race.Track, race.Format, race.Laps, race.ScheduledAt, race.Status,
	).Scan(&race.ID, &race.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" && pqErr.Constraint == "races_season_id_fkey" {
			return ErrRaceSeasonInvalid
		}
		return err
	}
	return nil
}

func (r *postgresRaceRepository) GetByID(ctx context.Context, id int) (*models.Race, error) {
	query := `SELECT ` + raceColumns + ` FROM races WHERE id = $1`
	return scanRace(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresRaceRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.Race, error) {
	executor := getExecutor(r.db, exec)
	query := `SELECT ` + raceColumns + ` FROM races WHERE season_id = $1 ORDER BY scheduled_at ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	races := make([]*models.Race, 0)
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, err
		}
		races = append(races, race)
	}
	return races, rows.Err()
}

func (r *postgresRaceRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.RaceStatus) error {
	executor := getExecutor(r.db, exec)
	result, err := executor.ExecContext(ctx, `UPDATE races SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRaceNotFound)
}
