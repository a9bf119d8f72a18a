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
	ErrSeasonNotFound     = errors.New("season not found")
	ErrNoActiveSeason     = errors.New("no active season")
	ErrSeasonNameConflict = errors.New("season name conflict")
)

type SeasonRepository interface {
	Create(ctx context.Context, season *models.Season) error
	GetByID(ctx context.Context, id int) (*models.Season, error)
	GetActive(ctx context.Context) (*models.Season, error)
	List(ctx context.Context) ([]*models.Season, error)
	// Activate делает сезон активным и снимает флаг со всех остальных.
	Activate(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresSeasonRepository struct {
	db *sql.DB
}

func NewPostgresSeasonRepository(db *sql.DB) SeasonRepository {
	return &postgresSeasonRepository{db: db}
}

func scanSeason(row rowScanner, notFound error) (*models.Season, error) {
	var s models.Season
	if err := row.Scan(&s.ID, &s.Name, &s.Year, &s.IsActive, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *postgresSeasonRepository) Create(ctx context.Context, season *models.Season) error {
	query := `INSERT INTO seasons (name, year) VALUES ($1, $2) RETURNING id, is_active, created_at`
	err := r.db.QueryRowContext(ctx, query, season.Name, season.Year).
		Scan(&season.ID, &season.IsActive, &season.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" && pqErr.Constraint == "seasons_name_key" {
			return ErrSeasonNameConflict
		}
		return err
	}
	return nil
}

func (r *postgresSeasonRepository) GetByID(ctx context.Context, id int) (*models.Season, error) {
	query := `SELECT id, name, year, is_active, created_at FROM seasons WHERE id = $1`
	return scanSeason(r.db.QueryRowContext(ctx, query, id), ErrSeasonNotFound)
}

func (r *postgresSeasonRepository) GetActive(ctx context.Context) (*models.Season, error) {
	query := `SELECT id, name, year, is_active, created_at FROM seasons WHERE is_active = TRUE LIMIT 1`
	return scanSeason(r.db.QueryRowContext(ctx, query), ErrNoActiveSeason)
}

func (r *postgresSeasonRepository) List(ctx context.Context) ([]*models.Season, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, year, is_active, created_at FROM seasons ORDER BY year DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seasons := make([]*models.Season, 0)
	for rows.Next() {
		s, err := scanSeason(rows, ErrSeasonNotFound)
		if err != nil {
			return nil, err
		}
		seasons = append(seasons, s)
	}
	return seasons, rows.Err()
}

func (r *postgresSeasonRepository) Activate(ctx context.Context, exec SQLExecutor, id int) error {
	executor := getExecutor(r.db, exec)

	if _, err := executor.ExecContext(ctx, `UPDATE seasons SET is_active = FALSE WHERE is_active = TRUE AND id <> $1`, id); err != nil {
		return fmt.Errorf("failed to deactivate seasons: %w", err)
	}
	result, err := executor.ExecContext(ctx, `UPDATE seasons SET is_active = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to activate season %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrSeasonNotFound)
}
