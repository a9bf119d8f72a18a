package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/grid-league/models"
	"github.com/lib/pq"
)

var (
	ErrPenaltyNotFound      = errors.New("penalty not found")
	ErrPenaltyTargetInvalid = errors.New("penalty driver or race does not exist")
)

// PenaltyFilter: нулевые поля не фильтруют.
type PenaltyFilter struct {
	DriverID int
	RaceID   int
}

type PenaltyRepository interface {
	Create(ctx context.Context, exec SQLExecutor, penalty *models.Penalty) error
	GetByID(ctx context.Context, id int) (*models.Penalty, error)
	// List возвращает штрафы, новые первыми.
	List(ctx context.Context, filter PenaltyFilter) ([]*models.Penalty, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresPenaltyRepository struct {
	db *sql.DB
}

func NewPostgresPenaltyRepository(db *sql.DB) PenaltyRepository {
	return &postgresPenaltyRepository{db: db}
}

const penaltyColumns = `id, driver_id, race_id, type, value, reason, applied_by, created_at`

func scanPenalty(row rowScanner) (*models.Penalty, error) {
	var (
		p         models.Penalty
		raceID    sql.NullInt64
		value     sql.NullInt64
		appliedBy sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.DriverID, &raceID, &p.Type, &value, &p.Reason, &appliedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPenaltyNotFound
		}
		return nil, err
	}
	p.RaceID = nullIntPtr(raceID)
	p.Value = nullIntPtr(value)
	p.AppliedBy = nullIntPtr(appliedBy)
	return &p, nil
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func (r *postgresPenaltyRepository) Create(ctx context.Context, exec SQLExecutor, penalty *models.Penalty) error {
	executor := getExecutor(r.db, exec)
	query := `
		INSERT INTO penalties (driver_id, race_id, type, value, reason, applied_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		penalty.DriverID, penalty.RaceID, penalty.Type, penalty.Value, penalty.Reason, penalty.AppliedBy,
	).Scan(&penalty.ID, &penalty.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrPenaltyTargetInvalid
		}
		return err
	}
	return nil
}

func (r *postgresPenaltyRepository) GetByID(ctx context.Context, id int) (*models.Penalty, error) {
	query := `SELECT ` + penaltyColumns + ` FROM penalties WHERE id = $1`
	return scanPenalty(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresPenaltyRepository) List(ctx context.Context, filter PenaltyFilter) ([]*models.Penalty, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.DriverID > 0 {
		args = append(args, filter.DriverID)
		where = append(where, fmt.Sprintf("driver_id = $%d", len(args)))
	}
	if filter.RaceID > 0 {
		args = append(args, filter.RaceID)
		where = append(where, fmt.Sprintf("race_id = $%d", len(args)))
	}

	query := `SELECT ` + penaltyColumns + ` FROM penalties`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	penalties := make([]*models.Penalty, 0)
	for rows.Next() {
		p, err := scanPenalty(rows)
		if err != nil {
			return nil, err
		}
		penalties = append(penalties, p)
	}
	return penalties, rows.Err()
}

func (r *postgresPenaltyRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := getExecutor(r.db, exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM penalties WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPenaltyNotFound)
}
