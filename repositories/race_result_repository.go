package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/grid-league/models"
	"github.com/lib/pq"
)

type RaceResultRepository interface {
	ListByRace(ctx context.Context, exec SQLExecutor, raceID int) ([]*models.RaceResult, error)
	// ListBySeason возвращает результаты всех гонок сезона, сгруппированные по race_id.
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (map[int][]*models.RaceResult, error)
	// ReplaceForRace удаляет прежний набор строк гонки и вставляет новый.
	// Вызывать внутри транзакции.
	ReplaceForRace(ctx context.Context, exec SQLExecutor, raceID int, results []*models.RaceResult) error
}

type postgresRaceResultRepository struct {
	db *sql.DB
}

func NewPostgresRaceResultRepository(db *sql.DB) RaceResultRepository {
	return &postgresRaceResultRepository{db: db}
}

const raceResultColumns = `rr.id, rr.race_id, rr.driver_id, rr.team_id, rr.position, rr.dnf, rr.dnf_reason,
		rr.pole_position, rr.fastest_lap, rr.points_penalty, rr.time_penalty, rr.points, rr.created_at`

func scanRaceResult(row rowScanner) (*models.RaceResult, error) {
	var rr models.RaceResult
	var position sql.NullInt64
	var teamID sql.NullInt64
	err := row.Scan(
		&rr.ID, &rr.RaceID, &rr.DriverID, &teamID, &position, &rr.DNF, &rr.DNFReason,
		&rr.PolePosition, &rr.FastestLap, &rr.PointsPenalty, &rr.TimePenalty, &rr.Points, &rr.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if position.Valid {
		p := int(position.Int64)
		rr.Position = &p
	}
	if teamID.Valid {
		t := int(teamID.Int64)
		rr.TeamID = &t
	}
	return &rr, nil
}

func (r *postgresRaceResultRepository) ListByRace(ctx context.Context, exec SQLExecutor, raceID int) ([]*models.RaceResult, error) {
	executor := getExecutor(r.db, exec)
	query := `SELECT ` + raceResultColumns + ` FROM race_results rr
		WHERE rr.race_id = $1
		ORDER BY rr.dnf ASC, rr.position ASC NULLS LAST, rr.id ASC`

	rows, err := executor.QueryContext(ctx, query, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*models.RaceResult, 0)
	for rows.Next() {
		rr, err := scanRaceResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rr)
	}
	return results, rows.Err()
}

func (r *postgresRaceResultRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (map[int][]*models.RaceResult, error) {
	executor := getExecutor(r.db, exec)
	query := `SELECT ` + raceResultColumns + ` FROM race_results rr
		JOIN races ra ON ra.id = rr.race_id
		WHERE ra.season_id = $1
		ORDER BY rr.race_id ASC, rr.id ASC`

	rows, err := executor.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byRace := make(map[int][]*models.RaceResult)
	for rows.Next() {
		rr, err := scanRaceResult(rows)
		if err != nil {
			return nil, err
		}
		byRace[rr.RaceID] = append(byRace[rr.RaceID], rr)
	}
	return byRace, rows.Err()
}

func (r *postgresRaceResultRepository) ReplaceForRace(ctx context.Context, exec SQLExecutor, raceID int, results []*models.RaceResult) error {
	executor := getExecutor(r.db, exec)

	if _, err := executor.ExecContext(ctx, `DELETE FROM race_results WHERE race_id = $1`, raceID); err != nil {
		return fmt.Errorf("failed to delete results of race %d: %w", raceID, err)
	}

	query := `
		INSERT INTO race_results
		    (race_id, driver_id, team_id, position, dnf, dnf_reason, pole_position, fastest_lap,
		     points_penalty, time_penalty, points)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	for _, rr := range results {
		rr.RaceID = raceID
		err := executor.QueryRowContext(ctx, query,
			rr.RaceID, rr.DriverID, rr.TeamID, rr.Position, rr.DNF, rr.DNFReason, rr.PolePosition,
			rr.FastestLap, rr.PointsPenalty, rr.TimePenalty, rr.Points,
		).Scan(&rr.ID, &rr.CreatedAt)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" && pqErr.Constraint == "race_results_driver_id_fkey" {
				return fmt.Errorf("result for driver %d: %w", rr.DriverID, ErrDriverNotFound)
			}
			return fmt.Errorf("failed to insert result for driver %d: %w", rr.DriverID, err)
		}
	}
	return nil
}
