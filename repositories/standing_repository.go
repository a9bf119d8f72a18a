package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dosada05/grid-league/models"
)

type StandingRepository interface {
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.ChampionshipStanding, error)
	// ReplaceForSeason перезаписывает снимок таблицы сезона целиком.
	ReplaceForSeason(ctx context.Context, exec SQLExecutor, seasonID int, standings []*models.ChampionshipStanding) error
}

type postgresStandingRepository struct {
	db *sql.DB // Main DB connection, used if exec is nil
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.ChampionshipStanding, error) {
	executor := getExecutor(r.db, exec)
	query := `
		SELECT id, season_id, driver_id, rank, total_points, wins, podiums, poles, fastest_laps,
		       dnfs, races_participated, average_position, updated_at
		FROM championship_standings
		WHERE season_id = $1
		ORDER BY rank ASC, driver_id ASC`

	rows, err := executor.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	standings := make([]*models.ChampionshipStanding, 0)
	for rows.Next() {
		var s models.ChampionshipStanding
		var avg sql.NullFloat64
		if err := rows.Scan(
			&s.ID, &s.SeasonID, &s.DriverID, &s.Rank, &s.TotalPoints, &s.Wins, &s.Podiums, &s.Poles,
			&s.FastestLaps, &s.DNFs, &s.RacesParticipated, &avg, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if avg.Valid {
			v := avg.Float64
			s.AveragePosition = &v
		}
		standings = append(standings, &s)
	}
	return standings, rows.Err()
}

func (r *postgresStandingRepository) ReplaceForSeason(ctx context.Context, exec SQLExecutor, seasonID int, standings []*models.ChampionshipStanding) error {
	executor := getExecutor(r.db, exec)

	if _, err := executor.ExecContext(ctx, `DELETE FROM championship_standings WHERE season_id = $1`, seasonID); err != nil {
		return fmt.Errorf("failed to clear standings of season %d: %w", seasonID, err)
	}

	query := `
		INSERT INTO championship_standings
		    (season_id, driver_id, rank, total_points, wins, podiums, poles, fastest_laps,
		     dnfs, races_participated, average_position, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	now := time.Now()
	for _, s := range standings {
		s.SeasonID = seasonID
		s.UpdatedAt = now
		err := executor.QueryRowContext(ctx, query,
			s.SeasonID, s.DriverID, s.Rank, s.TotalPoints, s.Wins, s.Podiums, s.Poles, s.FastestLaps,
			s.DNFs, s.RacesParticipated, s.AveragePosition, s.UpdatedAt,
		).Scan(&s.ID)
		if err != nil {
			return fmt.Errorf("failed to insert standing for driver %d: %w", s.DriverID, err)
		}
	}
	return nil
}
