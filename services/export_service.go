package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/Dosada05/grid-league/storage"
)

type ExportResult struct {
	SeasonID int       `json:"season_id"`
	Key      string    `json:"key"`
	URL      string    `json:"url"`
	Rows     int       `json:"rows"`
	Created  time.Time `json:"created_at"`
}

type ExportService interface {
	// ExportStandings выгружает таблицу сезона в CSV и загружает её в хранилище.
	ExportStandings(ctx context.Context, seasonID int) (*ExportResult, error)
}

type exportService struct {
	standings StandingsService
	uploader  storage.FileUploader
	logger    *slog.Logger
}

func NewExportService(standingsService StandingsService, uploader storage.FileUploader, logger *slog.Logger) ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &exportService{
		standings: standingsService,
		uploader:  uploader,
		logger:    logger.With(slog.String("service", "exports")),
	}
}

var standingsCSVHeader = []string{
	"rank", "driver_id", "username", "driver_number", "team",
	"total_points", "wins", "podiums", "poles", "fastest_laps", "dnfs",
	"races_participated", "average_position",
}

// WriteStandingsCSV пишет таблицу в формате CSV с заголовком.
func WriteStandingsCSV(w io.Writer, view *StandingsView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(standingsCSVHeader); err != nil {
		return err
	}
	for _, row := range view.Standings {
		username, number, team := "", "", ""
		if row.Driver != nil {
			username = row.Driver.Username
			number = strconv.Itoa(row.Driver.DriverNumber)
			team = derefString(row.Driver.TeamName)
		}
		avg := ""
		if row.AveragePosition != nil {
			avg = strconv.FormatFloat(*row.AveragePosition, 'f', 2, 64)
		}
		record := []string{
			strconv.Itoa(row.Rank), strconv.Itoa(row.DriverID), username, number, team,
			strconv.Itoa(row.TotalPoints), strconv.Itoa(row.Wins), strconv.Itoa(row.Podiums),
			strconv.Itoa(row.Poles), strconv.Itoa(row.FastestLaps), strconv.Itoa(row.DNFs),
			strconv.Itoa(row.RacesParticipated), avg,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *exportService) ExportStandings(ctx context.Context, seasonID int) (*ExportResult, error) {
	if s.uploader == nil {
		return nil, ErrStorageUnavailable
	}

	view, err := s.standings.GetStandings(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteStandingsCSV(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render standings csv: %w", err)
	}

	key := storage.StandingsExportKey(view.Season.ID)
	uploaded, err := s.uploader.Upload(ctx, key, "text/csv", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to upload standings export: %w", err)
	}

	s.logger.InfoContext(ctx, "standings exported", slog.Int("season_id", view.Season.ID), slog.String("key", key))
	return &ExportResult{
		SeasonID: view.Season.ID,
		Key:      uploaded.Key,
		URL:      uploaded.Location,
		Rows:     len(view.Standings),
		Created:  time.Now().UTC(),
	}, nil
}
