package services

import (
	"fmt"
	"strings"

	"github.com/Dosada05/grid-league/models"
	"github.com/Dosada05/grid-league/standings"
	"github.com/Dosada05/grid-league/storage"
)

// --- Общие хелперы ---

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// --- Заполнение URL ливрей и логотипов ---

func populateDriverLiveryURL(driver *models.Driver, uploader storage.FileUploader) {
	if driver != nil && driver.LiveryKey != nil && *driver.LiveryKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*driver.LiveryKey)
		if url != "" {
			driver.LiveryURL = &url
		}
	}
}

func populateTeamLogoURL(team *models.Team, uploader storage.FileUploader) {
	if team != nil && team.LogoKey != nil && *team.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*team.LogoKey)
		if url != "" {
			team.LogoURL = &url
		}
	}
}

// --- Преобразование строк результатов ---

// resultToEntry восстанавливает строку движка из сохранённого результата.
func resultToEntry(rr *models.RaceResult) standings.Entry {
	finish := standings.DNF()
	if !rr.DNF && rr.Position != nil {
		finish = standings.Finished(*rr.Position)
	}
	return standings.Entry{
		DriverID:      rr.DriverID,
		TeamID:        rr.TeamID,
		Finish:        finish,
		Pole:          rr.PolePosition,
		FastestLap:    rr.FastestLap,
		PointsPenalty: rr.PointsPenalty,
		TimePenalty:   rr.TimePenalty,
		DNFReason:     rr.DNFReason,
	}
}

func scoredToResult(se standings.ScoredEntry) *models.RaceResult {
	rr := &models.RaceResult{
		RaceID:        se.RaceID,
		DriverID:      se.DriverID,
		TeamID:        se.TeamID,
		DNF:           se.Finish.IsDNF(),
		DNFReason:     se.DNFReason,
		PolePosition:  se.Pole,
		FastestLap:    se.FastestLap,
		PointsPenalty: se.PointsPenalty,
		TimePenalty:   se.TimePenalty,
		Points:        se.Points,
	}
	if p, ok := se.Finish.Position(); ok {
		rr.Position = &p
	}
	return rr
}

func standingToRow(seasonID int, s standings.Standing) *models.ChampionshipStanding {
	return &models.ChampionshipStanding{
		SeasonID:          seasonID,
		DriverID:          s.DriverID,
		Rank:              s.Rank,
		TotalPoints:       s.TotalPoints,
		Wins:              s.Wins,
		Podiums:           s.Podiums,
		Poles:             s.Poles,
		FastestLaps:       s.FastestLaps,
		DNFs:              s.DNFs,
		RacesParticipated: s.RacesParticipated,
		AveragePosition:   s.AveragePosition,
	}
}

func rowToStanding(row *models.ChampionshipStanding) standings.Standing {
	return standings.Standing{
		DriverID: row.DriverID,
		Rank:     row.Rank,
		Statistics: standings.Statistics{
			TotalPoints:       row.TotalPoints,
			Wins:              row.Wins,
			Podiums:           row.Podiums,
			Poles:             row.Poles,
			FastestLaps:       row.FastestLaps,
			DNFs:              row.DNFs,
			RacesParticipated: row.RacesParticipated,
			AveragePosition:   row.AveragePosition,
		},
	}
}

// GetExtensionFromContentType возвращает расширение файла для поддерживаемых изображений.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", fmt.Errorf("%w: unsupported content type '%s'", ErrInvalidUpload, contentType)
	}
}
