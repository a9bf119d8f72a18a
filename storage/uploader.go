package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader хранит ливреи, логотипы и выгрузки таблиц.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// Ключи объектов. Суффикс uuid не даёт CDN отдать старую картинку после замены.

func LiveryKey(driverID int, ext string) string {
	return fmt.Sprintf("drivers/%d/livery-%s%s", driverID, uuid.NewString(), ext)
}

func LogoKey(teamID int, ext string) string {
	return fmt.Sprintf("teams/%d/logo-%s%s", teamID, uuid.NewString(), ext)
}

func StandingsExportKey(seasonID int) string {
	return fmt.Sprintf("exports/season-%d/standings-%s.csv", seasonID, uuid.NewString())
}
