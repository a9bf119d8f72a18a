package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed   = errors.New("validation failed") // Общая ошибка валидации
	ErrNoActiveSeason     = errors.New("no active season")
	ErrSeasonNotActive    = errors.New("race does not belong to the active season")
	ErrInvalidUpload      = errors.New("invalid upload")
	ErrStorageUnavailable = errors.New("object storage is not configured")

	// Ошибки конфликтов
	ErrDriverNumberConflict   = errors.New("driver number is already in use")
	ErrDriverUsernameConflict = errors.New("driver username is already in use")
	ErrTeamNameConflict       = errors.New("team name is already in use")
	ErrSeasonNameConflict     = errors.New("season name already exists")

	// Ошибки, специфичные для сущностей (могут дублировать ErrNotFound, но дают больше контекста)
	ErrDriverNotFound  = errors.New("driver not found")
	ErrTeamNotFound    = errors.New("team not found")
	ErrRaceNotFound    = errors.New("race not found")
	ErrSeasonNotFound  = errors.New("season not found")
	ErrPenaltyNotFound = errors.New("penalty not found")
	ErrResultNotFound  = errors.New("driver has no result in this race")
)
