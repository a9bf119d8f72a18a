package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/grid-league/standings"
	"github.com/Dosada05/grid-league/utils"
	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	LogLevel  slog.Level
	LogFormat string // json | pretty

	Rules              standings.Rules
	TiePolicy          standings.TiePolicy
	RecentResultsLimit int
	ReloadInterval     time.Duration

	APIKeyHashes       []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	CORSAllowedOrigins []string

	R2 R2Config
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

// Enabled: без настроек R2 загрузки и экспорт отключены.
func (c R2Config) Enabled() bool {
	return c.AccountID != ""
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Отсутствие .env не ошибка
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		JWTSecretKey: os.Getenv("JWT_SECRET_KEY"),
		LogFormat:    getEnvOrDefault("LOG_FORMAT", "json"),
		APIKeyHashes: utils.SplitList(os.Getenv("API_KEY_HASHES")),
		R2: R2Config{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, errors.New("JWT_SECRET_KEY environment variable is not set")
	}

	var err error
	if cfg.ServerPort, err = intEnv("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnvOrDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "pretty" {
		return nil, fmt.Errorf("LOG_FORMAT must be json or pretty, got %q", cfg.LogFormat)
	}

	if cfg.Rules, err = loadRules(); err != nil {
		return nil, err
	}
	if cfg.TiePolicy, err = standings.ParseTiePolicy(getEnvOrDefault("STANDINGS_TIE_POLICY", string(standings.TieSplit))); err != nil {
		return nil, fmt.Errorf("invalid STANDINGS_TIE_POLICY: %w", err)
	}
	if cfg.RecentResultsLimit, err = intEnv("RECENT_RESULTS_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.RecentResultsLimit <= 0 {
		return nil, fmt.Errorf("RECENT_RESULTS_LIMIT must be positive, got %d", cfg.RecentResultsLimit)
	}
	if cfg.ReloadInterval, err = durationEnv("STANDINGS_RELOAD_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	if cfg.RateLimitRequests, err = intEnv("RATE_LIMIT_REQUESTS", 60); err != nil {
		return nil, err
	}
	if cfg.RateLimitRequests < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative, got %d", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow, err = durationEnv("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, errors.New("RATE_LIMIT_WINDOW must be positive")
	}
	cfg.CORSAllowedOrigins = utils.SplitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	if err := cfg.R2.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadRules собирает правила начисления. DNF_AVERAGE_POLICY обязателен:
// у политики средней позиции нет значения по умолчанию.
func loadRules() (standings.Rules, error) {
	table := standings.DefaultPointsTable()
	if raw := strings.TrimSpace(os.Getenv("POINTS_TABLE")); raw != "" {
		parsed, err := ParsePointsTable(raw)
		if err != nil {
			return standings.Rules{}, fmt.Errorf("invalid POINTS_TABLE: %w", err)
		}
		table = parsed
	}

	pole, err := intEnv("POLE_BONUS_POINTS", 1)
	if err != nil {
		return standings.Rules{}, err
	}
	fastestLap, err := intEnv("FASTEST_LAP_BONUS_POINTS", 1)
	if err != nil {
		return standings.Rules{}, err
	}

	policy, err := standings.ParseAveragePolicy(strings.TrimSpace(os.Getenv("DNF_AVERAGE_POLICY")))
	if err != nil {
		return standings.Rules{}, fmt.Errorf("invalid DNF_AVERAGE_POLICY: %w", err)
	}

	rules := standings.Rules{
		Scheme: standings.PointsScheme{
			Table:           table,
			PoleBonus:       pole,
			FastestLapBonus: fastestLap,
		},
		Average: policy,
	}
	if err := rules.Validate(); err != nil {
		return standings.Rules{}, err
	}
	return rules, nil
}

// ParsePointsTable разбирает "25,18,15": очки для P1, P2, P3 и т.д.
func ParsePointsTable(raw string) (map[int]int, error) {
	parts := strings.Split(raw, ",")
	table := make(map[int]int, len(parts))
	for i, part := range parts {
		points, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("P%d: %q is not an integer", i+1, part)
		}
		if points < 0 {
			return nil, fmt.Errorf("P%d: points must not be negative, got %d", i+1, points)
		}
		table[i+1] = points
	}
	return table, nil
}

func (c R2Config) validate() error {
	set := 0
	for _, v := range []string{c.AccountID, c.AccessKeyID, c.SecretAccessKey, c.BucketName, c.PublicBaseURL} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 5 {
		return errors.New("R2 storage is partially configured: set all of R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_BUCKET_NAME, R2_PUBLIC_BASE_URL or none")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}
