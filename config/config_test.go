package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/Dosada05/grid-league/standings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"DATABASE_URL", "JWT_SECRET_KEY", "SERVER_PORT", "LOG_LEVEL", "LOG_FORMAT",
	"POINTS_TABLE", "POLE_BONUS_POINTS", "FASTEST_LAP_BONUS_POINTS", "DNF_AVERAGE_POLICY",
	"STANDINGS_TIE_POLICY", "RECENT_RESULTS_LIMIT", "STANDINGS_RELOAD_INTERVAL",
	"API_KEY_HASHES", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW", "CORS_ALLOWED_ORIGINS",
	"R2_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_BUCKET_NAME", "R2_PUBLIC_BASE_URL",
}

// baseEnv очищает окружение и задаёт обязательный минимум.
func baseEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
	t.Setenv("DATABASE_URL", "postgres://league@localhost/league?sslmode=disable")
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("DNF_AVERAGE_POLICY", "finished_only")
}

func TestLoadDefaults(t *testing.T) {
	baseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, standings.DefaultPointsTable(), cfg.Rules.Scheme.Table)
	assert.Equal(t, 1, cfg.Rules.Scheme.PoleBonus)
	assert.Equal(t, 1, cfg.Rules.Scheme.FastestLapBonus)
	assert.Equal(t, standings.AverageFinishedOnly, cfg.Rules.Average)
	assert.Equal(t, standings.TieSplit, cfg.TiePolicy)
	assert.Equal(t, 5, cfg.RecentResultsLimit)
	assert.Equal(t, 5*time.Minute, cfg.ReloadInterval)
	assert.Empty(t, cfg.APIKeyHashes)
	assert.Equal(t, 60, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.R2.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	baseEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "pretty")
	t.Setenv("POINTS_TABLE", "10, 6, 4, 3, 2, 1")
	t.Setenv("POLE_BONUS_POINTS", "0")
	t.Setenv("DNF_AVERAGE_POLICY", "dnf_as_last")
	t.Setenv("STANDINGS_TIE_POLICY", "shared")
	t.Setenv("API_KEY_HASHES", "$2a$10$abc, $2a$10$def")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://league.example,https://bot.example")
	t.Setenv("R2_ACCOUNT_ID", "acc")
	t.Setenv("R2_ACCESS_KEY_ID", "id")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
	t.Setenv("R2_BUCKET_NAME", "league")
	t.Setenv("R2_PUBLIC_BASE_URL", "https://cdn.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "pretty", cfg.LogFormat)
	assert.Equal(t, map[int]int{1: 10, 2: 6, 3: 4, 4: 3, 5: 2, 6: 1}, cfg.Rules.Scheme.Table)
	assert.Equal(t, 0, cfg.Rules.Scheme.PoleBonus)
	assert.Equal(t, standings.AverageDNFAsLast, cfg.Rules.Average)
	assert.Equal(t, standings.TieShared, cfg.TiePolicy)
	assert.Equal(t, []string{"$2a$10$abc", "$2a$10$def"}, cfg.APIKeyHashes)
	assert.Equal(t, []string{"https://league.example", "https://bot.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.R2.Enabled())
}

func TestLoadRequiresAveragePolicy(t *testing.T) {
	baseEnv(t)
	t.Setenv("DNF_AVERAGE_POLICY", "")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, standings.ErrInvalidRules)
	assert.Contains(t, err.Error(), "DNF_AVERAGE_POLICY")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"DATABASE_URL":              "",
		"JWT_SECRET_KEY":            "",
		"SERVER_PORT":               "70000",
		"LOG_LEVEL":                 "loud",
		"LOG_FORMAT":                "xml",
		"POINTS_TABLE":              "25,x,15",
		"DNF_AVERAGE_POLICY":        "best_of",
		"STANDINGS_TIE_POLICY":      "coinflip",
		"RECENT_RESULTS_LIMIT":      "0",
		"STANDINGS_RELOAD_INTERVAL": "soon",
		"RATE_LIMIT_WINDOW":         "0s",
		"POLE_BONUS_POINTS":         "-1",
		"R2_ACCOUNT_ID":             "only-one",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			baseEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParsePointsTable(t *testing.T) {
	table, err := ParsePointsTable("25,18,15")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 25, 2: 18, 3: 15}, table)

	_, err = ParsePointsTable("25,-1")
	assert.Error(t, err)
}
