package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ride-engine/cao"
	"github.com/warp/ride-engine/config"
	"github.com/warp/ride-engine/generic"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := config.FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "ride-engine.db", cfg.DatabaseURL)
	assert.Equal(t, generic.HoursCodeID("normal"), cfg.DefaultHoursCode)
	assert.Empty(t, cfg.SeedFile)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.CORSOrigins)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := config.FromEnv(env(map[string]string{
		"PORT":               "9090",
		"DB_DRIVER":          "postgres",
		"DATABASE_URL":       "postgres://rides@localhost/rides?sslmode=disable",
		"DEFAULT_HOURS_CODE": "training",
		"SEED_FILE":          "/etc/rides/seed.yaml",
		"CORS_ORIGINS":       " https://planning.example.com , ,https://app.example.com",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, generic.HoursCodeID("training"), cfg.DefaultHoursCode)
	assert.Equal(t, "/etc/rides/seed.yaml", cfg.SeedFile)
	assert.Equal(t, []string{"https://planning.example.com", "https://app.example.com"}, cfg.CORSOrigins)
}

func TestFromEnv_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		vars  map[string]string
		field string
	}{
		{"port not a number", map[string]string{"PORT": "http"}, "PORT"},
		{"port out of range", map[string]string{"PORT": "70000"}, "PORT"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.FromEnv(env(tt.vars))

			var ve *generic.ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

// =============================================================================
// SEED
// =============================================================================

func TestDefaultSeed(t *testing.T) {
	seed, err := config.DefaultSeed()
	require.NoError(t, err)

	require.Len(t, seed.RateRows, 2)
	assert.Len(t, seed.HoursCodes, 7)
	assert.Len(t, seed.HoursOptions, 3)
	assert.Len(t, seed.Entitlements, 3)
	assert.Len(t, seed.Holidays, 7)

	// Clock fields arrive as fractional hours
	first := seed.RateRows[0]
	assert.True(t, first.EveningDepartureBefore.Equal(generic.MustParseDecimal("14")))
	assert.True(t, first.NightEnd.Equal(generic.MustParseDecimal("5")))
	assert.Len(t, first.BreakSchedule, len(cao.DefaultBreakSchedule()))
	assert.Nil(t, seed.RateRows[1].EndDate)

	// Recurring holidays match in any year
	assert.True(t, seed.Holidays.IsHoliday(generic.NewTimePoint(2025, time.December, 25)))
	assert.False(t, seed.Holidays.IsHoliday(generic.NewTimePoint(2025, time.May, 20)), "Whit Monday moves")
}

func TestParseSeed_CustomBreaks(t *testing.T) {
	seed, err := config.ParseSeed([]byte(`
rate_rows:
  - id: custom
    start_date: "2025-01-01"
    breaks:
      - {after: "6", break: "0.5"}
`))
	require.NoError(t, err)

	require.Len(t, seed.RateRows, 1)
	require.Len(t, seed.RateRows[0].BreakSchedule, 1)
	assert.True(t, seed.RateRows[0].BreakSchedule[0].Break.Equal(generic.MustParseDecimal("0.5")))
}

func TestParseSeed_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{
			name:  "bad decimal",
			yaml:  "rate_rows:\n  - {id: r1, start_date: \"2024-01-01\", one_day_allowance: \"1,06\"}\n",
			field: "rate_rows[0].one_day_allowance",
		},
		{
			name:  "bad clock",
			yaml:  "rate_rows:\n  - {id: r1, start_date: \"2024-01-01\", night_start: \"9pm\"}\n",
			field: "rate_rows[0].night_start",
		},
		{
			name:  "missing id",
			yaml:  "rate_rows:\n  - {start_date: \"2024-01-01\"}\n",
			field: "rate_rows[0].id",
		},
		{
			name:  "unknown day kind",
			yaml:  "hours_codes:\n  - {id: ferry, kind: boat}\n",
			field: "hours_codes[0].kind",
		},
		{
			name:  "unknown modifier",
			yaml:  "hours_options:\n  - {id: x, modifier: double}\n",
			field: "hours_options[0].modifier",
		},
		{
			name:  "bad holiday date",
			yaml:  "holidays:\n  - {date: \"25-12-2024\", name: Christmas}\n",
			field: "holidays[0].date",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseSeed([]byte(tt.yaml))

			var ve *generic.ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestParseSeed_MalformedYAML(t *testing.T) {
	_, err := config.ParseSeed([]byte("rate_rows: [unclosed"))

	require.Error(t, err)
	assert.NotErrorIs(t, err, generic.ErrValidation)
}

func TestLoadSeed(t *testing.T) {
	// Empty path falls back to the built-in seed
	seed, err := config.LoadSeed("")
	require.NoError(t, err)
	assert.Len(t, seed.RateRows, 2)

	// A file on disk replaces it
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hours_codes:\n  - {id: normal, kind: single_day}\n"), 0o600))
	seed, err = config.LoadSeed(path)
	require.NoError(t, err)
	assert.Empty(t, seed.RateRows)
	assert.Len(t, seed.HoursCodes, 1)

	_, err = config.LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
