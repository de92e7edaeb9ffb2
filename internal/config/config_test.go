package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:8080", cfg.Server.Address())
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "recruitops:", cfg.Redis.Prefix)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 20, cfg.Advisor.MaxTurns)
	assert.Equal(t, 24*time.Hour, cfg.Advisor.HistoryTTL)
	assert.Equal(t, 6, cfg.Forecast.Months)
	assert.Equal(t, "Candidates!A1:Z", cfg.Sheets.CandidatesRange)
}

func TestLoadWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := `
server:
  port: 9090
  host: 0.0.0.0
  read_timeout: 5s
database:
  url: postgresql://localhost/recruitops
log:
  level: debug
  format: console
sheets:
  spreadsheet_id: sheet-123
`
	require.NoError(t, os.WriteFile(FileName, []byte(content), 0o644))
	assert.True(t, Exists(dir))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgresql://localhost/recruitops", cfg.Database.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sheet-123", cfg.Sheets.SpreadsheetID)
}

func TestEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RECRUITOPS_SERVER_PORT", "7000")
	t.Setenv("RECRUITOPS_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("RECRUITOPS_ADVISOR_MODEL", "gemini-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "gemini-test", cfg.Advisor.Model)
}

func TestDatabaseURLFallback(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "postgresql://env/recruitops")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgresql://env/recruitops", cfg.Database.URL)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	bad := *cfg
	bad.Server.Port = 0
	bad.Log.Level = "loud"
	bad.Forecast.Months = 0
	bad.Server.TrustedProxies = []string{"10.0.0.0/8", "proxy.internal"}
	err = Validate(&bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), `"proxy.internal"`)
	assert.NotContains(t, err.Error(), `"10.0.0.0/8"`)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "forecast.months")
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Write(path, map[string]any{
		"server.port":  9999,
		"database.url": "postgresql://written/db",
	}))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "postgresql://written/db", cfg.Database.URL)
}
