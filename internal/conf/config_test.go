package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPPort, settings.WebServer.Port)
	assert.Equal(t, "sqlite", settings.Database.Type)
	assert.Equal(t, DefaultSweepInterval, settings.Maintenance.SweepInterval.Std())
	assert.Equal(t, DefaultEmailCooldown, settings.Maintenance.EmailCooldown.Std())
	assert.Equal(t, DefaultRetentionDays, settings.Maintenance.HistoryRetentionDays)
	assert.False(t, settings.Ingest.Enabled)
}

func TestLoad_YAMLFileWithDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
main:
  loglevel: debug
maintenance:
  sweepinterval: 90s
  emailcooldown: 12h
ingest:
  enabled: true
  broker: tcp://mqtt.local:1883
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", settings.Main.LogLevel)
	assert.Equal(t, 90*time.Second, settings.Maintenance.SweepInterval.Std())
	assert.Equal(t, 12*time.Hour, settings.Maintenance.EmailCooldown.Std())
	assert.True(t, settings.Ingest.Enabled)
	assert.Equal(t, "tcp://mqtt.local:1883", settings.Ingest.Broker)

	// Singleton reflects the last load
	assert.Same(t, settings, GetSettings())
}

func TestValidate_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero sweep interval", func(s *Settings) { s.Maintenance.SweepInterval = 0 }},
		{"negative cooldown", func(s *Settings) { s.Maintenance.EmailCooldown = Duration(-time.Hour) }},
		{"negative retention", func(s *Settings) { s.Maintenance.HistoryRetentionDays = -1 }},
		{"unknown database type", func(s *Settings) { s.Database.Type = "mongodb" }},
		{"mysql without dsn", func(s *Settings) { s.Database.Type = "mysql"; s.Database.DSN = "" }},
		{"ingest enabled without broker", func(s *Settings) { s.Ingest.Enabled = true; s.Ingest.Broker = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Settings{
				Database: DatabaseSettings{Type: "sqlite", Path: "test.db"},
				Maintenance: MaintenanceSettings{
					SweepInterval:        Duration(time.Minute),
					EmailCooldown:        Duration(24 * time.Hour),
					HistoryRetentionDays: 30,
				},
			}
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	s := &Settings{
		Database: DatabaseSettings{Type: "sqlite", Path: "sitewatch.db"},
		Maintenance: MaintenanceSettings{
			SweepInterval: Duration(DefaultSweepInterval),
			EmailCooldown: Duration(DefaultEmailCooldown),
		},
	}
	assert.NoError(t, s.Validate())
}
