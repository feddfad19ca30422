// Package conf loads and validates SiteWatch configuration via Viper.
package conf

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultHTTPPort          = 8090
	DefaultSweepInterval     = 5 * time.Minute
	DefaultEmailCooldown     = 24 * time.Hour
	DefaultNotifyTimeout     = 10 * time.Second
	DefaultRetentionDays     = 365
	DefaultDueCacheTTL       = 30 * time.Second
	DefaultMQTTQoS           = 1
	DefaultStaleSensorWindow = 30 * time.Minute
)

// Settings is the root configuration tree.
type Settings struct {
	Main         MainSettings         `mapstructure:"main"`
	WebServer    WebServerSettings    `mapstructure:"webserver"`
	Database     DatabaseSettings     `mapstructure:"database"`
	Maintenance  MaintenanceSettings  `mapstructure:"maintenance"`
	Ingest       IngestSettings       `mapstructure:"ingest"`
	Notification NotificationSettings `mapstructure:"notification"`
	Sentry       SentrySettings       `mapstructure:"sentry"`
}

// MainSettings holds application-wide options.
type MainSettings struct {
	LogLevel string `mapstructure:"loglevel"` // debug, info, warn, error
	LogJSON  bool   `mapstructure:"logjson"`
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Port int `mapstructure:"port"`
	// AuthToken protects mutating endpoints when non-empty.
	AuthToken string `mapstructure:"authtoken"`
}

// DatabaseSettings selects and configures the persistence backend.
type DatabaseSettings struct {
	// Type is "sqlite" or "mysql".
	Type string `mapstructure:"type"`
	// Path is the SQLite database file.
	Path string `mapstructure:"path"`
	// DSN is the MySQL connection string.
	DSN string `mapstructure:"dsn"`
}

// MaintenanceSettings configures the scheduling engine.
type MaintenanceSettings struct {
	// SweepInterval is how often the background sweep evaluates all schedules.
	SweepInterval Duration `mapstructure:"sweepinterval"`
	// EmailCooldown is the throttle window for the "daily" email frequency.
	EmailCooldown Duration `mapstructure:"emailcooldown"`
	// HistoryRetentionDays controls maintenance/notification log cleanup.
	// Zero disables cleanup.
	HistoryRetentionDays int `mapstructure:"historyretentiondays"`
	// DueCacheTTL bounds staleness of the cached due-list API response.
	DueCacheTTL Duration `mapstructure:"duecachettl"`
}

// IngestSettings configures MQTT running-hours ingestion.
type IngestSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Broker  string `mapstructure:"broker"` // e.g. tcp://localhost:1883
	// TopicPrefix is the subscription root; equipment sensor topics append to it.
	TopicPrefix string `mapstructure:"topicprefix"`
	ClientID    string `mapstructure:"clientid"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
	// StaleSensorWindow is how long a sensor may stay silent before the
	// equipment is flagged as stale.
	StaleSensorWindow Duration `mapstructure:"stalesensorwindow"`
}

// NotificationSettings configures outbound maintenance alerts.
type NotificationSettings struct {
	// URLs are shoutrrr service URLs (smtp://, ntfy://, telegram://, ...).
	URLs []string `mapstructure:"urls"`
	// Timeout bounds a single dispatch attempt.
	Timeout Duration `mapstructure:"timeout"`
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

var (
	settingsInstance *Settings
	settingsMu       sync.RWMutex
)

// Load reads configuration from the given file (optional), environment
// variables prefixed SITEWATCH_, and defaults, then validates it.
// The loaded settings become the package singleton.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SITEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	settingsMu.Lock()
	settingsInstance = settings
	settingsMu.Unlock()
	return settings, nil
}

// GetSettings returns the loaded settings singleton, or nil before Load.
func GetSettings() *Settings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsInstance
}

// SetSettingsForTesting replaces the singleton. Tests only.
func SetSettingsForTesting(s *Settings) {
	settingsMu.Lock()
	settingsInstance = s
	settingsMu.Unlock()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("main.loglevel", "info")
	v.SetDefault("main.logjson", false)
	v.SetDefault("webserver.port", DefaultHTTPPort)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "sitewatch.db")
	v.SetDefault("maintenance.sweepinterval", DefaultSweepInterval.String())
	v.SetDefault("maintenance.emailcooldown", DefaultEmailCooldown.String())
	v.SetDefault("maintenance.historyretentiondays", DefaultRetentionDays)
	v.SetDefault("maintenance.duecachettl", DefaultDueCacheTTL.String())
	v.SetDefault("ingest.enabled", false)
	v.SetDefault("ingest.topicprefix", "sitewatch/hours")
	v.SetDefault("ingest.clientid", "sitewatch")
	v.SetDefault("ingest.qos", DefaultMQTTQoS)
	v.SetDefault("ingest.stalesensorwindow", DefaultStaleSensorWindow.String())
	v.SetDefault("notification.timeout", DefaultNotifyTimeout.String())
	v.SetDefault("sentry.enabled", false)
}

// Validate rejects configurations the engine must never run with.
// Malformed scheduling configuration is fatal at load time.
func (s *Settings) Validate() error {
	if s.Maintenance.SweepInterval.Std() <= 0 {
		return fmt.Errorf("maintenance.sweepinterval must be positive, got %s", s.Maintenance.SweepInterval.Std())
	}
	if s.Maintenance.EmailCooldown.Std() <= 0 {
		return fmt.Errorf("maintenance.emailcooldown must be positive, got %s", s.Maintenance.EmailCooldown.Std())
	}
	if s.Maintenance.HistoryRetentionDays < 0 {
		return fmt.Errorf("maintenance.historyretentiondays must not be negative, got %d", s.Maintenance.HistoryRetentionDays)
	}
	switch s.Database.Type {
	case "sqlite":
		if s.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "mysql":
		if s.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("unsupported database.type %q (expected sqlite or mysql)", s.Database.Type)
	}
	if s.Ingest.Enabled && s.Ingest.Broker == "" {
		return fmt.Errorf("ingest.broker is required when ingest is enabled")
	}
	return nil
}
