// Package config loads the process configuration from the environment, the
// same way the repositories this module was grown from do: plain env-var
// lookups with defaults, and a hard failure for anything that must not
// silently fall back in production.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Limits      LimitsConfig
	ExternalUTM ExternalUTMConfig
}

// HTTPConfig contains HTTP/WebSocket listener settings.
type HTTPConfig struct {
	Address string // e.g. ":8080"
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string // SQLite database file path
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	AdminJWTSecret     string // HS256 signing secret for admin JWTs
	RegistrationSecret string // shared secret compared in constant time at registration; empty disables the check
}

// LimitsConfig holds the separation and validation thresholds that gate
// conflict detection, telemetry acceptance, and resolution. These are also
// surfaced verbatim over the read-only /v1/compliance/limits endpoint.
type LimitsConfig struct {
	MinHorizontalSeparationM float64       // MIN_H
	MinVerticalSeparationM   float64       // MIN_V
	Lookahead                time.Duration // LOOKAHEAD, 10-30s
	SampleInterval           time.Duration // Δ for the sampled CPA fallback
	DroneTimeout             time.Duration // DRONE_TIMEOUT before a drone is declared Lost
	MinAltitudeM             float64
	MaxAltitudeM             float64
	MaxSpeedMPS              float64
	MaxTelemetryAge          time.Duration // MAX_AGE
	MaxTelemetryFuture       time.Duration // MAX_FUTURE
	ConflictTick             time.Duration // CONFLICT_TICK_MS
	CommandCooldown          time.Duration
	RegistrationRatePerMin   int
	PersistenceRetryWindow   time.Duration // PERSISTENCE_RETRY_WINDOW_MS, total backoff window before a write is given up on
}

// ExternalUTMConfig configures the optional external UTM sync loops. When
// Endpoint is empty, the sync loops are not started.
type ExternalUTMConfig struct {
	Endpoint      string
	APIKey        string
	SyncInterval  time.Duration
	RequestBudget time.Duration
}

// Load loads configuration from environment variables with sensible
// defaults, requiring that security-relevant secrets be set explicitly. Use
// this in production.
func Load() (*Config, error) {
	cfg := defaultConfig()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Auth.AdminJWTSecret == "" {
		return nil, fmt.Errorf("ADMIN_JWT_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default admin secret in
// development. WARNING: only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	cfg := defaultConfig()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Auth.AdminJWTSecret == "" {
		cfg.Auth.AdminJWTSecret = "dev-secret-change-me"
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		HTTP:     HTTPConfig{Address: ":8080"},
		Database: DatabaseConfig{Path: "utmcore.db"},
		Auth:     AuthConfig{},
		Limits: LimitsConfig{
			MinHorizontalSeparationM: 50,
			MinVerticalSeparationM:   15,
			Lookahead:                20 * time.Second,
			SampleInterval:           1 * time.Second,
			DroneTimeout:             10 * time.Second,
			MinAltitudeM:             0,
			MaxAltitudeM:             120,
			MaxSpeedMPS:              25,
			MaxTelemetryAge:          10 * time.Second,
			MaxTelemetryFuture:       2 * time.Second,
			ConflictTick:             250 * time.Millisecond,
			CommandCooldown:          5 * time.Second,
			RegistrationRatePerMin:   30,
			PersistenceRetryWindow:   30 * time.Second,
		},
		ExternalUTM: ExternalUTMConfig{
			SyncInterval:  30 * time.Second,
			RequestBudget: 5 * time.Second,
		},
	}
}

func applyEnv(cfg *Config) error {
	cfg.HTTP.Address = getEnv("HTTP_ADDRESS", cfg.HTTP.Address)
	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	cfg.Auth.AdminJWTSecret = getEnv("ADMIN_JWT_SECRET", cfg.Auth.AdminJWTSecret)
	cfg.Auth.RegistrationSecret = getEnv("REGISTRATION_SECRET", cfg.Auth.RegistrationSecret)
	cfg.ExternalUTM.Endpoint = getEnv("EXTERNAL_UTM_ENDPOINT", cfg.ExternalUTM.Endpoint)
	cfg.ExternalUTM.APIKey = getEnv("EXTERNAL_UTM_API_KEY", cfg.ExternalUTM.APIKey)

	var err error
	if cfg.Limits.MinHorizontalSeparationM, err = getEnvFloat("MIN_H_M", cfg.Limits.MinHorizontalSeparationM); err != nil {
		return err
	}
	if cfg.Limits.MinVerticalSeparationM, err = getEnvFloat("MIN_V_M", cfg.Limits.MinVerticalSeparationM); err != nil {
		return err
	}
	if cfg.Limits.Lookahead, err = getEnvDuration("LOOKAHEAD", cfg.Limits.Lookahead); err != nil {
		return err
	}
	if cfg.Limits.Lookahead < 10*time.Second || cfg.Limits.Lookahead > 30*time.Second {
		return fmt.Errorf("LOOKAHEAD must be between 10s and 30s, got %s", cfg.Limits.Lookahead)
	}
	if cfg.Limits.DroneTimeout, err = getEnvDuration("DRONE_TIMEOUT", cfg.Limits.DroneTimeout); err != nil {
		return err
	}
	if cfg.Limits.MinAltitudeM, err = getEnvFloat("MIN_ALTITUDE_M", cfg.Limits.MinAltitudeM); err != nil {
		return err
	}
	if cfg.Limits.MaxAltitudeM, err = getEnvFloat("MAX_ALTITUDE_M", cfg.Limits.MaxAltitudeM); err != nil {
		return err
	}
	if cfg.Limits.MaxTelemetryAge, err = getEnvDuration("MAX_TELEMETRY_AGE_MS", cfg.Limits.MaxTelemetryAge); err != nil {
		return err
	}
	if cfg.Limits.MaxTelemetryFuture, err = getEnvDuration("MAX_TELEMETRY_FUTURE_MS", cfg.Limits.MaxTelemetryFuture); err != nil {
		return err
	}
	if cfg.Limits.MaxSpeedMPS, err = getEnvFloat("MAX_SPEED_MPS", cfg.Limits.MaxSpeedMPS); err != nil {
		return err
	}
	if cfg.Limits.ConflictTick, err = getEnvDuration("CONFLICT_TICK_MS", cfg.Limits.ConflictTick); err != nil {
		return err
	}
	if cfg.Limits.ConflictTick > time.Second {
		return fmt.Errorf("CONFLICT_TICK_MS must be <= 1s, got %s", cfg.Limits.ConflictTick)
	}
	if cfg.Limits.PersistenceRetryWindow, err = getEnvDuration("PERSISTENCE_RETRY_WINDOW_MS", cfg.Limits.PersistenceRetryWindow); err != nil {
		return err
	}
	return nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float for %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer milliseconds for %s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// String returns a string representation of the config (secrets masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{HTTP: %s, DB: %s, Auth: *** (masked) ***, MinH: %.1fm, MinV: %.1fm, Lookahead: %s}",
		c.HTTP.Address, c.Database.Path, c.Limits.MinHorizontalSeparationM, c.Limits.MinVerticalSeparationM, c.Limits.Lookahead)
}
