package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/franz/playlog/internal/util"
)

// EnvPrefix is prepended to every environment variable playlog reads
const EnvPrefix = "PLAYLOG"

// RetryConfig controls retries of transient source errors
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	InitialWait time.Duration `mapstructure:"initial_wait" validate:"gt=0"`
	MaxWait     time.Duration `mapstructure:"max_wait" validate:"gtefield=InitialWait"`
}

// SpotifyConfig holds source API credentials and client tuning
type SpotifyConfig struct {
	Account           string        `mapstructure:"account" validate:"required"`
	ClientID          string        `mapstructure:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"`
	RefreshToken      string        `mapstructure:"refresh_token"`
	TokenURL          string        `mapstructure:"token_url" validate:"required,url"`
	APIBaseURL        string        `mapstructure:"api_base_url" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	PageSize          int           `mapstructure:"page_size" validate:"min=1,max=50"`
	MaxPages          int           `mapstructure:"max_pages" validate:"min=1"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	Retry             RetryConfig   `mapstructure:"retry"`
}

// StoreConfig selects the relational store
type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	Path   string `mapstructure:"path" validate:"required_if=Driver sqlite"`
	DSN    string `mapstructure:"dsn" validate:"required_if=Driver postgres"`
}

// PipelineConfig holds the watermark windows and load policy
type PipelineConfig struct {
	LookbackHours   int  `mapstructure:"lookback_hours" validate:"min=1"`
	BufferMinutes   int  `mapstructure:"buffer_minutes" validate:"min=0"`
	ContinueOnError bool `mapstructure:"continue_on_error"`
}

// LogConfig controls the operational log
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// MetricsConfig controls the optional Pushgateway push
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url" validate:"omitempty,url"`
	Job            string `mapstructure:"job" validate:"required"`
}

// Config is the complete, read-only configuration of one playlog process.
// It is built once by Load and passed down by value.
type Config struct {
	Spotify      SpotifyConfig  `mapstructure:"spotify"`
	Store        StoreConfig    `mapstructure:"store"`
	Pipeline     PipelineConfig `mapstructure:"pipeline"`
	Log          LogConfig      `mapstructure:"log"`
	Metrics      MetricsConfig  `mapstructure:"metrics"`
	ArtifactsDir string         `mapstructure:"artifacts_dir"`
}

// Lookback is the fallback watermark window used when no plays are stored
func (c Config) Lookback() time.Duration {
	return time.Duration(c.Pipeline.LookbackHours) * time.Hour
}

// Buffer is subtracted from the newest stored play to tolerate late events
func (c Config) Buffer() time.Duration {
	return time.Duration(c.Pipeline.BufferMinutes) * time.Minute
}

// HasCredentials reports whether everything needed for a token refresh is set
func (c Config) HasCredentials() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != "" && c.Spotify.RefreshToken != ""
}

// ValidateCredentials checks the fields required to talk to the source API
func (c Config) ValidateCredentials() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, "spotify.client_id")
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, "spotify.client_secret")
	}
	if c.Spotify.RefreshToken == "" {
		missing = append(missing, "spotify.refresh_token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", util.ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

// SetDefaults registers every default value on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("spotify.account", "default")
	v.SetDefault("spotify.token_url", "https://accounts.spotify.com/api/token")
	v.SetDefault("spotify.api_base_url", "https://api.spotify.com/v1")
	v.SetDefault("spotify.timeout", 15*time.Second)
	v.SetDefault("spotify.page_size", 50)
	v.SetDefault("spotify.max_pages", 20)
	v.SetDefault("spotify.requests_per_second", 5.0)
	v.SetDefault("spotify.retry.max_attempts", 3)
	v.SetDefault("spotify.retry.initial_wait", 500*time.Millisecond)
	v.SetDefault("spotify.retry.max_wait", 10*time.Second)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "playlog.db")

	v.SetDefault("pipeline.lookback_hours", 72)
	v.SetDefault("pipeline.buffer_minutes", 30)
	v.SetDefault("pipeline.continue_on_error", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "playlog")

	v.SetDefault("artifacts_dir", "artifacts")
}

// Configure applies the env prefix, key replacer, defaults and legacy
// environment names to v. Safe to call more than once.
func Configure(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// Unprefixed names used by existing deployments
	_ = v.BindEnv("spotify.client_id", EnvPrefix+"_SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_ID", "CLIENT_ID")
	_ = v.BindEnv("spotify.client_secret", EnvPrefix+"_SPOTIFY_CLIENT_SECRET", "SPOTIFY_CLIENT_SECRET", "CLIENT_SECRET")
	_ = v.BindEnv("spotify.refresh_token", EnvPrefix+"_SPOTIFY_REFRESH_TOKEN", "SPOTIFY_REFRESH_TOKEN", "REFRESH_TOKEN")
	_ = v.BindEnv("store.dsn", EnvPrefix+"_STORE_DSN", "DATABASE_URL")
}

// LoadEnv loads .env files from dir into the process environment.
// Variables already set in the environment are never replaced, and
// .env.local wins over .env. Missing files are ignored.
func LoadEnv(dir string) {
	for _, name := range []string{".env.local", ".env"} {
		_ = godotenv.Load(filepath.Join(dir, name))
	}
}

// ReadFile reads the config file v was pointed at. A missing file is not an error.
func ReadFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load builds a validated Config from v. Configure must have been called on v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section; credentials are checked separately by
// ValidateCredentials since read-only commands do not need them.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", configKey(fe.Namespace()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", util.ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	return nil
}

// configKey turns "Config.Spotify.PageSize" into "spotify.pagesize"
func configKey(namespace string) string {
	namespace = strings.TrimPrefix(namespace, "Config.")
	return strings.ToLower(namespace)
}
