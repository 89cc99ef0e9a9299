package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/franz/playlog/internal/config"
	"github.com/franz/playlog/internal/store"
	"github.com/franz/playlog/internal/util"
)

// loadConfig builds the validated configuration with precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (PLAYLOG_*, .env files)
// 3. Config file
// 4. Default value
// It also applies the logging settings.
func loadConfig() (config.Config, error) {
	if configErr != nil {
		return config.Config{}, configErr
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, err
	}

	util.SetFormat(cfg.Log.Format)
	util.SetLogLevel(util.ParseLogLevel(cfg.Log.Level))
	if viper.GetBool("verbose") {
		util.SetVerbose(true)
	}
	if viper.GetBool("quiet") {
		util.SetQuiet(true)
	}
	return cfg, nil
}

// storeTarget is the path or connection string the configured driver opens
func storeTarget(cfg config.Config) string {
	if cfg.Store.Driver == store.DriverPostgres {
		return cfg.Store.DSN
	}
	return cfg.Store.Path
}

// storeLabel names the store in output without leaking a DSN password
func storeLabel(cfg config.Config) string {
	if cfg.Store.Driver == store.DriverPostgres {
		return "postgres"
	}
	return cfg.Store.Path
}

func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	s, err := store.OpenDriver(ctx, cfg.Store.Driver, storeTarget(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

// retryConfig converts the configured retry policy for the source client
func retryConfig(cfg config.Config) *util.RetryConfig {
	r := util.DefaultRetryConfig()
	r.MaxAttempts = cfg.Spotify.Retry.MaxAttempts
	r.InitialWait = cfg.Spotify.Retry.InitialWait
	r.MaxWait = cfg.Spotify.Retry.MaxWait
	return r
}
