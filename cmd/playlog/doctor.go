package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/playlog/internal/config"
	"github.com/franz/playlog/internal/spotify"
	"github.com/franz/playlog/internal/store"
	"github.com/franz/playlog/internal/util"
)

const doctorTimeout = 20 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure playlog can operate correctly.

This command checks:
- Configuration values and source credentials
- SQLite version compatibility
- Store accessibility, integrity and schema
- Artifacts directory permissions
- Token refresh against the accounts service (with --auth)

Use --print-schema to print the Postgres DDL to apply before the first run.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	// Doctor-specific flags
	doctorCmd.Flags().Bool("auth", false, "Also refresh an access token to verify credentials")
	doctorCmd.Flags().Bool("print-schema", false, "Print the Postgres schema and exit")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	if printSchema, _ := cmd.Flags().GetBool("print-schema"); printSchema {
		fmt.Fprint(cmd.OutOrStdout(), store.PostgresSchema)
		return nil
	}

	util.InfoLog("=== playlog doctor - System Diagnostics ===")
	util.InfoLog("")

	ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
	defer cancel()

	results := []checkResult{}

	// 1. Check configuration
	cfg, cfgErr := loadConfig()
	results = append(results, checkConfig(cfgErr))

	// 2. Check SQLite
	results = append(results, checkSQLite())

	if cfgErr == nil {
		// 3. Check credentials
		results = append(results, checkCredentials(cfg))

		// 4. Check the store
		if cfg.Store.Driver == store.DriverPostgres {
			results = append(results, checkPostgres(ctx, cfg.Store.DSN))
		} else {
			results = append(results, checkDatabase(cfg.Store.Path))
		}

		// 5. Check artifacts directory
		results = append(results, checkArtifactsDirectory(cfg.ArtifactsDir))

		// 6. Check token refresh
		if auth, _ := cmd.Flags().GetBool("auth"); auth {
			results = append(results, checkAuth(ctx, cfg))
		}
	}

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	// Summary
	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running playlog.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! playlog is ready to run.")
	}

	return nil
}

// checkConfig reports whether the configuration loaded and validated
func checkConfig(err error) checkResult {
	if err != nil {
		return checkResult{
			name:    "Configuration",
			error:   true,
			message: err.Error(),
		}
	}
	return checkResult{name: "Configuration", message: "valid"}
}

// checkCredentials warns when the source credentials are incomplete; read-only
// commands still work without them
func checkCredentials(cfg config.Config) checkResult {
	if err := cfg.ValidateCredentials(); err != nil {
		return checkResult{
			name:    "Credentials",
			warning: true,
			message: fmt.Sprintf("%v (required for run)", err),
		}
	}
	return checkResult{
		name:    "Credentials",
		message: fmt.Sprintf("set for account %q", cfg.Spotify.Account),
	}
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite is pure Go; just verify we can get the version
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies the SQLite database file
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CheckIntegrity(ctx); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	counts, err := db.Counts(ctx)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", dbPath, err),
		}
	}

	return checkResult{
		name: "Database",
		message: fmt.Sprintf("%s (%s, %s plays)", dbPath,
			humanize.Bytes(uint64(info.Size())), humanize.Comma(counts.Plays)),
	}
}

// checkPostgres connects and reflects the required tables
func checkPostgres(ctx context.Context, dsn string) checkResult {
	if dsn == "" {
		return checkResult{
			name:    "Postgres",
			error:   true,
			message: "no connection string specified (use --dsn, PLAYLOG_STORE_DSN or DATABASE_URL)",
		}
	}

	db, err := store.OpenPostgres(ctx, dsn)
	if err != nil {
		return checkResult{
			name:    "Postgres",
			error:   true,
			message: fmt.Sprintf("%v (see doctor --print-schema)", err),
		}
	}
	defer db.Close()

	counts, err := db.Counts(ctx)
	if err != nil {
		return checkResult{
			name:    "Postgres",
			error:   true,
			message: err.Error(),
		}
	}
	return checkResult{
		name:    "Postgres",
		message: fmt.Sprintf("schema ok, %s plays", humanize.Comma(counts.Plays)),
	}
}

// checkArtifactsDirectory verifies reports and event files can be written
func checkArtifactsDirectory(path string) checkResult {
	if path == "" {
		return checkResult{
			name:    "Artifacts directory",
			warning: true,
			message: "not set; reports and event files go to the working directory",
		}
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("cannot create %s: %v", path, err),
		}
	}

	probe, err := os.CreateTemp(path, ".playlog-doctor-*")
	if err != nil {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("%s is not writable: %v", path, err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	abs, _ := filepath.Abs(path)
	return checkResult{
		name:    "Artifacts directory",
		message: fmt.Sprintf("%s (writable)", abs),
	}
}

// checkAuth exchanges the refresh token once. A rotated token is persisted
// like during a run.
func checkAuth(ctx context.Context, cfg config.Config) checkResult {
	if !cfg.HasCredentials() {
		return checkResult{
			name:    "Token refresh",
			error:   true,
			message: "credentials incomplete",
		}
	}

	var tokens spotify.TokenStore
	if db, err := openStore(ctx, cfg); err == nil {
		defer db.Close()
		tokens = spotify.NewTokenStore(db, cfg.Spotify.Account)
	}

	source, err := spotify.NewSource(ctx, spotify.Credentials{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		TokenURL:     cfg.Spotify.TokenURL,
	}, tokens, spotify.Options{Retry: retryConfig(cfg)})
	if err == nil {
		err = source.Authenticate(ctx)
	}
	if err != nil {
		return checkResult{
			name:    "Token refresh",
			error:   true,
			message: err.Error(),
		}
	}
	return checkResult{name: "Token refresh", message: "access token issued"}
}
