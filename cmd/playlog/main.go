package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/playlog/internal/config"
	"github.com/franz/playlog/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	// configErr holds a config file read failure until a command loads the config
	configErr error

	rootCmd = &cobra.Command{
		Use:   "playlog",
		Short: "Incremental Spotify listening history ETL",
		Long: `playlog fetches your recently played tracks from the Spotify Web API and
merges them into a relational store (SQLite or Postgres).

Every run is incremental: it resumes from the newest stored play minus a
small buffer, loads artists, albums, tracks and plays with conflict-safe
merges, and writes an audit row for every step to etl_logs.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/playlog.yaml)")
	rootCmd.PersistentFlags().String("db", "playlog.db", "SQLite database file")
	rootCmd.PersistentFlags().String("driver", "sqlite", "store driver (sqlite or postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "Postgres connection string (driver postgres)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console or json)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("driver"))
	viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("dsn"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	configErr = nil
	config.LoadEnv(".")
	config.Configure(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("playlog")
		viper.SetConfigType("yaml")
	}

	if err := config.ReadFile(viper.GetViper()); err != nil {
		configErr = err
		return
	}
	if used := viper.ConfigFileUsed(); used != "" && !viper.GetBool("quiet") {
		util.DebugLog("Using config file: %s", used)
	}
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stderr))
}

// execute runs the command line and returns the process exit code:
// 0 on success (including runs without new plays), 1 on any error
func execute(args []string, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
