package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/cartographer/internal/logging"
	"github.com/dmitrijs2005/cartographer/internal/mirror"
	"github.com/dmitrijs2005/cartographer/internal/mirror/client"
	"github.com/dmitrijs2005/cartographer/internal/mirror/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "mirror",
	Short:         "Downstream mirror of a cartographer catalog",
	Long:          "mirror polls a catalog server's change and deletion feeds into a local SQLite database.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default .mirror.yaml)")
	flags.String("server", "", "catalog server base URL")
	flags.String("db", "", "SQLite DSN of the local mirror")
	flags.String("token", "", "editor bearer token sent to the server")
	flags.Bool("published", false, "mirror only published maps")

	_ = viper.BindPFlag("server_url", flags.Lookup("server"))
	_ = viper.BindPFlag("database_dsn", flags.Lookup("db"))
	_ = viper.BindPFlag("token", flags.Lookup("token"))
	_ = viper.BindPFlag("published", flags.Lookup("published"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".mirror")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	_ = viper.ReadInConfig()
}

// env bundles what every data command needs.
type env struct {
	cfg    config.Config
	logger logging.Logger
	repos  *mirror.Repositories
	syncer *mirror.Syncer
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.LogBackend, cfg.LogLevel, os.Stderr)
	if err != nil {
		return nil, err
	}

	repos, err := mirror.InitDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open mirror database: %w", err)
	}

	src := client.New(cfg.ServerURL, cfg.Token, cfg.PageSize, cfg.Timeout)
	return &env{
		cfg:    cfg,
		logger: logger,
		repos:  repos,
		syncer: mirror.NewSyncer(repos.DB, src, cfg.Published, logger),
	}, nil
}

func (e *env) Close() error {
	return e.repos.DB.Close()
}
