package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"epicscope/internal/config"
	"epicscope/internal/jira"
	"epicscope/internal/logging"
	"epicscope/internal/pipeline"
	"epicscope/internal/snapshot"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose     bool
	profilePath string

	cfg        *config.AppConfig
	logDir     string
	jiraClient jira.Client
	store      snapshot.Store
)

var rootCmd = &cobra.Command{
	Use:   "epicscope",
	Short: "epicscope prepares Jira epic data and synthesizes a structured summary",
	Long: `epicscope walks the issue hierarchy below a Jira epic, keeps a local snapshot of every issue,
reconstructs status and field timelines and runs a set of analyzers (scope, status durations,
backlog evolution, time creep) whose results are merged into one summary document.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logDir = logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if profilePath != "" {
			cfg.ProfilePath = profilePath
		}

		jiraClient = jira.NewClient(cfg.Jira)

		store, err = snapshot.Open(cmd.Context(), cfg.StoreBackend, cfg.SnapshotDir)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("store", cfg.StoreBackend).
			Msg("epicscope starting")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close snapshot store")
			}
		}
	},
}

// Execute runs the command tree; ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "tracker profile YAML overriding PROFILE_PATH")
}

// newPipeline builds the pipeline shared by every subcommand.
func newPipeline() (*pipeline.Pipeline, error) {
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	failures := logging.NewFailureLog(filepath.Join(logDir, "failed_issues.log"))
	return pipeline.New(cfg, profile, jiraClient, store, failures)
}
