package commands

import (
	"context"
	"fmt"
	"time"

	"epicscope/internal/freshness"
	"epicscope/internal/pipeline"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	scheduleSpec    string
	scheduleFile    string
	scheduleNow     bool
	scheduleTimeout time.Duration
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Re-analyze the epics listed in a file on a cron schedule",
	Long: `Runs the analysis for every key in --file whenever the cron expression fires, refreshing
only snapshots whose remote issue changed. The key file is re-read on every run.`,
	Example: `  epicscope schedule --file epics.txt --cron "0 6 * * 1-5"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if scheduleFile == "" {
			return fmt.Errorf("--file is required")
		}
		p, err := newPipeline()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		c := cron.New(
			cron.WithLocation(p.Location),
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
		if _, err := c.AddFunc(scheduleSpec, func() { runScheduled(ctx, p) }); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", scheduleSpec, err)
		}

		if scheduleNow {
			runScheduled(ctx, p)
		}

		c.Start()
		log.Info().Str("cron", scheduleSpec).Str("file", scheduleFile).Msg("Scheduler started")
		<-ctx.Done()
		<-c.Stop().Done()
		log.Info().Msg("Scheduler stopped")
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleSpec, "cron", "0 6 * * 1-5", "cron expression (minute hour dom month dow)")
	scheduleCmd.Flags().StringVarP(&scheduleFile, "file", "f", "", "file listing the epic keys")
	scheduleCmd.Flags().BoolVar(&scheduleNow, "now", false, "run once immediately before waiting for the schedule")
	scheduleCmd.Flags().DurationVar(&scheduleTimeout, "timeout", 30*time.Minute, "upper bound for one scheduled run")
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduled(parent context.Context, p *pipeline.Pipeline) {
	ctx, cancel := context.WithTimeout(parent, scheduleTimeout)
	defer cancel()

	keys, err := pipeline.ReadKeysFile(scheduleFile)
	if err != nil {
		log.Error().Err(err).Msg("schedule: cannot read keys")
		return
	}

	start := time.Now()
	written, failed := 0, 0
	for _, o := range p.RunAll(ctx, keys, freshness.CheckStale) {
		if o.Err != nil {
			failed++
			continue
		}
		if _, err := o.Report.Write(cfg.ReportDir, cfg.EnableMermaidCharts); err != nil {
			failed++
			log.Error().Err(err).Str("epic", o.Key).Msg("schedule: failed to write report")
			continue
		}
		written++
	}
	log.Info().
		Int("written", written).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("schedule: run finished")
}
