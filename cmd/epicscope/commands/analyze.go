package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"epicscope/internal/freshness"
	"epicscope/internal/pipeline"
	"epicscope/internal/report"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	analyzeMode   string
	analyzeFile   string
	analyzeOut    string
	analyzeOpen   bool
	analyzeQuiet  bool
	analyzeCharts bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [EPIC-KEY...]",
	Short: "Analyze one or more epics and write their summary documents",
	Example: `  epicscope analyze PROJ-123
  epicscope analyze --mode force PROJ-123 PROJ-456
  epicscope analyze --file epics.txt --mode skip`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := freshness.ParseMode(analyzeMode)
		if err != nil {
			return err
		}

		keys := normalizeKeys(args)
		if analyzeFile != "" {
			fromFile, err := pipeline.ReadKeysFile(analyzeFile)
			if err != nil {
				return err
			}
			keys = append(keys, fromFile...)
		}
		if len(keys) == 0 {
			return fmt.Errorf("no epic keys given; pass keys as arguments or use --file")
		}

		p, err := newPipeline()
		if err != nil {
			return err
		}

		outDir := analyzeOut
		if outDir == "" {
			outDir = cfg.ReportDir
		}
		charts := analyzeCharts && cfg.EnableMermaidCharts

		failed := 0
		for _, o := range p.RunAll(cmd.Context(), keys, mode) {
			if o.Err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %v\n", o.Key, o.Err)
				continue
			}
			paths, err := o.Report.Write(outDir, charts)
			if err != nil {
				failed++
				log.Error().Err(err).Str("epic", o.Key).Msg("Failed to write report")
				continue
			}
			if !analyzeQuiet {
				if err := report.Write(os.Stdout, o.Report.Document, time.Now()); err != nil {
					return err
				}
				for _, path := range paths {
					fmt.Fprintf(os.Stdout, "  wrote %s\n", path)
				}
				fmt.Fprintln(os.Stdout)
			}
			if analyzeOpen && len(paths) > 0 {
				if err := browser.OpenFile(paths[0]); err != nil {
					log.Warn().Err(err).Str("path", paths[0]).Msg("Failed to open summary")
				}
			}
		}

		if err := cmd.Context().Err(); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d epics failed", failed, len(keys))
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeMode, "mode", "m", "check", "snapshot freshness: force, skip or check")
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "read epic keys from a file")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "report directory (default REPORT_DIR)")
	analyzeCmd.Flags().BoolVar(&analyzeOpen, "open", false, "open each summary document after writing it")
	analyzeCmd.Flags().BoolVarP(&analyzeQuiet, "quiet", "q", false, "do not print the console digest")
	analyzeCmd.Flags().BoolVar(&analyzeCharts, "charts", true, "write Mermaid charts next to the summary")
	rootCmd.AddCommand(analyzeCmd)
}

func normalizeKeys(args []string) []string {
	keys := make([]string, 0, len(args))
	for _, a := range args {
		if k := strings.ToUpper(strings.TrimSpace(a)); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
