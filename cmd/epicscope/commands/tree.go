package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"epicscope/internal/freshness"
	"epicscope/internal/visuals"

	"github.com/spf13/cobra"
)

var (
	treeMode  string
	treeJSON  bool
	treeLimit int
)

var treeCmd = &cobra.Command{
	Use:   "tree EPIC-KEY",
	Short: "Print the issue hierarchy below an epic",
	Long:  "Builds the hierarchy without running any analyzer and prints it as a Mermaid flowchart or, with --json, as nested JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := freshness.ParseMode(treeMode)
		if err != nil {
			return err
		}
		p, err := newPipeline()
		if err != nil {
			return err
		}

		tree, err := p.Trees.Build(cmd.Context(), strings.ToUpper(strings.TrimSpace(args[0])), mode)
		if err != nil {
			return err
		}

		if treeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tree.Nested(treeLimit))
		}
		fmt.Fprintln(os.Stdout, visuals.GenerateHierarchyChart(tree))
		for _, a := range tree.Anomalies() {
			fmt.Fprintf(os.Stderr, "warning: %s %s: %s\n", a.Kind, a.Key, a.Detail)
		}
		return nil
	},
}

func init() {
	treeCmd.Flags().StringVarP(&treeMode, "mode", "m", "check", "snapshot freshness: force, skip or check")
	treeCmd.Flags().BoolVar(&treeJSON, "json", false, "print nested JSON instead of a Mermaid chart")
	treeCmd.Flags().IntVar(&treeLimit, "limit", 0, "maximum number of nodes in JSON output (0 for all)")
	rootCmd.AddCommand(treeCmd)
}
