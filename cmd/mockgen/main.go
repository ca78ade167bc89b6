package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"epicscope/cmd/mockgen/engine"
	"epicscope/internal/snapshot"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, chaos, drift")
	distribution := flag.String("distribution", "uniform", "Distribution to use: uniform, weibull")
	outDir := flag.String("out", "./cache/issues", "Snapshot directory")
	backend := flag.String("backend", "file", "Snapshot store backend: file, sqlite")
	prefix := flag.String("prefix", "MOCK", "Project key of the generated issues")
	teams := flag.String("teams", "Falcon,Otter", "Comma separated team names")
	count := flag.Int("count", 40, "Number of child issues to generate")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Prefix:       strings.ToUpper(*prefix),
		Count:        *count,
		Teams:        strings.Split(*teams, ","),
		Seed:         *seed,
		Now:          time.Now(),
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, Count: %d) to %s...\n", cfg.Scenario, cfg.Distribution, cfg.Count, *outDir)

	ctx := context.Background()
	store, err := snapshot.Open(ctx, *backend, *outDir)
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	snaps := engine.Generate(cfg)
	if err := engine.Save(ctx, store, snaps); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. Analyze with: epicscope analyze --mode skip %s\n", snaps[0].Key)
}
