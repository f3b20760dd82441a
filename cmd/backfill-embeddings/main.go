// Package main is the embedding backfill CLI. It embeds nodes that were
// created before the embedding provider was configured, or whose
// embeddings were invalidated by label and description edits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"atlas-graph/application/commands"
	"atlas-graph/infrastructure/config"
	"atlas-graph/infrastructure/di"
)

func main() {
	var (
		configDir = flag.String("config", "config", "configuration directory")
		nodeTypes = flag.String("node-types", "", "comma-separated node types to backfill (default all)")
		batchSize = flag.Int("batch-size", 25, "nodes embedded per provider call")
		dryRun    = flag.Bool("dry-run", false, "report what would be embedded without writing")
		timeout   = flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer container.Shutdown()

	cmd := commands.BackfillEmbeddingsCommand{
		BatchSize: *batchSize,
		DryRun:    *dryRun,
		Actor:     "cli:backfill-embeddings",
	}
	for _, raw := range strings.Split(*nodeTypes, ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			cmd.NodeTypes = append(cmd.NodeTypes, raw)
		}
	}

	result, err := container.CommandBus.Send(ctx, cmd)
	if err != nil {
		log.Fatalf("Backfill failed: %v", err)
	}

	report, ok := result.(*commands.BackfillEmbeddingsResult)
	if !ok {
		log.Fatalf("Unexpected result type %T", result)
	}

	fmt.Printf("scanned:  %d\n", report.NodesScanned)
	fmt.Printf("embedded: %d\n", report.NodesEmbedded)
	fmt.Printf("skipped:  %d\n", report.NodesSkipped)
	fmt.Printf("failed:   %d\n", report.NodesFailed)
	if report.NodesFailed > 0 {
		os.Exit(1)
	}
}
