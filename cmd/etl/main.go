// Package main provides the legis-etl CLI for crawling UK legislation
// into the relational and vector stores.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/legis-etl/internal/cache"
	"github.com/bull/legis-etl/internal/checkpoint"
	"github.com/bull/legis-etl/internal/config"
	"github.com/bull/legis-etl/internal/document"
	"github.com/bull/legis-etl/internal/embed"
	"github.com/bull/legis-etl/internal/extract"
	"github.com/bull/legis-etl/internal/pipeline"
	"github.com/bull/legis-etl/internal/store/qdrant"
	"github.com/bull/legis-etl/internal/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "legis-etl",
	Short: "UK legislation extraction pipeline",
	Long:  "CLI tool for crawling legislation.gov.uk into SQLite and Qdrant with resumable checkpoints",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the extraction pipeline for the configured scope",
	Long: `Crawls one category and time period of legislation into both stores.

This command:
1. Connects to Qdrant and verifies health
2. Loads (or creates) the checkpoint for the scope
3. Repairs documents stranded between the two stores
4. Retries documents parked as failed by earlier runs
5. Crawls listing pages from the stored cursor, fetching, cleaning,
   embedding and loading each document

Interrupting the run is safe: progress is checkpointed and the next run
resumes where this one stopped.

Environment variables:
  LEGISLATION_CATEGORY     Title filter (default: planning)
  LEGISLATION_TIME_PERIOD  Month/Year scope (default: August/2024)
  QDRANT_HOST              Qdrant hostname (default: localhost)
  QDRANT_PORT              Qdrant gRPC port (default: 6334)
  SQLITE_PATH              SQLite database path (default: legislation.db)
  CHECKPOINT_PATH          Checkpoint file path (default: checkpoint.json)
  CACHE_DIR                Page cache directory (default: .cache)
  PROCESS_WORKERS          Per-page worker pool size (default: 4)
  OPENAI_API_KEY           OpenAI API key for embeddings (required)`,
	RunE: runPipeline,
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Replay vector loads for documents stranded after the relational load",
	RunE:  runRepair,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint progress for the configured scope",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("Starting extraction for %s / %s...\n", cfg.Category, cfg.TimePeriod)
	fmt.Println()

	p, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := p.Run(ctx)
	if result != nil {
		printResult(result)
	}
	if err != nil {
		return fmt.Errorf("run stopped: %w", err)
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runRepair(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	p, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := p.Repair(ctx); err != nil {
		return fmt.Errorf("repair failed: %w", err)
	}

	fmt.Println("Repair pass complete")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	cp, err := checkpoint.Load(cfg.CheckpointPath, cfg.Category, cfg.TimePeriod)
	if err != nil {
		return err
	}
	snapshot := cp.Snapshot()

	fmt.Printf("Scope: %s / %s\n", snapshot.Category, snapshot.TimePeriod)
	if snapshot.Cursor == "" {
		fmt.Println("Cursor: start of listing")
	} else {
		fmt.Println("Cursor: mid-crawl")
	}

	byStage := make(map[document.Stage]int)
	failed := 0
	for _, state := range snapshot.Documents {
		if state.Failed {
			failed++
			continue
		}
		byStage[state.Stage]++
	}

	fmt.Printf("Documents tracked: %d\n", len(snapshot.Documents))
	for _, stage := range []document.Stage{
		document.StageDiscovered, document.StageFetched, document.StageCleaned,
		document.StageEmbedded, document.StageSQLLoaded, document.StageComplete,
	} {
		if n := byStage[stage]; n > 0 {
			fmt.Printf("  %-11s %d\n", stage, n)
		}
	}
	if failed > 0 {
		fmt.Printf("  %-11s %d\n", "failed", failed)
	}

	stats := snapshot.Stats
	fmt.Println()
	fmt.Printf("Lifetime: %d discovered, %d completed, %d skipped, %d repaired, %d failed\n",
		stats.Discovered, stats.Completed, stats.Skipped, stats.Repaired, stats.Failed)

	if store, err := sqlite.Open(cfg.SQLitePath); err == nil {
		defer store.Close()
		if n, err := store.Count(context.Background()); err == nil {
			fmt.Printf("SQLite rows: %d\n", n)
		}
	}

	if vectorStore, err := qdrant.NewStore(cfg.QdrantHost, cfg.QdrantPort); err == nil {
		defer vectorStore.Close()
		if n, err := vectorStore.Count(context.Background()); err == nil {
			fmt.Printf("Qdrant points: %d\n", n)
		}
	}

	return nil
}

// buildPipeline wires every component for the configured scope. The
// returned cleanup closes them in reverse order.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.QdrantHost, cfg.QdrantPort)
	vectorStore, err := qdrant.NewStore(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	closers = append(closers, func() { vectorStore.Close() })

	if err := vectorStore.EnsureCollection(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	fmt.Println("Qdrant healthy")

	relational, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to open SQLite store: %w", err)
	}
	closers = append(closers, func() { relational.Close() })

	pageCache, err := cache.Open(cfg.CacheDir, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to open page cache: %w", err)
	}
	closers = append(closers, func() { pageCache.Close() })

	embedClient, err := embed.NewClient()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder := embed.NewEmbedder(embedClient, embed.NewChunker(0, 0), nil, 0)

	fetchClient := extract.NewClient(
		extract.DefaultFetchTimeout,
		time.Duration(cfg.MinFetchIntervalMs)*time.Millisecond,
		extract.DefaultMaxRetries,
	)
	source := extract.NewExtractor(fetchClient, pageCache, cfg.BaseURL, logger)

	cp, err := checkpoint.Load(cfg.CheckpointPath, cfg.Category, cfg.TimePeriod)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	p, err := pipeline.NewPipeline(source, embedder, relational, vectorStore, cp,
		cfg.Category, cfg.TimePeriod,
		pipeline.WithWorkers(cfg.ProcessWorkers),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, p.Release)

	return p, cleanup, nil
}

func printResult(result *pipeline.RunResult) {
	fmt.Println()
	fmt.Println("Run summary:")
	fmt.Printf("  Pages: %d\n", result.Pages)
	fmt.Printf("  Discovered: %d\n", result.Discovered)
	fmt.Printf("  Completed: %d\n", result.Completed)
	fmt.Printf("  Skipped: %d\n", result.Skipped)
	fmt.Printf("  Repaired: %d\n", result.Repaired)
	fmt.Printf("  Failed: %d\n", result.Failed)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.URL, failed.Reason)
		}
	}
}
