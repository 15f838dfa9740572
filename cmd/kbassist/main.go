package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/netzinformatique/kbassist/internal/config"
	"github.com/netzinformatique/kbassist/internal/core"
	"github.com/netzinformatique/kbassist/internal/embed"
	"github.com/netzinformatique/kbassist/internal/index"
	"github.com/netzinformatique/kbassist/internal/ingest"
	"github.com/netzinformatique/kbassist/internal/llm"
	"github.com/netzinformatique/kbassist/internal/logger"
	"github.com/netzinformatique/kbassist/internal/pipeline"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	ingestDir := flag.String("ingest", "", "Ingest all supported files under this directory")
	query := flag.String("query", "", "Answer a single question against the knowledge base")
	reset := flag.Bool("reset", false, "Drop the collection before other actions (full rebuild)")
	flag.Parse()

	logger.Init(*debug)

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	if *ingestDir == "" && *query == "" && !*reset {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -ingest, -query or -reset")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	idx, err := newIndex(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize document index: %v", err)
		os.Exit(1)
	}
	defer idx.Close()

	embedder, err := embed.NewCachedEmbedder(
		embed.NewOllamaEmbedder(cfg.Embedder, cfg.Index.Dimension),
		cfg.Cache.Capacity,
	)
	if err != nil {
		logger.Error("Failed to initialize embedder: %v", err)
		os.Exit(1)
	}
	generator := llm.NewClient(cfg.Generator)

	if *reset {
		if err := idx.Reset(ctx); err != nil {
			logger.Error("Reset failed: %v", err)
			os.Exit(1)
		}
		logger.Info("Collection reset")
	}

	if err := idx.EnsureCollection(ctx); err != nil {
		logger.Error("Failed to ensure collection: %v", err)
		os.Exit(1)
	}

	if *ingestDir != "" {
		units, err := ingest.LoadDir(*ingestDir)
		if err != nil {
			logger.Error("Failed to load sources from %s: %v", *ingestDir, err)
			os.Exit(1)
		}
		summary := ingest.NewPipeline(embedder, idx, cfg.Ingest).Run(ctx, units)
		fmt.Printf("run %s: attempted=%d indexed=%d skipped=%d failed=%d\n",
			summary.RunID, summary.Attempted, summary.Indexed, summary.Skipped, summary.Failed)
		if summary.Failed > 0 && summary.Indexed == 0 {
			os.Exit(1)
		}
	}

	if *query != "" {
		qp := pipeline.New(embedder, idx, generator, cfg.Query)
		result, err := qp.Answer(ctx, *query)
		if err != nil {
			logger.Error("Query rejected: %v", err)
			os.Exit(1)
		}
		printResult(result)
	}
}

func newIndex(ctx context.Context, cfg *config.Config) (core.VectorIndex, error) {
	switch cfg.Index.Backend {
	case "memory":
		return index.NewMemory(cfg.Index.Dimension), nil
	case "milvus", "":
		return index.NewMilvus(ctx, cfg.Index)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

func printResult(result core.QueryResult) {
	fmt.Println(result.Response)
	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, hit := range result.Sources {
			path, _ := hit.Metadata["path"].(string)
			fmt.Printf("  %d. score=%.3f %s\n", i+1, hit.Score, path)
		}
	}
	if result.Degraded {
		fmt.Println("\n(answer produced in degraded mode)")
	}
}
