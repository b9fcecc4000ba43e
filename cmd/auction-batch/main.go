package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/auctions-etl/internal/common"
	"github.com/joseph-ayodele/auctions-etl/internal/coordinator"
	"github.com/joseph-ayodele/auctions-etl/internal/dispatch"
	"github.com/joseph-ayodele/auctions-etl/internal/export"
	"github.com/joseph-ayodele/auctions-etl/internal/extract/openai"
	"github.com/joseph-ayodele/auctions-etl/internal/office"
	"github.com/joseph-ayodele/auctions-etl/internal/repository"
	"github.com/joseph-ayodele/auctions-etl/internal/results"
	"github.com/joseph-ayodele/auctions-etl/internal/segment"
	"github.com/joseph-ayodele/auctions-etl/internal/storage"
	"github.com/joseph-ayodele/auctions-etl/internal/worker"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		pdfs      = flag.String("pdf", "", "comma-separated bucket keys to process (e.g. unprocessed/a.pdf)")
		doExport  = flag.Bool("export", false, "export persisted auctions to XLSX")
		out       = flag.String("out", "auctions.xlsx", "output XLSX file path")
		resultsDB = flag.String("results", "auction-runs.db", "sqlite file recording run results")
		fromStr   = flag.String("from", "", "export from auction date YYYY-MM-DD")
		toStr     = flag.String("to", "", "export to auction date YYYY-MM-DD")
		listRuns  = flag.Bool("runs", false, "print recent recorded runs and exit")
	)
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	if *listRuns {
		store, err := results.Open(*resultsDB, logger)
		if err != nil {
			printError("Error: open results db: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		if err := store.Init(ctx); err != nil {
			printError("Error: init results db: %v\n", err)
			os.Exit(1)
		}
		runs, err := store.ListRuns(ctx, 20)
		if err != nil {
			printError("Error: list runs: %v\n", err)
			os.Exit(1)
		}
		for _, r := range runs {
			fmt.Printf("%s  %-8s listings=%d duplicates=%d batches=%d uploaded=%d errors=%d\n",
				r.StartedAt.Format(time.RFC3339), r.State,
				r.ListingsFound, r.DuplicatesSkipped, r.BatchesDispatched,
				r.RecordsUploaded, r.Errors)
		}
		return
	}

	if *pdfs == "" && !*doExport {
		printError("Error: -pdf or -export is required\n")
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		printError("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	pool, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		printError("Error: open database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	auctionsRepo := repository.NewAuctionsRepository(pool, logger)

	if *pdfs != "" {
		if err := runPipeline(ctx, cfg, auctionsRepo, splitKeys(*pdfs), *resultsDB, logger); err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *doExport {
		if err := runExport(ctx, auctionsRepo, *out, *fromStr, *toStr, logger); err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported auctions to %s\n", *out)
	}
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// runPipeline drives the coordinator inline and waits for every batch, then
// records the summary locally so repeated manual runs can be compared.
func runPipeline(ctx context.Context, cfg *common.Config, auctionsRepo repository.AuctionsRepository, keys []string, resultsPath string, logger *slog.Logger) error {
	objects, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("storage client: %w", err)
	}
	offices, err := office.Load(ctx, auctionsRepo,
		cfg.Pipeline.DefaultOfficeID, cfg.Pipeline.OfficeMatchThreshold, logger)
	if err != nil {
		return fmt.Errorf("office registry: %w", err)
	}

	extractor := openai.New(openai.Config{
		BaseURL:         cfg.LLM.BaseURL,
		APIKey:          cfg.LLM.APIKey,
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         cfg.LLM.Timeout,
		LenientOptional: true,
	}, logger)

	budget := worker.NewBudget(cfg.Pipeline.TokenBudget)
	runner := worker.New(extractor, auctionsRepo, offices, budget,
		cfg.Pipeline.ExtractMaxRetries, cfg.Pipeline.Enabled, logger)
	dispatcher := dispatch.New(runner, dispatch.NewStatusStore(), dispatch.Options{
		MaxConcurrent: cfg.Pipeline.MaxConcurrentBatches,
		BatchTimeout:  cfg.Pipeline.BatchTimeout,
	}, logger)
	defer dispatcher.Shutdown()

	// A manual run always waits; there is nobody to poll the status later.
	pcfg := cfg.Pipeline
	pcfg.WaitForCompletion = true

	segmenter := segment.NewSegmenter(pcfg.SkipPages, logger)
	coord := coordinator.New(objects, segmenter, auctionsRepo, dispatcher,
		budget, pcfg, cfg.Server.WebhookSecret, logger)

	summary, err := coord.Run(ctx, coordinator.Notification{
		Secret:   cfg.Server.WebhookSecret,
		PDFFiles: keys,
	})
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	store, err := results.Open(resultsPath, logger)
	if err != nil {
		return fmt.Errorf("open results db: %w", err)
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init results db: %w", err)
	}
	if err := store.RecordRun(ctx, summary); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	fmt.Printf("Run %s complete!\n", summary.RunID)
	fmt.Printf("- Listings found: %d\n", summary.ListingsFound)
	fmt.Printf("- Duplicates skipped: %d\n", summary.DuplicatesSkipped)
	fmt.Printf("- Batches dispatched: %d\n", summary.BatchesDispatched)
	fmt.Printf("- Records uploaded: %d\n", summary.RecordsUploaded)
	fmt.Printf("- Errors: %d\n", len(summary.Errors))
	return nil
}

func runExport(ctx context.Context, auctionsRepo repository.AuctionsRepository, out, fromStr, toStr string, logger *slog.Logger) error {
	var from, to *time.Time
	if fromStr != "" {
		parsed, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return fmt.Errorf("invalid -from date, use YYYY-MM-DD: %w", err)
		}
		from = &parsed
	}
	if toStr != "" {
		parsed, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return fmt.Errorf("invalid -to date, use YYYY-MM-DD: %w", err)
		}
		to = &parsed
	}

	svc := export.NewService(auctionsRepo, logger)
	xlsxBytes, err := svc.ExportAuctionsXLSX(ctx, from, to)
	if err != nil {
		return fmt.Errorf("export auctions: %w", err)
	}
	return os.WriteFile(out, xlsxBytes, 0644)
}
