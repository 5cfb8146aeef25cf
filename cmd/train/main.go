package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"StockSense/internal/di"
	"StockSense/internal/domain/models"
	"StockSense/internal/domain/repository"
	"StockSense/internal/usecase"
	"StockSense/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	period := flag.String("period", "", "history to train on (6mo, 1y, 2y, 5y, max)")
	epochs := flag.Int("epochs", 0, "override training epochs")
	market := flag.String("market", "", "train a single market")
	importBars := flag.Bool("import", false, "copy data.parquet into ClickHouse and exit")
	top := flag.Int("top", 10, "models listed per market")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *importBars {
		os.Exit(runImport(ctx, cfg))
	}
	os.Exit(runTraining(ctx, cfg, *period, *epochs, *market, *top))
}

func runImport(ctx context.Context, cfg *config.Config) int {
	importer, cleanup, err := di.InitializeImporter(cfg)
	if err != nil {
		log.Printf("importer initialization failed: %v", err)
		return 1
	}
	defer cleanup()

	res, err := importer.Import(ctx, cfg.Data.Parquet.Market)
	if err != nil {
		log.Printf("import failed: %v", err)
		return 1
	}
	fmt.Printf("imported %d bars for %d symbols into %s", res.Bars, res.Symbols, res.Market)
	if len(res.Skipped) > 0 {
		fmt.Printf(" (skipped %d)", len(res.Skipped))
	}
	fmt.Println()
	return 0
}

func runTraining(ctx context.Context, cfg *config.Config, period string, epochs int, market string, top int) int {
	pipeline, cleanup, err := di.InitializePipeline(cfg)
	if err != nil {
		log.Printf("pipeline initialization failed: %v", err)
		return 1
	}
	defer cleanup()

	p := repository.Period(cfg.Pipeline.Period)
	if period != "" {
		p = repository.NormalizePeriod(period)
	}

	if market != "" {
		s, err := pipeline.RunMarket(ctx, usecase.MarketRunParams{Market: market, Period: p, Epochs: epochs})
		if s != nil {
			fmt.Print(usecase.FormatSummary(s, top))
		}
		if err != nil {
			log.Printf("training failed: %v", err)
			return 1
		}
		return 0
	}

	report, err := pipeline.RunFull(ctx, p, epochs)
	printReport(report, top)
	if err != nil || !report.Success {
		if err != nil {
			log.Printf("training failed: %v", err)
		} else {
			log.Printf("training finished with errors: %s", report.Error)
		}
		return 1
	}
	return 0
}

func printReport(r *models.FullReport, top int) {
	if r == nil {
		return
	}
	markets := make([]string, 0, len(r.Summaries))
	for m := range r.Summaries {
		markets = append(markets, m)
	}
	sort.Strings(markets)
	for _, m := range markets {
		fmt.Print(usecase.FormatSummary(r.Summaries[m], top))
		fmt.Println()
	}
	fmt.Printf("total models trained: %d\n", r.TotalModels)
}
