package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"dca-backtest-lab/internal/config"
	"dca-backtest-lab/internal/reporting"
	pgstore "dca-backtest-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	postgresDSN := flag.String("postgres-dsn", os.Getenv(config.EnvPostgresDSN), "PostgreSQL connection string")
	runID := flag.String("run-id", "", "Run ID to render")
	symbol := flag.String("symbol", "", "Render the most recent run for this symbol (when --run-id is empty)")
	format := flag.String("format", "markdown", "Output format: markdown, csv, json")
	output := flag.String("output", "", "Write to this file instead of stdout")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	// Validate flags
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn (or POSTGRES_DSN) is required")
	}
	if *runID == "" && *symbol == "" {
		logger.Fatal("one of --run-id or --symbol is required")
	}

	req := request{runID: *runID, symbol: *symbol, format: *format, output: *output}
	if err := run(context.Background(), *postgresDSN, req, logger); err != nil {
		logger.Error("report failed", zap.String("run_id", *runID), zap.String("symbol", *symbol), zap.Error(err))
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
	logger.Sync() //nolint:errcheck
}

type request struct {
	runID  string
	symbol string
	format string
	output string
}

// run loads and renders one report. The pool is closed before it returns.
func run(ctx context.Context, dsn string, req request, logger *zap.Logger) error {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	gen := reporting.NewGenerator(pgstore.NewRunStore(pool), pgstore.NewTransactionStore(pool))

	var report *reporting.Report
	if req.runID != "" {
		report, err = gen.Generate(ctx, req.runID)
	} else {
		report, err = gen.Latest(ctx, req.symbol)
	}
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}

	body, err := render(report, req.format)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if req.output == "" {
		fmt.Print(body)
		return nil
	}
	if dir := filepath.Dir(req.output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(req.output, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Info("report written",
		zap.String("run_id", report.Run.RunID),
		zap.String("format", req.format),
		zap.String("path", req.output),
	)
	return nil
}

func render(r *reporting.Report, format string) (string, error) {
	switch format {
	case "markdown", "md":
		return reporting.RenderMarkdown(r), nil
	case "csv":
		return reporting.RenderCSV(r.Transactions), nil
	case "json":
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b) + "\n", nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
