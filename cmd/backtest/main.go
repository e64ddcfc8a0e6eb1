package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dca-backtest-lab/internal/adaptive"
	"dca-backtest-lab/internal/adaptive/remote"
	"dca-backtest-lab/internal/config"
	"dca-backtest-lab/internal/observability"
	"dca-backtest-lab/internal/reporting"
	"dca-backtest-lab/internal/simulation"
	"dca-backtest-lab/internal/storage"
	chstore "dca-backtest-lab/internal/storage/clickhouse"
	"dca-backtest-lab/internal/storage/memory"
	"dca-backtest-lab/internal/storage/migrations"
	pgstore "dca-backtest-lab/internal/storage/postgres"
	"dca-backtest-lab/internal/storage/rediscache"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "backtest.yaml", "Path to the YAML backtest definition")
	symbol := flag.String("symbol", "", "Symbol override")
	inputCSV := flag.String("input", "", "Price CSV override (date, adjusted_close, optional indicators)")
	startDate := flag.String("start", "", "Start date override (YYYY-MM-DD)")
	endDate := flag.String("end", "", "End date override (YYYY-MM-DD)")
	useMemory := flag.Bool("use-memory", false, "Ignore configured databases and run fully in memory")

	// Output
	outputJSON := flag.Bool("json", false, "Print the result as JSON instead of Markdown")
	csvPath := flag.String("csv", "", "Write the transaction ledger as CSV to this path")
	metricsFile := flag.String("metrics-file", "", "Write Prometheus metrics in textfile format to this path")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *symbol != "" {
		cfg.Strategy.Symbol = *symbol
	}
	if *inputCSV != "" {
		cfg.Backtest.InputCSV = *inputCSV
	}
	if *startDate != "" {
		cfg.Backtest.StartDate = *startDate
	}
	if *endDate != "" {
		cfg.Backtest.EndDate = *endDate
	}
	if *metricsFile != "" {
		cfg.Metrics.TextFile = *metricsFile
	}
	if *useMemory {
		cfg.Storage.PostgresDSN = ""
		cfg.Storage.ClickhouseDSN = ""
		cfg.Storage.RedisURL = ""
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	// run owns every deferred close; exit only after it has returned
	if err := run(cfg, output{json: *outputJSON, csvPath: *csvPath}, logger); err != nil {
		logger.Error("backtest failed", zap.Error(err))
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
	logger.Sync() //nolint:errcheck
}

type output struct {
	json    bool
	csvPath string
}

func run(cfg *config.Config, out output, logger *zap.Logger) error {
	from, to, err := cfg.DateRange()
	if err != nil {
		return fmt.Errorf("date range: %w", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(cfg.Metrics.Namespace, registry)

	// Create stores
	stores, err := openStores(ctx, cfg, metrics, logger)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer stores.close()

	if cfg.Backtest.InputCSV != "" {
		if err := seedPrices(ctx, stores.prices, cfg.Backtest.InputCSV, cfg.Strategy.Symbol, logger); err != nil {
			return fmt.Errorf("load prices: %w", err)
		}
	}

	// Classifier: remote when configured, rules otherwise
	var classifier adaptive.ScenarioClassifier
	if cfg.Strategy.EnableAdaptiveStrategy && cfg.Classifier.WebSocketURL != "" {
		rc := remote.DefaultConfig()
		rc.ReadTimeout = cfg.Classifier.Timeout
		client, err := remote.Dial(ctx, cfg.Classifier.WebSocketURL, &rc, logger.Named("classifier"))
		if err != nil {
			return fmt.Errorf("connect classifier: %w", err)
		}
		defer client.Close()
		classifier = client
	}

	runner := simulation.NewRunner(simulation.RunnerOptions{
		PriceStore:       stores.prices,
		RunStore:         stores.runs,
		TransactionStore: stores.txs,
		Classifier:       classifier,
		Logger:           logger,
		Metrics:          metrics,
	})

	res, runErr := runner.Run(ctx, cfg.Strategy, from, to)

	if cfg.Metrics.TextFile != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics.TextFile, registry); err != nil {
			logger.Error("write metrics", zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	report := reporting.FromResult(res, time.Now().UTC())

	if out.csvPath != "" {
		if err := os.WriteFile(out.csvPath, []byte(reporting.RenderCSV(report.Transactions)), 0o644); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		logger.Info("transactions written", zap.String("path", out.csvPath))
	}

	if out.json {
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Println(string(encoded))
		return nil
	}
	fmt.Print(reporting.RenderMarkdown(report))
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

type storeSet struct {
	prices  storage.PriceSeriesStore
	runs    storage.RunStore
	txs     storage.TransactionStore
	closers []func()
}

func (s *storeSet) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores wires ClickHouse (optionally behind Redis) for prices and
// Postgres for runs, falling back to memory for whatever is not configured.
func openStores(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (*storeSet, error) {
	s := &storeSet{
		prices: memory.NewPriceSeriesStore(),
		runs:   memory.NewRunStore(),
		txs:    memory.NewTransactionStore(),
	}

	if dsn := cfg.Storage.ClickhouseDSN; dsn != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { conn.Close() })

		var prices storage.PriceSeriesStore = &storage.InstrumentedPriceSeriesStore{
			Store:    chstore.NewPriceSeriesStore(conn),
			Database: "clickhouse",
			Observer: metrics,
		}

		if url := cfg.Storage.RedisURL; url != "" {
			opts, err := redis.ParseURL(url)
			if err != nil {
				s.close()
				return nil, fmt.Errorf("redis url: %w", err)
			}
			rdb := redis.NewClient(opts)
			if err := rdb.Ping(ctx).Err(); err != nil {
				rdb.Close()
				s.close()
				return nil, fmt.Errorf("redis ping: %w", err)
			}
			s.closers = append(s.closers, func() { rdb.Close() })
			prices = rediscache.NewPriceSeriesStore(prices, rdb, cfg.Storage.CacheTTL, metrics)
		}
		s.prices = prices
		logger.Info("price store", zap.String("backend", "clickhouse"), zap.Bool("redis_cache", cfg.Storage.RedisURL != ""))
	}

	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			s.close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}

		s.runs = &storage.InstrumentedRunStore{Store: pgstore.NewRunStore(pool), Database: "postgres", Observer: metrics}
		s.txs = &storage.InstrumentedTransactionStore{Store: pgstore.NewTransactionStore(pool), Database: "postgres", Observer: metrics}
		logger.Info("run store", zap.String("backend", "postgres"))
	}

	return s, nil
}

// seedPrices loads the CSV into the price store. Rows already stored are
// left untouched.
func seedPrices(ctx context.Context, store storage.PriceSeriesStore, path, symbol string, logger *zap.Logger) error {
	points, err := loadPricesCSV(path, symbol)
	if err != nil {
		return err
	}
	err = store.InsertBulk(ctx, points)
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		logger.Info("prices already stored", zap.String("symbol", symbol), zap.Int("rows", len(points)))
		return nil
	case err != nil:
		return fmt.Errorf("insert prices: %w", err)
	}
	logger.Info("prices loaded", zap.String("symbol", symbol), zap.Int("rows", len(points)), zap.String("path", path))
	return nil
}
