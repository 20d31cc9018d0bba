package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"IPOTracker/internal/collector"
	"IPOTracker/internal/config"
	"IPOTracker/internal/heatmap"
	"IPOTracker/internal/model"
	"IPOTracker/internal/recorder"
	"IPOTracker/internal/report"
	"IPOTracker/internal/scheduler"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("tracker stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func newLogger(level string, development bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc.Level = lvl
	return zc.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("IPO tracker starting", zap.String("provider", cfg.DataSource.PriceProvider))

	calendar, prices, err := newSources(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("data sources ready", zap.String("calendar", calendar.Name()), zap.String("prices", prices.Name()))

	screener := collector.Screener{
		Exchanges:  cfg.Tracker.Exchanges,
		MinBars:    cfg.Tracker.MinBars,
		PennyFloor: cfg.Tracker.PennyFloor,
	}
	col := collector.NewCollector(calendar, prices, screener, logger)

	palette, err := cfg.Palette()
	if err != nil {
		return err
	}

	sink, err := newSink(cfg, logger)
	if err != nil {
		return err
	}

	rec := newRecorder(cfg, logger)
	defer rec.Close()

	sched := scheduler.NewScheduler(col, heatmap.NewNormalizer(palette), sink, rec, logger)
	sched.Interval = cfg.Tracker.Interval
	sched.LookbackDays = cfg.Tracker.LookbackDays

	if cfg.HousekeepingEnabled() {
		targets := []scheduler.PruneTarget{
			{Dir: cfg.Paths.CacheDir, Prefix: collector.CacheFilePrefix},
			{Dir: cfg.Paths.ResultsDir, Prefix: report.FilePrefix},
		}
		if err := sched.RegisterHousekeeping(cfg.Housekeeping.Cron, targets, cfg.Retention()); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("shutdown signal received, stopping", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	return sched.Run(ctx)
}

func newSources(cfg *config.Config, logger *zap.Logger) (collector.CalendarSource, collector.PriceSource, error) {
	ds := cfg.DataSource
	if ds.PriceProvider == "mock" {
		m := &collector.MockSource{BasePrice: 25, Calendar: demoListings(time.Now())}
		return m, m, nil
	}

	fmp := collector.NewFMPClient(ds.CalendarURL, ds.APIKey, cfg.Proxy, cfg.Tracker.RequestTimeout, logger)
	calendar, err := collector.NewCachedCalendar(fmp, cfg.Paths.CacheDir, logger)
	if err != nil {
		return nil, nil, err
	}

	var prices collector.PriceSource
	switch ds.PriceProvider {
	case "yahoo":
		prices = collector.NewYahooSource(cfg.Proxy, cfg.Tracker.RequestTimeout, logger)
	case "alpaca":
		prices = collector.NewAlpacaSource(ds.AlpacaKey, ds.AlpacaSecret, "", ds.AlpacaFeed, cfg.Proxy, cfg.Tracker.RequestTimeout, logger)
	default:
		prices = fmp
	}
	return calendar, prices, nil
}

func demoListings(now time.Time) []model.Listing {
	return []model.Listing{
		{Symbol: "MOCKA", Company: "Mock Analytics Inc", Date: now.AddDate(0, 0, -3), Exchange: "Nasdaq"},
		{Symbol: "MOCKB", Company: "Mock Biotech Corp", Date: now.AddDate(0, 0, -9), Exchange: "Nasdaq"},
		{Symbol: "MOCKC", Company: "Mock Cloud Ltd", Date: now.AddDate(0, 0, -21), Exchange: "Nasdaq"},
	}
}

func newSink(cfg *config.Config, logger *zap.Logger) (report.Sink, error) {
	html, err := report.NewHTMLSink(cfg.Paths.ResultsDir, cfg.Report.RefreshSeconds, cfg.Report.QuoteURL, logger)
	if err != nil {
		return nil, err
	}
	sinks := report.MultiSink{html}
	if cfg.Report.JSONSnapshot {
		js, err := report.NewJSONSink(cfg.Paths.ResultsDir, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, js)
	}
	if cfg.Report.Console {
		sinks = append(sinks, &report.ConsoleSink{Out: os.Stdout})
	}
	if len(sinks) == 1 {
		return html, nil
	}
	return sinks, nil
}

func newRecorder(cfg *config.Config, logger *zap.Logger) recorder.Recorder {
	var recs recorder.MultiRecorder
	if path := cfg.Database.SQLitePath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			logger.Warn("create sqlite dir failed", zap.Error(err))
		}
		sr, err := recorder.NewSQLiteRecorder(path, logger)
		if err != nil {
			logger.Warn("init sqlite recorder failed, skipping", zap.Error(err))
		} else {
			recs = append(recs, sr)
		}
	}
	if addr := cfg.Database.InfluxAddr; addr != "" {
		ir, err := recorder.NewInfluxRecorder(recorder.InfluxConfig{
			Addr:     addr,
			Database: cfg.Database.InfluxDB,
			Username: cfg.Database.InfluxUser,
			Password: cfg.Database.InfluxPassword,
		}, logger)
		if err != nil {
			logger.Warn("init influx recorder failed, skipping", zap.Error(err))
		} else {
			recs = append(recs, ir)
		}
	}
	switch len(recs) {
	case 0:
		return recorder.NewNoopRecorder()
	case 1:
		return recs[0]
	default:
		return recs
	}
}
