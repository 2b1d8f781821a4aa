package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"transit-planner/internal/config"
	"transit-planner/internal/db"
	"transit-planner/internal/gtfs"
	"transit-planner/internal/logging"
	"transit-planner/internal/metrics"
	"transit-planner/internal/planner"
	"transit-planner/internal/publisher"
	"transit-planner/internal/restapi"
	"transit-planner/internal/transit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, closeSrc, err := openSource(ctx, cfg, logger)
	if err != nil {
		logging.LogError(logger, "open network source", err)
		os.Exit(1)
	}
	defer closeSrc()

	var mcol *metrics.Collector
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.GraphRefreshInterval, cfg.SearchTimeout)
		metricsSrv = mcol.Serve(cfg.MetricsAddr, logger)
	}

	mcfg := planner.Config{
		Routing:         cfg.Routing,
		SearchTimeout:   cfg.SearchTimeout,
		RefreshInterval: cfg.GraphRefreshInterval,
		Location:        cfg.Location,
		Logger:          logger,
	}
	if mcol != nil {
		mcfg.Metrics = mcol
	}
	mgr := planner.NewManager(src, mcfg)

	if cfg.NATSURL != "" {
		var pm publisher.PublisherMetrics
		if mcol != nil {
			pm = mcol
		}
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.LogNATSSubjects, pm, logger)
		if err != nil {
			logging.LogError(logger, "nats connect", err, slog.String("url", cfg.NATSURL))
			os.Exit(1)
		}
		defer pub.Close()

		subject := publisher.EventSubject(cfg.NATSEventsSubject, cfg.City)
		mgr.OnBuild(func(s planner.Snapshot) {
			if err := pub.PublishGraphBuilt(subject, s); err != nil {
				logging.LogError(logger, "publish graph_built", err, slog.String("subject", subject))
			}
		})
		if _, err := pub.ServePlans(ctx, cfg.NATSPlanSubject, "planner", mgr); err != nil {
			logging.LogError(logger, "nats subscribe", err)
			os.Exit(1)
		}
	}

	// A failed warm-up is retried lazily by the first request.
	if _, err := mgr.Refresh(ctx); err != nil {
		logging.LogError(logger, "initial graph build failed", err, slog.String("source", src.String()))
	}
	mgr.StartRefresher(ctx)

	api := restapi.NewRestAPI(mgr, logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.SearchTimeout + 10*time.Second,
	}
	go func() {
		logger.Info("http listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.LogError(logger, "http server error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	mgr.Stop()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logger.Info("shutdown complete")
}

// openSource picks the network source: a GTFS zip (file or URL), a YAML
// network, or the imported GTFS database.
func openSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (planner.Source, func(), error) {
	nop := func() {}
	switch f := strings.ToLower(cfg.NetworkFile); {
	case strings.HasSuffix(f, ".zip"):
		return &gtfs.FileSource{Location: cfg.NetworkFile, Shapes: cfg.IncludeShapes, Logger: logger}, nop, nil
	case f != "":
		return transit.FileSource{Path: cfg.NetworkFile}, nop, nil
	}

	sqlDB, err := db.OpenForCity(ctx, cfg.DatabaseURL, cfg.City, logger)
	if err != nil {
		return nil, nop, err
	}
	repo := db.NewRepository(sqlDB, logger)
	repo.Shapes = cfg.IncludeShapes
	repo.SetClock(func() time.Time { return time.Now().In(cfg.Location) })
	return repo, func() { logging.SafeCloseWithLogging(sqlDB, logger, "close_db") }, nil
}
