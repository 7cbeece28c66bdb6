// main wires storage, the screening index, background workers, and the HTTP
// router. Business logic lives in the internal service packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"chainscreen/internal/audit"
	"chainscreen/internal/cases"
	"chainscreen/internal/cases/cleared"
	caseshandler "chainscreen/internal/cases/handler"
	casesmetrics "chainscreen/internal/cases/metrics"
	httpapi "chainscreen/internal/http"
	"chainscreen/internal/index"
	indexmetrics "chainscreen/internal/index/metrics"
	"chainscreen/internal/ingest"
	"chainscreen/internal/list"
	listhandler "chainscreen/internal/list/handler"
	listmetrics "chainscreen/internal/list/metrics"
	"chainscreen/internal/list/parser"
	"chainscreen/internal/platform/config"
	"chainscreen/internal/platform/httpserver"
	"chainscreen/internal/platform/middleware"
	"chainscreen/internal/platform/postgres"
	platformredis "chainscreen/internal/platform/redis"
	"chainscreen/internal/screening"
	screeninghandler "chainscreen/internal/screening/handler"
	screeningmetrics "chainscreen/internal/screening/metrics"
)

func main() {
	cfg := config.FromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PostgresDSN == "" {
		return errors.New("CHAINSCREEN_POSTGRES_DSN is required")
	}
	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit outbox lives in the same database as the state it describes.
	auditStore := audit.NewPostgres(db)
	recorder := audit.NewPublisher(auditStore, logger)

	listStore := list.NewPostgres(db)
	snapshot := index.NewSnapshot()
	rebuilder := index.NewRebuilder(listStore, snapshot, logger, indexmetrics.New())
	lists := list.NewService(listStore, rebuilder, list.DefaultSmokeSets(), recorder, logger, listmetrics.New())

	// Publish whatever is already active before accepting traffic.
	if err := rebuilder.Rebuild(ctx); err != nil {
		return err
	}

	var registry cleared.Registry = cleared.NewInMemory()
	if redisClient != nil {
		registry = cleared.NewRedis(redisClient.Client)
	}
	caseService := cases.NewService(cases.NewPostgres(db), registry, recorder, logger, casesmetrics.New())

	var oracle screening.RiskOracle
	if cfg.OracleURL != "" {
		oracle = screening.NewHTTPOracle(cfg.OracleURL, os.Getenv("CHAINSCREEN_ORACLE_API_KEY"))
		if redisClient != nil {
			oracle = screening.NewCachedOracle(oracle, redisClient.Client, 15*time.Minute, logger)
		}
		oracle = screening.NewTimeoutOracle(oracle, cfg.OracleTimeout, logger)
	}
	screener := screening.NewService(snapshot, screening.NewPostgres(db), oracle, caseService, registry, recorder, logger, screeningmetrics.New())

	router := httpapi.NewRouter(httpapi.Deps{
		Screening: screeninghandler.New(screener, logger),
		Cases:     caseshandler.New(caseService, logger),
		Lists:     listhandler.New(lists, feedParsers(), logger),
		Validator: middleware.NewHMACValidator(cfg.JWTSigningKey),
		Logger:    logger,
	})
	srv := httpserver.New(cfg.Addr, router)

	var wg sync.WaitGroup

	scheduler := ingest.NewScheduler(ingest.DefaultFeeds(), ingest.NewHTTPRetriever(2*time.Minute), lists, cfg.IngestInterval, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweepSLA(ctx, caseService, cfg.SLASweep, logger)
	}()

	if len(cfg.KafkaBrokers) > 0 {
		kafkaClient, err := audit.NewKafkaClient(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()
		if err := audit.EnsureTopic(ctx, kafkaClient, cfg.AuditTopic, 6); err != nil {
			return err
		}
		shipper := audit.NewShipper(auditStore, kafkaClient, cfg.AuditTopic, cfg.ShipInterval, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			shipper.Run(ctx)
		}()
	} else {
		logger.Warn("no kafka brokers configured; audit events stay in the outbox")
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting chainscreen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}

func feedParsers() map[list.Source]parser.Parser {
	parsers := make(map[list.Source]parser.Parser)
	for _, feed := range ingest.DefaultFeeds() {
		parsers[feed.Source] = feed.Parser
	}
	return parsers
}

// sweepSLA reports overdue cases on an interval. Breaches are observed and
// audited, never auto-transitioned.
func sweepSLA(ctx context.Context, svc *cases.Service, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.SweepSLA(ctx); err != nil {
				logger.ErrorContext(ctx, "sla sweep failed", "error", err)
			}
		}
	}
}
