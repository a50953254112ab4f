package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"docbridge/internal/compliance/catalog"
	"docbridge/internal/compliance/catalog/refresher"
	"docbridge/internal/compliance/catalog/source"
	"docbridge/internal/compliance/consumer"
	"docbridge/internal/compliance/evaluator"
	"docbridge/internal/compliance/handler"
	compliancemetrics "docbridge/internal/compliance/metrics"
	"docbridge/internal/compliance/publisher"
	"docbridge/internal/compliance/service"
	"docbridge/internal/compliance/store"
	"docbridge/internal/platform/config"
	"docbridge/internal/platform/httpserver"
	httpmetrics "docbridge/internal/platform/metrics"
	platformredis "docbridge/internal/platform/redis"
	"docbridge/pkg/platform/circuit"
	"docbridge/pkg/platform/middleware/auth"
	"docbridge/pkg/platform/middleware/ratelimit"
)

// app holds the long-running parts of the process.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	server    *http.Server
	refresher *refresher.Refresher
	limiter   *ratelimit.Limiter
	consumer  *consumer.GroupConsumer
	closers   []func() error
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	complianceMetrics := compliancemetrics.NewWithRegisterer(reg)

	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, db.Close)
	}

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		a.closers = append(a.closers, rdb.Close)
	}

	cat := catalog.New()
	src, err := catalogSource(ctx, cfg.Catalog, db, rdb, cat, log)
	if err != nil {
		return nil, err
	}
	a.refresher = refresher.New(cat, src, cfg.Catalog.RefreshInterval,
		refresher.WithLogger(log),
		refresher.WithMetrics(complianceMetrics),
	)
	// The refresher keeps retrying; until it succeeds validations fail with configuration_error.
	if _, err := a.refresher.RefreshNow(ctx); err != nil {
		log.Error("initial catalog load failed", "source", src.Name(), "error", err)
	}

	var reports service.ReportStore = store.NewInMemoryStore()
	if db != nil {
		reports = store.NewPostgres(db)
	}

	pub, err := reportPublisher(ctx, cfg.Kafka, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pub.Close)

	if cfg.Kafka.ConsumerGroup != "" {
		var ledger consumer.EventLedger = store.NewInMemoryEventLedger()
		if db != nil {
			ledger = store.NewPostgresEventLedger(db)
		}
		router := consumer.NewRouter(log)
		router.Register(cfg.Kafka.Topic, consumer.NewLedgerHandler(ledger, log))
		a.consumer, err = consumer.NewGroupConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, router, log)
		if err != nil {
			return nil, err
		}
	}

	ev, err := evaluator.New(cat)
	if err != nil {
		return nil, err
	}
	svc, err := service.New(ev, cat, reports,
		service.WithLogger(log),
		service.WithMetrics(complianceMetrics),
		service.WithPublisher(pub),
		service.WithBatchLimits(cfg.Validation.BatchConcurrency, cfg.Validation.MaxBatch),
	)
	if err != nil {
		return nil, err
	}

	validator, err := auth.NewHMACValidator(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	if err != nil {
		return nil, fmt.Errorf("jwt validator: %w", err)
	}
	var (
		revocation auth.TokenRevocationChecker
		adminOpts  []handler.AdminOption
	)
	if rdb != nil {
		list := auth.NewRedisRevocationList(rdb.Client)
		revocation = list
		adminOpts = append(adminOpts, handler.WithTokenRevoker(list))
	}

	a.limiter = ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	h := &health{refresher: a.refresher, catalog: cat}
	if db != nil {
		h.database = db.PingContext
	}
	if rdb != nil {
		h.redis = rdb.Health
	}

	routes := newRouter(routerDeps{
		logger:         log,
		registry:       reg,
		httpMetrics:    httpmetrics.NewWithRegisterer(reg),
		limiter:        a.limiter,
		validator:      validator,
		revocation:     revocation,
		adminToken:     cfg.Server.AdminToken,
		allowedOrigins: cfg.Server.AllowedOrigins,
		compliance:     handler.New(svc, log),
		admin:          handler.NewAdmin(a.refresher, log, adminOpts...),
		health:         h,
	})
	a.server = httpserver.New(cfg.Server.Addr, routes)

	ok = true
	return a, nil
}

// run blocks until ctx is cancelled or one of the workers fails.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(ctx, a.server, a.cfg.Server.ShutdownTimeout, a.logger)
	})
	g.Go(func() error {
		return ignoreCanceled(a.refresher.Run(ctx))
	})
	g.Go(func() error {
		return a.limiter.Run(ctx)
	})
	if a.consumer != nil {
		g.Go(func() error {
			return a.consumer.Run(ctx)
		})
	}
	return g.Wait()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown cleanup failed", "error", err)
		}
	}
	a.closers = nil
}

func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	if url == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, schema := range []string{source.RequirementsSchema, store.ReportsSchema, store.EventLedgerSchema} {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, nil
}

// catalogSource builds the configured source, cached in Redis when available.
// The built-in records back it only until cat has loaded once.
func catalogSource(ctx context.Context, cfg config.Catalog, db *sql.DB, rdb *platformredis.Client, cat *catalog.Catalog, log *slog.Logger) (source.Source, error) {
	var src source.Source
	switch cfg.Source {
	case "seed":
		return source.SeedSource(), nil
	case "file":
		src = source.NewFileSource(cfg.FilePath)
	case "postgres":
		if db == nil {
			return nil, errors.New("postgres catalog source needs DATABASE_URL")
		}
		src = source.NewPostgresSource(db)
	case "s3":
		s3src, err := source.NewS3Source(ctx, source.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKeyID,
			SecretKey: cfg.S3.SecretAccessKey,
			Bucket:    cfg.S3.Bucket,
			Key:       cfg.S3.Key,
		})
		if err != nil {
			return nil, err
		}
		src = s3src
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}

	if rdb != nil && cfg.CacheTTL > 0 {
		src = source.NewRedisCachedSource(src, rdb.Client, cfg.CacheTTL, source.WithCacheLogger(log))
	}
	if cfg.SeedFallback {
		src = source.NewFallbackSource(src, source.SeedSource(), circuit.New("catalog-source"),
			func() bool { return !cat.Loaded() }, log)
	}
	return src, nil
}

type closingPublisher interface {
	service.EventPublisher
	Close() error
}

func reportPublisher(ctx context.Context, cfg config.Kafka, log *slog.Logger) (closingPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return publisher.NopPublisher{}, nil
	}
	p, err := publisher.NewKafkaPublisher(cfg.Brokers,
		publisher.WithTopic(cfg.Topic),
		publisher.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	if err := p.EnsureTopic(ctx, cfg.Partitions, cfg.ReplicationFactor); err != nil {
		log.Warn("could not ensure report topic", "topic", cfg.Topic, "error", err)
	}
	return p, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
