// Package app builds the service graph from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"educa/api"
	"educa/internal/audit"
	authhandler "educa/internal/auth/handler"
	authmetrics "educa/internal/auth/metrics"
	authservice "educa/internal/auth/service"
	"educa/internal/auth/store/account"
	"educa/internal/auth/store/permission"
	"educa/internal/auth/store/revocation"
	enrollmenthandler "educa/internal/enrollment/handler"
	enrollmentmetrics "educa/internal/enrollment/metrics"
	enrollmentservice "educa/internal/enrollment/service"
	enrollmentstore "educa/internal/enrollment/store"
	jwttoken "educa/internal/jwt_token"
	"educa/internal/notification"
	"educa/internal/platform/config"
	"educa/internal/platform/httpserver"
	"educa/internal/platform/kafka"
	"educa/internal/platform/metrics"
	"educa/internal/platform/postgres"
	"educa/internal/platform/redis"
	"educa/internal/provisioning"
	"educa/internal/storage/blob"
)

const (
	auditQueueSize      = 1024
	revocationPurgeTick = 15 * time.Minute
)

// App is the assembled service.
type App struct {
	Handler      http.Handler
	Auth         *authservice.Service
	Enrollments  *enrollmentservice.Service
	Provisioning *provisioning.Service

	cfg        config.Config
	logger     *slog.Logger
	background []func(ctx context.Context) error
	closers    []func()
}

type options struct {
	notifier notification.Notifier
	blobs    blob.Store
	registry *prometheus.Registry
	inMemory bool
}

type Option func(*options)

// WithNotifier replaces the configured notification channel.
func WithNotifier(n notification.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithBlobStore replaces the filesystem document store.
func WithBlobStore(b blob.Store) Option {
	return func(o *options) {
		o.blobs = b
	}
}

func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithInMemoryStores ignores the database, Redis and Kafka settings.
func WithInMemoryStores() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

type backends struct {
	pool  *pgxpool.Pool
	db    *sql.DB
	redis *redis.Client
	kafka *kafka.Producer
}

// New connects the configured backends and wires every module. Without a
// database URL the in-memory stores are used.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	a := &App{cfg: cfg, logger: logger}
	b, err := a.connect(ctx, cfg, o.inMemory)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher := a.auditPublisher(b)
	trl := a.revocationList(b, o.registry)

	var (
		accounts    authservice.AccountStore
		permissions authservice.PermissionStore
		authTx      authservice.AuthStoreTx
		enrollments enrollmentstore.TxStore
	)
	if b.pool != nil {
		accounts = account.NewPostgres(b.db)
		permissions = permission.NewPostgres(b.db)
		authTx = newAuthPostgresTx(b.db)
		enrollments = enrollmentstore.NewPostgres(b.pool)
	} else {
		memAccounts, memPermissions := account.NewInMemory(), permission.NewInMemory()
		accounts, permissions = memAccounts, memPermissions
		authTx = authservice.NewMutexTx(memAccounts, memPermissions)
		enrollments = enrollmentstore.NewInMemory()
	}

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer)
	authSvc, err := authservice.New(accounts, permissions, tokens,
		authservice.WithLogger(logger),
		authservice.WithAuditPublisher(publisher),
		authservice.WithMetrics(authmetrics.New(o.registry)),
		authservice.WithTx(authTx),
		authservice.WithRevocationList(trl),
		authservice.WithTokenTTLs(cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build auth service: %w", err)
	}

	notifier := o.notifier
	if notifier == nil {
		notifier = newNotifier(cfg.Notification, logger)
	}
	prov := provisioning.New(authSvc, notifier, cfg.Notification.SystemURL,
		provisioning.WithLogger(logger),
		provisioning.WithAuditPublisher(publisher),
		provisioning.WithMetrics(provisioning.NewMetrics(o.registry)),
	)

	blobs := o.blobs
	if blobs == nil {
		fs, err := blob.NewFileSystem(cfg.Storage.Dir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open document storage: %w", err)
		}
		blobs = fs
	}
	enrollmentSvc := enrollmentservice.New(enrollments, blobs,
		enrollmentservice.WithLogger(logger),
		enrollmentservice.WithAuditPublisher(publisher),
		enrollmentservice.WithMetrics(enrollmentmetrics.New(o.registry)),
		enrollmentservice.WithProvisioner(prov),
	)

	a.Auth, a.Enrollments, a.Provisioning = authSvc, enrollmentSvc, prov
	a.Handler = NewRouter(RouterDeps{
		Logger:         logger,
		Gatherer:       o.registry,
		HTTPMetrics:    metrics.NewHTTP(o.registry),
		RequestTimeout: cfg.Server.RequestTimeout,
		Auth:           authhandler.New(authSvc, logger),
		Enrollment:     enrollmenthandler.New(enrollmentSvc, logger, cfg.Server.MaxUploadBytes),
		Validator:      jwttoken.NewJWTServiceAdapter(tokens),
		Revocations:    trl,
		Checks:         readinessChecks(b),
		OpenAPI:        api.OpenAPI,
	})
	return a, nil
}

func (a *App) connect(ctx context.Context, cfg config.Config, inMemory bool) (backends, error) {
	var b backends
	if inMemory {
		return b, nil
	}

	if cfg.Database.URL != "" {
		pool, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			return b, err
		}
		a.closers = append(a.closers, pool.Close)
		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(pool).Migrate(ctx); err != nil {
				return b, fmt.Errorf("migrate: %w", err)
			}
		}
		b.pool = pool
		b.db = postgres.SQLDB(pool)
		a.closers = append(a.closers, func() { _ = b.db.Close() })
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return b, err
	}
	if client != nil {
		b.redis = client
		a.closers = append(a.closers, func() { _ = client.Close() })
	}

	producer, err := kafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		return b, err
	}
	if producer != nil {
		b.kafka = producer
		a.closers = append(a.closers, producer.Close)
		if err := producer.EnsureTopic(ctx, cfg.Kafka.AuditTopic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			return b, err
		}
	}
	return b, nil
}

// auditPublisher logs every event and, with Kafka configured, queues it for
// the background worker that publishes to the audit topic.
func (a *App) auditPublisher(b backends) *audit.Publisher {
	sinks := []audit.Sink{audit.NewLogSink(a.logger)}
	if b.kafka != nil {
		queue := audit.NewAsyncSink(auditQueueSize, a.logger)
		worker := audit.NewWorker(audit.NewKafkaSink(b.kafka, a.cfg.Kafka.AuditTopic), queue, a.logger)
		sinks = append(sinks, queue)
		a.background = append(a.background, worker.Run)
	}
	return audit.NewPublisher(a.logger, sinks...)
}

func (a *App) revocationList(b backends, reg prometheus.Registerer) revocation.List {
	switch {
	case b.redis != nil:
		return revocation.NewRedisTRL(b.redis.Client, revocation.WithRedisMetrics(revocation.NewMetrics(reg)))
	case b.db != nil:
		trl := revocation.NewPostgresTRL(b.db)
		a.background = append(a.background, func(ctx context.Context) error {
			return purgeRevocations(ctx, trl, a.logger)
		})
		return trl
	default:
		return revocation.NewInMemoryTRL(nil)
	}
}

func purgeRevocations(ctx context.Context, trl *revocation.PostgresTRL, logger *slog.Logger) error {
	ticker := time.NewTicker(revocationPurgeTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := trl.PurgeExpired(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "failed to purge expired revocations", "error", err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "purged expired revocations", "count", n)
			}
		}
	}
}

func newNotifier(cfg config.NotificationConfig, logger *slog.Logger) notification.Notifier {
	if cfg.GatewayURL == "" {
		return notification.NewLogNotifier(logger)
	}
	return notification.NewWhatsAppClient(notification.WhatsAppConfig{
		BaseURL:    cfg.GatewayURL,
		Token:      cfg.Token,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	}, logger)
}

func readinessChecks(b backends) []Check {
	var checks []Check
	if b.pool != nil {
		checks = append(checks, Check{Name: "postgres", Fn: b.pool.Ping})
	}
	if b.redis != nil {
		checks = append(checks, Check{Name: "redis", Fn: b.redis.Health})
	}
	if b.kafka != nil {
		checks = append(checks, Check{Name: "kafka", Fn: b.kafka.Health})
	}
	return checks
}

// Run serves HTTP and the background workers until ctx is cancelled or a
// shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	workCtx, stopWork := context.WithCancel(ctx)
	defer stopWork()

	for _, run := range a.background {
		g.Go(func() error {
			if err := run(workCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		defer stopWork()
		srv := httpserver.New(a.cfg.Server, a.Handler)
		return httpserver.Run(ctx, srv, a.cfg.Server.ShutdownTimeout, a.logger)
	})
	return g.Wait()
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
