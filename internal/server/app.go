// Package server wires the blindauth components together and runs the gRPC
// auth API next to the HTTP ops server until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/blindauth/internal/logging"
	"github.com/dmitrijs2005/blindauth/internal/server/auth"
	"github.com/dmitrijs2005/blindauth/internal/server/config"
	"github.com/dmitrijs2005/blindauth/internal/server/limiter"
	"github.com/dmitrijs2005/blindauth/internal/server/metrics"
	"github.com/dmitrijs2005/blindauth/internal/server/notify"
	"github.com/dmitrijs2005/blindauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/blindauth/internal/server/services"
	"github.com/dmitrijs2005/blindauth/internal/server/web"
	"github.com/dmitrijs2005/blindauth/internal/telemetry"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/blindauth/internal/server/grpc"
)

const serviceName = "blindauth"

var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	repos    repomanager.RepositoryManager
	codec    *auth.TokenCodec
	auth     *services.AuthService
	metrics  *metrics.Prometheus
	shutdown telemetry.ShutdownFunc
	closers  []func()
}

// NewLogger returns the JSON logger for level ("debug", "info", "warn", "error").
func NewLogger(level string) (logging.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return logging.NewJSONLogger(os.Stdout, l), nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := NewLogger(c.LogLevel)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger, repos: repomanager.NewPostgresRepositoryManager()}

	app.shutdown, err = telemetry.Init(ctx, serviceName, c.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}

	app.db, err = openDB(c.DatabaseDSN)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, func() { _ = app.db.Close() })

	app.codec, err = auth.NewTokenCodec([]byte(c.SecretKey), c.Issuer, c.Audience, c.AccessTokenValidityDuration)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	dispatcher, err := app.newDispatcher(ctx)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("notifier init error: %w", err)
	}

	app.metrics = metrics.NewPrometheus()
	opts := []services.Option{
		services.WithLogger(logger),
		services.WithDispatcher(dispatcher),
		services.WithMetrics(app.metrics),
	}

	if c.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		app.closers = append(app.closers, func() { _ = client.Close() })
		opts = append(opts, services.WithLoginLimiter(limiter.NewRedisLimiter(client, c.LoginAttemptLimit, c.LoginAttemptWindow)))
		logger.Info(ctx, "login limiter enabled", "redis", c.RedisAddr, "limit", c.LoginAttemptLimit, "window", c.LoginAttemptWindow.String())
	}

	app.auth = services.NewAuthService(app.db, app.repos, app.codec, c, opts...)
	return app, nil
}

func (app *App) newDispatcher(ctx context.Context) (notify.Dispatcher, error) {
	c := app.config
	switch c.Notifier {
	case config.NotifierS3:
		return notify.NewS3Dispatcher(ctx, notify.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
	case config.NotifierNATS:
		d, err := notify.NewNATSDispatcher(c.NATSURL, c.NATSSubject)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, d.Close)
		return d, nil
	default:
		return notify.NewLogDispatcher(app.logger), nil
	}
}

// Close releases everything NewApp acquired, in reverse order.
func (app *App) Close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
	if app.shutdown != nil {
		if err := app.shutdown(ctx); err != nil {
			app.logger.Warn(ctx, "telemetry shutdown failed", "error", err)
		}
		app.shutdown = nil
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.auth, app.codec)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := web.Router(web.Options{
		Verifier: app.auth,
		Metrics:  app.metrics.Handler(),
		Ready:    app.db.PingContext,
		Logger:   app.logger,
	})
	s := web.NewServer(app.config.EndpointAddrHTTP, app.logger, h)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run migrates the schema and serves until a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close(context.Background())

	app.logger.Info(ctx, "Starting app...", "notifier", app.config.Notifier, "tracing", strings.TrimSpace(app.config.OTLPEndpoint) != "")

	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return nil
}
