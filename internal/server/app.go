// Package server wires configuration, storage, notifiers and the auth
// service together and runs the HTTP API, the gRPC health endpoint and the
// token sweeper until the process is signalled.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/credkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/credkeeper/internal/server/notify"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/credkeeper/internal/server/grpc"
)

const (
	memoryDSNPrefix = "memory://"

	dbWaitBase     = 500 * time.Millisecond
	dbWaitAttempts = 8
	healthInterval = 10 * time.Second
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics
	auth    *services.AuthService
	codec   *auth.TokenCodec
	sweeper *services.Sweeper
	db      gs.Pinger
	closers []io.Closer
}

// alwaysUp is the health probe target of the in-memory store.
type alwaysUp struct{}

func (alwaysUp) PingContext(context.Context) error { return nil }

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{config: c, logger: logger, metrics: metrics.New()}

	tx, repos, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	notifier, err := app.newNotifier(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	codec, err := auth.NewTokenCodec(auth.TokenCodecConfig{
		AccessSecret:  []byte(c.AccessTokenSecret),
		RefreshSecret: []byte(c.RefreshTokenSecret),
		Issuer:        c.TokenIssuer,
		AccessTTL:     c.AccessTokenValidityDuration,
		RefreshTTL:    c.RefreshTokenValidityDuration,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("token codec: %w", err)
	}
	app.codec = codec

	app.auth = services.NewAuthService(tx, repos, auth.NewBcryptHasher(c.BcryptCost), codec, notifier, logger,
		services.AuthConfig{
			PasswordResetTTL: c.PasswordResetTokenValidityDuration,
			EmailVerifyTTL:   c.EmailVerifyTokenValidityDuration,
		},
		services.WithOutcomeRecorder(app.metrics),
	)
	app.sweeper = services.NewSweeper(tx, repos, c.SweepInterval, logger, app.metrics)

	return app, nil
}

// openStore picks the in-memory store for memory:// DSNs and PostgreSQL
// otherwise. PostgreSQL is waited for and migrated before use.
func (app *App) openStore(ctx context.Context) (dbx.Transactor, repomanager.RepositoryManager, error) {
	if strings.HasPrefix(app.config.DatabaseDSN, memoryDSNPrefix) {
		app.logger.Warn(ctx, "using in-memory store, data is lost on exit")
		store := memory.New()
		app.db = alwaysUp{}
		return store, store, nil
	}

	db, err := repomanager.OpenPostgres(app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	app.closers = append(app.closers, db)
	app.db = db

	if err := repomanager.WaitForDB(ctx, db, dbWaitBase, dbWaitAttempts); err != nil {
		return nil, nil, err
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, nil, fmt.Errorf("db migrations error: %w", err)
	}
	return dbx.NewSQLTransactor(db, nil), rm, nil
}

func (app *App) newNotifier(ctx context.Context) (notify.Notifier, error) {
	c := app.config
	r := notify.Renderer{From: c.MailFrom, BaseURL: c.AppBaseURL}

	switch c.Notifier {
	case config.NotifierKafka:
		n := notify.NewKafkaNotifier(r, c.KafkaBrokers, c.KafkaTopic)
		app.closers = append(app.closers, n)
		return n, nil
	case config.NotifierSES:
		n, err := notify.NewSESNotifier(ctx, r, notify.SESConfig{
			Region:          c.SESRegion,
			AccessKeyID:     c.SESAccessKeyID,
			SecretAccessKey: c.SESSecretAccessKey,
			BaseEndpoint:    c.SESBaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("ses notifier: %w", err)
		}
		return n, nil
	default:
		return notify.NewLogNotifier(r, app.logger), nil
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.auth, app.codec, httpapi.Options{
		SecureCookies: app.config.SecureCookies,
		Metrics:       app.metrics.Handler(),
		Observer:      app.metrics,
	})

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db, healthInterval, app.metrics.SetDatabaseUp)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	app.Close()
	app.logger.Info(context.Background(), "App stopped")
}

// Close releases the database pool and notifier connections.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}
