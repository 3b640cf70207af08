package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"join-api/api"
	"join-api/live"
	"join-api/storage"
)

func main() {
	cfg := loadConfig()
	logger := log.StandardLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend := openBackend(cfg)
	defer closeBackend()

	var rc *redis.Client
	if cfg.RedisConn != "" {
		rc = redis.NewClient(redisOptions(cfg.RedisConn))
		defer rc.Close()
	} else {
		logger.Warn("REDIS_CONNECTION_STRING not set; running without cache, dedupe and cross-instance notifications")
	}
	store := storage.NewCache(backend, rc, cfg.CacheTTL)
	// Listings cached by a previous run may predate writes made while it was down.
	store.Invalidate(ctx)

	// Feeds refresh after change notifications, so they read through to the backend.
	tasks := live.NewTaskFeed(store.ReloadTasks)
	contacts := live.NewContactFeed(store.ReloadContacts)
	if err := tasks.Refresh(ctx); err != nil {
		logger.WithError(err).Error("initial task load failed")
	}
	if err := contacts.Refresh(ctx); err != nil {
		logger.WithError(err).Error("initial contact load failed")
	}
	feeds := map[string]live.Refresher{
		live.CollectionTasks:    tasks,
		live.CollectionContacts: contacts,
	}
	notifier := live.NewNotifier(rc, cfg.ChangesChannel, feeds, logger)
	if rc != nil {
		go live.Listen(ctx, logger, rc, cfg.ChangesChannel, feeds)
	}

	var revoker api.Revoker
	var deduper api.Deduper
	if rc != nil {
		revoker = api.NewRedisRevoker(rc)
		deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL)
	}
	var jwks *keyfunc.JWKS
	if cfg.AuthJWKSURL != "" {
		var err error
		jwks, err = keyfunc.Get(cfg.AuthJWKSURL, keyfunc.Options{RefreshInterval: time.Hour})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		defer jwks.EndBackground()
	}
	auth := api.NewAuth([]byte(cfg.AuthSecret), jwks, cfg.AuthIssuer, cfg.AuthAudience, cfg.SessionTTL, revoker)

	var sink api.StatusSink = directSink{store: store, notifier: notifier, logger: logger}
	if cfg.StatusQueue != "" {
		queue, err := storage.NewStatusQueue(cfg.ConnStr, cfg.StatusQueue)
		if err != nil {
			log.Fatalf("status queue: %v", err)
		}
		sink = queue
		p := &processor{queue: queue, store: store, notifier: notifier, logger: logger, idle: time.Second}
		go p.run(ctx)
	}
	status := api.NewStatusSync(sink, notifier, logger, cfg.Status)
	defer status.Close()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
		AllowCredentials: false,
	}))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, &api.Server{
		Store:         store,
		Tasks:         tasks,
		Contacts:      contacts,
		Auth:          auth,
		Deduper:       deduper,
		Notifier:      notifier,
		Status:        status,
		Logger:        logger,
		WebRoot:       cfg.WebRoot,
		SecureCookies: cfg.SecureCookies,
	})

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown")
	}
}

func openBackend(cfg config) (storage.Backend, func()) {
	switch cfg.Driver {
	case driverSQLite:
		db, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("sqlite: %v", err)
		}
		log.WithField("path", cfg.SQLitePath).Info("using sqlite storage")
		return db, func() { _ = db.Close() }
	default:
		tables, err := storage.NewTables(cfg.ConnStr, cfg.TasksTable, cfg.ContactsTable, cfg.UsersTable)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		return tables, func() {}
	}
}
