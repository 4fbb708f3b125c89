package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/apiauth/user-service/internal/command"
	"github.com/apiauth/user-service/internal/config"
	"github.com/apiauth/user-service/internal/events"
	"github.com/apiauth/user-service/internal/handler"
	"github.com/apiauth/user-service/internal/middleware"
	"github.com/apiauth/user-service/internal/migrations"
	"github.com/apiauth/user-service/internal/models"
	"github.com/apiauth/user-service/internal/query"
	sharedredis "github.com/apiauth/user-service/internal/redis"
	"github.com/apiauth/user-service/internal/repository"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	userViewPrefix  = "user:view:"
	shutdownTimeout = 10 * time.Second
	corsMaxAge      = time.Hour
)

func NewServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, migrate)
		},
	}
	cmd.Flags().String("port", "", "listen port (overrides PORT)")
	cmd.Flags().String("store", "", "user store: postgres or memory (overrides STORE)")
	cmd.Flags().String("notify", "", "notification backend: kafka, redis or none (overrides NOTIFY_BACKEND)")
	cmd.Flags().String("database-url", "", "postgres DSN (overrides DATABASE_URL)")
	cmd.Flags().String("redis-addr", "", "redis address (overrides REDIS_ADDR)")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func runServe(cmd *cobra.Command, migrate bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log, migrate)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Warn("error releasing resources")
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":   cfg.Port,
			"store":  cfg.Store,
			"notify": cfg.NotifyBackend,
		}).Info("user service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// app is the assembled service plus everything that must be closed on exit.
type app struct {
	handler http.Handler
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg *config.Config, log *logrus.Logger, migrate bool) (*app, error) {
	a := &app{}

	store, err := a.openStore(ctx, cfg, migrate)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	// Redis backs both the view cache and, optionally, the notification stream.
	var rdb *sharedredis.Client
	var cache *sharedredis.ViewCache[models.User]
	if cfg.RedisAddr != "" {
		rdb, err = sharedredis.NewClient(ctx, sharedredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		cache = sharedredis.NewViewCache[models.User](rdb.Client, userViewPrefix, cfg.CacheTTL, log)
	}

	notifier, err := a.openNotifier(cfg, rdb, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	readRepo := repository.NewUserReadRepository(store, cache)
	commandSvc := command.NewUserCommandService(store, readRepo, notifier, log)
	querySvc := query.NewUserQueryService(readRepo)

	var authHandler *handler.AuthHandler
	if cfg.JWTSecret != "" {
		authHandler = handler.NewAuthHandler(query.NewAuthQueryService(store, []byte(cfg.JWTSecret), query.DefaultTokenTTL))
	}

	a.handler = newRouter(cfg, log, handler.NewUserHandler(commandSvc, querySvc), authHandler)
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg *config.Config, migrate bool) (repository.UserStore, error) {
	if cfg.Store == config.StoreMemory {
		return repository.NewMemoryUserRepository(), nil
	}

	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	if migrate {
		if err := migrations.Up(ctx, db); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}
	return repository.NewUserWriteRepository(db), nil
}

func (a *app) openNotifier(cfg *config.Config, rdb *sharedredis.Client, log logrus.FieldLogger) (events.Notifier, error) {
	switch cfg.NotifyBackend {
	case config.NotifyKafka:
		publisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.Topic, log), log)
		a.closers = append(a.closers, publisher.Close)
		return publisher, nil
	case config.NotifyRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis notifier requires REDIS_ADDR")
		}
		return events.NewRedisStreamPublisher(rdb.Client, cfg.Topic, log), nil
	default:
		return events.NewLogNotifier(log), nil
	}
}

func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func newRouter(cfg *config.Config, log logrus.FieldLogger, users *handler.UserHandler, auth *handler.AuthHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if auth == nil {
		users.RegisterRoutes(router)
		return router
	}

	auth.RegisterRoutes(router)
	users.RegisterRoutes(router, middleware.AuthMiddleware([]byte(cfg.JWTSecret)))

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       corsMaxAge,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
