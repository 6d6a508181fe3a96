package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	auth "github.com/es-parfumerie/go-auth"
	"github.com/es-parfumerie/go-auth/activitymap"
	"github.com/es-parfumerie/go-auth/internal/logging"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", ".", "directory holding config.env")
	flag.Parse()

	os.Exit(execute(*configPath))
}

// execute returns the process exit code so deferred cleanup runs before os.Exit
func execute(configPath string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Printf("load config: %v", err)
		return 1
	}

	zl, err := logging.New(cfg.Debug)
	if err != nil {
		log.Printf("can't initialize zap logger: %v", err)
		return 1
	}
	defer zl.Sync()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Error("parfumerie stopped", zap.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *Config, zl *zap.Logger) error {
	logger := logging.Wrap(zl)
	opts := cfg.AuthOptions()

	if err := auth.ValidateConfig(opts); err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := auth.NewRepositoryManager(db, auth.WithStoreTimeout(opts.GetStoreTimeout()))
	repo.MustValidate()

	if err := repo.CreateSchema(ctx); err != nil {
		return err
	}

	auther := auth.NewAuthenticator(repo, opts).
		WithLogger(logger.Named("auth")).
		WithActivitySink(activitymap.Sink(logger.Named("activity")))

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		auther.WithRevocations(auth.NewRedisRevocations(client, ""))
		zl.Info("token revocation enabled", zap.String("redis", cfg.RedisAddr))
	}

	httpAuth := auth.NewHTTPAuthenticator(auther, auther.TokenService(), opts).
		WithLogger(logger.Named("http")).
		WithSecureCookies(cfg.SecureCookies)

	var app *fiber.App
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app = router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               "es-parfumerie",
			DisableStartupMessage: true,
		}))
		return app
	})

	auth.RegisterAuthRoutes(srv.Router().Group("/api"),
		auth.WithControllerDebug(cfg.Debug),
		auth.WithControllerLogger(logger.Named("controller")),
		auth.WithAuthenticator(auther),
		auth.WithAccountAdministrator(auther),
		auth.WithRouteAuthenticator(httpAuth),
	)

	errc := make(chan error, 1)
	go func() {
		zl.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("db", cfg.DBDriver))
		errc <- srv.Serve(cfg.ListenAddr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	return nil
}

func openDB(cfg *Config) (*bun.DB, error) {
	switch cfg.DBDriver {
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, goerrors.New("unsupported database driver "+cfg.DBDriver, goerrors.CategoryValidation)
	}
}
