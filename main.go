package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"securedocs/config"
	"securedocs/database"
	"securedocs/handlers"
	"securedocs/logger"
	"securedocs/middleware"
	"securedocs/repositories"
	"securedocs/services"
	"securedocs/storage"
	"securedocs/utils"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	cmd := &cli.Command{
		Name:  "securedocs",
		Usage: "file hierarchy and public sharing service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Sources: cli.EnvVars("SECUREDOCS_CONFIG"),
				Value:   "config.yaml",
				Usage:   "path to the YAML configuration file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and background workers",
				Action: serveAction,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the database schema",
				Action: migrateAction,
			},
			{
				Name:  "issue-token",
				Usage: "print a bearer token for a user id",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "user-id",
						Usage: "user id to sign the token for",
					},
				},
				Action: issueTokenAction,
			},
		},
		Action: serveAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

// loadConfig falls back to the built-in defaults when the file is missing.
func loadConfig(c *cli.Command) (*config.Config, error) {
	path := c.String("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		logger.Warnf("config file %s not found, using defaults", path)
		cfg = config.Default()
		config.AppConfig = cfg
	}
	logger.SetLevel(cfg.Log.Level)
	return cfg, nil
}

func migrateAction(_ context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := database.InitDatabase(&cfg.Database); err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if err := database.AutoMigrate(database.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Infof("database migration completed")
	return nil
}

func issueTokenAction(_ context.Context, c *cli.Command) error {
	if _, err := loadConfig(c); err != nil {
		return err
	}
	userID := c.Int("user-id")
	if userID <= 0 {
		return errors.New("--user-id must be positive")
	}
	token, err := utils.GenerateToken(uint(userID))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func serveAction(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret must be set")
	}

	if err := database.InitDatabase(&cfg.Database); err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if err := database.AutoMigrate(database.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := database.InitRedis(ctx, &cfg.Redis); err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.TempDir, 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}

	blobs, err := storage.NewLocalBackend(cfg.Storage.BasePath)
	if err != nil {
		return fmt.Errorf("open blob storage: %w", err)
	}
	repoContainer := repositories.NewGormRepositories(database.DB, database.RedisClient, cfg.Webhook.QueueKey).BuildContainer()
	serviceContainer := services.NewContainer(cfg, repoContainer, blobs)
	handlers.SetServices(serviceContainer)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORSMiddleware(cfg.CORS))
	r.MaxMultipartMemory = 32 << 20
	handlers.RegisterRoutes(r, middleware.AuthMiddleware())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("server listening on http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return serviceContainer.Notifier.Run(gctx)
	})
	g.Go(func() error {
		logger.Infof("cleanup workers started")
		return services.StartCleanupWorkers(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Infof("server stopped")
	return err
}
