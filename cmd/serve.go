package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ghosttalk/ghosttalk/cache"
	"github.com/ghosttalk/ghosttalk/config"
	"github.com/ghosttalk/ghosttalk/routes"
	"github.com/ghosttalk/ghosttalk/services"
	"github.com/ghosttalk/ghosttalk/store"
	"github.com/ghosttalk/ghosttalk/utils"
)

func newServeCommand(configPath *string) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath, port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port, overrides APP_PORT")
	return cmd
}

func runServe(ctx context.Context, configPath, port string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, db, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer func() {
		if err := config.CloseDatabase(db); err != nil {
			logger.Warn("close database", zap.Error(err))
		}
	}()
	if port != "" {
		cfg.AppPort = port
	}

	posts := store.NewPostStore(db)
	if cfg.AutoMigrate {
		if err := posts.Migrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// a nil *RedisCache must not end up inside the interface
	var listCache services.ListCache
	if rc := cache.NewRedis(cfg, logger); rc != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, list cache will miss", zap.Error(err))
		}
		cancel()
		defer rc.Close()
		listCache = rc
	}

	accessLog, err := utils.NewRollingFileLogger(cfg.GinPath, cfg)
	if err != nil {
		logger.Warn("access log unavailable, using app logger", zap.Error(err))
		accessLog = logger.Named("http")
	}
	defer accessLog.Sync()

	r := routes.SetupRouter(cfg, routes.Deps{
		Posts:     services.NewPostService(posts, listCache, logger.Named("posts")),
		Counter:   posts,
		AccessLog: accessLog,
	})

	logger.Info("starting server", zap.String("port", cfg.AppPort), zap.String("db_driver", cfg.DBDriver))
	if err := utils.NewServer(":"+cfg.AppPort, r, logger).ListenAndServe(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
