package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/arynyklas/HDRFilmsBot/internal/api"
	"github.com/arynyklas/HDRFilmsBot/internal/cache"
	"github.com/arynyklas/HDRFilmsBot/internal/config"
	"github.com/arynyklas/HDRFilmsBot/internal/controllers"
	"github.com/arynyklas/HDRFilmsBot/internal/metrics"
	"github.com/arynyklas/HDRFilmsBot/internal/models"
	"github.com/arynyklas/HDRFilmsBot/internal/scheduler"
	"github.com/arynyklas/HDRFilmsBot/internal/services/rezka"
	"github.com/arynyklas/HDRFilmsBot/internal/services/telegram"
	"github.com/arynyklas/HDRFilmsBot/internal/services/wget"
	"github.com/arynyklas/HDRFilmsBot/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hdrfilmsbot",
		Short:         "Telegram bot delivering films and series with download queue and episode tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	cmd.Flags().String("config-dir", "", "directory holding the database (overrides CONFIG_DIR)")
	cmd.Flags().String("log-level", "", "logrus level (overrides LOG_LEVEL)")
	_ = viper.BindPFlag("CONFIG_DIR", cmd.Flags().Lookup("config-dir"))
	_ = viper.BindPFlag("LOG_LEVEL", cmd.Flags().Lookup("log-level"))

	return cmd
}

func run(parent context.Context) error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting HDRFilmsBot")
	logger.WithFields(logrus.Fields{
		"config_dir":      filepath.Dir(cfg.DatabaseFile),
		"downloads_dir":   cfg.DownloadsTempDir,
		"max_upload_size": humanize.IBytes(uint64(cfg.MaxFileUploadSize)),
	}).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// 5. Initialize services
	rezkaClient, err := rezka.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize rezka client: %w", err)
	}
	logger.Info("Rezka client initialized")

	telegramClient, err := telegram.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram client: %w", err)
	}
	logger.Info("Telegram client initialized")

	runner := wget.NewRunner(cfg.WgetBinary, logger)
	prober := wget.NewProber(logger)

	// 6. Caches
	resolution := cache.NewResolutionCache(rezkaClient, cfg.CacheTTL, m, logger)
	shortInfo := cache.NewShortInfoCache(rezkaClient, cfg.ShortInfoTTL, m, logger)
	sweeper := cache.NewSweeper()
	sweeper.Register(cache.ResolutionCacheName, resolution)
	sweeper.Register(cache.ShortInfoCacheName, shortInfo)

	// 7. Initialize controllers
	queueCtrl := controllers.NewQueueController(db, resolution, telegramClient, runner, prober, m, controllers.QueueConfig{
		TempDir:         cfg.DownloadsTempDir,
		MaxUploadSize:   cfg.MaxFileUploadSize,
		ArchiveChatID:   cfg.DownloadQueueToChatID,
		PerMessageDelay: cfg.DownloadQueuePerMsgDelay,
	}, logger)
	trackingCtrl := controllers.NewTrackingController(db, resolution, telegramClient, m, controllers.TrackingConfig{
		PerItemDelay:    cfg.TrackCheckerPerDelay,
		PerMessageDelay: cfg.TrackCheckerPerMsgDelay,
	}, logger)
	logger.Info("Controllers initialized")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// 8. Initialize scheduler
	sched := scheduler.NewScheduler(queueCtrl, trackingCtrl, sweeper, m, scheduler.Config{
		TrackInterval: cfg.TrackCheckerDelay,
		QueueSleep:    cfg.DownloadQueueSleep,
	}, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 9. Initialize HTTP server
	server := api.NewServer(cfg, db, sweeper, shortInfo, registry, logger)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 10. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("HDRFilmsBot is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("HDRFilmsBot stopped")
	return nil
}
