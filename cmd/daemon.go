package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"fmsync/cache"
	"fmsync/config"
	"fmsync/core/conn"
	"fmsync/core/engine"
	"fmsync/core/remote"
	"fmsync/core/session"
	"fmsync/db"
	"fmsync/logger"
	"fmsync/model"
	"fmsync/repository"
	"fmsync/server"

	"github.com/google/uuid"
)

// runDaemon wires the full sync engine and blocks until SIGINT/SIGTERM.
func runDaemon() {
	cfg := config.Load()
	initLogging(cfg)

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseDB()

	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database with GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(
		&model.Artist{},
		&model.Album{},
		&model.Track{},
		&model.Discography{},
		&model.AlbumRow{},
	); err != nil {
		logger.Fatal("Failed to migrate catalog models", logger.ErrorField(err))
	}

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New(cfg.AuthToken)
	stateRepo := repository.NewMySQLFetchStateRepository(db.DB)
	catalogRepo := repository.NewGormCatalogRepository(db.GormDB)
	discCache := cache.NewDiscographyCache(db.RedisClient)
	apiClient := remote.NewHTTPClient(cfg.APIBaseURL, sess.Token)

	synchronizer := engine.NewStaticItemSynchronizer(
		stateRepo, catalogRepo, apiClient, cfg.SyncMinSleep, cfg.SyncMaxSleep)
	fetcher := engine.NewDiscographyFetcher(
		catalogRepo, discCache, apiClient, cfg.DiscographyPageSize)

	// Server-pushed invalidations become fetch requests.
	manager := conn.NewManager(cfg.WSURL, loadDeviceID(), sess.Token,
		func(itemType model.ItemType, itemID string) {
			if err := synchronizer.Request(ctx, itemType, itemID); err != nil {
				logger.Warn("Failed to enqueue invalidated item",
					logger.String("itemType", string(itemType)),
					logger.String("itemId", itemID),
					logger.ErrorField(err))
			}
		})

	catchUp := func(ctx context.Context) bool {
		synchronizer.WakeUp()
		pending, err := stateRepo.GetIdlePastDue(ctx, time.Now())
		if err != nil {
			logger.Warn("Catch-up failed to inspect pending items", logger.ErrorField(err))
			return false
		}
		return len(pending) > 0
	}

	orchestrator := engine.NewOrchestrator(manager, catchUp)
	states, cancelSub := manager.Subscribe()
	defer cancelSub()
	go orchestrator.Run(ctx, states)

	// The daemon has no UI process of its own; it runs kept-alive. The
	// session signal is re-evaluated periodically so token expiry drops
	// the connection.
	orchestrator.SetNetworkAvailable(true)
	orchestrator.SetKeptAlive(true)
	orchestrator.SetAuthenticated(sess.Authenticated())
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				orchestrator.SetAuthenticated(sess.Authenticated())
			}
		}
	}()

	synchronizer.Start(ctx)

	statusSrv := server.NewStatusServer(
		cfg.StatusAddr, stateRepo, catalogRepo, synchronizer, fetcher, manager.State)
	statusSrv.Start()

	logger.Info("FMSync daemon started")
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := statusSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Status server shutdown failed", logger.ErrorField(err))
	}
	manager.Disconnect()
}

func initLogging(cfg *config.Config) {
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogOutputPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})
}

// loadDeviceID returns the per-install device ID, generating and
// persisting one on first run.
func loadDeviceID() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return uuid.NewString()
	}

	path := filepath.Join(dir, "fmsync", "device_id")
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err == nil {
		if err := os.WriteFile(path, []byte(id), 0600); err != nil {
			logger.Warn("Failed to persist device ID", logger.ErrorField(err))
		}
	}
	return id
}
