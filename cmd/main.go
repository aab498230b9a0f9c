// cmd/main.go - Program entry
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"index-coordinator/internal/config"
	"index-coordinator/internal/coordinator"
	"index-coordinator/internal/daemon"
	"index-coordinator/internal/database"
	"index-coordinator/internal/errs"
	"index-coordinator/internal/executor"
	"index-coordinator/internal/handler"
	"index-coordinator/internal/indexer"
	"index-coordinator/internal/job"
	"index-coordinator/internal/metrics"
	"index-coordinator/internal/repository"
	"index-coordinator/internal/server"
	"index-coordinator/internal/source"
	"index-coordinator/internal/store"
	"index-coordinator/internal/utils"
	"index-coordinator/pkg/logger"
)

var (
	// set by the linker during build
	osName   string
	archName string
	version  string
)

func main() {
	if version != "" {
		fmt.Printf("Version: %s\n", version)
	}

	// Parse command line arguments
	appName := flag.String("appname", "index-coordinator", "app name")
	httpAddr := flag.String("http", "", "HTTP server address, overrides server.address")
	logLevel := flag.String("loglevel", "info", "log level (debug, info, warn, error)")
	configPath := flag.String("config", "", "config file (.json or .toml)")
	enablePprof := flag.Bool("pprof", false, "enable pprof profiling")
	pprofAddr := flag.String("pprof-addr", "localhost:6060", "pprof server address")
	flag.Parse()

	if err := initDir(*appName); err != nil {
		fmt.Printf("failed to initialize directory: %v\n", err)
		os.Exit(1)
	}
	if err := initConfig(*appName, *configPath); err != nil {
		fmt.Printf("failed to initialize configuration: %v\n", err)
		os.Exit(1)
	}

	clientConfig := config.GetClientConfig()
	if *enablePprof {
		clientConfig.Pprof.Enabled = true
		clientConfig.Pprof.Address = *pprofAddr
	}
	if *httpAddr != "" {
		clientConfig.Server.Address = *httpAddr
	}
	config.SetClientConfig(clientConfig)

	appLogger, err := logger.NewLogger(utils.LogsDir, *logLevel, *appName)
	if err != nil {
		fmt.Printf("failed to initialize logging system: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("OS: %s, Arch: %s, App: %s, Version: %s, Starting...", osName, archName, *appName, version)

	if err := run(clientConfig, appLogger); err != nil {
		appLogger.Error("index coordinator exited with error: %v", err)
		os.Exit(1)
	}
	appLogger.Info("index coordinator has been successfully closed")
}

func run(cfg config.ClientConfig, appLogger logger.Logger) error {
	// 数据库
	dbManager := database.NewSQLiteManager(config.DefaultDatabaseConfig(), appLogger)
	if err := dbManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database manager: %w", err)
	}
	defer dbManager.Close()

	projectRepo := repository.NewProjectRepository(dbManager, appLogger)
	properties, closeProperties, err := newPropertyStore(cfg.Storage, dbManager, appLogger)
	if err != nil {
		return err
	}
	defer closeProperties()

	indexStore, err := store.NewLevelDBIndexStore(utils.IndexDir, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create index store: %w", err)
	}
	defer indexStore.Close()

	// 指标
	var (
		coordinatorMetrics *metrics.CoordinatorMetrics
		metricsHandler     http.Handler
	)
	if cfg.Metrics.Enabled {
		provider, err := metrics.NewProvider()
		if err != nil {
			return fmt.Errorf("failed to create metrics provider: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(ctx); err != nil {
				appLogger.Error("failed to shut down metrics provider: %v", err)
			}
		}()
		if coordinatorMetrics, err = metrics.NewCoordinatorMetrics(provider.MeterProvider()); err != nil {
			return fmt.Errorf("failed to create coordinator metrics: %w", err)
		}
		metricsHandler = provider.Handler()
	}

	// 索引
	src := source.NewHTTPSource(cfg.Source, appLogger)
	projectIndexer := indexer.NewProjectIndexer(src, indexStore, properties, appLogger)
	workerPool := executor.NewPoolExecutor(cfg.Coordinator.MaxConcurrentWorkers, appLogger)
	defer workerPool.Close()

	daemonProcess := daemon.NewDaemon(appLogger)
	coord, err := coordinator.New(cfg.Coordinator, projectRepo, properties, daemonProcess, workerPool, projectIndexer,
		appLogger, coordinator.WithMetrics(coordinatorMetrics))
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}

	daemonProcess.AddJobs(job.NewCoordinatorJob(coord, appLogger))
	if cfg.Source.SyncProjects {
		daemonProcess.AddJobs(job.NewProjectSyncJob(src, projectRepo, appLogger, cfg.Source.SyncInterval(), coord.Wake))
	}

	// HTTP
	adminHandler := handler.NewAdminHandler(projectRepo, properties, indexStore, coord, appLogger)
	httpServer := server.NewServer(cfg.Server, adminHandler, metricsHandler, appLogger)

	daemonProcess.Start()
	setupPprof(cfg.Pprof, appLogger)

	httpErrChan := make(chan error, 1)
	go func() {
		httpErrChan <- httpServer.Start(cfg.Server.Address)
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-signals:
		appLogger.Info("received signal %s, shutting down gracefully...", sig)
	case err := <-httpErrChan:
		if err != nil {
			runErr = fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	daemonProcess.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		appLogger.Error("HTTP server shutdown error: %v", err)
	}
	return runErr
}

// newPropertyStore opens the configured timestamp backend.
func newPropertyStore(cfg config.ConfigStorage, db database.DatabaseManager,
	appLogger logger.Logger) (repository.PropertyStore, func(), error) {
	switch cfg.PropertyBackend {
	case config.PropertyBackendLevelDB:
		s, err := repository.NewLevelDBPropertyStore(utils.StateDir, appLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open leveldb property store: %w", err)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				appLogger.Error("failed to close property store: %v", err)
			}
		}, nil
	case config.PropertyBackendSQLite, "":
		return repository.NewSQLitePropertyStore(db, appLogger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown property backend %q", errs.ErrInvalidConfig, cfg.PropertyBackend)
	}
}

func memStatsHandler(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(memStats)
}

func setupPprof(pprofConfig config.ConfigPprof, appLogger logger.Logger) {
	if !pprofConfig.Enabled {
		return
	}
	go func() {
		pprofMux := http.NewServeMux()
		pprofMux.HandleFunc("/debug/pprof/", pprof.Index)
		pprofMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		pprofMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		pprofMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		pprofMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		pprofMux.Handle("/debug/pprof/memStats", http.HandlerFunc(memStatsHandler))

		appLogger.Info("pprof server starting on %s", pprofConfig.Address)
		if err := http.ListenAndServe(pprofConfig.Address, pprofMux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("pprof server error: %v", err)
		}
	}()
}

// initDir initializes directories
func initDir(appName string) error {
	rootPath, err := utils.GetRootDir(appName)
	if err != nil {
		return fmt.Errorf("failed to get root directory: %v", err)
	}
	fmt.Printf("root directory: %s\n", rootPath)

	logPath, err := utils.GetLogDir(rootPath)
	if err != nil {
		return fmt.Errorf("failed to get log directory: %v", err)
	}
	fmt.Printf("log directory: %s\n", logPath)

	cachePath, err := utils.GetCacheDir(rootPath)
	if err != nil {
		return fmt.Errorf("failed to get cache directory: %v", err)
	}

	if _, err := utils.GetCacheDbDir(cachePath); err != nil {
		return fmt.Errorf("failed to get cache db directory: %v", err)
	}
	if _, err := utils.GetCacheStateDir(cachePath); err != nil {
		return fmt.Errorf("failed to get cache state directory: %v", err)
	}

	indexPath, err := utils.GetIndexDir(rootPath)
	if err != nil {
		return fmt.Errorf("failed to get index directory: %v", err)
	}
	fmt.Printf("index directory: %s\n", indexPath)
	return nil
}

// initConfig initializes configuration
func initConfig(appName, configPath string) error {
	config.SetAppInfo(config.AppInfo{
		AppName:  appName,
		ArchName: archName,
		OSName:   osName,
		Version:  version,
	})

	cfg := config.DefaultClientConfig
	if configPath != "" {
		loaded, err := config.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg = config.ApplyEnvOverrides(cfg)
	if err := cfg.Coordinator.Validate(); err != nil {
		return err
	}
	if err := cfg.Source.Validate(); err != nil {
		return err
	}

	config.SetClientConfig(cfg)
	return nil
}
