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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"live_analysis/internal/adapters"
	"live_analysis/internal/bootstrap"
	analysisDelivery "live_analysis/internal/delivery/analysis"
	errors2 "live_analysis/internal/errors"
	"live_analysis/internal/metrics"
	ownMiddleware "live_analysis/internal/middleware"
	repo "live_analysis/internal/repository"
	"live_analysis/internal/usecase/analysis"
)

var (
	cfgPath   string
	autoStart bool
)

var rootCmd = &cobra.Command{
	Use:   "live-analysis",
	Short: "Live KataGo analysis for the position being viewed",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration file and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap.Setup(cfgPath)
		if err != nil {
			return err
		}
		if err = cfg.Profile().Validate(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "config ok: engine %s %v\n", cfg.EnginePath, cfg.Profile().Args())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".env", "path to the config file")
	serveCmd.Flags().BoolVar(&autoStart, "start-engine", false, "start the engine right away")
	rootCmd.AddCommand(serveCmd, checkConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

type storages struct {
	history *repo.HistoryRedisStorage
	results *repo.AnalysisMongoStorage
	closers []func(context.Context) error
}

func runServe(parent context.Context) error {
	logger := NewLogger()
	defer logger.Sync()

	cfg, err := bootstrap.Setup(cfgPath)
	if err != nil {
		logger.Errorw("Failed to setup configuration", "error", err)
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	go handleShutdown(cancel, logger)

	st := initStorages(ctx, logger, cfg)
	defer func() {
		for _, closeFn := range st.closers {
			_ = closeFn(context.Background())
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := analysis.DefaultOptions()
	opts.DebounceDelay = cfg.DebounceDelay()
	opts.DrainTimeout = cfg.PollTimeout()
	opts.ReportedAs = cfg.ReportedAs()
	opts.TerminateOnCancel = cfg.TerminateOnCancel
	opts.QueryPrefix = cfg.QueryPrefix
	opts.Metrics = metrics.New(reg)

	var archive analysisDelivery.Archive
	if st.history != nil {
		opts.HistoryArchive = st.history
	}
	if st.results != nil {
		opts.ResultArchive = st.results
		archive = st.results
	}

	session := repo.NewKatagoSession(logger, cfg.PollTimeout(), cfg.StopGrace())
	coordinator := analysis.NewCoordinator(logger, session, cfg.Settings(), opts)

	bootstrap.Watch(cfgPath, func(next *bootstrap.Config) {
		logger.Infow("configuration reloaded", "file", cfgPath)
		coordinator.SettingsChanged(next.Settings())
	}, func(err error) {
		logger.Warnw("configuration reload rejected", "error", err)
	})

	r := chi.NewRouter()
	if cfg.IsLocalCors {
		r.Use(ownMiddleware.CORS)
	}
	r.Use(middleware.Logger)

	handler := analysisDelivery.NewAnalysisHandler(logger, coordinator, cfg.Profile(), archive,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handler.Router(r)

	if autoStart {
		if err = coordinator.Start(ctx, cfg.Profile()); err != nil {
			logger.Errorw("Failed to start engine", "error", err)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Server is running on port %s", cfg.ServerPort)
	if err = srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorw("Failed to start server", "error", err)
		return err
	}

	if err = coordinator.Stop(); err != nil && !errors.Is(err, errors2.ErrEngineNotRunning) {
		logger.Warnw("engine stop failed", "error", err)
	}
	return nil
}

// initStorages connects the optional archives. A store that cannot be reached is skipped.
func initStorages(ctx context.Context, log *zap.SugaredLogger, cfg *bootstrap.Config) storages {
	var st storages

	if cfg.RedisUrl != "" {
		redisAdapter := adapters.NewAdapterRedis(cfg, log)
		if err := redisAdapter.Init(ctx); err != nil {
			log.Warnw("Redis is unavailable, history archive disabled", "error", err)
		} else {
			st.history = repo.NewHistoryRedisStorage(redisAdapter.GetClient(), log, cfg.HistoryTTL())
			st.closers = append(st.closers, redisAdapter.Close)
		}
	}

	if cfg.MongoUri != "" {
		mongoAdapter := adapters.NewAdapterMongo(cfg, log)
		if err := mongoAdapter.Init(ctx); err != nil {
			log.Warnw("MongoDB is unavailable, analysis archive disabled", "error", err)
		} else {
			st.results = repo.NewAnalysisMongoStorage(mongoAdapter.Database, log)
			st.closers = append(st.closers, mongoAdapter.Close)
		}
	}

	return st
}

func handleShutdown(cancelFunc context.CancelFunc, log *zap.SugaredLogger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("Received shutdown signal")
	cancelFunc()
}
