package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/auth"
	"classroom-quiz-service/internal/config"
	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/eventbus"
	"classroom-quiz-service/internal/infra/memory"
	pgstore "classroom-quiz-service/internal/infra/postgres"
	redisstore "classroom-quiz-service/internal/infra/redis"
	"classroom-quiz-service/internal/judge"
	"classroom-quiz-service/internal/metrics"
	"classroom-quiz-service/internal/report"
	"classroom-quiz-service/internal/scoring"
	transport "classroom-quiz-service/internal/transport/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var (
		pool *pgxpool.Pool
		db   *bun.DB
	)
	if cfg.Postgres.URL != "" {
		db, err = openBun(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrateDB(ctx, db, logger); err != nil {
			return err
		}
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	retention := config.TTLDuration(cfg.Session.Retention, redisstore.DefaultRetention)

	var loader memory.TaskSetLoader = memory.NewStaticTaskSetLoader(sampleTaskSets())
	if pool != nil {
		loader = pgstore.NewTaskSetLoader(pool)
	}

	tasksetTTL := config.TTLDuration(cfg.TaskSet.TTL, 10*time.Minute)
	var (
		tasksets     app.TaskSetRepository
		rooms        app.RoomRepository
		recorder     app.SessionRecorder
		shutdownRoom func()
	)
	if redisClient != nil {
		tasksets = redisstore.NewTaskSetRepository(redisClient, loader, tasksetTTL)
		roomStore := redisstore.NewRoomStore(redisClient, redisTTL)
		rooms = roomStore
		shutdownRoom = func() { roomStore.Shutdown(context.Background()) }
		recorder = redisstore.NewSessionRecorder(redisClient, retention)
	} else {
		tasksets = memory.NewTaskSetRepository(loader, tasksetTTL)
		roomStore := memory.NewRoomStore()
		rooms = roomStore
		shutdownRoom = roomStore.Shutdown
		recorder = memory.NewSessionRecorder(retention)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorderMetrics := metrics.New(registry)

	modes := strategies(cfg)
	if _, err := modes.For(domain.ScoringMode(cfg.Scoring.Mode)); err != nil {
		return err
	}

	bus := eventbus.New(logger)
	defer bus.Close()

	service := app.NewLiveService(app.Dependencies{
		Rooms:      rooms,
		TaskSets:   tasksets,
		Recorder:   recorder,
		Publisher:  bus,
		Strategies: modes,
		Metrics:    recorderMetrics,
		Logger:     logger,
	}, app.Settings{
		Mode:        domain.ScoringMode(cfg.Scoring.Mode),
		AutoAdvance: cfg.Scoring.AutoAdvance,
	}, app.BonusDefaults{
		Points:   cfg.Bonus.Points,
		Duration: config.TTLDuration(cfg.Bonus.Duration, 8*time.Second),
	})

	var reports report.Store = report.NewMemoryStore()
	if db != nil {
		reports = pgstore.NewReportStore(db)
	}
	var mailer report.Mailer = report.LogMailer{Logger: logger}
	if cfg.Report.SendgridKey != "" {
		mailer = report.NewSendgridMailer(cfg.Report.SendgridKey, cfg.Report.FromName, cfg.Report.FromEmail)
	}
	worker := report.NewWorker(report.WorkerDeps{
		Store:    reports,
		Mailer:   mailer,
		Notifier: service,
		Metrics:  recorderMetrics,
		Logger:   logger,
	})
	if err := bus.ConsumeCompletions(ctx, worker.Handle); err != nil {
		return err
	}

	issuer := auth.NewIssuer(cfg.Auth.TeacherSecret)
	if !issuer.Enabled() {
		logger.WarnContext(ctx, "auth.teacherSecret not set; teacher sockets are unauthenticated")
	}
	opts := transport.Options{
		Auth:   issuer,
		Logger: logger,
		RateLimit: transport.RateLimit{
			PerSecond: cfg.RateLimit.PerSecond,
			Burst:     cfg.RateLimit.Burst,
		},
	}
	if cfg.Judge.URL != "" {
		opts.Judge = judge.NewClient(judge.Options{
			URL:       cfg.Judge.URL,
			APIKey:    cfg.Judge.APIKey,
			Timeout:   config.TTLDuration(cfg.Judge.Timeout, 30*time.Second),
			PerMinute: cfg.Judge.PerMinute,
		})
	}
	wsHandler := transport.NewWSHandler(service, opts)

	router := chi.NewRouter()
	router.Use(middleware.RealIP, middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/ws", wsHandler.ServeWS)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	transport.NewReportHandler(reports, issuer, logger).Routes(router)

	// WriteTimeout is left unset; it would apply to hijacked websocket connections too.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting classroom quiz service", slog.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()
	// Shutdown does not track hijacked connections; closing rooms disconnects them.
	shutdownRoom()
	return server.Shutdown(shutdownCtx)
}

func strategies(cfg config.Config) *scoring.Registry {
	ranked := scoring.Ranked{Config: scoring.DefaultConfig()}
	if cfg.Scoring.BasePoints > 0 {
		ranked.Config.BasePoints = cfg.Scoring.BasePoints
	}
	if len(cfg.Scoring.SpeedBonuses) > 0 {
		ranked.Config.SpeedBonuses = cfg.Scoring.SpeedBonuses
	}
	immediate := scoring.DefaultImmediate()
	if cfg.Scoring.BasePoints > 0 {
		immediate.BasePoints = cfg.Scoring.BasePoints
	}
	if cfg.Scoring.FastBonus > 0 {
		immediate.FastBonus = cfg.Scoring.FastBonus
	}
	if cfg.Scoring.FastThresholdMs > 0 {
		immediate.FastThresholdMs = cfg.Scoring.FastThresholdMs
	}
	return scoring.NewRegistry(ranked, immediate)
}

// sampleTaskSets seeds a demo plan when no Postgres loader is configured.
func sampleTaskSets() map[string]domain.TaskSet {
	four, paris, truth := "4", "Paris", "true"
	return map[string]domain.TaskSet{
		"demo": {
			ID:    "demo",
			Title: "Warm-up",
			Tasks: []domain.TaskDefinition{
				{Prompt: "What is 2 + 2?", CorrectAnswer: &four, Options: []string{"3", "4", "5"}, Type: domain.TaskTypeMultipleChoice},
				{Prompt: "Capital of France?", CorrectAnswer: &paris},
				{Prompt: "The sun is a star.", CorrectAnswer: &truth, Type: domain.TaskTypeTrueFalse, Options: []string{"true", "false"}},
				{Prompt: "Explain photosynthesis in one sentence.", Points: 20},
			},
		},
	}
}
