package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/dataguardian/internal/application"
	appai "github.com/bryanwahyu/dataguardian/internal/application/ai"
	"github.com/bryanwahyu/dataguardian/internal/application/assessments"
	appscans "github.com/bryanwahyu/dataguardian/internal/application/scans"
	"github.com/bryanwahyu/dataguardian/internal/config"
	domai "github.com/bryanwahyu/dataguardian/internal/domain/ai"
	"github.com/bryanwahyu/dataguardian/internal/domain/analyst"
	"github.com/bryanwahyu/dataguardian/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
	"github.com/bryanwahyu/dataguardian/internal/domain/soc2"
	"github.com/bryanwahyu/dataguardian/internal/infra/ai/openai"
	"github.com/bryanwahyu/dataguardian/internal/infra/db/memory"
	"github.com/bryanwahyu/dataguardian/internal/infra/db/migrations"
	mysqlp "github.com/bryanwahyu/dataguardian/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/dataguardian/internal/infra/db/postgres"
	"github.com/bryanwahyu/dataguardian/internal/infra/httpserver"
	"github.com/bryanwahyu/dataguardian/internal/infra/storage"
	"github.com/bryanwahyu/dataguardian/internal/infra/vcs/git"
	"github.com/bryanwahyu/dataguardian/internal/logging"
	"github.com/bryanwahyu/dataguardian/internal/middleware"
)

var version = "dev"

type repositories struct {
	scans    domain.Repository
	errors   scanerrors.Repository
	analyses analyst.Repository
	db       *sql.DB // nil when running in memory
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dataguardian: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// path config.yaml
	path := "config.yaml"
	load := config.LoadOrDefault
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path, load = v, config.Load
	}
	cfg, err := load(path)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	if repos.db != nil {
		defer repos.db.Close()
	}

	checkers := map[string]middleware.HealthChecker{}
	if repos.db != nil {
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: repos.db}
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	checkers["storage"] = store

	scanner, err := buildScanner(cfg, log)
	if err != nil {
		return err
	}

	clock := application.SystemClock{}
	scansSvc := &appscans.Service{
		Repo:      repos.scans,
		Errors:    repos.errors,
		Cloner:    git.NewCloner(cfg.Scanner.CloneTimeout, cfg.Scanner.WorkDir, log.Named("git")),
		Artifacts: store,
		Scanner:   scanner,
		Clock:     clock,
		Log:       log.Named("scans"),
	}
	assessSvc := assessments.New(repos.scans, store, cfg.Fairness.Weights, log.Named("assessments"))
	assessSvc.Clock = clock

	var client domai.Client
	if cfg.OpenAI.APIKey != "" {
		client = openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}
	aiSvc := appai.NewService(client, scansSvc, repos.analyses, clock, log.Named("ai"))

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	sweepStop := make(chan struct{})
	defer close(sweepStop)
	go limiter.Run(5*time.Minute, sweepStop)

	httpserver.Version = version
	handler := httpserver.NewRouter(httpserver.Deps{
		Scans:          scansSvc,
		Assessments:    assessSvc,
		AI:             aiSvc,
		Log:            log.Named("http"),
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimiter:    limiter,
		HealthCheckers: checkers,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infow("server listening", "addr", addr, "version", version, "ai_provider", aiSvc.Provider(),
			"database", cfg.Database.Driver, "auth", len(cfg.Auth.APIKeys) > 0)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// graceful shutdown
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openRepositories(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (repositories, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
	case "postgres":
		db, err = pgp.Connect(ctx, cfg.PostgresDSN())
	default:
		log.Warn("no database configured, scans are kept in memory")
		return repositories{
			scans:    memory.NewScanRepository(),
			errors:   memory.NewScanErrorRepository(),
			analyses: memory.NewAnalystRepository(),
		}, nil
	}
	if err != nil {
		return repositories{}, fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
	}

	if cfg.Database.Migrate {
		if err := migrations.Up(ctx, db, cfg.Database.Driver, log.Named("migrate")); err != nil {
			db.Close()
			return repositories{}, err
		}
	}

	if cfg.Database.Driver == "postgres" {
		return repositories{
			scans:    pgp.NewScanRepository(db),
			errors:   pgp.NewScanErrorRepository(db),
			analyses: pgp.NewAnalystRepository(db),
			db:       db,
		}, nil
	}
	return repositories{
		scans:    mysqlp.NewScanRepository(db),
		errors:   mysqlp.NewScanErrorRepository(db),
		analyses: mysqlp.NewAnalystRepository(db),
		db:       db,
	}, nil
}

type checkedStore interface {
	domain.ArtifactStore
	middleware.HealthChecker
}

func openStore(ctx context.Context, cfg *config.Config) (checkedStore, error) {
	if cfg.Minio.Endpoint == "" {
		local, err := storage.NewLocalStore(cfg.Storage.LocalDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	store, err := storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		return nil, fmt.Errorf("minio init: %w", err)
	}
	return store, nil
}

func buildScanner(cfg *config.Config, log *zap.SugaredLogger) (*soc2.Scanner, error) {
	opts := []soc2.Option{
		soc2.WithLogger(log.Named("soc2")),
		soc2.WithMaxFileBytes(cfg.Scanner.MaxFileBytes),
		soc2.WithExcludeDirs(cfg.Scanner.ExcludeDirs...),
	}
	if cfg.Scanner.PatternPack != "" {
		extra, err := soc2.LoadPatternPack(cfg.Scanner.PatternPack)
		if err != nil {
			return nil, err
		}
		opts = append(opts, soc2.WithLibrary(soc2.NewLibrary(extra, log.Named("soc2"))))
		log.Infow("pattern pack loaded", "path", cfg.Scanner.PatternPack, "patterns", len(extra))
	}
	return soc2.NewScanner(opts...), nil
}
