package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/complif/rules-engine/internal/app/auth"
	"github.com/complif/rules-engine/internal/app/cache"
	"github.com/complif/rules-engine/internal/app/httpapi"
	"github.com/complif/rules-engine/internal/app/services/alert"
	"github.com/complif/rules-engine/internal/app/services/behavior"
	"github.com/complif/rules-engine/internal/app/services/compliancelist"
	"github.com/complif/rules-engine/internal/app/services/evaluation"
	"github.com/complif/rules-engine/internal/app/services/ruletemplate"
	"github.com/complif/rules-engine/internal/app/services/ruleversion"
	"github.com/complif/rules-engine/internal/app/storage/postgres"
	"github.com/complif/rules-engine/internal/app/streaming"
	"github.com/complif/rules-engine/internal/app/system"
	"github.com/complif/rules-engine/internal/platform/config"
	"github.com/complif/rules-engine/internal/platform/database"
	"github.com/complif/rules-engine/internal/platform/metrics"
	"github.com/complif/rules-engine/internal/platform/migrations"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/complif/rules-engine/pkg/logger"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to config or :8080)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides DATABASE_URL and config; required unless one of those is set)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format}).WithField("component", "ruleserver")

	rootCtx := context.Background()

	dsnVal := resolveDSN(*dsn, cfg)

	var db *sql.DB
	if dsnVal != "" {
		db, err = database.Open(rootCtx, dsnVal)
		if err != nil {
			log.WithError(err).Fatal("connect to postgres")
		}
		configurePool(db, cfg)
		if cfg.Database.MigrateOnStart {
			if err := migrations.Apply(rootCtx, db); err != nil {
				log.WithError(err).Fatal("apply migrations")
			}
		}
		defer db.Close()
	} else {
		log.Warn("no DSN configured; running without persistent storage is not supported by this binary")
		log.Fatal("DATABASE_URL or -dsn is required")
	}

	store := postgres.New(db)

	rulesCache := cache.NewStore(cfg.Cache.ActiveRulesTTL())
	listCache := cache.NewStore(cfg.Cache.ListFactsTTL())

	var redisClient *redis.Client
	if cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("parse redis url")
		}
		redisClient = redis.NewClient(opts)
	}

	templates := ruletemplate.New(store, log)
	versions := ruleversion.New(store, store, rulesCache, log)
	lists := compliancelist.New(store, listCache)
	behaviorSvc := behavior.New(store)
	alerts := alert.New(store)

	hub := streaming.NewHub(log)

	evalSvc := evaluation.New(evaluation.Dependencies{
		Tx: store, Txs: store, Versions: store, Results: store,
		Lists: lists, Behavior: behaviorSvc, Alerts: alerts, RulesCache: rulesCache,
		Publisher: hub, Metrics: metrics.Recorder{}, Log: log,
	})

	authManager := auth.NewManager(cfg.Auth.JWTSecret, "rules-engine", time.Hour)
	if authManager == nil {
		log.Fatal("AUTH_JWT_SECRET must be set")
	}

	router := httpapi.NewRouter(httpapi.Dependencies{
		RuleTemplates:  templates,
		RuleVersions:   versions,
		Lists:          lists,
		Alerts:         alerts,
		Evaluation:     evalSvc,
		Publisher:      hub,
		Hub:            hub,
		DB:             db,
		Redis:          redisClient,
		Validator:      authManager,
		Log:            log,
		MetricsMount:   metrics.Handler(),
		RateLimitRPS:   cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst: cfg.RateLimit.Burst,
	})

	listenAddr := determineAddr(*addr, cfg)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           metrics.InstrumentHandler(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	manager := system.NewManager()
	if err := manager.Register(&httpServerService{srv: srv, log: log}); err != nil {
		log.WithError(err).Fatal("register http server")
	}
	if err := manager.Register(system.NoopService{ServiceName: "streaming-hub"}); err != nil {
		log.WithError(err).Fatal("register streaming hub")
	}

	if err := manager.Start(rootCtx); err != nil {
		log.WithError(err).Fatal("start application")
	}
	log.WithField("addr", listenAddr).Info("rules engine listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.Stop(shutdownCtx); err != nil {
		log.WithError(err).Fatal("shutdown")
	}
}

// httpServerService adapts *http.Server to system.Service so the lifecycle
// manager starts it in the background and shuts it down gracefully on stop.
type httpServerService struct {
	srv *http.Server
	log *logrus.Entry
}

func (s *httpServerService) Name() string { return "http-server" }

func (s *httpServerService) Start(ctx context.Context) error {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Fatal("http server")
		}
	}()
	return nil
}

func (s *httpServerService) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func determineAddr(flagAddr string, cfg *config.Config) string {
	if flagAddr != "" {
		return flagAddr
	}
	if cfg.Server.Port != 0 {
		host := cfg.Server.Host
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	}
	return ":8080"
}

func configurePool(db *sql.DB, cfg *config.Config) {
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime() > 0 {
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())
	}
}

func resolveDSN(flagDSN string, cfg *config.Config) string {
	if flagDSN != "" {
		return flagDSN
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return cfg.Database.DSN
}
