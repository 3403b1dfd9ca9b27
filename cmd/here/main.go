package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	here "github.com/goliatone/go-here"
	"github.com/goliatone/go-here/api"
	"github.com/goliatone/go-here/attendance"
	"github.com/goliatone/go-here/auth"
	"github.com/goliatone/go-here/config"
	"github.com/goliatone/go-here/notify"
	"github.com/goliatone/go-here/persistence"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "config/app.yml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "here: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}

	lgr := newLogger(cfg.Telemetry.LogLevel)
	log := lgr.named("app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flush, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flush); err != nil {
			log.Warn("failed to flush traces: %v", err)
		}
	}()

	db, err := persistence.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.Migrate {
		group, err := persistence.Migrate(ctx, db, here.GetMigrationsFS(), persistence.DialectName(db))
		if err != nil {
			return err
		}
		if group != nil && !group.IsZero() {
			log.Info("applied migrations %s", group)
		}
	}

	var store auth.CredentialStore
	if cfg.Redis.URL != "" {
		rs, err := auth.NewRedisStoreFromURL(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rs.Close()
		store = rs
	} else {
		log.Warn("no redis URL configured, revocations and OTPs are kept in memory")
		store = auth.NewMemoryStore(nil)
	}

	var mailer auth.Mailer = notify.LogMailer{Logger: lgr.named("mail")}
	if cfg.Broker.URL != "" {
		am, err := notify.DialAMQP(cfg.Broker.URL, cfg.Broker.Queue, notify.WithLogger(lgr.named("mail")))
		if err != nil {
			return err
		}
		defer am.Close()
		mailer = am
	}

	tokens := auth.NewTokenService([]byte(cfg.Auth.SigningKey),
		auth.WithTokenIssuer(cfg.Auth.Issuer),
		auth.WithTokenAudience(cfg.Auth.Audience),
		auth.WithTokenLogger(lgr.named("tokens")),
	)

	users := auth.NewRepositoryManager(db)
	if err := users.Validate(); err != nil {
		return err
	}

	accounts := auth.NewService(cfg.Auth, tokens, store, users,
		auth.WithMailer(mailer),
		auth.WithLogger(lgr.named("auth")),
		auth.WithActivitySink(lgr.named("activity").activitySink()),
	)

	guard := auth.NewGuard(tokens, store, auth.NewPrincipalStore(users),
		auth.WithBlacklistPrefix(cfg.Auth.BlacklistPrefix),
		auth.WithGuardLogger(lgr.named("guard")),
	)

	engine := attendance.NewEngine(attendance.NewRepositoryManager(db),
		attendance.WithEngineLogger(lgr.named("attendance")),
	)

	sweeper := attendance.NewSweeper(engine,
		attendance.WithSweepInterval(cfg.Attendance.SweepInterval),
		attendance.WithSweepTimeout(cfg.Attendance.SweepTimeout),
		attendance.WithCloseGrace(cfg.Attendance.CloseGrace),
		attendance.WithSweeperLogger(lgr.named("sweeper")),
	)
	go sweeper.Run(ctx)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:       cfg.Telemetry.ServiceName,
			StrictRouting: false,
		}))
	})

	ctrl := api.NewController(accounts, guard, engine,
		api.WithLogger(lgr.named("api")),
		api.WithDebug(cfg.Telemetry.LogLevel == "debug"),
		api.WithHealthCheck("database", db.PingContext),
		api.WithHealthCheck("credential_store", store.Ping),
	)
	ctrl.RegisterRoutes(srv.Router())

	errs := make(chan error, 2)

	go func() {
		log.Info("listening on %s", cfg.Server.Addr)
		errs <- srv.Serve(cfg.Server.Addr)
	}()

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("metrics on %s", cfg.Server.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errs <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errs:
		log.Error("server stopped: %v", err)
	}

	shutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdown); err != nil {
		log.Warn("http shutdown: %v", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdown); err != nil {
			log.Warn("metrics shutdown: %v", err)
		}
	}

	return err
}
