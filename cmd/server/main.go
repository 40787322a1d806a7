package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
	"finance-tracker/internal/handlers"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/logging"
	"finance-tracker/internal/middleware"
	"finance-tracker/internal/notify"
	"finance-tracker/internal/session"
	"finance-tracker/internal/storage"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second

	limiterPruneInterval = time.Minute
	limiterIdleTimeout   = 10 * time.Minute
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to YAML config file (default $CONFIG_FILE or config.yml)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		*configPath = os.Getenv("CONFIG_FILE")
	}
	if *configPath == "" {
		*configPath = config.DefaultPath
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.Log.Format, cfg.Debug)
	slog.SetDefault(logger)

	db, err := storage.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database ready", "path", cfg.Database.Path)

	creds := auth.NewCredentials(db)
	if err := bootstrapAdmin(ctx, creds, cfg.Admin, logger); err != nil {
		return err
	}

	sessions := session.NewManager(newSessionStore(cfg.Session.Backend, db), cfg.Session.Duration,
		logging.Component(logger, "session"))
	revoked, err := sessions.RevokeAll(ctx)
	if err != nil {
		return err
	}
	logger.Info("revoked sessions from previous run", "count", revoked)

	sender, closeSender, err := newSender(cfg.Notify, logger)
	if err != nil {
		return err
	}
	defer closeSender()

	h := handlers.NewHandlers(handlers.App{
		Credentials: creds,
		Sessions:    sessions,
		Ledger:      ledger.NewService(db),
		Notifier:    sender,
		Logger:      logger,
	}, cfg.Web.TemplateDir, cfg.Session.SecureCookie)

	authLimiter := middleware.AuthRateLimiter()

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: setupRouter(h, routerConfig{
			StaticDir:   cfg.Web.StaticDir,
			Metrics:     cfg.Metrics.Enabled,
			HSTS:        cfg.Session.SecureCookie,
			Logger:      logger,
			AuthLimiter: authLimiter,
		}),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "addr", srv.Addr, "debug", cfg.Debug,
			"session_backend", cfg.Session.Backend, "notify_backend", cfg.Notify.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return sessions.RunSweeper(gctx, cfg.Session.SweepInterval)
	})

	g.Go(func() error {
		return authLimiter.RunPruner(gctx, limiterPruneInterval, limiterIdleTimeout)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}

// bootstrapAdmin creates the configured admin account unless the username
// is already taken.
func bootstrapAdmin(ctx context.Context, creds *auth.Credentials, admin config.AdminConfig, logger *slog.Logger) error {
	if admin.Username == "" || admin.Password == "" {
		return nil
	}
	user, err := creds.Register(ctx, admin.Username, admin.Password, "")
	switch {
	case err == nil:
		logger.Info("created admin user", "username", user.Username)
	case errors.Is(err, auth.ErrDuplicateIdentity):
		logger.Debug("admin user already exists", "username", admin.Username)
	default:
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

func newSessionStore(backend string, db *storage.DB) session.Store {
	if backend == "memory" {
		return session.NewMemoryStore()
	}
	return session.NewSQLStore(db)
}

func newSender(cfg config.NotifyConfig, logger *slog.Logger) (notify.Sender, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case "smtp":
		return notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}), noop, nil
	case "amqp":
		sender, err := notify.NewAMQPSender(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, logging.Component(logger, "notify"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to broker: %w", err)
		}
		return sender, func() {
			if err := sender.Close(); err != nil {
				logger.Error("close broker connection", "error", err)
			}
		}, nil
	default:
		return notify.NewLogSender(logging.Component(logger, "notify")), noop, nil
	}
}

type routerConfig struct {
	StaticDir   string
	Metrics     bool
	HSTS        bool
	Logger      *slog.Logger
	AuthLimiter *middleware.IPRateLimiter
}

func setupRouter(h *handlers.Handlers, cfg routerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLog(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecurityHeaders(cfg.HSTS))
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))
	if cfg.Metrics {
		r.Use(middleware.Prometheus)
		r.Handle("/metrics", promhttp.Handler())
	}

	fileServer := http.FileServer(http.Dir(cfg.StaticDir))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	limiter := cfg.AuthLimiter
	if limiter == nil {
		limiter = middleware.AuthRateLimiter()
	}
	h.Routes(r, limiter.Limit)
	return r
}
