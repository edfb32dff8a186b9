package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	goIssuer "github.com/MrEthical07/goIssuer"
	"github.com/MrEthical07/goIssuer/httpapi"
	"github.com/MrEthical07/goIssuer/identity"
	"github.com/MrEthical07/goIssuer/identity/postgres"
	"github.com/MrEthical07/goIssuer/identity/sqlite"
	"github.com/MrEthical07/goIssuer/internal/logger"
	"github.com/MrEthical07/goIssuer/metrics/export/prometheus"
	"github.com/MrEthical07/goIssuer/sender"
)

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the issuer HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile, nil)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// closers runs cleanup in reverse registration order.
type closers []func()

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func serve(ctx context.Context, cfg daemonConfig) error {
	log, err := logger.New(logger.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Service: "issuerd"})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	iss, cleanup, err := buildIssuer(ctx, cfg, log)
	defer cleanup.run()
	if err != nil {
		return err
	}

	opts := httpapi.Options{Logger: log, TrustProxyHeaders: cfg.TrustProxy}
	if cfg.Metrics {
		opts.Metrics = prometheus.Handler(iss)
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(iss, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	report := iss.SecurityReport()
	log.Info("issuer ready",
		zap.String("addr", cfg.Addr),
		zap.Strings("providers", report.Providers),
		zap.Bool("production", report.ProductionMode),
		zap.Bool("rate_limiting", report.RateLimitingActive),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildIssuer(ctx context.Context, cfg daemonConfig, log *zap.Logger) (*goIssuer.Issuer, closers, error) {
	var cleanup closers

	icfg, err := cfg.issuerConfig()
	if err != nil {
		return nil, cleanup, err
	}
	if err := lintConfig(icfg, log); err != nil {
		return nil, cleanup, err
	}

	b := goIssuer.New().WithConfig(icfg).WithLogger(log)

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, cleanup, fmt.Errorf("ping redis: %w", err)
		}
		b.WithRedis(rdb)
	}

	dir, closeDir, err := openDirectory(ctx, cfg)
	if err != nil {
		return nil, cleanup, err
	}
	if closeDir != nil {
		cleanup = append(cleanup, closeDir)
	}
	if dir != nil {
		b.WithIdentity(dir)
	}

	if cfg.SMTP.Host != "" {
		smtp, err := sender.NewSMTP(cfg.smtpSender(), log)
		if err != nil {
			return nil, cleanup, err
		}
		b.WithSender(smtp)
	}

	if cfg.ClientsFile != "" {
		clients, err := goIssuer.LoadStaticClients(cfg.ClientsFile)
		if err != nil {
			return nil, cleanup, err
		}
		b.WithClientPolicy(clients)
	}

	if cfg.AuditLog {
		b.WithAuditSink(goIssuer.NewZapSink(log))
	}

	for _, p := range cfg.Providers {
		switch strings.TrimSpace(p) {
		case "password":
			b.WithPasswordProvider("password")
		case "code":
			b.WithEmailCodeProvider("code")
		case "":
		default:
			return nil, cleanup, fmt.Errorf("unknown provider %q", p)
		}
	}

	iss, err := b.Build()
	if err != nil {
		return nil, cleanup, err
	}
	cleanup = append(cleanup, iss.Close)
	return iss, cleanup, nil
}

// openDirectory picks Postgres, then SQLite. Neither configured leaves the
// builder's in-memory directory in place.
func openDirectory(ctx context.Context, cfg daemonConfig) (identity.Directory, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return pg, pg.Close, nil
	case cfg.SQLitePath != "":
		lite, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return lite, func() { _ = lite.Close() }, nil
	default:
		return nil, nil, nil
	}
}

// lintConfig logs every lint warning. In production mode high severity
// findings stop the daemon.
func lintConfig(cfg goIssuer.Config, log *zap.Logger) error {
	ws := cfg.Lint()
	for _, w := range ws {
		fields := []zap.Field{zap.String("code", w.Code), zap.Stringer("severity", w.Severity)}
		if w.Severity >= goIssuer.LintWarn {
			log.Warn(w.Message, fields...)
		} else {
			log.Info(w.Message, fields...)
		}
	}
	if cfg.Security.ProductionMode {
		return ws.AsError(goIssuer.LintHigh)
	}
	return nil
}
