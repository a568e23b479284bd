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

	adapthttp "quizfest/internal/adapter/http"
	"quizfest/internal/adapter/mail"
	"quizfest/internal/adapter/memory"
	"quizfest/internal/adapter/postgres"
	"quizfest/internal/adapter/redis"
	"quizfest/internal/adapter/sheets"
	"quizfest/internal/app"
	"quizfest/internal/config"
	"quizfest/internal/domain"
	"quizfest/internal/logger"
	"quizfest/internal/metrics"
	"quizfest/internal/security/token"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

type repository interface {
	domain.RegistrationRepository
	domain.ContactRepository
}

type limitStore interface {
	domain.RateLimitStore
	domain.MarkerStore
}

func loadConfig(configPath, envFile string) (*config.Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}
	return config.Load(configPath)
}

func serveCmd(configPath, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, *envFile)
			if err != nil {
				return err
			}
			log := logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
			defer logger.Sync()

			if err := cfg.Validate(); err != nil {
				var me *config.MissingError
				if errors.As(err, &me) {
					log.Error("missing required configuration", zap.Strings("names", me.Names))
				} else {
					log.Error("invalid configuration", zap.Error(err))
				}
				return errors.New("configuration is incomplete, see log")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	store, closeStore, err := openLimitStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	codec, err := token.New(cfg.Admin.SessionSecret, cfg.Session.MaxAge)
	if err != nil {
		return err
	}

	admin := domain.AdminPrincipal{
		Username:   cfg.Admin.Username,
		Password:   cfg.Admin.Password,
		TOTPSecret: cfg.Admin.TOTPSecret,
	}
	if !admin.TwoFactorEnabled() {
		log.Warn("ADMIN_TOTP_SECRET not set: admin login is single-factor")
	}

	audit := app.NewAuditor(log)
	authCfg := app.DefaultAuthConfig()
	authCfg.SessionTTL = cfg.Session.TTL
	authCfg.Rolling = cfg.Session.Rolling
	authCfg.Issuer = cfg.App.EventName + " Admin"

	svc := adapthttp.Services{
		Auth:          app.NewAuthService(admin, codec, store, audit, authCfg),
		Registrations: app.NewRegistrationService(repo, audit, cfg.Admin.AllowBulkList, notifiers(ctx, cfg, log)...),
		Exports:       app.NewExportService(repo, admin, audit),
		Contacts:      app.NewContactService(repo, audit),
		Limiter:       app.NewRateLimiter(store, cfg.RatePolicies()),
	}

	httpCfg := adapthttp.Config{
		WebDir:         cfg.Server.WebDir,
		CookieSecure:   cfg.CookieSecure(),
		Production:     cfg.Production(),
		ForceHTTPS:     cfg.ForceHTTPS(),
		TrustProxy:     cfg.Server.TrustProxy,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Logger:         log,
	}
	if cfg.Server.MetricsEnabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		httpCfg.Metrics = promhttp.Handler()
	}
	if cfg.SSOEnabled() {
		sso, err := adapthttp.NewSSO(ctx, adapthttp.SSOConfig{
			Issuer:       cfg.OIDC.Issuer,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.OIDC.RedirectURL,
			AdminEmail:   cfg.OIDC.AdminEmail,
		})
		if err != nil {
			return err
		}
		httpCfg.SSO = sso
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           adapthttp.New(svc, httpCfg).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env),
			zap.String("storage", cfg.Storage.Driver), zap.String("rate_store", cfg.Rate.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func openRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db open: %w", err)
		}
		return db, func() {
			if err := db.Close(); err != nil {
				log.Warn("db close", zap.Error(err))
			}
		}, nil
	default:
		log.Warn("using in-memory storage: registrations are lost on restart")
		return memory.New(), func() {}, nil
	}
}

func openLimitStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (limitStore, func(), error) {
	switch cfg.Rate.Store {
	case "redis":
		client, err := redis.Dial(ctx, redis.Options{
			Addr:     cfg.Rate.Redis.Addr,
			Password: cfg.Rate.Redis.Password,
			DB:       cfg.Rate.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return redis.New(client, cfg.Rate.Redis.Prefix), func() {
			if err := client.Close(); err != nil {
				log.Warn("redis close", zap.Error(err))
			}
		}, nil
	default:
		return memory.NewStore(memory.DefaultSweepInterval), func() {}, nil
	}
}

func notifiers(ctx context.Context, cfg *config.Config, log *zap.Logger) []app.Notifier {
	var out []app.Notifier

	mc := mail.Config{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		User:      cfg.SMTP.User,
		Pass:      cfg.SMTP.Pass,
		From:      cfg.SMTP.From,
		EventName: cfg.App.EventName,
	}
	if mc.Enabled() {
		out = append(out, mail.New(mc))
	} else {
		log.Info("smtp not configured: confirmation emails disabled")
	}

	sc := sheets.Config{
		SpreadsheetID: cfg.Sheets.SpreadsheetID,
		ClientEmail:   cfg.Sheets.ClientEmail,
		PrivateKey:    cfg.Sheets.PrivateKey,
	}
	if sc.Enabled() {
		n, err := sheets.New(context.WithoutCancel(ctx), sc)
		if err != nil {
			log.Warn("google sheets client: spreadsheet sync disabled", zap.Error(err))
		} else {
			out = append(out, n)
		}
	} else {
		log.Info("google sheets not configured: spreadsheet sync disabled")
	}
	return out
}

func sheetsHeaderCmd(configPath, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sheets-header",
		Short: "Write the column titles to the first row of the registration sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, *envFile)
			if err != nil {
				return err
			}
			sc := sheets.Config{
				SpreadsheetID: cfg.Sheets.SpreadsheetID,
				ClientEmail:   cfg.Sheets.ClientEmail,
				PrivateKey:    cfg.Sheets.PrivateKey,
			}
			if !sc.Enabled() {
				return errors.New("GOOGLE_SHEETS_ID, GOOGLE_SERVICE_ACCOUNT_EMAIL and GOOGLE_SERVICE_ACCOUNT_PRIVATE_KEY are required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			n, err := sheets.New(ctx, sc)
			if err != nil {
				return err
			}
			if err := n.WriteHeader(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "header written")
			return nil
		},
	}
}
