package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/auth"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/config"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/httpapi"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/notify"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/obs"
)

var version = "0.1.0"

func main() {
	log := obs.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	obs.SetLevel(cfg.LogLevel)
	obs.InitBuildInfo(version)

	// Credential store: PostgreSQL when a DSN is configured, otherwise in-memory.
	var (
		store auth.Store
		db    *sql.DB
	)
	if cfg.DatabaseURL != "" {
		db, err = auth.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("open db")
		}
		store = auth.NewPGStore(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory credential store")
		store = auth.NewInMemoryStore()
	}

	var notifier auth.Notifier
	if smtpCfg := cfg.SMTP(); smtpCfg.Enabled() {
		notifier, err = notify.NewSMTPNotifier(smtpCfg)
		if err != nil {
			log.WithError(err).Fatal("configure smtp")
		}
	} else {
		notifier = notify.NewLogNotifier(log, smtpCfg.ResetURLBase)
	}

	tokens, err := auth.NewTokenService(cfg.Tokens())
	if err != nil {
		log.WithError(err).Fatal("token service")
	}
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	sessions, err := auth.NewSessionManager(store, tokens, hasher, notifier, auth.WithLogger(log))
	if err != nil {
		log.WithError(err).Fatal("session manager")
	}
	accounts, err := auth.NewAccounts(store, hasher)
	if err != nil {
		log.WithError(err).Fatal("accounts")
	}
	authn, err := auth.NewAuthenticator(tokens, store)
	if err != nil {
		log.WithError(err).Fatal("authenticator")
	}

	if sa, ok := cfg.Superadmin(); ok {
		bootCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		created, err := accounts.EnsureSuperadmin(bootCtx, sa)
		cancel()
		switch {
		case err != nil:
			log.WithError(err).Error("superadmin bootstrap failed")
		case created:
			log.WithField("email", sa.Email).Info("superadmin created")
		}
	}

	probe := httpapi.ReadyProbe{Store: store}
	api, err := httpapi.New(httpapi.Config{
		Sessions:          sessions,
		Accounts:          accounts,
		Authenticator:     authn,
		Cookies:           cfg.Cookies(),
		Ready:             probe,
		Version:           version,
		AllowedOrigins:    cfg.Origins(),
		AllowLocalOrigins: !cfg.Production(),
		TrustedProxies:    cfg.Proxies(),
		LoginRatePerSec:   cfg.LoginRatePerSec,
		LoginRateBurst:    cfg.LoginRateBurst,
	})
	if err != nil {
		log.WithError(err).Fatal("http api")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.WithError(err).Fatal("grpc listen")
		}
		grpcSrv = grpc.NewServer()
		httpapi.NewGRPCServer(probe).Register(grpcSrv)
		go func() {
			log.WithField("addr", cfg.GRPCAddr).Info("grpc health listening")
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.WithError(err).Error("grpc serve")
			}
		}()
	}

	log.WithFields(map[string]any{"version": version, "addr": srv.Addr}).Info("starting asset-admin-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if db != nil {
		_ = db.Close()
	}
	log.Info("stopped")
}
