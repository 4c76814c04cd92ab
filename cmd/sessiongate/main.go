package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
	"github.com/Wang-tianhao/vibrant-session-gate/internal/config"
	"github.com/Wang-tianhao/vibrant-session-gate/internal/web"
	"github.com/Wang-tianhao/vibrant-session-gate/sessiongate"
	"github.com/Wang-tianhao/vibrant-session-gate/sessiontoken"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logger := config.NewLogger(cfg.Observability, os.Stdout)
	slog.SetDefault(logger)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	handler, err := buildHandler(cfg, logger)
	if err != nil {
		log.Fatalf("Startup error: %v", err)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("session gate listening", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

// buildHandler wires verifier, gate and pages from cfg
func buildHandler(cfg *config.Config, logger *slog.Logger) (http.Handler, error) {
	httpClient := &http.Client{Timeout: cfg.Auth.RequestTimeout}

	refresher, err := authclient.New(cfg.Auth.URL, cfg.Auth.AnonKey,
		authclient.WithHTTPClient(httpClient),
		authclient.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	tokenOpts := []sessiontoken.ConfigOption{
		sessiontoken.WithRefresher(refresher),
		sessiontoken.WithCookieOptions(web.CookieOptions(cfg)),
		sessiontoken.WithLogger(logger),
	}
	if cfg.Auth.JWTSecret != "" {
		tokenOpts = append(tokenOpts, sessiontoken.WithHS256([]byte(cfg.Auth.JWTSecret)))
	}
	if cfg.Auth.JWTPublicKeyFile != "" {
		key, err := sessiontoken.LoadRSAPublicKeyFile(cfg.Auth.JWTPublicKeyFile)
		if err != nil {
			return nil, err
		}
		tokenOpts = append(tokenOpts, sessiontoken.WithRS256(key))
	}
	if cfg.Auth.Issuer != "" {
		tokenOpts = append(tokenOpts, sessiontoken.WithIssuer(cfg.Auth.Issuer))
	}
	if cfg.Auth.Audience != "" {
		tokenOpts = append(tokenOpts, sessiontoken.WithAudience(cfg.Auth.Audience))
	}
	verifier, err := sessiontoken.New(tokenOpts...)
	if err != nil {
		return nil, err
	}
	logger.Info("session verifier configured", "algorithms", verifier.Config().AvailableAlgorithms())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gateOpts := []sessiongate.ConfigOption{
		sessiongate.WithVerifier(verifier),
		sessiongate.WithMatcher(web.GateMatcher()),
		sessiongate.WithVerifyTimeout(cfg.Gate.VerifyTimeout),
		sessiongate.WithLogger(logger),
	}
	if cfg.Gate.RedirectStatus != 0 {
		gateOpts = append(gateOpts, sessiongate.WithRedirectStatus(cfg.Gate.RedirectStatus))
	}
	if cfg.Observability.MetricsEnabled {
		gateOpts = append(gateOpts, sessiongate.WithMetrics(sessiongate.NewMetrics(reg, "sessiongate")))
	}
	// Policy file entries override the defaults above
	gateOpts = append(gateOpts, cfg.Gate.Policy.GateOptions()...)
	gate, err := sessiongate.NewConfig(gateOpts...)
	if err != nil {
		return nil, err
	}

	webOpts := []web.Option{web.WithLogger(logger), web.WithHTTPClient(httpClient)}
	if cfg.Observability.MetricsEnabled {
		webOpts = append(webOpts, web.WithGatherer(reg))
	}
	server, err := web.New(cfg, gate, webOpts...)
	if err != nil {
		return nil, err
	}
	return server.Router()
}
