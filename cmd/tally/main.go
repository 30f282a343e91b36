package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/tally/internal/api"
	"github.com/p-blackswan/tally/internal/app"
	"github.com/p-blackswan/tally/internal/config"
	"github.com/p-blackswan/tally/internal/health"
	"github.com/p-blackswan/tally/internal/intake"
	"github.com/p-blackswan/tally/internal/realtime"
	slackpkg "github.com/p-blackswan/tally/internal/slack"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := app.NewLogger(os.Getenv("ENVIRONMENT"), "info", os.Stdout)
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel, os.Stdout)
	log.Logger = logger

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Str("api_addr", cfg.APIListenAddr).
		Str("extractor", cfg.Provider()).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Msg("starting tally")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	hub := realtime.NewHub(logger, realtime.WithOriginCheck(originCheck(cfg.CORSOriginList())))

	a, err := app.Build(ctx, cfg, logger, intake.WithNotifier(hub))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}
	defer a.Close()

	// Probe, metrics and live-update server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", health.LivenessHandler())
	mux.HandleFunc("/ready", a.Health.ReadinessHandler())
	mux.Handle("/metrics", a.Metrics.Handler())
	mux.Handle("/ws", hub)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	apiServer := api.NewServer(api.ServerConfig{
		ListenAddr:  cfg.APIListenAddr,
		CORSOrigins: cfg.CORSOriginList(),
	}, a.Intake, a.Store, a.Namer, logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}()

	if cfg.SlackEnabled() {
		middleware := slackpkg.NewMiddleware(logger, 10, time.Minute)
		handler := slackpkg.NewHandler(logger, middleware, a.Intake, a.Store, cfg.SlackReply)
		slackApp, slackErr := slackpkg.NewApp(cfg.SlackBotToken, cfg.SlackAppToken, cfg.SlackAllowedChannelList(), logger, handler)
		if slackErr != nil {
			logger.Error().Err(slackErr).Msg("failed to init Slack app (non-fatal)")
		} else {
			if authResp, authErr := slackApp.AuthTest(); authErr == nil {
				logger.Info().Str("bot_user_id", authResp.UserID).Msg("Slack bot identity resolved")
			} else {
				logger.Warn().Err(authErr).Msg("Slack auth test failed")
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := slackApp.Run(ctx); err != nil {
					logger.Error().Err(err).Msg("Slack Socket Mode error")
				}
			}()
		}
	} else {
		logger.Info().Msg("Slack not configured, running in API-only mode")
	}

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	cancel()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API server shutdown error")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("tally stopped")
}

// originCheck allows WebSocket upgrades from the configured CORS origins. With
// none configured every origin is accepted.
func originCheck(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin] || allowed["*"]
	}
}
