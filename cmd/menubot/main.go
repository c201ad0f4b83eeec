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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lojasmm/menubot/internal/bot"
	"github.com/lojasmm/menubot/internal/config"
	"github.com/lojasmm/menubot/internal/dispatch"
	"github.com/lojasmm/menubot/internal/store"
	"github.com/lojasmm/menubot/internal/whatsapp"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "menubot").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("could not parse log level")
	}
	logger = logger.Level(level)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("menubot")
	}
	logger.Info().Msg("stopped")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	if missing := cfg.Missing(); len(missing) > 0 {
		logger.Warn().Strs("vars", missing).Msg("provider settings not set, verification and sends will fail")
	}

	waClient := whatsapp.NewClient(cfg.PhoneNumberID, cfg.AccessToken,
		whatsapp.WithBaseURL(cfg.GraphAPIURL, cfg.GraphAPIVersion),
		whatsapp.WithHTTPClient(&http.Client{Timeout: cfg.SendTimeout}),
		whatsapp.WithRateLimit(cfg.SendRatePerSecond),
	)
	dispatcher := dispatch.New(cfg.MaxConcurrentSends, cfg.SendTimeout, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Left nil unless enabled so the bot sees an unset log, not a nil store.
	var deliveries bot.DeliveryLog
	if cfg.DeliveryLogPath != "" {
		db, err := store.NewBoltStore(cfg.DeliveryLogPath)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		defer db.Close()
		deliveries = db

		if cfg.DeliveryLogToken != "" {
			store.NewHandler(db, logger).Routes(r, cfg.DeliveryLogToken)
		} else {
			logger.Warn().Msg("DELIVERY_LOG_TOKEN not set, /deliveries not mounted")
		}
	}

	botHandler := bot.NewHandler(waClient, dispatcher, deliveries, logger)
	r.Handle("/webhook", whatsapp.NewWebhookHandler(cfg.VerifyToken, botHandler.HandleEvents, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("server: %w", err)
		}
	case <-quit:
		logger.Info().Msg("shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("pending replies dropped")
	}
	return runErr
}

// requestLogger is middleware.Logger writing through zerolog.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
