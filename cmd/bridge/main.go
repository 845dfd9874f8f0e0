package main

import (
	"context"
	"database/sql"
	"errors"
	stdlog "log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kamafile/onboarding-bridge/internal/config"
	"github.com/kamafile/onboarding-bridge/internal/conversation"
	"github.com/kamafile/onboarding-bridge/internal/identity"
	"github.com/kamafile/onboarding-bridge/internal/logger"
	"github.com/kamafile/onboarding-bridge/internal/metrics"
	"github.com/kamafile/onboarding-bridge/internal/onboarding"
	"github.com/kamafile/onboarding-bridge/internal/web"
	"github.com/kamafile/onboarding-bridge/internal/whatsapp"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config error: %v", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- identity store ---
	var identities identity.Store
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("db open error")
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			log.Fatal().Err(err).Msg("db ping error")
		}

		identities, err = identity.NewPostgresStore(db)
		if err != nil {
			log.Fatal().Err(err).Msg("identity schema error")
		}
		log.Info().Msg("identity store: postgres")
	} else {
		store, err := identity.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("identity store error")
		}
		defer store.Close()
		identities = store
		log.Info().Str("path", cfg.Database.Path).Msg("identity store: sqlite")
	}

	// --- onboarding service client ---
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	client := onboarding.NewClient(cfg.Onboarding.URL,
		onboarding.WithToken(cfg.Onboarding.Token),
		onboarding.WithLogger(log.With().Str("component", "onboarding").Logger()),
	)
	transport := m.InstrumentTransport(client)

	// --- whatsapp channel ---
	sender := whatsapp.NewTwilioSender(
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.WhatsAppFrom,
		log.With().Str("component", "twilio").Logger(),
	)

	registry := whatsapp.NewRegistry(func(identifier string) *conversation.Controller {
		return conversation.NewController(
			conversation.NewStore(), transport, "whatsapp", identifier,
			conversation.WithControllerLogger(log.With().
				Str("component", "controller").
				Str("channel", "whatsapp").
				Logger()),
		)
	})
	go registry.Janitor(ctx, 10*time.Minute, time.Hour)

	waHandler := whatsapp.NewHandler(registry, sender, identities,
		log.With().Str("component", "whatsapp").Logger())

	// --- web channel ---
	wsHandler := web.NewSocketHandler(transport, identities, cfg.Web.AllowedOrigin,
		log.With().Str("component", "web").Logger())

	// --- router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.Web.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	whatsapp.RegisterRoutes(r, waHandler)
	web.RegisterRoutes(r, wsHandler)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("bridge listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
