// Command server wires the agendahub service: postgres-backed registration
// and payment state, optional redis snapshot cache, optional kafka domain
// events, and the chi HTTP surface. Business logic lives in the internal
// service packages; main only assembles and supervises.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agendahub/internal/agenda/cache"
	agendahandler "agendahub/internal/agenda/handler"
	agendametrics "agendahub/internal/agenda/metrics"
	agendaservice "agendahub/internal/agenda/service"
	"agendahub/internal/agenda/store"
	"agendahub/internal/jwttoken"
	"agendahub/internal/member"
	"agendahub/internal/payment/gateway"
	paymenthandler "agendahub/internal/payment/handler"
	paymentmetrics "agendahub/internal/payment/metrics"
	paymentservice "agendahub/internal/payment/service"
	"agendahub/internal/platform/config"
	"agendahub/internal/platform/events"
	"agendahub/internal/platform/httpserver"
	"agendahub/internal/platform/logger"
	"agendahub/internal/platform/middleware"
	platformredis "agendahub/internal/platform/redis"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		log.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("postgres unreachable", "error", err)
		os.Exit(1)
	}

	agendaStore := store.NewPostgres(db)
	memberStore := member.NewPostgres(db)
	if err := agendaStore.EnsureSchema(ctx); err != nil {
		log.Error("agenda schema", "error", err)
		os.Exit(1)
	}
	if err := memberStore.EnsureSchema(ctx); err != nil {
		log.Error("member schema", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, err := events.New(ctx, cfg.Kafka, log)
	if err != nil {
		log.Error("kafka connect", "error", err)
		os.Exit(1)
	}
	if publisher != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			publisher.Close(closeCtx)
		}()
	}

	tokens := jwttoken.New(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	memberSvc := member.NewService(memberStore, tokens, log)

	agendaSvc, err := agendaservice.New(agendaStore, memberStore,
		agendaservice.WithLogger(log),
		agendaservice.WithCache(cache.New(redisClient, config.AgendaCacheTTL, log)),
		agendaservice.WithMetrics(agendametrics.New()),
		agendaservice.WithEvents(publisher),
	)
	if err != nil {
		log.Error("agenda service", "error", err)
		os.Exit(1)
	}

	gatewayClient := gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Gateway.ServerKey,
		&http.Client{Timeout: cfg.Gateway.ChargeTimeout})
	paymentSvc, err := paymentservice.New(agendaStore, gatewayClient, cfg.Gateway.ServerKey,
		paymentservice.WithLogger(log),
		paymentservice.WithMetrics(paymentmetrics.New()),
		paymentservice.WithEvents(publisher),
	)
	if err != nil {
		log.Error("payment service", "error", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(30 * time.Second))

	member.NewHandler(memberSvc).Register(router)
	var handlerOpts []agendahandler.Option
	if limiter := platformredis.NewFixedWindowLimiter(redisClient, "guest-register", cfg.RateLimit.GuestLimit, cfg.RateLimit.GuestWindow); limiter != nil && cfg.RateLimit.GuestLimit > 0 {
		handlerOpts = append(handlerOpts, agendahandler.WithGuestRateLimit(middleware.RateLimit(limiter, log)))
	}

	agendahandler.New(agendaSvc, memberSvc, tokens, log, handlerOpts...).Register(router)
	paymenthandler.New(paymentSvc, tokens, log).Register(router)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("agendahub listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
