package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"solsignal/internal/alerts/format"
	"solsignal/internal/fanout"
	fanouthandler "solsignal/internal/fanout/handler"
	fanoutmetrics "solsignal/internal/fanout/metrics"
	"solsignal/internal/lifecycle"
	lifecyclemetrics "solsignal/internal/lifecycle/metrics"
	"solsignal/internal/platform/config"
	"solsignal/internal/platform/httpserver"
	"solsignal/internal/platform/kafka"
	"solsignal/internal/platform/logger"
	"solsignal/internal/platform/metrics"
	"solsignal/internal/platform/middleware"
	"solsignal/internal/platform/tracing"
	"solsignal/internal/providers/helius"
	"solsignal/internal/providers/postmark"
	"solsignal/internal/registrysync"
	registrymetrics "solsignal/internal/registrysync/metrics"
	"solsignal/pkg/platform/httputil"
)

const shutdownTimeout = 10 * time.Second

// main wires configuration, stores, provider clients and services, then runs
// the HTTP server and the lifecycle workers until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if missing := cfg.Secrets.Missing(); len(missing) > 0 {
		log.Warn("secrets not set, invocations that need them will fail", "missing", missing)
	}

	_, shutdownTracing := tracing.Setup("solsignal")
	defer func() { _ = shutdownTracing(context.Background()) }()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("failed to close stores", "error", err)
		}
	}()

	mailer := postmark.NewClient(cfg.Secrets.PostmarkAPIKey, cfg.PostmarkBaseURL, cfg.PostmarkFrom, cfg.PostmarkMessageStream)
	registry := helius.NewClient(cfg.Secrets.HeliusAPIKey, cfg.HeliusBaseURL)

	dispatcher, err := fanout.New(st.subs, mailer, st.deliveries, format.Links{
		BaseURL:       cfg.AppBaseURL,
		SupportEmail:  cfg.SupportEmail,
		TemplateAlias: cfg.PostmarkTemplateAlias,
	},
		fanout.WithLogger(log),
		fanout.WithMetrics(fanoutmetrics.New()),
		fanout.WithConcurrency(cfg.DispatchConcurrency),
	)
	if err != nil {
		return err
	}

	syncer, err := registrysync.New(st.subs, registry, st.aggregate, cfg.HeliusWebhookID,
		registrysync.WithLogger(log),
		registrysync.WithMetrics(registrymetrics.New()),
		registrysync.WithTransactor(st.transactor),
		registrysync.WithSecretCheck(func() error {
			return cfg.Secrets.Require(config.SecretHeliusAPIKey)
		}),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	lcMetrics := lifecyclemetrics.New()

	var relayHandler lifecycle.Handler = syncer
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		producer, err := kafka.NewProducer(ctx, brokers, cfg.LifecycleTopic)
		if err != nil {
			return err
		}
		defer producer.Close()

		consumerClient, err := kafka.NewConsumer(ctx, brokers, cfg.LifecycleTopic, cfg.KafkaGroupID)
		if err != nil {
			return err
		}
		defer consumerClient.Close()

		relayHandler = lifecycle.NewKafkaPublisher(producer)
		consumer := lifecycle.NewConsumer(consumerClient, syncer,
			lifecycle.WithConsumerLogger(log),
			lifecycle.WithConsumerMetrics(lcMetrics),
		)
		g.Go(func() error { return ignoreCanceled(consumer.Run(gctx)) })
		log.Info("lifecycle events routed through kafka", "topic", cfg.LifecycleTopic, "group", cfg.KafkaGroupID)
	}

	relay, err := lifecycle.NewRelay(st.outbox, relayHandler,
		lifecycle.WithPollInterval(cfg.RelayPollInterval),
		lifecycle.WithBatchSize(cfg.RelayBatchSize),
		lifecycle.WithMaxAttempts(cfg.RelayMaxAttempts),
		lifecycle.WithRelayLogger(log),
		lifecycle.WithRelayMetrics(lcMetrics),
	)
	if err != nil {
		return err
	}
	g.Go(func() error { return ignoreCanceled(relay.Run(gctx)) })

	httpMetrics := metrics.New()
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(httpMetrics.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Health(r.Context()); err != nil {
			httputil.WriteText(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		httputil.WriteText(w, http.StatusOK, "ok")
	})
	router.Handle("/metrics", metrics.Handler())
	fanouthandler.New(dispatcher, st.aggregate, cfg.IngressAuthHeaderName, cfg.Secrets.IngressSecret, log).Register(router)

	srv := httpserver.New(cfg.HTTPAddr, router)
	g.Go(func() error {
		log.Info("starting solsignal", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("solsignal stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
