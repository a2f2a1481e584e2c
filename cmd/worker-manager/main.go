// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fds-analytics/internal/analytics/engine"
	"fds-analytics/internal/analytics/llm"
	"fds-analytics/internal/common/aws"
	"fds-analytics/internal/common/camunda"
	"fds-analytics/internal/common/config"
	"fds-analytics/internal/common/database"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/common/observability"

	aaq "fds-analytics/internal/workers/ai-conversation/answer-analytics-question"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("environment", cfg.App.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zapLog, log); err != nil {
		zapLog.Fatal("worker manager failed", zap.Error(err))
	}
	zapLog.Info("Worker manager stopped")
}

func run(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger) error {
	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint, log)
	defer obs.Shutdown()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err := retryWithBackoff(ctx, func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return err
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(ctx, func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		return err
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional: item suggestions) ---
	backends := engine.Backends{DB: pg.DB, Redis: rdb.Client}
	if cfg.Database.Elasticsearch.GetURL() != "" {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(ctx, func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("Elasticsearch unavailable, item suggestions disabled", zap.Error(err))
		} else {
			backends.ES = es.Client
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Init model and alerts ---
	model, err := llm.NewGeminiModel(ctx, cfg.Gemini, log)
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}
	backends.Model = model

	var alerter aws.Alerter = aws.NoopAlerter{}
	if cfg.Alerts.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Alerts.SNS.Region, cfg.Alerts.SNS.TopicARN)
		if err != nil {
			return fmt.Errorf("sns client: %w", err)
		}
		alerter = sns
	}

	core, err := engine.New(cfg, backends, log)
	if err != nil {
		return err
	}

	// --- Init Zeebe Client with retry ---
	zeebeClient, err := camunda.Connect(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, log)
	if err != nil {
		return fmt.Errorf("zeebe client: %w", err)
	}
	defer zeebeClient.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Register workers ---
	wcfg := config.GetWorkerConfig(cfg, aaq.TaskType)
	handler := aaq.NewHandler(aaq.LoadConfig(wcfg), aaq.Dependencies{
		Store:        core.Store,
		Assembler:    core.Assembler,
		Instructions: core.Instructions,
		Orchestrator: core.Orchestrator,
		Catalog:      core.Catalog.Declarations(),
		Execute:      core.Dispatcher.Execute,
		Alerter:      alerter,
		Turns:        obs,
	}, log)
	var jw worker.JobWorker
	if config.IsWorkerEnabled(cfg, aaq.TaskType) {
		jw = camunda.StartWorker(zeebeClient, aaq.TaskType, wcfg, handler.Handle, log)
	} else {
		zapLog.Warn("Worker disabled by configuration", zap.String("taskType", aaq.TaskType))
	}

	var ready atomic.Bool
	ready.Store(true)

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			writeStatus(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		if err := pg.Ping(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "postgres unavailable")
			return
		}
		if err := rdb.Ping(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := cfg.App.HTTPPort
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("Shutdown signal received, stopping workers...")
		ready.Store(false)
		if jw != nil {
			jw.Close()
			jw.AwaitClose()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
