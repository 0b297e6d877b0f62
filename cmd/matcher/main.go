// cmd/matcher/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"grantmatch/internal/ai"
	"grantmatch/internal/ai/gemini"
	"grantmatch/internal/alerts"
	"grantmatch/internal/cache"
	"grantmatch/internal/common/config"
	"grantmatch/internal/common/database"
	"grantmatch/internal/common/logger"
	"grantmatch/internal/common/observability"
	"grantmatch/internal/discovery"
	"grantmatch/internal/matching/scoring"
	"grantmatch/internal/store"

	dg "grantmatch/internal/workers/discovery/discover-grants"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
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
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting grant matcher...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("grant-matcher")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Build Matching Components ---
	matchCache := cache.NewMatchCache(redis.Client, cfg.Matching.CacheTTLDays, log)
	profiles := store.NewProfileStore(pg, matchCache, log)
	grants := store.NewGrantStore(pg, matchCache, log)
	search := store.NewGrantSearch(esClient, "grants", log)
	engine := scoring.NewEngine()

	var enricher ai.Enricher
	if cfg.AI.Enabled {
		generator, err := gemini.NewGenerator(ctx, cfg.AI.Gemini.APIKey, cfg.AI.Gemini.Model)
		if err != nil {
			zapLog.Fatal("gemini client failed", zap.Error(err))
		}
		enricher = gemini.NewEnricher(generator, log)
		zapLog.Info("AI enrichment enabled", zap.String("model", generator.Model()))
	} else {
		zapLog.Info("AI enrichment disabled, deterministic scores only")
	}

	pipeline := discovery.NewPipeline(engine, matchCache, enricher, cfg.Matching, log)

	var notifier *alerts.Notifier
	if cfg.Alerts.Email.Enabled || cfg.Alerts.SMS.Enabled {
		notifier, err = alerts.NewNotifier(ctx, cfg.Alerts, log)
		if err != nil {
			zapLog.Fatal("alert notifier failed", zap.Error(err))
		}
		zapLog.Info("Match alerts enabled")
	}

	// --- Register Workers ---
	if cfg.Workers[dg.TaskType].Enabled {
		wcfg := dg.LoadConfig()
		if t := cfg.Workers[dg.TaskType].Timeout; t > 0 {
			wcfg.Timeout = time.Duration(t) * time.Millisecond
		}
		if cfg.Matching.CandidateLimit > 0 {
			wcfg.CandidateLimit = cfg.Matching.CandidateLimit
		}
		handler := dg.NewHandler(wcfg, profiles, grants, search, pipeline, notifier, log)
		startWorker(zeebeClient, dg.TaskType, cfg.Workers[dg.TaskType], handler.Handle, zapLog)
	}

	zapLog.Info("All workers registered successfully")

	// --- Cache Sweep ---
	sweepCtx, stopSweep := context.WithCancel(ctx)
	go runCacheSweep(sweepCtx, matchCache, cfg.Matching.SweepInterval, log)

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	stopSweep()

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Grant matcher stopped gracefully")
}

// runCacheSweep periodically deletes expired match cache entries, on top
// of the read path's lazy eviction.
func runCacheSweep(ctx context.Context, matchCache *cache.MatchCache, intervalMinutes int, log logger.Logger) {
	if intervalMinutes <= 0 {
		intervalMinutes = 360
	}
	ticker := time.NewTicker(time.Duration(intervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted := matchCache.CleanupExpired(ctx)
			log.Info("match cache sweep completed", map[string]interface{}{
				"deleted": deleted,
			})
		}
	}
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
