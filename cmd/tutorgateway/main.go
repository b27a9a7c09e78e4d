package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mathparenting/tutor-gateway/internal/api"
	"github.com/mathparenting/tutor-gateway/internal/catalog"
	"github.com/mathparenting/tutor-gateway/internal/circuitbreaker"
	"github.com/mathparenting/tutor-gateway/internal/config"
	"github.com/mathparenting/tutor-gateway/internal/followup"
	"github.com/mathparenting/tutor-gateway/internal/idempotency"
	"github.com/mathparenting/tutor-gateway/internal/intent"
	"github.com/mathparenting/tutor-gateway/internal/mathtext"
	"github.com/mathparenting/tutor-gateway/internal/metrics"
	"github.com/mathparenting/tutor-gateway/internal/notifications"
	"github.com/mathparenting/tutor-gateway/internal/provider"
	"github.com/mathparenting/tutor-gateway/internal/provider/anthropic"
	"github.com/mathparenting/tutor-gateway/internal/provider/bedrock"
	"github.com/mathparenting/tutor-gateway/internal/provider/ollama"
	"github.com/mathparenting/tutor-gateway/internal/provider/openai"
	"github.com/mathparenting/tutor-gateway/internal/queue"
	"github.com/mathparenting/tutor-gateway/internal/ratelimit"
	"github.com/mathparenting/tutor-gateway/internal/repository"
	"github.com/mathparenting/tutor-gateway/internal/secrets"
	"github.com/mathparenting/tutor-gateway/internal/telemetry"
	"github.com/mathparenting/tutor-gateway/internal/usage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	slog.Info("starting tutor gateway", "addr", cfg.Addr, "version", "0.3.0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, "tutor-gateway", cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	if cfg.SecretsName != "" && cfg.AWSRegion != "" {
		loadProviderKeys(ctx, cfg)
	}

	topics := catalog.Default()
	if cfg.TopicsPath != "" {
		topics, err = catalog.LoadFile(cfg.TopicsPath)
		if err != nil {
			slog.Error("failed to load topic catalog", "error", err, "path", cfg.TopicsPath)
			os.Exit(1)
		}
		slog.Info("loaded topic catalog", "path", cfg.TopicsPath, "topics", topics.Len())
	}

	matcher := mathtext.NewMatcher(topics)
	classifier := intent.NewClassifier(matcher)
	resolver := followup.NewResolver(matcher)

	var checkers []api.Checker

	var idemStore idempotency.Store
	if cfg.RedisURL != "" {
		redisStore, err := idempotency.NewRedisStore(cfg.RedisURL, cfg.IdempotencyTTL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		idemStore = redisStore
		checkers = append(checkers, api.CheckFunc{
			CheckerName: "redis",
			Fn:          redisStore.Ping,
		})
		slog.Info("using redis idempotency store", "ttl", cfg.IdempotencyTTL)
	} else {
		idemStore = idempotency.NewInMemoryStore(cfg.IdempotencyTTL)
		slog.Info("using in-memory idempotency store", "ttl", cfg.IdempotencyTTL)
	}

	var rateLimiter ratelimit.RateLimiter
	if cfg.RedisURL != "" {
		rateLimiter, err = ratelimit.NewRedisRateLimiter(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		slog.Info("using redis rate limiter")
	} else {
		rateLimiter = ratelimit.NewInMemoryRateLimiter()
		slog.Info("using in-memory rate limiter")
	}

	providers := make(map[string]provider.Provider)

	if cfg.OpenAIAPIKey != "" {
		providers["openai"] = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		slog.Info("registered provider", "provider", "openai")
	}

	if cfg.AnthropicAPIKey != "" {
		providers["anthropic"] = anthropic.New(cfg.AnthropicAPIKey)
		slog.Info("registered provider", "provider", "anthropic")
	}

	if cfg.OllamaBaseURL != "" {
		providers["ollama"] = ollama.New(cfg.OllamaBaseURL)
		slog.Info("registered provider", "provider", "ollama", "url", cfg.OllamaBaseURL)
	}

	if cfg.BedrockModelID != "" && cfg.AWSRegion != "" {
		bedrockProvider, err := bedrock.New(ctx, cfg.AWSRegion, cfg.BedrockModelID)
		if err != nil {
			slog.Error("failed to initialize bedrock provider", "error", err)
			os.Exit(1)
		}
		providers["bedrock"] = bedrockProvider
		slog.Info("registered provider", "provider", "bedrock", "model", cfg.BedrockModelID)
	}

	if len(providers) == 0 {
		slog.Error("no providers configured")
		os.Exit(1)
	}

	registry := provider.NewRegistry(providers, cfg.Provider)
	selected, err := registry.Select(cfg.Provider)
	if err != nil {
		slog.Error("default provider not registered", "error", err, "provider", cfg.Provider)
		os.Exit(1)
	}

	var notifier notifications.Notifier = notifications.LogNotifier{}
	if cfg.SNSTopicARN != "" && cfg.AWSRegion != "" {
		snsNotifier, err := notifications.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			slog.Warn("failed to initialize sns notifier, falling back to log notifier", "error", err)
		} else {
			notifier = snsNotifier
			slog.Info("using sns notifier", "topic", cfg.SNSTopicARN)
		}
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		OnStateChange:    breakerAlert(notifier, selected.ID()),
	})

	var sink usage.Sink = usage.NoopSink{}
	var adminHandler *api.AdminHandler

	if cfg.DatabaseURL != "" {
		usageRepo, err := repository.NewPostgresUsageRepository(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer usageRepo.Close()
		sink = usageRepo
		adminHandler = api.NewAdminHandler(usageRepo)
		checkers = append(checkers, api.CheckFunc{
			CheckerName: "postgres",
			Fn:          func(ctx context.Context) error { return usageRepo.DB().PingContext(ctx) },
		})
		slog.Info("recording usage to postgres")
	} else if cfg.UsageQueueURL != "" && cfg.AWSRegion != "" {
		sqsSink, err := queue.NewSQSUsageSink(ctx, cfg.AWSRegion, cfg.UsageQueueURL)
		if err != nil {
			slog.Error("failed to initialize sqs usage sink", "error", err)
			os.Exit(1)
		}
		sink = sqsSink
		slog.Info("recording usage to sqs", "queue", cfg.UsageQueueURL)
	}

	recorder := usage.NewAsyncRecorder(sink)
	defer recorder.Close()

	handler := api.NewHandler(api.HandlerConfig{
		Matcher:      matcher,
		Classifier:   classifier,
		Resolver:     resolver,
		Idempotency:  idemStore,
		Provider:     selected,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		Breaker:      breaker,
		RateLimiter:  rateLimiter,
		RateLimitRPM: cfg.RateLimitRPM,
		Usage:        recorder,
		Health:       api.NewHealthHandler(checkers...),
		Admin:        adminHandler,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("failed to flush traces", "error", err)
	}

	slog.Info("server stopped")
}

// loadProviderKeys fills in API keys from Secrets Manager when the
// environment leaves them blank.
func loadProviderKeys(ctx context.Context, cfg *config.Config) {
	store, err := secrets.NewAWSSecretsManager(ctx, cfg.AWSRegion)
	if err != nil {
		slog.Warn("failed to initialize secrets manager", "error", err)
		return
	}

	var keys secrets.ProviderKeys
	if err := store.GetSecretJSON(ctx, cfg.SecretsName, &keys); err != nil {
		slog.Warn("failed to load provider keys", "error", err, "secret", cfg.SecretsName)
		return
	}

	if cfg.OpenAIAPIKey == "" && keys.OpenAIAPIKey != "" {
		cfg.OpenAIAPIKey = keys.OpenAIAPIKey
	}
	if cfg.AnthropicAPIKey == "" && keys.AnthropicAPIKey != "" {
		cfg.AnthropicAPIKey = keys.AnthropicAPIKey
	}
	slog.Info("loaded provider keys from secrets manager", "secret", cfg.SecretsName)
}

func breakerAlert(notifier notifications.Notifier, providerID string) func(from, to circuitbreaker.State) {
	return func(from, to circuitbreaker.State) {
		metrics.SetCircuitBreakerState(providerID, int(to))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		switch to {
		case circuitbreaker.StateOpen:
			if err := notifier.Send(ctx, notifications.Notification{
				Type:     notifications.NotificationProviderDown,
				Provider: providerID,
				Message:  "circuit breaker opened after repeated completion failures",
				Data:     map[string]string{"previous_state": from.String()},
			}); err != nil {
				slog.Warn("failed to send provider down notification", "error", err)
			}
		case circuitbreaker.StateClosed:
			if from == circuitbreaker.StateHalfOpen {
				if err := notifier.Send(ctx, notifications.Notification{
					Type:     notifications.NotificationProviderUp,
					Provider: providerID,
					Message:  "circuit breaker closed, provider recovered",
				}); err != nil {
					slog.Warn("failed to send provider up notification", "error", err)
				}
			}
		}
	}
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
