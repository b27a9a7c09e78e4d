// Package api exposes the gateway over HTTP and orchestrates the chat
// pipeline: classify locally, absorb duplicates, resolve follow-up context,
// invoke the model once, normalize, reply.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mathparenting/tutor-gateway/internal/circuitbreaker"
	"github.com/mathparenting/tutor-gateway/internal/domain"
	"github.com/mathparenting/tutor-gateway/internal/followup"
	"github.com/mathparenting/tutor-gateway/internal/idempotency"
	"github.com/mathparenting/tutor-gateway/internal/intent"
	"github.com/mathparenting/tutor-gateway/internal/mathtext"
	"github.com/mathparenting/tutor-gateway/internal/metrics"
	"github.com/mathparenting/tutor-gateway/internal/normalizer"
	"github.com/mathparenting/tutor-gateway/internal/prompt"
	"github.com/mathparenting/tutor-gateway/internal/provider"
	"github.com/mathparenting/tutor-gateway/internal/ratelimit"
	"github.com/mathparenting/tutor-gateway/internal/telemetry"
	"github.com/mathparenting/tutor-gateway/internal/usage"
)

// ApologyReply substitutes for completions that come back empty or
// unusable.
const ApologyReply = "Sorry, I could not generate a response. Please try again."

type HandlerConfig struct {
	Matcher      *mathtext.Matcher
	Classifier   *intent.Classifier
	Resolver     *followup.Resolver
	Idempotency  idempotency.Store
	Provider     provider.Provider
	Model        string
	Temperature  float64
	Breaker      *circuitbreaker.Breaker
	RateLimiter  ratelimit.RateLimiter
	RateLimitRPM int
	Usage        *usage.AsyncRecorder
	Health       *HealthHandler
	Admin        *AdminHandler
}

type Handler struct {
	matcher      *mathtext.Matcher
	classifier   *intent.Classifier
	resolver     *followup.Resolver
	idempotency  idempotency.Store
	provider     provider.Provider
	model        string
	temperature  float64
	breaker      *circuitbreaker.Breaker
	rateLimiter  ratelimit.RateLimiter
	rateLimitRPM int
	usage        *usage.AsyncRecorder
	mux          *http.ServeMux
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		matcher:      cfg.Matcher,
		classifier:   cfg.Classifier,
		resolver:     cfg.Resolver,
		idempotency:  cfg.Idempotency,
		provider:     cfg.Provider,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		breaker:      cfg.Breaker,
		rateLimiter:  cfg.RateLimiter,
		rateLimitRPM: cfg.RateLimitRPM,
		usage:        cfg.Usage,
		mux:          http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /v1/chat", h.handleChat)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	if cfg.Health != nil {
		h.mux.HandleFunc("GET /health", cfg.Health.handleHealth)
		h.mux.HandleFunc("GET /health/live", cfg.Health.handleLive)
		h.mux.HandleFunc("GET /health/ready", cfg.Health.handleReady)
	}
	if cfg.Admin != nil {
		h.mux.HandleFunc("GET /admin/usage/recent", cfg.Admin.handleRecentUsage)
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set("X-Request-ID", requestID)

	clientID := clientID(r)

	if h.rateLimiter != nil && h.rateLimitRPM > 0 {
		allowed, _, resetAt, err := h.rateLimiter.Allow(ctx, clientID, h.rateLimitRPM)
		if err != nil {
			slog.Warn("rate limiter error", "error", err, "request_id", requestID)
		}
		if !allowed {
			metrics.RateLimitHits.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())+1))
			writeError(w, http.StatusTooManyRequests, domain.ErrRateLimitExceeded.Error())
			return
		}
	}

	var req domain.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, domain.ErrNoMessages.Error())
		return
	}

	lastUser, ok := req.LastUserText()
	if !ok {
		writeError(w, http.StatusBadRequest, domain.ErrNoUserMessage.Error())
		return
	}

	// Local classification first: small talk and off-topic turns never
	// reach the model.
	result := h.classifier.Classify(lastUser)
	if result.Kind != intent.KindProceedToModel {
		h.finish(w, requestID, clientID, lastUser, result.Kind, result.Reply, start, false, domain.Usage{})
		return
	}

	if req.IdempotencyKey != "" {
		if reply, hit := h.idempotency.Get(ctx, req.IdempotencyKey); hit {
			metrics.IdempotencyHits.Inc()
			h.finish(w, requestID, clientID, lastUser, result.Kind, reply, start, true, domain.Usage{})
			return
		}
		metrics.IdempotencyMisses.Inc()
	}

	hint, hasHint := h.resolver.Resolve(req.Messages, lastUser)
	if hasHint {
		metrics.ContextHints.Inc()
	}

	chatReq := domain.ChatRequest{
		Model:       h.model,
		Messages:    prompt.Build(req.Messages, hint),
		Temperature: &h.temperature,
	}

	if h.breaker != nil {
		if err := h.breaker.Allow(ctx); err != nil {
			metrics.RecordProviderError(h.provider.ID(), "circuit_open")
			h.failUpstream(w, requestID, lastUser, clientID, start, err)
			return
		}
	}

	modelStart := time.Now()
	spanCtx, span := telemetry.StartModelSpan(ctx, h.provider.ID(), h.model)
	resp, err := h.provider.ChatCompletion(spanCtx, chatReq)
	span.End()
	modelDuration := time.Since(modelStart)

	if err != nil {
		if h.breaker != nil {
			h.breaker.RecordFailure(ctx)
		}
		metrics.RecordProviderError(h.provider.ID(), "request_failed")
		h.failUpstream(w, requestID, lastUser, clientID, start, err)
		return
	}

	if h.breaker != nil {
		h.breaker.RecordSuccess(ctx)
	}
	metrics.RecordModelCall(h.provider.ID(), h.model, modelDuration.Seconds(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	raw := strings.TrimSpace(resp.Text())
	var reply string
	if raw == "" {
		// Recovered locally with the apology text, never surfaced as an
		// error to the client.
		slog.Warn("empty completion, substituting apology",
			"error", domain.ErrMalformedOutput, "request_id", requestID, "provider", h.provider.ID())
		metrics.RecordProviderError(h.provider.ID(), "malformed_output")
		reply = ApologyReply
	} else {
		reply = normalizer.Normalize(raw)
		if reply != raw {
			metrics.NormalizerRewrites.Inc()
		}
	}

	// A cache write only happens once a fully-formed reply exists.
	if req.IdempotencyKey != "" {
		if err := h.idempotency.Set(ctx, req.IdempotencyKey, reply); err != nil {
			slog.Warn("failed to store idempotent reply", "error", err, "request_id", requestID)
		}
	}

	h.finish(w, requestID, clientID, lastUser, result.Kind, reply, start, false, resp.Usage)
}

// finish writes the success payload and records observability for the turn.
func (h *Handler) finish(w http.ResponseWriter, requestID, clientID, lastUser string, kind intent.Kind, reply string, start time.Time, cached bool, tokens domain.Usage) {
	duration := time.Since(start)

	topic := ""
	if t, ok := h.matcher.FirstTopic(lastUser); ok {
		topic = t
	}

	if kind != intent.KindProceedToModel {
		metrics.CannedReplies.WithLabelValues(string(kind)).Inc()
	}
	metrics.RecordRequest(string(kind), "200", duration.Seconds())

	providerID := ""
	model := ""
	if kind == intent.KindProceedToModel && !cached {
		providerID = h.provider.ID()
		model = h.model
	}

	if h.usage != nil {
		h.usage.Record(domain.UsageRecord{
			RequestID:        requestID,
			ClientID:         clientID,
			Intent:           string(kind),
			Topic:            topic,
			Provider:         providerID,
			Model:            model,
			PromptTokens:     tokens.PromptTokens,
			CompletionTokens: tokens.CompletionTokens,
			LatencyMs:        duration.Milliseconds(),
			Cached:           cached,
			Status:           "success",
			CreatedAt:        time.Now(),
		})
	}

	slog.Info("request completed",
		"request_id", requestID,
		"intent", string(kind),
		"topic", topic,
		"cached", cached,
		"duration_ms", duration.Milliseconds(),
	)

	writeJSON(w, http.StatusOK, domain.TurnReply{Reply: reply})
}

func (h *Handler) failUpstream(w http.ResponseWriter, requestID, lastUser, clientID string, start time.Time, err error) {
	duration := time.Since(start)

	slog.Error("completion call failed",
		"error", err,
		"request_id", requestID,
		"provider", h.provider.ID(),
		"duration_ms", duration.Milliseconds(),
	)

	metrics.RecordRequest(string(intent.KindProceedToModel), "502", duration.Seconds())

	if h.usage != nil {
		topic := ""
		if t, ok := h.matcher.FirstTopic(lastUser); ok {
			topic = t
		}
		h.usage.Record(domain.UsageRecord{
			RequestID: requestID,
			ClientID:  clientID,
			Intent:    string(intent.KindProceedToModel),
			Topic:     topic,
			Provider:  h.provider.ID(),
			Model:     h.model,
			LatencyMs: duration.Milliseconds(),
			Status:    "upstream_error",
			CreatedAt: time.Now(),
		})
	}

	msg := domain.ErrUpstream.Error()
	if errors.Is(err, domain.ErrCircuitBreakerOpen) {
		msg = domain.ErrCircuitBreakerOpen.Error()
	}
	writeError(w, http.StatusBadGateway, msg)
}

func clientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
