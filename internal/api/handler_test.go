package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mathparenting/tutor-gateway/internal/catalog"
	"github.com/mathparenting/tutor-gateway/internal/domain"
	"github.com/mathparenting/tutor-gateway/internal/followup"
	"github.com/mathparenting/tutor-gateway/internal/idempotency"
	"github.com/mathparenting/tutor-gateway/internal/intent"
	"github.com/mathparenting/tutor-gateway/internal/mathtext"
	"github.com/mathparenting/tutor-gateway/internal/normalizer"
)

// MockProvider implements provider.Provider for testing
type MockProvider struct {
	IDValue            string
	Calls              atomic.Int64
	ChatCompletionFunc func(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}

func (m *MockProvider) ID() string {
	return m.IDValue
}

func (m *MockProvider) ChatCompletion(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.Calls.Add(1)
	if m.ChatCompletionFunc != nil {
		return m.ChatCompletionFunc(ctx, req)
	}
	return completionWith("**Core Idea**\nAddition means putting equal groups together to find a total."), nil
}

// MockRateLimiter implements ratelimit.RateLimiter for testing
type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, clientID string, limit int) (bool, int, time.Time, error)
}

func (m *MockRateLimiter) Allow(ctx context.Context, clientID string, limit int) (bool, int, time.Time, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, clientID, limit)
	}
	return true, limit - 1, time.Now().Add(time.Minute), nil
}

func completionWith(text string) *domain.ChatResponse {
	return &domain.ChatResponse{
		ID:      "resp-123",
		Object:  "chat.completion",
		Model:   "gpt-4.1",
		Choices: []domain.Choice{{Message: &domain.Message{Role: domain.RoleAssistant, Content: text}}},
		Usage:   domain.Usage{PromptTokens: 100, CompletionTokens: 200, TotalTokens: 300},
	}
}

func setupTestHandler(t *testing.T) (*Handler, *MockProvider) {
	t.Helper()

	matcher := mathtext.NewMatcher(catalog.Default())
	mockProvider := &MockProvider{IDValue: "openai"}

	handler := NewHandler(HandlerConfig{
		Matcher:      matcher,
		Classifier:   intent.NewClassifierWithRand(matcher, func(n int) int { return 0 }),
		Resolver:     followup.NewResolver(matcher),
		Idempotency:  idempotency.NewInMemoryStore(10 * time.Second),
		Provider:     mockProvider,
		Model:        "gpt-4.1",
		Temperature:  0.4,
		RateLimiter:  &MockRateLimiter{},
		RateLimitRPM: 60,
		Health:       NewHealthHandler(),
	})

	return handler, mockProvider
}

func postChat(t *testing.T, handler http.Handler, req domain.TurnRequest) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	r := httptest.NewRequest("POST", "/v1/chat", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func decodeReply(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var reply domain.TurnReply
	if err := json.NewDecoder(w.Body).Decode(&reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return reply.Reply
}

func userTurn(texts ...string) domain.TurnRequest {
	var msgs []domain.Message
	for i, text := range texts {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		msgs = append(msgs, domain.Message{Role: role, Content: text})
	}
	return domain.TurnRequest{Messages: msgs}
}

func TestHandleChatValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid JSON",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON",
		},
		{
			name:       "empty messages",
			body:       `{"messages":[]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "no messages",
		},
		{
			name:       "no user message",
			body:       `{"messages":[{"role":"assistant","content":"hello"}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "no user message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mockProvider := setupTestHandler(t)

			r := httptest.NewRequest("POST", "/v1/chat", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.wantError) {
				t.Errorf("body = %q, want substring %q", w.Body.String(), tt.wantError)
			}
			if n := mockProvider.Calls.Load(); n != 0 {
				t.Errorf("provider called %d times, want 0", n)
			}
		})
	}
}

func TestHandleChatCannedReplies(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantKind intent.Kind
	}{
		{name: "greeting", text: "hi", wantKind: intent.KindGreeting},
		{name: "thanks", text: "thank you so much", wantKind: intent.KindThanks},
		{name: "farewell", text: "bye for now", wantKind: intent.KindFarewell},
		{name: "short nudge", text: "umm well", wantKind: intent.KindShortNudge},
		{name: "non-math redirect", text: "who is the president of Brazil?", wantKind: intent.KindNonMathRedirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mockProvider := setupTestHandler(t)

			w := postChat(t, handler, userTurn(tt.text))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			reply := decodeReply(t, w)
			if !slices.Contains(intent.Replies(tt.wantKind), reply) {
				t.Errorf("reply %q not in the %s pool", reply, tt.wantKind)
			}
			if n := mockProvider.Calls.Load(); n != 0 {
				t.Errorf("provider called %d times, want 0", n)
			}
		})
	}
}

func TestHandleChatProceedsToModel(t *testing.T) {
	handler, mockProvider := setupTestHandler(t)

	w := postChat(t, handler, userTurn("How do I explain addition to my 6 year old?"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	reply := decodeReply(t, w)
	if !strings.HasPrefix(reply, normalizer.OpeningSentence) {
		t.Errorf("reply should open with the standard sentence, got %q", reply)
	}
	if n := mockProvider.Calls.Load(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestHandleChatPassesTemperatureAndModel(t *testing.T) {
	handler, mockProvider := setupTestHandler(t)

	var got domain.ChatRequest
	mockProvider.ChatCompletionFunc = func(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
		got = req
		return completionWith("Fractions name equal parts of a whole."), nil
	}

	postChat(t, handler, userTurn("explain fractions please"))

	if got.Model != "gpt-4.1" {
		t.Errorf("model = %q, want gpt-4.1", got.Model)
	}
	if got.Temperature == nil || *got.Temperature != 0.4 {
		t.Errorf("temperature = %v, want 0.4", got.Temperature)
	}
	if len(got.Messages) == 0 || got.Messages[0].Role != domain.RoleSystem {
		t.Error("first outbound message should carry the system prompt")
	}
}

func TestHandleChatIdempotentReplay(t *testing.T) {
	handler, mockProvider := setupTestHandler(t)

	req := userTurn("How does long division work?")
	req.IdempotencyKey = "key-abc"

	first := postChat(t, handler, req)
	second := postChat(t, handler, req)

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d, want both 200", first.Code, second.Code)
	}
	if r1, r2 := decodeReply(t, first), decodeReply(t, second); r1 != r2 {
		t.Errorf("replay reply %q differs from original %q", r2, r1)
	}
	if n := mockProvider.Calls.Load(); n != 1 {
		t.Errorf("provider called %d times across replay, want 1", n)
	}
}

func TestHandleChatCannedRepliesSkipIdempotencyCache(t *testing.T) {
	handler, mockProvider := setupTestHandler(t)

	req := userTurn("hi")
	req.IdempotencyKey = "key-greeting"

	postChat(t, handler, req)

	// A later math question under the same key must not replay the canned
	// greeting.
	req.Messages = []domain.Message{{Role: domain.RoleUser, Content: "what is a prime number?"}}
	w := postChat(t, handler, req)

	reply := decodeReply(t, w)
	if slices.Contains(intent.Replies(intent.KindGreeting), reply) {
		t.Errorf("canned greeting leaked into the idempotency cache: %q", reply)
	}
	if n := mockProvider.Calls.Load(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
}

func TestHandleChatUpstreamFailure(t *testing.T) {
	handler, mockProvider := setupTestHandler(t)
	mockProvider.ChatCompletionFunc = func(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
		return nil, errors.New("connection refused")
	}

	w := postChat(t, handler, userTurn("teach me about percentages"))

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if !strings.Contains(w.Body.String(), "error") {
		t.Errorf("body = %q, want an error payload", w.Body.String())
	}
}

func TestHandleChatEmptyCompletionGetsApology(t *testing.T) {
	handler, mockProvider := setupTestHandler(t)
	mockProvider.ChatCompletionFunc = func(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
		return completionWith("   "), nil
	}

	w := postChat(t, handler, userTurn("explain decimals"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if reply := decodeReply(t, w); reply != ApologyReply {
		t.Errorf("reply = %q, want apology", reply)
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	matcher := mathtext.NewMatcher(catalog.Default())
	mockProvider := &MockProvider{IDValue: "openai"}

	handler := NewHandler(HandlerConfig{
		Matcher:     matcher,
		Classifier:  intent.NewClassifier(matcher),
		Resolver:    followup.NewResolver(matcher),
		Idempotency: idempotency.NewInMemoryStore(10 * time.Second),
		Provider:    mockProvider,
		Model:       "gpt-4.1",
		Temperature: 0.4,
		RateLimiter: &MockRateLimiter{
			AllowFunc: func(ctx context.Context, clientID string, limit int) (bool, int, time.Time, error) {
				return false, 0, time.Now().Add(time.Minute), nil
			},
		},
		RateLimitRPM: 60,
	})

	w := postChat(t, handler, userTurn("hi"))

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if n := mockProvider.Calls.Load(); n != 0 {
		t.Errorf("provider called %d times, want 0", n)
	}
}

func TestHandleChatFollowUpGetsContextHint(t *testing.T) {
	handler, mockProvider := setupTestHandler(t)

	var got domain.ChatRequest
	mockProvider.ChatCompletionFunc = func(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
		got = req
		return completionWith("Multiplication is repeated addition."), nil
	}

	postChat(t, handler, userTurn(
		"can you explain multiplication",
		"Multiplication combines equal groups.",
		"explain that again?",
	))

	hinted := false
	for _, m := range got.Messages {
		if m.Role == domain.RoleSystem && strings.Contains(m.Content, "multiplication") && strings.Contains(m.Content, "follow up") {
			hinted = true
		}
	}
	if !hinted {
		t.Error("outbound messages missing the multiplication context hint")
	}
}

func TestHealthEndpoints(t *testing.T) {
	handler, _ := setupTestHandler(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		r := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}

func TestReadinessReportsHealthyCheckers(t *testing.T) {
	health := NewHealthHandler(
		CheckFunc{CheckerName: "redis", Fn: func(ctx context.Context) error { return nil }},
		CheckFunc{CheckerName: "postgres", Fn: func(ctx context.Context) error { return nil }},
	)

	r := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()
	health.handleReady(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var status struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != "ready" {
		t.Errorf("status = %q, want ready", status.Status)
	}
	for _, name := range []string{"redis", "postgres"} {
		if status.Checks[name] != "ok" {
			t.Errorf("check %q = %q, want ok", name, status.Checks[name])
		}
	}
}

func TestReadinessReportsFailingChecker(t *testing.T) {
	matcher := mathtext.NewMatcher(catalog.Default())
	health := NewHealthHandler(CheckFunc{
		CheckerName: "postgres",
		Fn:          func(ctx context.Context) error { return errors.New("connection refused") },
	})

	handler := NewHandler(HandlerConfig{
		Matcher:     matcher,
		Classifier:  intent.NewClassifier(matcher),
		Resolver:    followup.NewResolver(matcher),
		Idempotency: idempotency.NewInMemoryStore(10 * time.Second),
		Provider:    &MockProvider{IDValue: "openai"},
		Model:       "gpt-4.1",
		Health:      health,
	})

	r := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(w.Body.String(), "not ready") {
		t.Errorf("body = %q, want not ready", w.Body.String())
	}
}
