package domain

import "errors"

var (
	ErrNoMessages         = errors.New("no messages provided")
	ErrNoUserMessage      = errors.New("no user message in history")
	ErrUpstream           = errors.New("completion service error")
	ErrMalformedOutput    = errors.New("malformed completion output")
	ErrProviderNotFound   = errors.New("provider not found")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
)
