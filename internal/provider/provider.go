// Package provider defines the completion-service contract and a registry
// of configured backends. The gateway makes exactly one completion call per
// request that reaches this stage; there is no internal retry.
package provider

import (
	"context"

	"github.com/mathparenting/tutor-gateway/internal/domain"
)

type Provider interface {
	ID() string
	ChatCompletion(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}

// Registry holds the configured providers and the default selection.
type Registry struct {
	providers map[string]Provider
	defaultID string
}

func NewRegistry(providers map[string]Provider, defaultID string) *Registry {
	return &Registry{
		providers: providers,
		defaultID: defaultID,
	}
}

// Select returns the provider with the given id, falling back to the
// default, then to any registered provider.
func (r *Registry) Select(id string) (Provider, error) {
	if id != "" {
		if p, ok := r.providers[id]; ok {
			return p, nil
		}
		return nil, domain.ErrProviderNotFound
	}

	if p, ok := r.providers[r.defaultID]; ok {
		return p, nil
	}

	for _, p := range r.providers {
		return p, nil
	}

	return nil, domain.ErrProviderNotFound
}
