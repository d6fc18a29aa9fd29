// Package breaker wraps a chat provider in a circuit breaker so a provider
// that keeps failing is skipped without paying its timeout on every request.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure Provider implements the interface.
var _ driven.ChatProvider = (*Provider)(nil)

// Defaults.
const (
	DefaultFailureThreshold = 3
	DefaultOpenTimeout      = 30 * time.Second
	DefaultInterval         = 60 * time.Second
)

// Config tunes the breaker.
type Config struct {
	// FailureThreshold is the consecutive failure count that opens the circuit.
	FailureThreshold uint32

	// OpenTimeout is how long the circuit stays open before a trial request.
	OpenTimeout time.Duration

	// Interval clears the closed-state counters periodically.
	Interval time.Duration
}

// Provider is a circuit-breaking ChatProvider decorator.
type Provider struct {
	inner driven.ChatProvider
	cb    *gobreaker.CircuitBreaker
}

// Wrap decorates inner with a breaker named after the provider.
func Wrap(inner driven.ChatProvider, cfg Config) *Provider {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = DefaultOpenTimeout
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	threshold := cfg.FailureThreshold

	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider %s circuit %s -> %s", name, from, to)
		},
		// Caller cancellation says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &Provider{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Name returns the wrapped provider's name.
func (p *Provider) Name() string {
	return p.inner.Name()
}

// Open reports whether the circuit is currently refusing requests.
func (p *Provider) Open() bool {
	return p.cb.State() == gobreaker.StateOpen
}

// Chat forwards to the wrapped provider unless the circuit is open.
func (p *Provider) Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (string, error) {
	out, err := p.cb.Execute(func() (interface{}, error) {
		return p.inner.Chat(ctx, messages, opts)
	})
	if err != nil {
		return "", err
	}
	reply, _ := out.(string)
	return reply, nil
}

// ChatStream counts only the stream open against the breaker.
func (p *Provider) ChatStream(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (driven.TokenStream, error) {
	out, err := p.cb.Execute(func() (interface{}, error) {
		return p.inner.ChatStream(ctx, messages, opts)
	})
	if err != nil {
		return nil, err
	}
	stream, _ := out.(driven.TokenStream)
	return stream, nil
}

// Close closes the wrapped provider.
func (p *Provider) Close() error {
	return p.inner.Close()
}
