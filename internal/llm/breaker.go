package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"content-safety/internal/models"

	"github.com/sony/gobreaker"
)

// ErrBreakerOpen is returned while a provider's breaker rejects calls
var ErrBreakerOpen = errors.New("provider circuit open")

// BreakerConfig tunes the per-provider circuit breaker
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"` // how long the breaker stays open
}

// BreakerProvider stops calling a provider after consecutive failures
// and lets a few requests through again once Timeout has passed.
type BreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps provider with a breaker named after it
func NewBreakerProvider(provider Provider, name string, cfg BreakerConfig) *BreakerProvider {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	maxFailures := cfg.MaxFailures
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// a caller giving up is not the provider's fault
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &BreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(settings),
	}
}

func (p *BreakerProvider) Generate(ctx context.Context, req models.GenerateRequest) (string, error) {
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.provider.Generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("breaker (%s): %w", p.breaker.Name(), ErrBreakerOpen)
	}
	if err != nil {
		return "", fmt.Errorf("breaker (%s): %w", p.breaker.Name(), err)
	}
	return out.(string), nil
}

func (p *BreakerProvider) Probe(ctx context.Context) error {
	return p.provider.Probe(ctx)
}

func (p *BreakerProvider) Close() error {
	return p.provider.Close()
}

func (p *BreakerProvider) GetModelInfo() map[string]interface{} {
	info := p.provider.GetModelInfo()
	info["breaker_state"] = p.breaker.State().String()
	return info
}

// State exposes the breaker state
func (p *BreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}
