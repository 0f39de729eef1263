package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"content-safety/internal/chatcompletion"
	"content-safety/internal/gemini"
	"content-safety/internal/models"
	"content-safety/internal/ollama"

	"go.uber.org/zap"
)

// ProviderType represents the type of inference provider
type ProviderType string

const (
	ProviderOllama ProviderType = "ollama"
	ProviderGemini ProviderType = "gemini"
	ProviderOpenAI ProviderType = "openai"
)

// ProviderConfig holds configuration for a single provider instance
type ProviderConfig struct {
	Type       ProviderType `yaml:"type"`
	BaseURL    string       `yaml:"base_url"`
	APIKey     string       `yaml:"api_key"`
	ModelName  string       `yaml:"model_name"`
	ModelMatch string       `yaml:"model_match"` // probe accepts any listed model containing this
	// Rate limiting per provider, 0 disables it
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

// Provider interface for any inference provider
type Provider interface {
	Generate(ctx context.Context, req models.GenerateRequest) (string, error)
	Probe(ctx context.Context) error
	Close() error
	GetModelInfo() map[string]interface{}
}

// ErrNoProviders is returned when every provider failed or none is available
var ErrNoProviders = errors.New("no inference provider available")

// NewProvider builds one provider from its config, wrapped with the
// optional rate limiter and a circuit breaker
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	var provider Provider
	var err error

	switch cfg.Type {
	case ProviderOllama, "":
		provider = ollama.NewClient(ollama.Config{
			BaseURL:    cfg.BaseURL,
			ModelName:  cfg.ModelName,
			ModelMatch: cfg.ModelMatch,
		}, logger)
	case ProviderGemini:
		provider, err = gemini.NewClient(gemini.Config{
			APIKey:    cfg.APIKey,
			ModelName: cfg.ModelName,
		}, logger)
	case ProviderOpenAI:
		provider, err = chatcompletion.NewClient(chatcompletion.Config{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			ModelName: cfg.ModelName,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RequestsPerMinute > 0 {
		provider = NewRateLimitedProvider(provider, cfg.RequestsPerMinute, logger)
	}

	name := string(cfg.Type)
	if name == "" {
		name = string(ProviderOllama)
	}
	return NewBreakerProvider(provider, name, cfg.Breaker), nil
}

// RateLimitedProvider wraps a provider with rate limiting
type RateLimitedProvider struct {
	provider Provider
	limiter  *RateLimiter
	logger   *zap.Logger
}

// RateLimiter implements token bucket rate limiting
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		tokens:     requestsPerMinute,
		maxTokens:  requestsPerMinute,
		refillRate: time.Minute / time.Duration(requestsPerMinute),
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait := rl.reserve()
		if wait == 0 {
			return nil
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// reserve takes a token and returns 0, or returns how long to wait for one
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if refill := int(now.Sub(rl.lastRefill) / rl.refillRate); refill > 0 {
		rl.tokens += refill
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = rl.lastRefill.Add(time.Duration(refill) * rl.refillRate)
	}

	if rl.tokens > 0 {
		rl.tokens--
		return 0
	}
	return rl.refillRate - now.Sub(rl.lastRefill)
}

// NewRateLimitedProvider wraps a provider with rate limiting
func NewRateLimitedProvider(provider Provider, requestsPerMinute int, logger *zap.Logger) *RateLimitedProvider {
	return &RateLimitedProvider{
		provider: provider,
		limiter:  NewRateLimiter(requestsPerMinute),
		logger:   logger,
	}
}

func (p *RateLimitedProvider) Generate(ctx context.Context, req models.GenerateRequest) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		p.logger.Debug("Rate limit wait cancelled", zap.Error(err))
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.provider.Generate(ctx, req)
}

func (p *RateLimitedProvider) Probe(ctx context.Context) error {
	return p.provider.Probe(ctx)
}

func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}

func (p *RateLimitedProvider) GetModelInfo() map[string]interface{} {
	return p.provider.GetModelInfo()
}

// MultiProviderClient manages multiple providers with failover
type MultiProviderClient struct {
	providers    []Provider
	currentIndex int
	mu           sync.RWMutex
	logger       *zap.Logger
	failureCount map[int]int
	maxFailures  int
}

// MultiProviderConfig holds configuration for multiple providers
type MultiProviderConfig struct {
	Providers   []ProviderConfig
	MaxFailures int // Max consecutive failures before switching provider
}

// NewMultiProviderClient creates a failover chain from the configured providers.
// Providers that fail to build are skipped.
func NewMultiProviderClient(cfg MultiProviderConfig, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	providers := make([]Provider, 0, len(cfg.Providers))
	for i, providerCfg := range cfg.Providers {
		provider, err := NewProvider(providerCfg, logger)
		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", string(providerCfg.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		providers = append(providers, provider)

		logger.Info("Provider initialized",
			zap.String("type", string(providerCfg.Type)),
			zap.String("model", providerCfg.ModelName),
			zap.Int("rate_limit", providerCfg.RequestsPerMinute),
			zap.Int("index", i))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}

	return NewMultiProviderClientFrom(providers, cfg.MaxFailures, logger), nil
}

// NewMultiProviderClientFrom chains already built providers
func NewMultiProviderClientFrom(providers []Provider, maxFailures int, logger *zap.Logger) *MultiProviderClient {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	return &MultiProviderClient{
		providers:    providers,
		logger:       logger,
		failureCount: make(map[int]int),
		maxFailures:  maxFailures,
	}
}

// Probe checks every provider and keeps only the ones that answered.
// It fails when none did.
func (c *MultiProviderClient) Probe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	available := make([]Provider, 0, len(c.providers))
	var errs []error
	for i, provider := range c.providers {
		if err := provider.Probe(ctx); err != nil {
			c.logger.Warn("Provider unavailable",
				zap.Int("index", i),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		available = append(available, provider)
	}

	c.providers = available
	c.currentIndex = 0
	c.failureCount = make(map[int]int)

	if len(available) == 0 {
		return fmt.Errorf("%w: %w", ErrNoProviders, errors.Join(errs...))
	}
	return nil
}

// getCurrentProvider returns the current provider and its index
func (c *MultiProviderClient) getCurrentProvider() (Provider, int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.providers) == 0 {
		return nil, 0, 0
	}
	return c.providers[c.currentIndex], c.currentIndex, len(c.providers)
}

// switchToNextProvider switches to the next available provider
func (c *MultiProviderClient) switchToNextProvider() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.providers) == 0 {
		return
	}
	oldIndex := c.currentIndex
	c.currentIndex = (c.currentIndex + 1) % len(c.providers)

	c.logger.Info("Switching provider",
		zap.Int("from_index", oldIndex),
		zap.Int("to_index", c.currentIndex),
		zap.Int("total_providers", len(c.providers)))
}

// recordFailure records a failure for a provider and reports whether to switch
func (c *MultiProviderClient) recordFailure(providerIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount[providerIndex]++

	if c.failureCount[providerIndex] >= c.maxFailures {
		c.logger.Warn("Provider reached max failures",
			zap.Int("provider_index", providerIndex),
			zap.Int("failures", c.failureCount[providerIndex]))
		c.failureCount[providerIndex] = 0
		return true
	}

	return false
}

// resetFailureCount resets failure count for a provider
func (c *MultiProviderClient) resetFailureCount(providerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount[providerIndex] = 0
}

// Generate tries the current provider and moves down the chain on failure.
// Each provider is attempted at most once per call.
func (c *MultiProviderClient) Generate(ctx context.Context, req models.GenerateRequest) (string, error) {
	_, _, total := c.getCurrentProvider()
	if total == 0 {
		return "", ErrNoProviders
	}

	var errs []error
	for attempts := 0; attempts < total; attempts++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		provider, providerIndex, _ := c.getCurrentProvider()

		c.logger.Debug("Attempting generation",
			zap.Int("provider_index", providerIndex),
			zap.Int("attempt", attempts+1))

		result, err := provider.Generate(ctx, req)
		if err == nil {
			c.resetFailureCount(providerIndex)
			return result, nil
		}

		c.logger.Warn("Provider failed",
			zap.Int("provider_index", providerIndex),
			zap.Error(err))
		errs = append(errs, err)

		shouldSwitch := c.recordFailure(providerIndex)
		if shouldSwitch || isRateLimitError(err) || errors.Is(err, ErrBreakerOpen) {
			c.switchToNextProvider()
			continue
		}
		if total > 1 {
			c.switchToNextProvider()
		}
	}

	return "", fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// isRateLimitError checks if error is a rate limit error
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "rate limit")
}

// Close closes all providers
func (c *MultiProviderClient) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var lastErr error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// GetModelInfo returns information about the current provider
func (c *MultiProviderClient) GetModelInfo() map[string]interface{} {
	provider, index, total := c.getCurrentProvider()
	if provider == nil {
		return map[string]interface{}{"provider": "none", "total_providers": 0}
	}

	info := provider.GetModelInfo()
	c.mu.RLock()
	info["failure_count"] = c.failureCount[index]
	c.mu.RUnlock()
	info["provider_index"] = index
	info["total_providers"] = total
	return info
}
