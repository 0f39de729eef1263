package analyzer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"content-safety/internal/fallback"
	"content-safety/internal/metrics"
	"content-safety/internal/models"

	"go.uber.org/zap"
)

// Generator is the remote inference backend, usually an llm.MultiProviderClient
type Generator interface {
	Generate(ctx context.Context, req models.GenerateRequest) (string, error)
	Probe(ctx context.Context) error
}

// VerdictCache stores remote text verdicts keyed by content
type VerdictCache interface {
	Get(ctx context.Context, text string) (models.Verdict, bool)
	Set(ctx context.Context, text string, v models.Verdict)
}

// Config for the remote analyzer
type Config struct {
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	TextTimeout  time.Duration `yaml:"text_timeout"`
	ImageTimeout time.Duration `yaml:"image_timeout"`
	MaxTextRunes int           `yaml:"max_text_runes"`
	Temperature  float32       `yaml:"temperature"`
}

func (c *Config) setDefaults() {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 2 * time.Second
	}
	if c.TextTimeout <= 0 {
		c.TextTimeout = 5 * time.Second
	}
	if c.ImageTimeout <= 0 {
		c.ImageTimeout = 10 * time.Second
	}
	if c.MaxTextRunes <= 0 {
		c.MaxTextRunes = 500
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.1
	}
}

// Analyzer is the Stage 2 semantic analyzer. Every method resolves to a
// verdict; backend failures fall through to the local heuristics.
type Analyzer struct {
	gen        Generator
	cache      VerdictCache
	heuristics *fallback.Heuristics
	cfg        Config
	logger     *zap.Logger

	probeOnce sync.Once
	status    atomic.Int32
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithCache enables the remote verdict cache
func WithCache(cache VerdictCache) Option {
	return func(a *Analyzer) {
		a.cache = cache
	}
}

// New creates an unprobed analyzer. A nil generator yields an analyzer
// that is permanently unavailable.
func New(gen Generator, heuristics *fallback.Heuristics, cfg Config, logger *zap.Logger, opts ...Option) *Analyzer {
	cfg.setDefaults()
	a := &Analyzer{
		gen:        gen,
		heuristics: heuristics,
		cfg:        cfg,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Noop returns the null-object analyzer: always unavailable, always fallback
func Noop(heuristics *fallback.Heuristics, logger *zap.Logger) *Analyzer {
	a := New(nil, heuristics, Config{}, logger)
	a.Probe(context.Background())
	return a
}

// Probe checks the backend once per process. Later calls return the
// first result without contacting the backend again.
func (a *Analyzer) Probe(ctx context.Context) Status {
	a.probeOnce.Do(func() {
		if a.gen == nil {
			a.status.Store(int32(StatusUnavailable))
			return
		}

		probeCtx, cancel := context.WithTimeout(ctx, a.cfg.ProbeTimeout)
		defer cancel()

		if err := a.gen.Probe(probeCtx); err != nil {
			a.logger.Warn("Remote analyzer unavailable, using local heuristics",
				zap.Error(err))
			a.status.Store(int32(StatusUnavailable))
			return
		}

		a.logger.Info("Remote analyzer available")
		a.status.Store(int32(StatusAvailable))
	})
	return a.Status()
}

// Status returns the probe outcome
func (a *Analyzer) Status() Status {
	return Status(a.status.Load())
}

// Available reports whether remote calls will be attempted
func (a *Analyzer) Available() bool {
	return a.Status() == StatusAvailable
}

// AnalyzeText returns the remote verdict for text, or the text heuristic
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) models.Verdict {
	if !a.Available() {
		return a.heuristics.Text(text)
	}

	if a.cache != nil {
		if v, ok := a.cache.Get(ctx, text); ok {
			metrics.Inc("remote_cache_hit")
			return v
		}
	}

	raw, err := a.generate(ctx, a.cfg.TextTimeout, models.GenerateRequest{
		Prompt:      TextPrompt(text, a.cfg.MaxTextRunes),
		Temperature: a.cfg.Temperature,
		JSON:        true,
	})
	if err != nil {
		a.logger.Warn("Remote text analysis failed, using fallback heuristics", zap.Error(err))
		metrics.Inc("remote_error")
		return a.heuristics.Text(text)
	}

	v := ParseResponse(raw, KindText)
	if a.cache != nil {
		a.cache.Set(ctx, text, v)
	}
	return v
}

// AnalyzeImage returns the remote verdict for an image, or the image heuristic
func (a *Analyzer) AnalyzeImage(ctx context.Context, buf []byte) models.Verdict {
	if !a.Available() {
		return fallback.Image(buf)
	}

	mime := fallback.ImageMIME(buf)
	if mime == "" {
		mime = "image/jpeg"
	}

	raw, err := a.generate(ctx, a.cfg.ImageTimeout, models.GenerateRequest{
		Prompt:      ImagePrompt(),
		Image:       buf,
		ImageMIME:   mime,
		Temperature: a.cfg.Temperature,
		JSON:        true,
	})
	if err != nil {
		a.logger.Warn("Remote image analysis failed, using fallback heuristics", zap.Error(err))
		metrics.Inc("remote_error")
		return fallback.Image(buf)
	}

	return ParseResponse(raw, KindImage)
}

// generate bounds one backend call; deadline and endpoint errors are treated alike
func (a *Analyzer) generate(ctx context.Context, timeout time.Duration, req models.GenerateRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		raw string
		err error
	}
	done := make(chan result, 1)

	start := time.Now()
	go func() {
		raw, err := a.gen.Generate(ctx, req)
		done <- result{raw: raw, err: err}
	}()

	// a backend that ignores ctx must not hold the caller past the deadline
	select {
	case r := <-done:
		a.logger.Debug("Remote analysis finished",
			zap.Bool("image", req.HasImage()),
			zap.Duration("took", time.Since(start)),
			zap.Bool("ok", r.err == nil))
		return r.raw, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
