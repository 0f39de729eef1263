package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"content-safety/internal/models"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// SystemInstruction frames every safety prompt
const SystemInstruction = "You are a content safety reviewer for a social platform. " +
	"Answer only with the JSON object requested, without commentary."

// Client wraps the Gemini API client
type Client struct {
	client     *genai.Client
	logger     *zap.Logger
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

// Config for Gemini client
type Config struct {
	APIKey     string
	ModelName  string // Default: "gemini-2.0-flash"
	MaxRetries int
	RetryDelay time.Duration
}

// NewClient creates a new Gemini client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash"
	}

	// One attempt per evaluation; callers fall back instead of retrying
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger.Info("Gemini client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		client:     client,
		logger:     logger,
		modelName:  cfg.ModelName,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// model builds a per-request model handle so generation settings never race
func (c *Client) model(req models.GenerateRequest) *genai.GenerativeModel {
	model := c.client.GenerativeModel(c.modelName)

	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction)},
	}

	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr(req.Temperature),
		TopP:            genai.Ptr[float32](0.9),
		TopK:            genai.Ptr[int32](40),
		MaxOutputTokens: genai.Ptr[int32](200),
	}
	return model
}

// Close closes the Gemini client
func (c *Client) Close() error {
	return c.client.Close()
}

// Probe fetches the model metadata to confirm key and model are usable
func (c *Client) Probe(ctx context.Context) error {
	if _, err := c.client.GenerativeModel(c.modelName).Info(ctx); err != nil {
		return fmt.Errorf("gemini model %s unavailable: %w", c.modelName, err)
	}
	return nil
}

// Generate runs one prompt, optionally with an inline image, and returns the text answer
func (c *Client) Generate(ctx context.Context, req models.GenerateRequest) (string, error) {
	parts := []genai.Part{genai.Text(req.Prompt)}
	if req.HasImage() {
		format := strings.TrimPrefix(req.ImageMIME, "image/")
		if format == "" {
			format = "jpeg"
		}
		parts = append(parts, genai.ImageData(format, req.Image))
	}

	model := c.model(req)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying Gemini request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", fmt.Errorf("gemini request cancelled: %w", ctx.Err())
			}
		}

		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = fmt.Errorf("gemini API error: %w", err)
			c.logger.Error("Gemini API error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("empty response from gemini")
			c.logger.Error("Empty response from Gemini", zap.Int("attempt", attempt+1))
			continue
		}

		var sb strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		if sb.Len() == 0 {
			lastErr = fmt.Errorf("unexpected response type from gemini")
			c.logger.Error("Unexpected response type", zap.Int("attempt", attempt+1))
			continue
		}

		c.logger.Debug("Gemini generation finished",
			zap.Bool("image", req.HasImage()),
			zap.Int("attempt", attempt+1))

		return sb.String(), nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    "gemini",
		"model":       c.modelName,
		"max_retries": c.maxRetries,
		"retry_delay": c.retryDelay.String(),
	}
}
