package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"content-safety/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "gemma3:270m"
	DefaultModelMatch = "gemma"
)

// ErrModelNotFound is returned by Probe when the server lists no matching model
var ErrModelNotFound = errors.New("no matching model installed")

// Client talks to a local or remote Ollama server
type Client struct {
	baseURL    string
	modelName  string
	modelMatch string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config for Ollama client
type Config struct {
	BaseURL    string
	ModelName  string // Default: "gemma3:270m"
	ModelMatch string // Default: "gemma"
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Images  []string        `json:"images,omitempty"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float32 `json:"temperature"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewClient creates a new Ollama client. Deadlines come from the caller's context.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModel
	}
	if cfg.ModelMatch == "" {
		cfg.ModelMatch = DefaultModelMatch
	}

	logger.Info("Ollama client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.ModelName))

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		modelName:  cfg.ModelName,
		modelMatch: strings.ToLower(cfg.ModelMatch),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Probe lists installed models and succeeds when one of them matches
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama api error (status %d): %s", resp.StatusCode, string(body))
	}

	var tags tagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	for _, m := range tags.Models {
		if strings.Contains(strings.ToLower(m.Name), c.modelMatch) {
			c.logger.Debug("Ollama model found", zap.String("model", m.Name))
			return nil
		}
	}
	return fmt.Errorf("%w: want %q", ErrModelNotFound, c.modelMatch)
}

// Generate sends one non-streaming prompt and returns the raw completion text
func (c *Client) Generate(ctx context.Context, in models.GenerateRequest) (string, error) {
	reqBody := generateRequest{
		Model:   c.modelName,
		Prompt:  in.Prompt,
		Stream:  false,
		Options: generateOptions{Temperature: in.Temperature},
	}
	if in.HasImage() {
		reqBody.Images = []string{base64.StdEncoding.EncodeToString(in.Image)}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama api error (status %d): %s", resp.StatusCode, string(body))
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	c.logger.Debug("Ollama generation finished",
		zap.String("model", c.modelName),
		zap.Bool("image", in.HasImage()),
		zap.Duration("took", time.Since(start)))

	return out.Response, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider": "ollama",
		"model":    c.modelName,
		"base_url": c.baseURL,
	}
}
