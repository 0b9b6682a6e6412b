package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Client turns text into vectors for catalog storage and candidate search
type Client interface {
	// Embed returns the embedding of a single text
	Embed(ctx context.Context, text string) (pgvector.Vector, error)

	// Health checks if the embedding service is available
	Health(ctx context.Context) error
}

// EmbedRequest is the Ollama-compatible /api/embeddings request body
type EmbedRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	KeepAlive string `json:"keep_alive,omitempty"`
}

// EmbedResponse is the /api/embeddings response body
type EmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// ollamaClient implements Client for the Ollama embeddings API
type ollamaClient struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a new embedding client. dimensions is the expected
// vector length; responses of any other length are rejected so they never
// reach the vector column.
func NewOllamaClient(baseURL, model string, dimensions int, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &ollamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// Embed sends text to the embedding service and returns the vector
func (c *ollamaClient) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return pgvector.Vector{}, fmt.Errorf("text is required")
	}

	startTime := time.Now()

	reqBody, err := json.Marshal(EmbedRequest{
		Model:     c.model,
		Prompt:    text,
		KeepAlive: "5m",
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/embeddings", bytes.NewBuffer(reqBody))
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return pgvector.Vector{}, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var embResp EmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return pgvector.Vector{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if c.dimensions > 0 && len(embResp.Embedding) != c.dimensions {
		return pgvector.Vector{}, fmt.Errorf("embedding has %d dimensions, expected %d",
			len(embResp.Embedding), c.dimensions)
	}

	vec := make([]float32, len(embResp.Embedding))
	for i, v := range embResp.Embedding {
		vec[i] = float32(v)
	}

	c.logger.Debug("Embedding computed",
		"model", c.model,
		"text_length", len(text),
		"dimensions", len(vec),
		"duration_ms", time.Since(startTime).Milliseconds())

	return pgvector.NewVector(vec), nil
}

// Health checks if the embedding service is reachable
func (c *ollamaClient) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// ===================================================================
// Mock client for testing
// ===================================================================

// MockClient is a deterministic embedding client for tests
type MockClient struct {
	EmbedFunc  func(ctx context.Context, text string) (pgvector.Vector, error)
	HealthFunc func(ctx context.Context) error
	Dimensions int

	mu    sync.Mutex
	Calls []string
}

// NewMockClient creates a mock that hashes text into unit vectors of the given size
func NewMockClient(dimensions int) *MockClient {
	return &MockClient{Dimensions: dimensions}
}

func (m *MockClient) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, text)
	m.mu.Unlock()
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return HashVector(text, m.Dimensions), nil
}

func (m *MockClient) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// HashVector builds a deterministic unit vector from text. Only meant for
// tests and offline fixtures; it carries no semantic similarity.
func HashVector(text string, dimensions int) pgvector.Vector {
	if dimensions <= 0 {
		dimensions = 8
	}
	vec := make([]float32, dimensions)
	for i := range vec {
		h := fnv.New32a()
		fmt.Fprintf(h, "%d:%s", i, text)
		vec[i] = float32(h.Sum32()%2000)/1000 - 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return pgvector.NewVector(vec)
}
