package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable marks failures where the backend could not be reached or
// is not configured. Callers treat it like any other generation failure.
var ErrUnavailable = errors.New("llm backend unavailable")

// Provider is the interface for generative text backends.
type Provider interface {
	// Generate sends one prompt and returns the raw completion text. The
	// caller bounds the call through ctx.
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	// IsAvailable is a lightweight health check.
	IsAvailable(ctx context.Context) bool
	Name() string
}

// OllamaProvider is a local Ollama LLM provider.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string) *OllamaProvider {
	return &OllamaProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 180 * time.Second},
	}
}

func (o *OllamaProvider) Name() string { return "ollama/" + o.Model }

// IsAvailable checks if Ollama is running and the model is pulled.
func (o *OllamaProvider) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	zap.L().Named("llm").Warn("ollama model not found", zap.String("model", o.Model))
	return false
}

// Generate sends a prompt to Ollama and returns the response.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": 0.7,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return strings.TrimSpace(result.Message.Content), nil
}

// Options selects and configures a provider.
type Options struct {
	Provider     string
	Model        string
	OllamaURL    string
	OpenAIModel  string
	OpenAIKeyEnv string
	GeminiModel  string
	GeminiKeyEnv string
}

// CreateProvider returns the configured provider if it is available,
// otherwise the first available alternative in the order ollama, openai,
// gemini. It returns nil when no backend can be used.
func CreateProvider(ctx context.Context, opts Options, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}

	build := map[string]func() Provider{
		"ollama": func() Provider { return NewOllamaProvider(opts.Model, opts.OllamaURL) },
		"openai": func() Provider { return NewOpenAIProvider(opts.OpenAIModel, opts.OpenAIKeyEnv) },
		"gemini": func() Provider {
			p, err := NewGeminiProvider(ctx, opts.GeminiModel, opts.GeminiKeyEnv)
			if err != nil {
				logger.Warn("gemini client setup failed", zap.Error(err))
				return nil
			}
			return p
		},
	}

	order := []string{strings.ToLower(opts.Provider)}
	for _, name := range []string{"ollama", "openai", "gemini"} {
		if name != order[0] {
			order = append(order, name)
		}
	}

	for i, name := range order {
		newProvider, ok := build[name]
		if !ok {
			logger.Warn("unknown provider", zap.String("provider", name))
			continue
		}
		p := newProvider()
		if p == nil {
			continue
		}
		if p.IsAvailable(ctx) {
			logger.Info("using llm provider", zap.String("provider", p.Name()))
			return p
		}
		if i == 0 {
			logger.Info("preferred provider not available, trying fallbacks", zap.String("provider", name))
		}
	}

	logger.Warn("no LLM provider available; check Ollama is running or set an API key")
	return nil
}
