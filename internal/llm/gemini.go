package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini API.
type GeminiProvider struct {
	Model  string
	client *genai.Client
}

// NewGeminiProvider creates a provider reading its key from apiKeyEnv. A
// missing key yields a provider that reports itself unavailable.
func NewGeminiProvider(ctx context.Context, model, apiKeyEnv string) (*GeminiProvider, error) {
	p := &GeminiProvider{Model: model}
	key := os.Getenv(apiKeyEnv)
	if key == "" {
		return p, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	p.client = client
	return p, nil
}

func (g *GeminiProvider) Name() string { return "gemini/" + g.Model }

// IsAvailable checks if a client was configured.
func (g *GeminiProvider) IsAvailable(context.Context) bool {
	return g.client != nil
}

// Generate sends a prompt to Gemini and returns the response text.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("Gemini API key not configured: %w", ErrUnavailable)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstructions, genai.RoleUser),
		MaxOutputTokens:   int32(maxTokens),
		Temperature:       genai.Ptr[float32](0.7),
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
