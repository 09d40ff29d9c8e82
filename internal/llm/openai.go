package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const systemInstructions = "You are a screenwriter turning personal diary entries into episodes of a life documentary. Follow the requested output format exactly."

// OpenAIProvider calls the OpenAI Responses API.
type OpenAIProvider struct {
	Model  string
	apiKey string
	client *openai.Client
}

// NewOpenAIProvider creates a provider reading its key from apiKeyEnv.
func NewOpenAIProvider(model, apiKeyEnv string) *OpenAIProvider {
	key := os.Getenv(apiKeyEnv)
	p := &OpenAIProvider{Model: model, apiKey: key}
	if key != "" {
		client := openai.NewClient(option.WithAPIKey(key))
		p.client = &client
	}
	return p
}

func (o *OpenAIProvider) Name() string { return "openai/" + o.Model }

// IsAvailable checks if the API key is set.
func (o *OpenAIProvider) IsAvailable(context.Context) bool {
	return o.client != nil
}

// Generate sends a prompt to OpenAI and returns the response text.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if o.client == nil {
		return "", fmt.Errorf("OpenAI API key not configured: %w", ErrUnavailable)
	}

	params := responses.ResponseNewParams{
		Model:           o.Model,
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Instructions:    openai.String(systemInstructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	return strings.TrimSpace(resp.OutputText()), nil
}
