package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"key": "value", "num": 42}`)
	require.NotNil(t, result)
	assert.Equal(t, "value", result["key"])
	assert.Equal(t, float64(42), result["num"])
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	result := ParseJSONResponse("```json\n{\"key\": \"value\"}\n```")
	require.NotNil(t, result)
	assert.Equal(t, "value", result["key"])
}

func TestParseJSONResponseWithPlainFence(t *testing.T) {
	result := ParseJSONResponse("```\n{\"key\": \"value\"}\n```")
	require.NotNil(t, result)
	assert.Equal(t, "value", result["key"])
}

func TestParseJSONResponseSurroundingProse(t *testing.T) {
	result := ParseJSONResponse("Sure! Here is the analysis:\n{\"tension\": 5}\nHope that helps.")
	require.NotNil(t, result)
	assert.Equal(t, float64(5), result["tension"])
}

func TestParseJSONResponseInvalid(t *testing.T) {
	assert.Nil(t, ParseJSONResponse("not json at all"))
}

func TestParseJSONResponseEmpty(t *testing.T) {
	assert.Nil(t, ParseJSONResponse(""))
}

func TestParseJSONResponseWhitespace(t *testing.T) {
	result := ParseJSONResponse("  \n  {\"key\": \"value\"}  \n  ")
	require.NotNil(t, result)
	assert.Equal(t, "value", result["key"])
}

func TestStripCodeFenceUnterminated(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, StripCodeFence("```json\n{\"a\": 1}"))
	assert.Equal(t, "plain", StripCodeFence("  plain  "))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"object", `prefix {"a": {"b": 1}} suffix`, `{"a": {"b": 1}}`},
		{"array", `Titles: [{"title": "x"}] done`, `[{"title": "x"}]`},
		{"braces in strings", `{"s": "a } tricky { string"}`, `{"s": "a } tricky { string"}`},
		{"escaped quote", `{"s": "say \"hi\" }"}`, `{"s": "say \"hi\" }"}`},
		{"skips invalid bracket prose", `[note] {"ok": true}`, `{"ok": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONNoMatch(t *testing.T) {
	for _, in := range []string{"", "no json", `{"unterminated": `, "} backwards {"} {
		_, err := ExtractJSON(in)
		assert.ErrorIs(t, err, ErrNoJSON, "input %q", in)
	}
}

func TestDecodeJSONTyped(t *testing.T) {
	var out struct {
		Logline  string   `json:"logline"`
		Keywords []string `json:"keywords"`
	}
	err := DecodeJSON("```json\n{\"logline\": \"A day.\", \"keywords\": [\"a\"]}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "A day.", out.Logline)
	assert.Equal(t, []string{"a"}, out.Keywords)
}

func TestDecodeJSONTriesLaterValues(t *testing.T) {
	var out map[string]any
	err := DecodeJSON(`See note [1]. The answer is {"title": "Rain"} as requested.`, &out)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "Rain"}, out)

	var typed struct {
		Score float64 `json:"score"`
	}
	err = DecodeJSON(`{"score": "high"} then {"score": 0.7}`, &typed)
	require.NoError(t, err)
	assert.Equal(t, 0.7, typed.Score)

	var list []string
	err = DecodeJSON(`{"a": 1} and {"b": 2}`, &list)
	assert.Error(t, err)
	assert.Nil(t, list)
}

func TestOllamaProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			json.NewEncoder(w).Encode(map[string]any{
				"models": []map[string]string{{"name": "llama3.2:latest"}},
			})
		case "/api/chat":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "llama3.2", body["model"])
			json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]string{"content": "  The Long Night  "},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider("llama3.2", srv.URL+"/")
	ctx := context.Background()
	assert.True(t, p.IsAvailable(ctx))

	out, err := p.Generate(ctx, "title please", 20)
	require.NoError(t, err)
	assert.Equal(t, "The Long Night", out)
	assert.Equal(t, "ollama/llama3.2", p.Name())
}

func TestOllamaProviderMissingModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"models": []map[string]string{{"name": "mistral"}}})
	}))
	defer srv.Close()

	assert.False(t, NewOllamaProvider("llama3.2", srv.URL).IsAvailable(context.Background()))
}

func TestOllamaProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewOllamaProvider("llama3.2", url)
	assert.False(t, p.IsAvailable(context.Background()))

	_, err := p.Generate(context.Background(), "hi", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestOpenAIProviderWithoutKey(t *testing.T) {
	t.Setenv("CHRONICLE_TEST_OPENAI_KEY", "")
	p := NewOpenAIProvider("gpt-4o-mini", "CHRONICLE_TEST_OPENAI_KEY")
	assert.False(t, p.IsAvailable(context.Background()))

	_, err := p.Generate(context.Background(), "hi", 10)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGeminiProviderWithoutKey(t *testing.T) {
	t.Setenv("CHRONICLE_TEST_GEMINI_KEY", "")
	p, err := NewGeminiProvider(context.Background(), "gemini-2.0-flash", "CHRONICLE_TEST_GEMINI_KEY")
	require.NoError(t, err)
	assert.False(t, p.IsAvailable(context.Background()))

	_, err = p.Generate(context.Background(), "hi", 10)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCreateProviderNoneAvailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	t.Setenv("CHRONICLE_TEST_OPENAI_KEY", "")
	t.Setenv("CHRONICLE_TEST_GEMINI_KEY", "")

	p := CreateProvider(context.Background(), Options{
		Provider:     "ollama",
		Model:        "llama3.2",
		OllamaURL:    srv.URL,
		OpenAIKeyEnv: "CHRONICLE_TEST_OPENAI_KEY",
		GeminiKeyEnv: "CHRONICLE_TEST_GEMINI_KEY",
	}, nil)
	assert.Nil(t, p)
}
