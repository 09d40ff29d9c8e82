package episode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/conflict"
	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/llm"
	"github.com/TobiSchelling/chronicle/internal/logging"
	"github.com/TobiSchelling/chronicle/internal/style"
)

// ErrCombinedParse is returned when the single-request strategy cannot
// produce a complete episode.
var ErrCombinedParse = errors.New("combined episode response unusable")

const combinedPrompt = `You are the showrunner of a personal life documentary series. Turn the diary entry below into a complete episode in one pass.

Produce:
- conflict: the day's internal and external conflicts, a tension level from 1 to 10, the best fitting archetype and a one-sentence central conflict
- narrative: a short cinematic paragraph (2-4 sentences) in third person, present tense
- title_options: 3 to 5 candidate episode titles of 3-7 words, each with the rhetorical pattern used and a score from 0.0 to 1.0
- logline: one sentence of at most 15 words
- synopsis: two or three sentences summarizing the episode
- keywords: up to 5 short lowercase keywords

The mood of the day is %s.

Diary entry:
%s`

const combinedMaxTokens = 1200

type combinedConflict struct {
	Internal        []string `json:"internal" jsonschema:"required"`
	External        []string `json:"external" jsonschema:"required"`
	Tension         int      `json:"tension" jsonschema:"required,minimum=1,maximum=10"`
	Archetype       string   `json:"archetype" jsonschema:"required,enum=person vs self,enum=person vs person,enum=person vs environment,enum=person vs system,enum=person vs time,enum=none"`
	CentralConflict string   `json:"central_conflict" jsonschema:"required"`
}

type combinedTitleOption struct {
	Title   string  `json:"title" jsonschema:"required"`
	Pattern string  `json:"pattern" jsonschema:"required"`
	Score   float64 `json:"score" jsonschema:"required,minimum=0,maximum=1"`
}

// combinedDocument is the shape requested from the backend. It exists to
// generate the JSON Schema embedded in the prompt.
type combinedDocument struct {
	Conflict     combinedConflict      `json:"conflict" jsonschema:"required"`
	Narrative    string                `json:"narrative" jsonschema:"required"`
	TitleOptions []combinedTitleOption `json:"title_options" jsonschema:"required,minItems=1,maxItems=5"`
	Logline      string                `json:"logline" jsonschema:"required"`
	Synopsis     string                `json:"synopsis" jsonschema:"required"`
	Keywords     []string              `json:"keywords" jsonschema:"required,maxItems=5"`
}

var (
	schemaOnce sync.Once
	schemaText string
)

// CombinedSchema returns the JSON Schema of the combined document.
func CombinedSchema() string {
	schemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties:  false,
			DoNotReference:             true,
			RequiredFromJSONSchemaTags: true,
		}
		b, err := json.MarshalIndent(reflector.Reflect(&combinedDocument{}), "", "  ")
		if err != nil {
			panic(fmt.Sprintf("reflecting combined schema: %v", err))
		}
		schemaText = string(b)
	})
	return schemaText
}

// Combined holds every derived field from one backend response.
type Combined struct {
	Conflict     *database.ConflictProfile
	Narrative    string
	Title        string
	TitleOptions []database.TitleOption
	Metadata     *database.EpisodeMetadata
}

// Apply sets every derived group on e.
func (c *Combined) Apply(e *database.Entry) {
	e.Conflict = c.Conflict
	e.NarrativeText = &c.Narrative
	e.Title = &c.Title
	e.TitleOptions = c.TitleOptions
	e.Metadata = c.Metadata
}

// CombinedGenerator requests the whole episode in one call.
type CombinedGenerator struct {
	caller
	guide   *style.Guide
	timeout time.Duration
}

// NewCombinedGenerator creates a combined generator. provider and cache may
// be nil.
func NewCombinedGenerator(provider llm.Provider, cache *Cache, guide *style.Guide, timeout time.Duration, logger *zap.Logger) *CombinedGenerator {
	return &CombinedGenerator{
		caller:  caller{provider: provider, cache: cache, logger: logging.OrNop(logger).Named("combined")},
		guide:   guide,
		timeout: orDefault(timeout, DefaultTimeouts().Combined),
	}
}

// Prompt builds the combined prompt.
func (g *CombinedGenerator) Prompt(rawText string, mood style.Mood) string {
	base := g.guide.Enhance(fmt.Sprintf(combinedPrompt, mood, rawText), mood)
	return base + "\n\nRespond with ONLY a JSON document matching this JSON Schema:\n" + CombinedSchema() + "\n\nJSON:"
}

// Generate returns all derived fields or an error wrapping ErrCombinedParse.
func (g *CombinedGenerator) Generate(ctx context.Context, rawText string, mood style.Mood) (*Combined, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("%w: empty entry", ErrCombinedParse)
	}

	prompt := g.Prompt(rawText, mood)
	resp, cached, ok := g.complete(ctx, "combined", prompt, g.timeout, combinedMaxTokens)
	if !ok {
		return nil, fmt.Errorf("%w: no backend response", ErrCombinedParse)
	}

	c, err := ParseCombined(resp)
	if err != nil {
		return nil, err
	}
	g.remember(prompt, resp, cached)
	c.Narrative = g.guide.AddSensoryLayer(c.Narrative)
	return c, nil
}

// ParseCombined validates a complete combined document. Every key must be
// present with the right type.
func ParseCombined(resp string) (*Combined, error) {
	var data map[string]any
	if err := llm.DecodeJSON(resp, &data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCombinedParse, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: not an object", ErrCombinedParse)
	}
	for _, key := range []string{"conflict", "narrative", "title_options", "logline", "synopsis", "keywords"} {
		if v, ok := data[key]; !ok || v == nil {
			return nil, fmt.Errorf("%w: missing %s", ErrCombinedParse, key)
		}
	}

	conflictFields, ok := data["conflict"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: conflict is %T", ErrCombinedParse, data["conflict"])
	}
	profile, err := conflict.FromFields(conflictFields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCombinedParse, err)
	}

	narrative, ok := data["narrative"].(string)
	if !ok || strings.TrimSpace(narrative) == "" {
		return nil, fmt.Errorf("%w: narrative missing or blank", ErrCombinedParse)
	}

	items, ok := data["title_options"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: title_options is %T", ErrCombinedParse, data["title_options"])
	}
	options, err := titleOptionsFrom(items)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCombinedParse, err)
	}
	best, _ := Best(options)

	meta, err := metadataFrom(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCombinedParse, err)
	}

	return &Combined{
		Conflict:     profile,
		Narrative:    strings.TrimSpace(narrative),
		Title:        best.Title,
		TitleOptions: options,
		Metadata:     meta,
	}, nil
}
