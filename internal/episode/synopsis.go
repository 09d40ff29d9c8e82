package episode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/llm"
	"github.com/TobiSchelling/chronicle/internal/logging"
)

const synopsisPrompt = `Write the searchable metadata for this episode of a personal life documentary.

Return ONLY a JSON object with keys:
- "logline": one sentence of at most 15 words that hooks the viewer
- "synopsis": two or three sentences summarizing the episode
- "keywords": a list of up to 5 short lowercase keywords

Episode:
%s

JSON:`

const (
	maxLoglineWords   = 15
	maxKeywords       = 5
	synopsisMaxTokens = 300
)

// SynopsisGenerator extracts the logline, synopsis and keywords.
type SynopsisGenerator struct {
	caller
	timeout time.Duration
}

// NewSynopsisGenerator creates a synopsis generator. provider and cache may
// be nil.
func NewSynopsisGenerator(provider llm.Provider, cache *Cache, timeout time.Duration, logger *zap.Logger) *SynopsisGenerator {
	return &SynopsisGenerator{
		caller:  caller{provider: provider, cache: cache, logger: logging.OrNop(logger).Named("synopsis")},
		timeout: orDefault(timeout, DefaultTimeouts().Synopsis),
	}
}

// Generate returns metadata for text. Any failure yields the empty triple.
func (g *SynopsisGenerator) Generate(ctx context.Context, text string) *database.EpisodeMetadata {
	if strings.TrimSpace(text) == "" {
		return emptyMetadata()
	}

	prompt := fmt.Sprintf(synopsisPrompt, text)
	resp, cached, ok := g.complete(ctx, "synopsis", prompt, g.timeout, synopsisMaxTokens)
	if !ok {
		g.logger.Info("no synopsis available, leaving metadata empty")
		return emptyMetadata()
	}

	m, err := ParseMetadata(resp)
	if err != nil {
		g.logger.Warn("failed to parse synopsis", zap.Error(err))
		return emptyMetadata()
	}
	g.remember(prompt, resp, cached)
	return m
}

// ParseMetadata decodes {logline, synopsis, keywords}. Missing keys are
// empty; wrongly typed keys fail the parse.
func ParseMetadata(resp string) (*database.EpisodeMetadata, error) {
	var data map[string]any
	if err := llm.DecodeJSON(resp, &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("synopsis response is not an object")
	}
	return metadataFrom(data)
}

func metadataFrom(data map[string]any) (*database.EpisodeMetadata, error) {
	m := emptyMetadata()

	logline, err := optionalString(data, "logline")
	if err != nil {
		return nil, err
	}
	m.Logline = Logline(logline)

	if m.Synopsis, err = optionalString(data, "synopsis"); err != nil {
		return nil, err
	}

	if v, ok := data["keywords"]; ok && v != nil {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("keywords is %T, want list", v)
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("keywords contains %T", item)
			}
			if s = strings.TrimSpace(s); s != "" {
				m.Keywords = append(m.Keywords, s)
			}
		}
		if len(m.Keywords) > maxKeywords {
			m.Keywords = m.Keywords[:maxKeywords]
		}
	}
	return m, nil
}

// Logline trims text to at most fifteen words, marking the cut with "...".
func Logline(text string) string {
	out, cut := limitWords(text, maxLoglineWords)
	if cut {
		out += "..."
	}
	return out
}

func optionalString(data map[string]any, key string) (string, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s is %T, want string", key, v)
	}
	return strings.TrimSpace(s), nil
}

func emptyMetadata() *database.EpisodeMetadata {
	return &database.EpisodeMetadata{Keywords: []string{}}
}
