package episode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/llm"
	"github.com/TobiSchelling/chronicle/internal/logging"
	"github.com/TobiSchelling/chronicle/internal/style"
)

const titlePrompt = `You are creating episode titles for a personal life documentary series.

Generate a single catchy, evocative episode title (3-7 words) for this diary entry.
The title should feel like a TV episode title - intriguing, memorable, and capturing the essence of the day.
Only output the title, nothing else. No quotes, no explanation.

Diary content:
%s

Episode title:`

const titleOptionsPrompt = `You are naming an episode of a personal life documentary series.

Propose 5 candidate episode titles (3-7 words each) for the diary content below.
Use a different rhetorical pattern for each, for example a question, alliteration, a metaphor, "The [Noun]" or a quoted line.
The mood of the day is %s.

Return ONLY a JSON array of objects with keys:
- "title": the episode title
- "pattern": a short label naming the pattern used
- "score": how well the title fits the day, from 0.0 to 1.0

Diary content:
%s

JSON array:`

const (
	untitled           = "Untitled Episode"
	titlePromptChars   = 500
	maxTitleWords      = 7
	titleMaxTokens     = 30
	optionsMaxTokens   = 400
	defaultOptionScore = 0.5
	defaultPattern     = "unspecified"
	fallbackPattern    = "direct"
	fallbackTitleWords = 3
)

var errNoOptions = errors.New("no usable title options")

// TitleGenerator produces the episode title and ranked alternatives.
type TitleGenerator struct {
	caller
	titleTimeout   time.Duration
	optionsTimeout time.Duration
}

// NewTitleGenerator creates a title generator. provider and cache may be nil.
func NewTitleGenerator(provider llm.Provider, cache *Cache, titleTimeout, optionsTimeout time.Duration, logger *zap.Logger) *TitleGenerator {
	return &TitleGenerator{
		caller:         caller{provider: provider, cache: cache, logger: logging.OrNop(logger).Named("title")},
		titleTimeout:   orDefault(titleTimeout, DefaultTimeouts().Title),
		optionsTimeout: orDefault(optionsTimeout, DefaultTimeouts().TitleOptions),
	}
}

// Title returns a single episode title for text.
func (g *TitleGenerator) Title(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return untitled
	}

	prompt := fmt.Sprintf(titlePrompt, truncateRunes(text, titlePromptChars))
	if resp, cached, ok := g.complete(ctx, "title", prompt, g.titleTimeout, titleMaxTokens); ok {
		if title := CleanTitle(resp); title != "" {
			g.remember(prompt, resp, cached)
			return title
		}
		g.logger.Warn("blank title after cleanup", zap.String("response", resp))
	}

	g.logger.Info("using fallback title")
	return FallbackTitle(text)
}

// Options returns ranked title candidates for text. The list is never
// empty: without usable candidates it wraps the plain Title result.
func (g *TitleGenerator) Options(ctx context.Context, text string, mood style.Mood) []database.TitleOption {
	if strings.TrimSpace(text) == "" {
		return []database.TitleOption{{Title: untitled, Pattern: fallbackPattern, Score: defaultOptionScore}}
	}

	prompt := fmt.Sprintf(titleOptionsPrompt, mood, truncateRunes(text, titlePromptChars))
	if resp, cached, ok := g.complete(ctx, "title_options", prompt, g.optionsTimeout, optionsMaxTokens); ok {
		opts, err := ParseTitleOptions(resp)
		if err == nil {
			g.remember(prompt, resp, cached)
			return opts
		}
		g.logger.Warn("failed to parse title options", zap.Error(err))
	}

	return []database.TitleOption{{Title: g.Title(ctx, text), Pattern: fallbackPattern, Score: defaultOptionScore}}
}

// ParseTitleOptions validates a JSON array of {title, pattern, score}.
// Invalid elements are dropped; an empty result is an error.
func ParseTitleOptions(resp string) ([]database.TitleOption, error) {
	var raw any
	if err := llm.DecodeJSON(resp, &raw); err != nil {
		return nil, err
	}
	items, err := optionItems(raw)
	if err != nil {
		return nil, err
	}
	return titleOptionsFrom(items)
}

func optionItems(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, key := range []string{"titles", "options", "title_options"} {
			if items, ok := v[key].([]any); ok {
				return items, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: want a JSON array, got %T", errNoOptions, raw)
}

func titleOptionsFrom(items []any) ([]database.TitleOption, error) {
	var out []database.TitleOption
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rawTitle, _ := obj["title"].(string)
		title := CleanTitle(rawTitle)
		if title == "" {
			continue
		}
		pattern, _ := obj["pattern"].(string)
		if pattern = strings.TrimSpace(pattern); pattern == "" {
			pattern = defaultPattern
		}
		out = append(out, database.TitleOption{
			Title:   title,
			Pattern: pattern,
			Score:   optionScore(obj["score"]),
		})
	}
	if len(out) == 0 {
		return nil, errNoOptions
	}
	return out, nil
}

// optionScore coerces a score to a float in [0, 1], defaulting to 0.5.
func optionScore(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return defaultOptionScore
		}
		f = parsed
	default:
		return defaultOptionScore
	}
	return max(0, min(1, f))
}

// Best returns the option with the highest score, the first one on ties.
func Best(options []database.TitleOption) (database.TitleOption, bool) {
	if len(options) == 0 {
		return database.TitleOption{}, false
	}
	best := options[0]
	for _, o := range options[1:] {
		if o.Score > best.Score {
			best = o
		}
	}
	return best, true
}

// CleanTitle trims whitespace and surrounding quotes, keeps the first line
// and caps the title at seven words.
func CleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if line, _, found := strings.Cut(s, "\n"); found {
		s = line
	}
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'“”‘’`))
	s, _ = limitWords(s, maxTitleWords)
	return s
}

// FallbackTitle is the title used when the backend cannot help. It skips
// the marker of a fallback narrative.
func FallbackTitle(text string) string {
	words := strings.Fields(strings.TrimPrefix(text, fallbackNarrativeTag))
	if len(words) > fallbackTitleWords {
		words = words[:fallbackTitleWords]
	}
	if n := len(words); n > 0 {
		words[n-1] = strings.TrimRight(words[n-1], ".,;:!?")
	}
	return "Episode: " + strings.Join(words, " ") + "..."
}
