// Package episode turns diary entries into episodes: narrative, titles,
// synopsis metadata and conflict, generated through an LLM backend with
// local fallbacks.
package episode

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/llm"
)

// Timeouts bounds each backend call.
type Timeouts struct {
	Conflict     time.Duration
	Narrative    time.Duration
	Title        time.Duration
	TitleOptions time.Duration
	Synopsis     time.Duration
	Combined     time.Duration
}

// DefaultTimeouts returns the per-field defaults. Combined is the largest.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Conflict:     60 * time.Second,
		Narrative:    60 * time.Second,
		Title:        30 * time.Second,
		TitleOptions: 30 * time.Second,
		Synopsis:     40 * time.Second,
		Combined:     120 * time.Second,
	}
}

func (t Timeouts) orDefaults() Timeouts {
	d := DefaultTimeouts()
	return Timeouts{
		Conflict:     orDefault(t.Conflict, d.Conflict),
		Narrative:    orDefault(t.Narrative, d.Narrative),
		Title:        orDefault(t.Title, d.Title),
		TitleOptions: orDefault(t.TitleOptions, d.TitleOptions),
		Synopsis:     orDefault(t.Synopsis, d.Synopsis),
		Combined:     orDefault(t.Combined, d.Combined),
	}
}

// orDefault returns v, or def when v is not positive.
func orDefault(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

type refreshKey struct{}

// withRefresh marks ctx so lookups skip the cache. Fresh responses are still
// stored.
func withRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, refreshKey{}, true)
}

func refreshing(ctx context.Context) bool {
	v, _ := ctx.Value(refreshKey{}).(bool)
	return v
}

// caller is the backend access shared by every generator.
type caller struct {
	provider llm.Provider
	cache    *Cache
	logger   *zap.Logger
}

// complete returns a response for prompt from the cache or the backend.
// ok is false when the backend is missing, fails or returns nothing.
func (c *caller) complete(ctx context.Context, field, prompt string, timeout time.Duration, maxTokens int) (resp string, cached, ok bool) {
	if !refreshing(ctx) {
		if resp, hit := c.cache.Get(prompt); hit {
			c.logger.Debug("cache hit", zap.String("field", field))
			return resp, true, true
		}
	}
	if c.provider == nil {
		return "", false, false
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.provider.Generate(ctx, prompt, maxTokens)
	if err != nil {
		c.logger.Warn("backend request failed", zap.String("field", field), zap.Error(err))
		return "", false, false
	}
	resp = strings.TrimSpace(resp)
	if resp == "" {
		c.logger.Warn("backend returned empty response", zap.String("field", field))
		return "", false, false
	}
	c.logger.Debug("backend response",
		zap.String("field", field),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("chars", len(resp)),
	)
	return resp, false, true
}

// remember caches a response that parsed successfully.
func (c *caller) remember(prompt, resp string, cached bool) {
	if !cached {
		c.cache.Set(prompt, resp)
	}
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// limitWords keeps the first n words of s, reporting whether it cut.
func limitWords(s string, n int) (string, bool) {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " "), false
	}
	return strings.Join(words[:n], " "), true
}
