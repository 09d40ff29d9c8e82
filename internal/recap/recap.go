// Package recap writes "Previously on Chronicle..." summaries of recent
// episodes.
package recap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/llm"
	"github.com/TobiSchelling/chronicle/internal/logging"
)

// Opening starts every recap.
const Opening = "Previously on Chronicle..."

const recapPrompt = `You are a dramatic TV series narrator.
Your task is to create a '` + Opening + `' summary for the upcoming episode.

Analyze the last %d episodes for ongoing threads, unresolved conflicts, recurring themes, and character arcs.
Then, generate a 2-3 paragraph dramatic recap in a compelling TV narrator style.
Highlight any cliffhangers or setups that feel like they might pay off in the next episode.

PREVIOUS EPISODES:
%s

GENERATE RECAP (2-3 paragraphs, TV narrator style):
"` + Opening + `"
`

const (
	emptyRecap = "No previous episodes found to recap."
	stockRecap = Opening + " The journey continues as our protagonist navigates the complexities of daily life, facing internal struggles and external challenges in an ever-unfolding narrative."

	snippetChars   = 200
	recapMaxTokens = 600
)

// Generator builds recaps from stored entries.
type Generator struct {
	db       *database.DB
	provider llm.Provider
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewGenerator creates a recap generator. provider may be nil, in which case
// every recap is the stock text.
func NewGenerator(db *database.DB, provider llm.Provider, timeout time.Duration, logger *zap.Logger) *Generator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{
		db:       db,
		provider: provider,
		timeout:  timeout,
		logger:   logging.OrNop(logger).Named("recap"),
		now:      time.Now,
	}
}

// Generate returns an unsaved recap of entries, oldest first in the prompt.
func (g *Generator) Generate(ctx context.Context, entries []database.Entry) *database.Recap {
	r := &database.Recap{Date: g.now().Format(database.DateLayout), EntryIDs: []int64{}}
	if len(entries) == 0 {
		r.Content = emptyRecap
		return r
	}

	// EntryIDs keep the caller's order; only the prompt is chronological.
	for _, e := range entries {
		if e.ID != 0 {
			r.EntryIDs = append(r.EntryIDs, e.ID)
		}
	}

	sorted := make([]database.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	r.Content = withOpening(g.complete(ctx, Prompt(sorted)))
	return r
}

// ForDays recaps entries from the last days days, excluding today. With
// nothing in that window it takes the most recent entries before today.
func (g *Generator) ForDays(ctx context.Context, days int) (*database.Recap, error) {
	if days < 1 {
		days = 7
	}
	today := g.now().Format(database.DateLayout)

	entries, err := g.db.ListEntriesLastNDays(days)
	if err != nil {
		return nil, fmt.Errorf("listing recent entries: %w", err)
	}
	past := before(entries, today)

	if len(past) == 0 {
		recent, err := g.db.ListEntries(days)
		if err != nil {
			return nil, fmt.Errorf("listing entries: %w", err)
		}
		past = before(recent, today)
	}

	g.logger.Info("generating recap", zap.Int("days", days), zap.Int("episodes", len(past)))
	return g.Generate(ctx, past), nil
}

// Prompt builds the recap prompt for entries in the given order.
func Prompt(entries []database.Entry) string {
	summaries := make([]string, 0, len(entries))
	for _, e := range entries {
		var b strings.Builder
		fmt.Fprintf(&b, "Date: %s\nTitle: %s\n", e.Date, e.DisplayTitle())
		if e.Conflict != nil {
			fmt.Fprintf(&b, "Conflict: %s\n", e.Conflict.CentralConflict)
		}
		text := e.RawText
		if len(text) > snippetChars {
			text = text[:snippetChars]
		}
		if e.HasNarrative() {
			text = *e.NarrativeText
		}
		fmt.Fprintf(&b, "Narrative: %s...\n", text)
		summaries = append(summaries, b.String())
	}
	return fmt.Sprintf(recapPrompt, len(entries), strings.Join(summaries, "\n---\n"))
}

func (g *Generator) complete(ctx context.Context, prompt string) string {
	if g.provider == nil {
		return stockRecap
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.provider.Generate(ctx, prompt, recapMaxTokens)
	if err != nil {
		g.logger.Warn("recap request failed, using stock recap", zap.Error(err))
		return stockRecap
	}
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return stockRecap
	}
	g.logger.Debug("recap generated", zap.Duration("elapsed", time.Since(start)))
	return resp
}

func withOpening(content string) string {
	if strings.HasPrefix(strings.TrimSpace(content), Opening) {
		return content
	}
	return Opening + "\n\n" + content
}

func before(entries []database.Entry, date string) []database.Entry {
	var out []database.Entry
	for _, e := range entries {
		if e.Date < date {
			out = append(out, e)
		}
	}
	return out
}
