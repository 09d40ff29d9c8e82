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
	"github.com/TobiSchelling/chronicle/internal/style"
)

const narrativePrompt = `You are a creative writer helping to transform personal diary entries into engaging narrative prose.

Transform the following diary entry into a short, cinematic narrative paragraph (2-4 sentences).
Write in third person, present tense, as if describing scenes from a movie about the protagonist's life.
Keep it personal and emotionally resonant while maintaining the key events and feelings.
Use the identified conflicts to drive the narrative, treating them as the 'inciting incidents' or 'climax' of the story acts.
%s
Diary entry:
%s`

const (
	emptyNarrative       = "No diary content provided for this day."
	fallbackNarrativeTag = "[Demo narrative] "
	fallbackExcerpt      = 200
	narrativeMaxTokens   = 400
)

// NarrativeGenerator writes the cinematic narrative for an entry.
type NarrativeGenerator struct {
	caller
	guide   *style.Guide
	timeout time.Duration
}

// NewNarrativeGenerator creates a narrative generator. provider and cache
// may be nil.
func NewNarrativeGenerator(provider llm.Provider, cache *Cache, guide *style.Guide, timeout time.Duration, logger *zap.Logger) *NarrativeGenerator {
	return &NarrativeGenerator{
		caller:  caller{provider: provider, cache: cache, logger: logging.OrNop(logger).Named("narrative")},
		guide:   guide,
		timeout: orDefault(timeout, DefaultTimeouts().Narrative),
	}
}

// Prompt builds the narrative prompt.
func (g *NarrativeGenerator) Prompt(rawText string, mood style.Mood, c *database.ConflictProfile) string {
	base := fmt.Sprintf(narrativePrompt, conflictContext(c), rawText)
	return g.guide.Enhance(base, mood) + "\n\nNarrative (2-4 sentences, cinematic style):"
}

// Generate returns a narrative for rawText. It never fails; without a
// usable backend response it returns an excerpt of the entry.
func (g *NarrativeGenerator) Generate(ctx context.Context, rawText string, mood style.Mood, c *database.ConflictProfile) string {
	if strings.TrimSpace(rawText) == "" {
		return emptyNarrative
	}

	prompt := g.Prompt(rawText, mood, c)
	if resp, cached, ok := g.complete(ctx, "narrative", prompt, g.timeout, narrativeMaxTokens); ok {
		g.remember(prompt, resp, cached)
		return g.guide.AddSensoryLayer(resp)
	}

	g.logger.Info("using fallback narrative")
	return g.guide.AddSensoryLayer(FallbackNarrative(rawText))
}

// FallbackNarrative is the narrative used when the backend cannot help.
func FallbackNarrative(rawText string) string {
	excerpt := truncateRunes(rawText, fallbackExcerpt)
	if excerpt != rawText {
		excerpt += "..."
	}
	return fallbackNarrativeTag + excerpt
}

func conflictContext(c *database.ConflictProfile) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\nCentral Conflict: %s", c.CentralConflict)
	if len(c.InternalConflicts) > 0 {
		fmt.Fprintf(&b, "\nInternal Struggles: %s", strings.Join(c.InternalConflicts, ", "))
	}
	if len(c.ExternalConflicts) > 0 {
		fmt.Fprintf(&b, "\nExternal Obstacles: %s", strings.Join(c.ExternalConflicts, ", "))
	}
	fmt.Fprintf(&b, "\nTension Level: %d/10\n", c.TensionLevel)
	return b.String()
}
