package episode

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/conflict"
	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/llm"
	"github.com/TobiSchelling/chronicle/internal/logging"
	"github.com/TobiSchelling/chronicle/internal/segment"
	"github.com/TobiSchelling/chronicle/internal/style"
)

// Strategy selects how blank entries are processed.
type Strategy string

const (
	// StrategyAuto uses one combined request for blank or forced entries
	// and falls back to per-field requests.
	StrategyAuto Strategy = "auto"
	// StrategySequential always uses per-field requests.
	StrategySequential Strategy = "sequential"
)

// Options configures a Processor. Zero values take defaults.
type Options struct {
	Timeouts Timeouts
	Strategy Strategy
	Cache    *Cache
	Guide    *style.Guide
	Logger   *zap.Logger
}

// Processor fills in the derived fields of entries.
type Processor struct {
	analyzer  *conflict.Analyzer
	narrative *NarrativeGenerator
	titles    *TitleGenerator
	synopsis  *SynopsisGenerator
	combined  *CombinedGenerator

	strategy Strategy
	cache    *Cache
	logger   *zap.Logger
}

// NewProcessor creates a processor over provider. A nil provider makes
// every field use its local fallback.
func NewProcessor(provider llm.Provider, opts Options) *Processor {
	logger := logging.OrNop(opts.Logger)
	t := opts.Timeouts.orDefaults()

	cache := opts.Cache
	if cache == nil {
		cache = NewCache()
	}
	guide := opts.Guide
	if guide == nil {
		guide = style.NewGuide(style.DefaultTable(), nil)
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyAuto
	}

	return &Processor{
		analyzer:  conflict.NewAnalyzer(provider, t.Conflict, logger),
		narrative: NewNarrativeGenerator(provider, cache, guide, t.Narrative, logger),
		titles:    NewTitleGenerator(provider, cache, t.Title, t.TitleOptions, logger),
		synopsis:  NewSynopsisGenerator(provider, cache, t.Synopsis, logger),
		combined:  NewCombinedGenerator(provider, cache, guide, t.Combined, logger),
		strategy:  strategy,
		cache:     cache,
		logger:    logger.Named("processor"),
	}
}

// Cache returns the response cache shared by the generators.
func (p *Processor) Cache() *Cache {
	return p.cache
}

// Process fills every missing derived field of e in place. With force,
// existing fields are discarded and regenerated without consulting the
// cache. Process does not persist e.
func (p *Processor) Process(ctx context.Context, e *database.Entry, force bool) {
	if force {
		e.ClearDerived()
		ctx = withRefresh(ctx)
	}
	mood := style.Classify(e.RawText)

	if p.strategy == StrategyAuto && e.IsBlank() {
		start := time.Now()
		c, err := p.combined.Generate(ctx, e.RawText, mood)
		if err == nil {
			c.Apply(e)
			p.logger.Debug("combined strategy succeeded",
				zap.Int64("entry_id", e.ID),
				zap.Duration("elapsed", time.Since(start)),
			)
			p.checkNarrative(e)
			return
		}
		p.logger.Info("combined strategy failed, falling back to sequential",
			zap.Int64("entry_id", e.ID),
			zap.Error(err),
		)
	}

	p.ensureConflict(ctx, e)
	p.ensureNarrative(ctx, e, mood)
	p.ensureTitle(ctx, e, mood)
	p.ensureSynopsis(ctx, e)
}

// AnalyzeConflict runs conflict analysis alone.
func (p *Processor) AnalyzeConflict(ctx context.Context, text string) *database.ConflictProfile {
	return p.analyzer.Analyze(ctx, text)
}

// SegmentText splits text into morning, afternoon and night.
func (p *Processor) SegmentText(text string) segment.Segments {
	return segment.Segment(text)
}

func (p *Processor) ensureConflict(ctx context.Context, e *database.Entry) {
	if e.Conflict != nil {
		return
	}
	e.Conflict = p.analyzer.Analyze(ctx, e.RawText)
}

func (p *Processor) ensureNarrative(ctx context.Context, e *database.Entry, mood style.Mood) {
	if e.HasNarrative() {
		return
	}
	n := p.narrative.Generate(ctx, e.RawText, mood, e.Conflict)
	e.NarrativeText = &n
	p.checkNarrative(e)
}

func (p *Processor) ensureTitle(ctx context.Context, e *database.Entry, mood style.Mood) {
	if e.HasTitle() {
		return
	}
	options := p.titles.Options(ctx, titleSource(e), mood)
	best, _ := Best(options)
	e.TitleOptions = options
	e.Title = &best.Title
}

func (p *Processor) ensureSynopsis(ctx context.Context, e *database.Entry) {
	if e.Metadata != nil {
		return
	}
	e.Metadata = p.synopsis.Generate(ctx, titleSource(e))
}

func (p *Processor) checkNarrative(e *database.Entry) {
	if !e.HasNarrative() {
		return
	}
	if r := Validate(*e.NarrativeText); !r.Valid {
		p.logger.Warn("narrative failed quality checks",
			zap.Int64("entry_id", e.ID),
			zap.Strings("issues", r.Issues),
		)
	}
}

// titleSource prefers the narrative over the raw text.
func titleSource(e *database.Entry) string {
	if e.HasNarrative() {
		return *e.NarrativeText
	}
	return e.RawText
}
