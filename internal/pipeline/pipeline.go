// Package pipeline processes stored entries in batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/episode"
	"github.com/TobiSchelling/chronicle/internal/logging"
)

// EntryResult holds the outcome for a single entry.
type EntryResult struct {
	EntryID  int64
	Date     string
	Title    string
	Duration time.Duration
	Err      error
}

// Result holds the results of a batch run.
type Result struct {
	RunID   string
	Entries []EntryResult
	DryRun  bool
}

// Processed counts entries that were processed and saved.
func (r *Result) Processed() int {
	n := 0
	for _, e := range r.Entries {
		if e.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts entries that could not be saved.
func (r *Result) Failed() int {
	return len(r.Entries) - r.Processed()
}

// Pipeline runs the episode processor over stored entries.
type Pipeline struct {
	db          *database.DB
	processor   *episode.Processor
	concurrency int
	logger      *zap.Logger
}

// New creates a pipeline processing up to concurrency entries at once.
func New(db *database.DB, processor *episode.Processor, concurrency int, logger *zap.Logger) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		db:          db,
		processor:   processor,
		concurrency: concurrency,
		logger:      logging.OrNop(logger),
	}
}

// Process runs the processor on e and saves it. Cancelling ctx does not
// interrupt processing; each backend call is bounded by its own timeout.
func (p *Pipeline) Process(ctx context.Context, e *database.Entry, force bool) error {
	p.processor.Process(context.WithoutCancel(ctx), e, force)
	if e.ID == 0 {
		return p.db.CreateEntry(e)
	}
	return p.db.UpdateEntry(e)
}

// Run processes every entry missing derived fields, or every entry when
// force is set. A cancelled context stops scheduling new entries; entries
// already in flight finish and are saved.
func (p *Pipeline) Run(ctx context.Context, force bool) (*Result, error) {
	entries, err := p.pending(force)
	if err != nil {
		return nil, err
	}

	r := &Result{RunID: uuid.NewString(), Entries: make([]EntryResult, len(entries))}
	logger := p.logger.With(zap.String("run_id", r.RunID))
	logger.Info("batch started", zap.Int("entries", len(entries)), zap.Int("concurrency", p.concurrency), zap.Bool("force", force))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range entries {
		e := &entries[i]
		r.Entries[i] = EntryResult{EntryID: e.ID, Date: e.Date}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				r.Entries[i].Err = err
				return nil
			}
			start := time.Now()
			err := p.Process(gctx, e, force)
			r.Entries[i].Duration = time.Since(start)
			r.Entries[i].Title = e.DisplayTitle()
			r.Entries[i].Err = err
			if err != nil {
				logger.Error("failed to save entry", zap.Int64("entry", e.ID), zap.Error(err))
				return nil
			}
			logger.Debug("entry processed", zap.Int64("entry", e.ID), zap.Duration("elapsed", r.Entries[i].Duration))
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("batch finished", zap.Int("processed", r.Processed()), zap.Int("failed", r.Failed()))
	if err := ctx.Err(); err != nil {
		return r, fmt.Errorf("batch interrupted: %w", err)
	}
	return r, nil
}

// DryRun lists the entries Run would process without calling the backend.
func (p *Pipeline) DryRun(force bool) (*Result, error) {
	entries, err := p.pending(force)
	if err != nil {
		return nil, err
	}
	r := &Result{RunID: uuid.NewString(), DryRun: true}
	for _, e := range entries {
		r.Entries = append(r.Entries, EntryResult{EntryID: e.ID, Date: e.Date, Title: e.DisplayTitle()})
	}
	return r, nil
}

func (p *Pipeline) pending(force bool) ([]database.Entry, error) {
	if force {
		return p.db.ListEntries(0)
	}
	return p.db.ListUnprocessed()
}

// Benchmark summarizes processing times and narrative quality.
type Benchmark struct {
	Entries       int
	Total         time.Duration
	Average       time.Duration
	Min           time.Duration
	Max           time.Duration
	ValidNarrated int
	Issues        map[int64][]string
}

// Benchmark processes copies of entries one at a time with a fresh cache
// and reports timings. Nothing is saved.
func (p *Pipeline) Benchmark(ctx context.Context, entries []database.Entry) (*Benchmark, error) {
	if len(entries) == 0 {
		return nil, errors.New("no entries to benchmark")
	}

	b := &Benchmark{Entries: len(entries), Issues: make(map[int64][]string)}
	for _, original := range entries {
		if err := ctx.Err(); err != nil {
			return b, err
		}
		e := original
		p.processor.Cache().Clear()

		start := time.Now()
		p.processor.Process(ctx, &e, true)
		elapsed := time.Since(start)

		b.Total += elapsed
		if b.Min == 0 || elapsed < b.Min {
			b.Min = elapsed
		}
		b.Max = max(b.Max, elapsed)
		report := episode.Validate(deref(e.NarrativeText))
		if report.Valid {
			b.ValidNarrated++
		} else {
			b.Issues[e.ID] = report.Issues
		}
	}
	b.Average = b.Total / time.Duration(len(entries))
	return b, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
