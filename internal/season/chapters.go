package season

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/llm"
)

const chaptersPrompt = `You are a master story editor for a long-running documentary series.
Below is a list of episodes (daily diary entries) from a person's life.
Your task is to identify 'Life Chapters' or 'Seasons' based on shifts in tone, major events, or recurring themes.

Look for boundaries where something significant changed: a project started/ended, a move, a shift in focus, or an emotional transition.

Episodes:
%s

Output a JSON list of season boundaries. Each object should have:
- 'start_index': The index of the first episode in the season.
- 'end_index': The index of the last episode in the season.
- 'reason': A brief explanation of why this is a distinct chapter.

Ensure every episode is included in exactly one season, and seasons are chronological.

JSON Output:`

const (
	minSmartEntries   = 3
	chaptersMaxTokens = 800
)

// Range is an inclusive span of episode indexes.
type Range struct {
	Start  int
	End    int
	Reason string
}

func (m *Manager) chapters(ctx context.Context, entries []database.Entry) []group {
	if len(entries) < minSmartEntries {
		m.logger.Info("not enough entries for smart mode", zap.Int("entries", len(entries)))
		return nil
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%d: %s - %s", i, e.Date, episodeLabel(e))
	}
	prompt := fmt.Sprintf(chaptersPrompt, strings.Join(lines, "\n"))

	resp, ok := m.complete(ctx, "chapters", prompt, m.timeouts.Chapters, chaptersMaxTokens)
	if !ok {
		return nil
	}
	ranges, err := ParseBoundaries(resp, len(entries))
	if err != nil {
		m.logger.Warn("failed to parse season boundaries", zap.Error(err))
		return nil
	}

	ranges = Canonicalize(ranges, len(entries))
	groups := make([]group, len(ranges))
	for i, r := range ranges {
		groups[i] = group{entries: entries[r.Start : r.End+1], reason: r.Reason}
	}
	return groups
}

// ParseBoundaries decodes the backend's list of {start_index, end_index,
// reason}. A missing start is 0 and a missing end is n-1. Elements with
// non-numeric indexes are skipped.
func ParseBoundaries(resp string, n int) ([]Range, error) {
	var raw any
	if err := llm.DecodeJSON(resp, &raw); err != nil {
		return nil, err
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, key := range []string{"seasons", "boundaries", "chapters"} {
			if list, ok := v[key].([]any); ok {
				items = list
				break
			}
		}
	}

	var out []Range
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		start, ok := index(obj["start_index"], 0)
		if !ok {
			continue
		}
		end, ok := index(obj["end_index"], n-1)
		if !ok {
			continue
		}
		reason, _ := obj["reason"].(string)
		out = append(out, Range{Start: start, End: end, Reason: strings.TrimSpace(reason)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no season boundaries in response")
	}
	return out, nil
}

func index(v any, def int) (int, bool) {
	switch t := v.(type) {
	case nil:
		return def, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int(t), true
	}
	return 0, false
}

// Canonicalize turns arbitrary ranges over n episodes into contiguous,
// non-overlapping ranges that cover 0..n-1 exactly once. Indexes are
// clamped into range, ranges are ordered by start, overlaps are trimmed
// from the later range, gaps extend the preceding range, a missing head
// joins the first range and a missing tail joins the last.
func Canonicalize(ranges []Range, n int) []Range {
	if n <= 0 || len(ranges) == 0 {
		return nil
	}

	clamped := make([]Range, len(ranges))
	for i, r := range ranges {
		r.Start = max(0, min(r.Start, n-1))
		r.End = max(r.Start, min(r.End, n-1))
		clamped[i] = r
	}
	slices.SortStableFunc(clamped, func(a, b Range) int {
		return cmp.Or(cmp.Compare(a.Start, b.Start), cmp.Compare(a.End, b.End))
	})

	var out []Range
	next := 0
	for _, r := range clamped {
		if r.End < next {
			continue
		}
		if len(out) == 0 {
			r.Start = 0
		} else if r.Start > next {
			out[len(out)-1].End = r.Start - 1
		} else {
			r.Start = next
		}
		out = append(out, r)
		next = r.End + 1
	}
	out[len(out)-1].End = n - 1
	return out
}
