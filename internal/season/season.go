// Package season groups episodes into seasons and analyzes season arcs.
package season

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/llm"
	"github.com/TobiSchelling/chronicle/internal/logging"
)

// Mode selects how episodes are grouped.
type Mode string

const (
	ModeMonthly Mode = "monthly"
	ModeSmart   Mode = "smart"
	ModeManual  Mode = "manual"
)

// ParseMode accepts "monthly" (or "default"), "smart" and "manual".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "monthly":
		return ModeMonthly, nil
	case "smart":
		return ModeSmart, nil
	case "manual":
		return ModeManual, nil
	}
	return "", fmt.Errorf("unknown season mode %q (want monthly or smart)", s)
}

const metadataPrompt = `You are a creative producer for a cinematic life documentary.
Generate metadata for 'Season %d' based on these episodes:
%s

Output a JSON object with:
- 'title': A dramatic season title (e.g., 'Season %d: The Foundation', 'The Rising Tide', 'Shadows of Doubt').
- 'themes': List of 3-5 dominant themes.
- 'description': A 1-2 sentence high-level summary of this arc.

JSON Output:`

const (
	maxThemes           = 5
	maxPromptEpisodes   = 10
	metadataMaxTokens   = 300
	episodeSnippetChars = 50
)

// Timeouts bounds each kind of season backend call.
type Timeouts struct {
	Metadata time.Duration
	Chapters time.Duration
	Arc      time.Duration
}

// Manager creates seasons from stored entries.
type Manager struct {
	db       *database.DB
	provider llm.Provider
	timeouts Timeouts
	logger   *zap.Logger
}

// NewManager creates a season manager. provider may be nil; metadata and
// arcs then use their fallbacks and smart mode degrades to monthly.
func NewManager(db *database.DB, provider llm.Provider, timeouts Timeouts, logger *zap.Logger) *Manager {
	if timeouts.Metadata <= 0 {
		timeouts.Metadata = 40 * time.Second
	}
	if timeouts.Chapters <= 0 {
		timeouts.Chapters = 60 * time.Second
	}
	if timeouts.Arc <= 0 {
		timeouts.Arc = 120 * time.Second
	}
	return &Manager{
		db:       db,
		provider: provider,
		timeouts: timeouts,
		logger:   logging.OrNop(logger).Named("season"),
	}
}

// Result reports an Organize run. Mode is the mode actually used, which is
// monthly when smart detection was not possible.
type Result struct {
	Mode    Mode
	Seasons []database.Season
}

// Organize groups every entry into seasons. With clearExisting all current
// seasons are removed first.
func (m *Manager) Organize(ctx context.Context, mode Mode, clearExisting bool) (*Result, error) {
	if mode == ModeManual {
		return nil, fmt.Errorf("manual seasons are created one at a time")
	}
	if clearExisting {
		if err := m.db.ClearSeasons(); err != nil {
			return nil, fmt.Errorf("clearing seasons: %w", err)
		}
	}

	entries, err := m.db.ListEntries(0)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	if len(entries) == 0 {
		m.logger.Info("no episodes to organize")
		return &Result{Mode: mode}, nil
	}
	chronological(entries)

	groups, used := m.group(ctx, mode, entries)

	r := &Result{Mode: used}
	for i, g := range groups {
		s := &database.Season{
			StartDate:    g.entries[0].Date,
			EndDate:      g.entries[len(g.entries)-1].Date,
			EpisodeCount: len(g.entries),
			Description:  g.reason,
			Mode:         string(used),
		}
		m.describe(ctx, s, g.entries, i+1)
		if err := m.save(s, g.entries); err != nil {
			return r, err
		}
		r.Seasons = append(r.Seasons, *s)
	}

	m.logger.Info("seasons organized", zap.String("mode", string(used)), zap.Int("seasons", len(r.Seasons)))
	return r, nil
}

// CreateManual creates one season spanning [start, end] and links the
// entries in that range.
func (m *Manager) CreateManual(ctx context.Context, title, start, end string) (*database.Season, error) {
	if err := database.ValidateDate(start); err != nil {
		return nil, err
	}
	if err := database.ValidateDate(end); err != nil {
		return nil, err
	}
	if end < start {
		return nil, fmt.Errorf("season end %s is before start %s", end, start)
	}

	entries, err := m.db.ListEntriesBetween(start, end)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	chronological(entries)

	existing, err := m.db.ListSeasons()
	if err != nil {
		return nil, fmt.Errorf("listing seasons: %w", err)
	}

	s := &database.Season{
		Title:        strings.TrimSpace(title),
		StartDate:    start,
		EndDate:      end,
		EpisodeCount: len(entries),
		Mode:         string(ModeManual),
	}
	m.describe(ctx, s, entries, len(existing)+1)
	if err := m.save(s, entries); err != nil {
		return nil, err
	}
	return s, nil
}

type group struct {
	entries []database.Entry
	reason  string
}

func (m *Manager) group(ctx context.Context, mode Mode, entries []database.Entry) ([]group, Mode) {
	if mode == ModeSmart {
		if groups := m.chapters(ctx, entries); len(groups) > 0 {
			return groups, ModeSmart
		}
		m.logger.Info("smart detection unavailable, organizing by month")
	}
	return monthly(entries), ModeMonthly
}

// monthly groups chronologically sorted entries by calendar month.
func monthly(entries []database.Entry) []group {
	var groups []group
	for _, e := range entries {
		key := database.MonthKey(e.Date)
		if n := len(groups); n > 0 && database.MonthKey(groups[n-1].entries[0].Date) == key {
			groups[n-1].entries = append(groups[n-1].entries, e)
			continue
		}
		groups = append(groups, group{entries: []database.Entry{e}})
	}
	return groups
}

func (m *Manager) save(s *database.Season, entries []database.Entry) error {
	if err := m.db.CreateSeason(s); err != nil {
		return fmt.Errorf("saving season: %w", err)
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := m.db.AssignSeason(s.ID, ids); err != nil {
		return fmt.Errorf("linking season %d: %w", s.ID, err)
	}
	return nil
}

// describe fills in title, themes and description. A title already set is
// kept.
func (m *Manager) describe(ctx context.Context, s *database.Season, episodes []database.Entry, number int) {
	s.DominantThemes = TopKeywords(episodes, maxThemes)

	if meta, ok := m.metadata(ctx, episodes, number); ok {
		if s.Title == "" {
			s.Title = meta.Title
		}
		if len(meta.Themes) > 0 {
			s.DominantThemes = meta.Themes
		}
		if s.Description == "" {
			s.Description = meta.Description
		}
	}
	if s.Title == "" {
		s.Title = FallbackTitle(number)
	}
}

// FallbackTitle is the season title used without a backend.
func FallbackTitle(number int) string {
	return fmt.Sprintf("Season %d: The Journey Continues", number)
}

type metadata struct {
	Title       string   `json:"title"`
	Themes      []string `json:"themes"`
	Description string   `json:"description"`
}

func (m *Manager) metadata(ctx context.Context, episodes []database.Entry, number int) (metadata, bool) {
	if m.provider == nil || len(episodes) == 0 {
		return metadata{}, false
	}

	lines := make([]string, 0, maxPromptEpisodes+1)
	for i, e := range episodes {
		if i == maxPromptEpisodes {
			lines = append(lines, fmt.Sprintf("...and %d more episodes.", len(episodes)-maxPromptEpisodes))
			break
		}
		lines = append(lines, "- "+episodeLabel(e))
	}
	prompt := fmt.Sprintf(metadataPrompt, number, strings.Join(lines, "\n"), number)

	resp, ok := m.complete(ctx, "metadata", prompt, m.timeouts.Metadata, metadataMaxTokens)
	if !ok {
		return metadata{}, false
	}
	var meta metadata
	if err := llm.DecodeJSON(resp, &meta); err != nil {
		m.logger.Warn("failed to parse season metadata", zap.Error(err))
		return metadata{}, false
	}
	meta.Title = strings.TrimSpace(meta.Title)
	if meta.Title == "" {
		meta.Title = fmt.Sprintf("Season %d", number)
	}
	if len(meta.Themes) > maxThemes {
		meta.Themes = meta.Themes[:maxThemes]
	}
	meta.Description = strings.TrimSpace(meta.Description)
	return meta, true
}

func (m *Manager) complete(ctx context.Context, call, prompt string, timeout time.Duration, maxTokens int) (string, bool) {
	if m.provider == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := m.provider.Generate(ctx, prompt, maxTokens)
	if err != nil {
		m.logger.Warn("backend request failed", zap.String("call", call), zap.Error(err))
		return "", false
	}
	resp = strings.TrimSpace(resp)
	return resp, resp != ""
}

// TopKeywords returns the n most frequent keywords across entries, ties in
// order of first appearance.
func TopKeywords(entries []database.Entry, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, e := range entries {
		if e.Metadata == nil {
			continue
		}
		for _, kw := range e.Metadata.Keywords {
			if counts[kw] == 0 {
				order = append(order, kw)
			}
			counts[kw]++
		}
	}
	slices.SortStableFunc(order, func(a, b string) int {
		return cmp.Compare(counts[b], counts[a])
	})
	if len(order) > n {
		order = order[:n]
	}
	if order == nil {
		return []string{}
	}
	return order
}

func episodeLabel(e database.Entry) string {
	if e.HasTitle() {
		return *e.Title
	}
	return e.Snippet(episodeSnippetChars)
}

func chronological(entries []database.Entry) {
	slices.SortStableFunc(entries, func(a, b database.Entry) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.ID, b.ID))
	})
}
