package season

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/llm/llmtest"
)

const (
	keyMetadata = "Generate metadata for 'Season"
	keyChapters = "identify 'Life Chapters'"
	keyArc      = "Analyze the following TV season data"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func addEntry(t *testing.T, db *database.DB, date string, keywords ...string) database.Entry {
	t.Helper()
	e := database.Entry{Date: date, RawText: "Entry on " + date}
	if keywords != nil {
		e.Metadata = &database.EpisodeMetadata{Keywords: keywords}
	}
	require.NoError(t, db.CreateEntry(&e))
	return e
}

func seasonOf(t *testing.T, db *database.DB, id int64) int64 {
	t.Helper()
	e, err := db.GetEntry(id)
	require.NoError(t, err)
	require.NotNil(t, e.SeasonID)
	return *e.SeasonID
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeMonthly, "default": ModeMonthly, "Monthly": ModeMonthly, "smart": ModeSmart, "manual": ModeManual} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("weekly")
	assert.Error(t, err)
}

func TestOrganizeMonthlyWithoutBackend(t *testing.T) {
	db := openTestDB(t)
	jan1 := addEntry(t, db, "2026-01-05", "work", "coffee")
	jan2 := addEntry(t, db, "2026-01-20", "work")
	feb := addEntry(t, db, "2026-02-03", "travel")

	r, err := NewManager(db, nil, Timeouts{}, nil).Organize(context.Background(), ModeMonthly, true)
	require.NoError(t, err)

	assert.Equal(t, ModeMonthly, r.Mode)
	require.Len(t, r.Seasons, 2)
	first := r.Seasons[0]
	assert.Equal(t, "Season 1: The Journey Continues", first.Title)
	assert.Equal(t, "2026-01-05", first.StartDate)
	assert.Equal(t, "2026-01-20", first.EndDate)
	assert.Equal(t, 2, first.EpisodeCount)
	assert.Equal(t, []string{"work", "coffee"}, first.DominantThemes)
	assert.Equal(t, "Season 2: The Journey Continues", r.Seasons[1].Title)

	assert.Equal(t, first.ID, seasonOf(t, db, jan1.ID))
	assert.Equal(t, first.ID, seasonOf(t, db, jan2.ID))
	assert.Equal(t, r.Seasons[1].ID, seasonOf(t, db, feb.ID))
}

func TestOrganizeClearsExisting(t *testing.T) {
	db := openTestDB(t)
	addEntry(t, db, "2026-01-05")
	m := NewManager(db, nil, Timeouts{}, nil)

	_, err := m.Organize(context.Background(), ModeMonthly, true)
	require.NoError(t, err)
	_, err = m.Organize(context.Background(), ModeMonthly, true)
	require.NoError(t, err)

	seasons, err := db.ListSeasons()
	require.NoError(t, err)
	assert.Len(t, seasons, 1)
}

func TestOrganizeEmpty(t *testing.T) {
	r, err := NewManager(openTestDB(t), nil, Timeouts{}, nil).Organize(context.Background(), ModeSmart, true)
	require.NoError(t, err)
	assert.Empty(t, r.Seasons)
}

func TestOrganizeSmart(t *testing.T) {
	db := openTestDB(t)
	var entries []database.Entry
	for _, d := range []string{"2026-01-01", "2026-01-02", "2026-01-03", "2026-01-04"} {
		entries = append(entries, addEntry(t, db, d))
	}

	p := llmtest.ByPrompt(
		keyChapters, `[{"start_index": 0, "end_index": 1, "reason": "New job"}, {"start_index": 3, "end_index": 9, "reason": "Move"}]`,
		keyMetadata, `{"title": "The Rising Tide", "themes": ["change"], "description": "Things shift."}`,
	)
	r, err := NewManager(db, p, Timeouts{}, nil).Organize(context.Background(), ModeSmart, true)
	require.NoError(t, err)

	assert.Equal(t, ModeSmart, r.Mode)
	require.Len(t, r.Seasons, 2)
	assert.Equal(t, "New job", r.Seasons[0].Description)
	assert.Equal(t, "2026-01-03", r.Seasons[0].EndDate, "gap absorbed by the preceding season")
	assert.Equal(t, 3, r.Seasons[0].EpisodeCount)
	assert.Equal(t, "The Rising Tide", r.Seasons[0].Title)
	assert.Equal(t, []string{"change"}, r.Seasons[0].DominantThemes)
	assert.Equal(t, "smart", r.Seasons[1].Mode)
	assert.Equal(t, r.Seasons[1].ID, seasonOf(t, db, entries[3].ID))
}

func TestOrganizeSmartFallsBackToMonthly(t *testing.T) {
	db := openTestDB(t)
	addEntry(t, db, "2026-01-01")
	addEntry(t, db, "2026-01-02")
	addEntry(t, db, "2026-02-01")

	p := llmtest.ByPrompt(keyChapters, "I cannot decide.", keyMetadata, "no json")
	r, err := NewManager(db, p, Timeouts{}, nil).Organize(context.Background(), ModeSmart, true)
	require.NoError(t, err)
	assert.Equal(t, ModeMonthly, r.Mode)
	assert.Len(t, r.Seasons, 2)
}

func TestOrganizeSmartNeedsThreeEntries(t *testing.T) {
	db := openTestDB(t)
	addEntry(t, db, "2026-01-01")
	addEntry(t, db, "2026-01-02")

	p := llmtest.Static("unused")
	r, err := NewManager(db, p, Timeouts{}, nil).Organize(context.Background(), ModeSmart, true)
	require.NoError(t, err)
	assert.Equal(t, ModeMonthly, r.Mode)
	for _, prompt := range p.Prompts() {
		assert.NotContains(t, prompt, keyChapters)
	}
}

func TestCreateManual(t *testing.T) {
	db := openTestDB(t)
	in := addEntry(t, db, "2026-03-10")
	out := addEntry(t, db, "2026-04-01")

	p := llmtest.Static(`{"title": "Ignored", "themes": ["spring"], "description": "March."}`)
	s, err := NewManager(db, p, Timeouts{}, nil).CreateManual(context.Background(), "Spring Break", "2026-03-01", "2026-03-31")
	require.NoError(t, err)

	assert.Equal(t, "Spring Break", s.Title)
	assert.Equal(t, "manual", s.Mode)
	assert.Equal(t, 1, s.EpisodeCount)
	assert.Equal(t, "March.", s.Description)
	assert.Equal(t, s.ID, seasonOf(t, db, in.ID))

	e, err := db.GetEntry(out.ID)
	require.NoError(t, err)
	assert.Nil(t, e.SeasonID)
}

func TestCreateManualRejectsBadRange(t *testing.T) {
	m := NewManager(openTestDB(t), nil, Timeouts{}, nil)
	_, err := m.CreateManual(context.Background(), "x", "2026-03-31", "2026-03-01")
	assert.Error(t, err)
	_, err = m.CreateManual(context.Background(), "x", "March", "2026-03-01")
	assert.Error(t, err)
}

func TestTopKeywords(t *testing.T) {
	entries := []database.Entry{
		{Metadata: &database.EpisodeMetadata{Keywords: []string{"a", "b"}}},
		{Metadata: &database.EpisodeMetadata{Keywords: []string{"b", "c"}}},
		{},
		{Metadata: &database.EpisodeMetadata{Keywords: []string{"c", "b", "d", "e", "f"}}},
	}
	assert.Equal(t, []string{"b", "c", "a", "d", "e"}, TopKeywords(entries, 5))
	assert.Equal(t, []string{}, TopKeywords(nil, 5))
}
