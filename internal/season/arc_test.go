package season

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/llm/llmtest"
)

func TestAnalyzeArc(t *testing.T) {
	db := openTestDB(t)
	a := addEntry(t, db, "2026-01-02")
	b := addEntry(t, db, "2026-01-09")
	m := NewManager(db, nil, Timeouts{}, nil)
	r, err := m.Organize(context.Background(), ModeMonthly, true)
	require.NoError(t, err)
	seasonID := r.Seasons[0].ID

	resp := `{"storylines": {"career": "Up."}, "character_growth": "More patient.", "climax_episode_id": ` +
		itoa(b.ID) + `, "motifs": ["rain"], "summary": "A month.", "finale_worthy_episodes": [` + itoa(a.ID) + `, 9999]}`
	p := llmtest.Static(resp)
	arc, err := NewManager(db, p, Timeouts{}, nil).AnalyzeArc(context.Background(), seasonID)
	require.NoError(t, err)

	assert.Equal(t, "More patient.", arc.CharacterGrowth)
	require.NotNil(t, arc.ClimaxEpisodeID)
	assert.Equal(t, b.ID, *arc.ClimaxEpisodeID)
	assert.Equal(t, []int64{a.ID}, arc.FinaleWorthyEpisodes)

	prompt := p.Prompts()[0]
	assert.Contains(t, prompt, `"title": "Episode 1"`)
	assert.Contains(t, prompt, `"central_conflict": "None"`)

	saved, err := db.GetSeason(seasonID)
	require.NoError(t, err)
	require.NotNil(t, saved.Arc)
	assert.Equal(t, "A month.", saved.Arc.Summary)
}

func TestAnalyzeArcMissingSeason(t *testing.T) {
	_, err := NewManager(openTestDB(t), nil, Timeouts{}, nil).AnalyzeArc(context.Background(), 42)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAnalyzeArcNoEpisodes(t *testing.T) {
	db := openTestDB(t)
	s := &database.Season{Title: "Empty", StartDate: "2026-05-01", EndDate: "2026-05-31", Mode: "manual"}
	require.NoError(t, db.CreateSeason(s))

	arc, err := NewManager(db, llmtest.Static("unused"), Timeouts{}, nil).AnalyzeArc(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, noEpisodesArc, arc.Summary)
}

func TestParseArcDegrades(t *testing.T) {
	arc := ParseArc("The season was great. "+strings.Repeat("x", 600), nil)
	assert.True(t, strings.HasPrefix(arc.Summary, "Full analysis failed to parse. Raw response: The season was great."))
	assert.Equal(t, "Analysis parsing failed.", arc.CharacterGrowth)
	assert.NotNil(t, arc.Storylines)
	assert.Empty(t, arc.FinaleWorthyEpisodes)
}

func TestParseArcDropsUnknownClimax(t *testing.T) {
	arc := ParseArc(`{"summary": "s", "climax_episode_id": 7}`, []database.Entry{{ID: 1}})
	assert.Nil(t, arc.ClimaxEpisodeID)
	assert.Equal(t, map[string]string{}, arc.Storylines)
	assert.Equal(t, []string{}, arc.Motifs)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
