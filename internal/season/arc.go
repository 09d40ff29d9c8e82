package season

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/llm"
)

const arcPrompt = `Analyze the following TV season data for a show called "Chronicle".
This season is titled "%s" and spans from %s to %s.

SEASON DATA (EPISODES):
%s

Please provide a detailed narrative analysis of this season. Your response MUST be in JSON format with the following structure:
{
  "storylines": {
    "career": "Description of the career/professional arc across the season",
    "health": "Description of the health/well-being arc across the season",
    "relationships": "Description of the social/relationship arcs across the season"
  },
  "character_growth": "A detailed description of how the protagonist has changed from the premiere to the finale.",
  "climax_episode_id": 123,
  "motifs": ["motif1", "motif2"],
  "summary": "A comprehensive plot-style narrative summary of the entire season (3-5 paragraphs).",
  "finale_worthy_episodes": [121, 125]
}

climax_episode_id is the ID of the episode that represents the emotional or narrative peak of the season.
finale_worthy_episodes lists episode IDs that could have served as a season finale due to stakes or resolution.
Focus on identifying threads that span multiple episodes and payoffs to earlier setups.`

const (
	arcMaxTokens     = 1500
	arcSnippetChars  = 200
	rawResponseChars = 500
	noEpisodesArc    = "No episodes found in this season."
)

type arcEpisode struct {
	ID              int64  `json:"id"`
	EpisodeNumber   int    `json:"episode_number"`
	Date            string `json:"date"`
	Title           string `json:"title"`
	Synopsis        string `json:"synopsis"`
	TensionLevel    int    `json:"tension_level"`
	CentralConflict string `json:"central_conflict"`
}

// AnalyzeArc analyzes a season's episodes and stores the arc on the season.
// An unparseable response produces a degraded arc rather than an error.
func (m *Manager) AnalyzeArc(ctx context.Context, seasonID int64) (*database.SeasonArc, error) {
	s, err := m.db.GetSeason(seasonID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("season %d: %w", seasonID, database.ErrNotFound)
	}

	entries, err := m.db.ListEntriesBetween(s.StartDate, s.EndDate)
	if err != nil {
		return nil, fmt.Errorf("listing season entries: %w", err)
	}
	chronological(entries)
	if len(entries) == 0 {
		return emptyArc(noEpisodesArc), nil
	}

	prompt, err := ArcPrompt(s, entries)
	if err != nil {
		return nil, err
	}

	arc := emptyArc("Arc analysis unavailable.")
	arc.CharacterGrowth = "Analysis unavailable."
	if resp, ok := m.complete(ctx, "arc", prompt, m.timeouts.Arc, arcMaxTokens); ok {
		arc = ParseArc(resp, entries)
	}

	s.Arc = arc
	if err := m.db.UpdateSeason(s); err != nil {
		return nil, fmt.Errorf("saving arc: %w", err)
	}
	m.logger.Info("season arc analyzed", zap.Int64("season", seasonID), zap.Int("episodes", len(entries)))
	return arc, nil
}

// ArcPrompt builds the arc analysis prompt for a season and its entries in
// chronological order.
func ArcPrompt(s *database.Season, entries []database.Entry) (string, error) {
	episodes := make([]arcEpisode, len(entries))
	for i, e := range entries {
		ep := arcEpisode{
			ID:              e.ID,
			EpisodeNumber:   i + 1,
			Date:            e.Date,
			Title:           fmt.Sprintf("Episode %d", i+1),
			Synopsis:        e.Snippet(arcSnippetChars),
			TensionLevel:    1,
			CentralConflict: "None",
		}
		if e.HasTitle() {
			ep.Title = *e.Title
		}
		if e.Metadata != nil && e.Metadata.Synopsis != "" {
			ep.Synopsis = e.Metadata.Synopsis
		}
		if e.Conflict != nil {
			ep.TensionLevel = e.Conflict.TensionLevel
			ep.CentralConflict = e.Conflict.CentralConflict
		}
		episodes[i] = ep
	}

	data, err := json.MarshalIndent(episodes, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding episodes: %w", err)
	}
	return fmt.Sprintf(arcPrompt, s.Title, s.StartDate, s.EndDate, data), nil
}

// ParseArc decodes an arc response. Episode references outside entries are
// dropped. A response that does not decode yields a degraded arc carrying
// the start of the raw response.
func ParseArc(resp string, entries []database.Entry) *database.SeasonArc {
	var arc database.SeasonArc
	if err := llm.DecodeJSON(resp, &arc); err != nil {
		degraded := emptyArc("Full analysis failed to parse. Raw response: " + truncate(resp, rawResponseChars) + "...")
		degraded.CharacterGrowth = "Analysis parsing failed."
		return degraded
	}

	known := make(map[int64]bool, len(entries))
	for _, e := range entries {
		known[e.ID] = true
	}
	if arc.ClimaxEpisodeID != nil && !known[*arc.ClimaxEpisodeID] {
		arc.ClimaxEpisodeID = nil
	}
	finale := []int64{}
	for _, id := range arc.FinaleWorthyEpisodes {
		if known[id] {
			finale = append(finale, id)
		}
	}
	arc.FinaleWorthyEpisodes = finale
	if arc.Storylines == nil {
		arc.Storylines = map[string]string{}
	}
	if arc.Motifs == nil {
		arc.Motifs = []string{}
	}
	arc.Summary = strings.TrimSpace(arc.Summary)
	return &arc
}

func emptyArc(summary string) *database.SeasonArc {
	return &database.SeasonArc{
		Storylines:           map[string]string{},
		Motifs:               []string{},
		Summary:              summary,
		FinaleWorthyEpisodes: []int64{},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
