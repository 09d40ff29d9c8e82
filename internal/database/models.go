package database

import "strings"

// Archetype labels the dominant conflict shape of an entry.
type Archetype string

const (
	ArchetypeSelf        Archetype = "person vs self"
	ArchetypePerson      Archetype = "person vs person"
	ArchetypeEnvironment Archetype = "person vs environment"
	ArchetypeSystem      Archetype = "person vs system"
	ArchetypeTime        Archetype = "person vs time"
	ArchetypeNone        Archetype = "none"
)

// Archetypes lists every valid archetype in prompt order.
var Archetypes = []Archetype{
	ArchetypeSelf,
	ArchetypePerson,
	ArchetypeEnvironment,
	ArchetypeSystem,
	ArchetypeTime,
	ArchetypeNone,
}

// ParseArchetype normalizes loose spellings ("Person-vs-Self", "person_vs_time")
// and reports whether the result is a known archetype.
func ParseArchetype(s string) (Archetype, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", " ", "_", " ", ".", "").Replace(norm)
	norm = strings.Join(strings.Fields(norm), " ")
	if norm == "" {
		return ArchetypeNone, true
	}
	for _, a := range Archetypes {
		if string(a) == norm {
			return a, true
		}
	}
	return ArchetypeNone, false
}

// ConflictProfile is the structured conflict analysis of an entry.
type ConflictProfile struct {
	InternalConflicts []string  `json:"internal_conflicts"`
	ExternalConflicts []string  `json:"external_conflicts"`
	TensionLevel      int       `json:"tension_level"`
	Archetype         Archetype `json:"archetype"`
	CentralConflict   string    `json:"central_conflict"`
}

// NewConflictProfile returns the neutral profile: tension 1, archetype none.
func NewConflictProfile() *ConflictProfile {
	return &ConflictProfile{
		InternalConflicts: []string{},
		ExternalConflicts: []string{},
		TensionLevel:      1,
		Archetype:         ArchetypeNone,
	}
}

// TitleOption is one ranked title candidate.
type TitleOption struct {
	Title   string  `json:"title"`
	Pattern string  `json:"pattern"`
	Score   float64 `json:"score"`
}

// EpisodeMetadata is the searchable logline/synopsis/keywords triple.
type EpisodeMetadata struct {
	Logline  string   `json:"logline"`
	Synopsis string   `json:"synopsis"`
	Keywords []string `json:"keywords"`
}

// Entry is a diary entry plus its derived episode fields. A nil derived field
// means it was never generated.
type Entry struct {
	ID            int64
	Date          string
	RawText       string
	NarrativeText *string
	Title         *string
	TitleOptions  []TitleOption
	Conflict      *ConflictProfile
	Metadata      *EpisodeMetadata
	SeasonID      *int64
	RecapID       *int64
	CreatedAt     *string
	UpdatedAt     *string
}

// HasTitle reports whether the title group is populated.
func (e *Entry) HasTitle() bool {
	return e.Title != nil && *e.Title != ""
}

// HasNarrative reports whether the narrative is populated.
func (e *Entry) HasNarrative() bool {
	return e.NarrativeText != nil && *e.NarrativeText != ""
}

// IsBlank reports whether none of the four derived groups is populated.
func (e *Entry) IsBlank() bool {
	return e.Conflict == nil && !e.HasNarrative() && !e.HasTitle() && e.Metadata == nil
}

// IsComplete reports whether all four derived groups are populated.
func (e *Entry) IsComplete() bool {
	return e.Conflict != nil && e.HasNarrative() && e.HasTitle() && e.Metadata != nil
}

// ClearDerived drops every derived field so the entry can be regenerated.
func (e *Entry) ClearDerived() {
	e.Conflict = nil
	e.NarrativeText = nil
	e.Title = nil
	e.TitleOptions = nil
	e.Metadata = nil
}

// Snippet returns a truncated preview of the narrative, or the raw text.
func (e *Entry) Snippet(maxLen int) string {
	text := e.RawText
	if e.HasNarrative() {
		text = *e.NarrativeText
	}
	if len(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return text[:maxLen]
	}
	return text[:maxLen-3] + "..."
}

// DisplayTitle returns the title or a dated placeholder.
func (e *Entry) DisplayTitle() string {
	if e.HasTitle() {
		return *e.Title
	}
	return "Entry from " + e.Date
}

// SeasonArc is the narrative analysis of a whole season.
type SeasonArc struct {
	Storylines           map[string]string `json:"storylines"`
	CharacterGrowth      string            `json:"character_growth"`
	ClimaxEpisodeID      *int64            `json:"climax_episode_id,omitempty"`
	Motifs               []string          `json:"motifs"`
	Summary              string            `json:"summary"`
	FinaleWorthyEpisodes []int64           `json:"finale_worthy_episodes"`
}

// Season groups consecutive episodes.
type Season struct {
	ID             int64
	Title          string
	StartDate      string
	EndDate        string
	EpisodeCount   int
	Description    string
	Mode           string // "monthly", "smart" or "manual"
	DominantThemes []string
	Arc            *SeasonArc
	CreatedAt      *string
}

// Recap is a "Previously on..." summary over earlier entries.
type Recap struct {
	ID        int64
	Date      string
	Content   string
	EntryIDs  []int64
	CreatedAt *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalEntries     int
	ProcessedEntries int
	Seasons          int
	Recaps           int
	FirstDate        string
	LastDate         string
}
