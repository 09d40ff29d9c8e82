package conflict

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/llm/llmtest"
)

const sampleResponse = `{"internal":["doubt"],"external":["deadline"],"tension":7,"archetype":"person vs time","central_conflict":"Running out of time."}`

func TestAnalyzeEmptySkipsBackend(t *testing.T) {
	p := llmtest.Static(sampleResponse)
	a := NewAnalyzer(p, 0, nil)

	got := a.Analyze(context.Background(), "   ")
	assert.Equal(t, database.NewConflictProfile(), got)
	assert.Equal(t, 1, got.TensionLevel)
	assert.Equal(t, database.ArchetypeNone, got.Archetype)
	assert.Empty(t, got.InternalConflicts)
	assert.Equal(t, 0, p.Calls())
}

func TestAnalyzeParsesBackendJSON(t *testing.T) {
	p := llmtest.Static(sampleResponse)
	got := NewAnalyzer(p, 0, nil).Analyze(context.Background(), "Worried about the launch.")

	assert.Equal(t, 7, got.TensionLevel)
	assert.Contains(t, got.InternalConflicts, "doubt")
	assert.Equal(t, []string{"deadline"}, got.ExternalConflicts)
	assert.Equal(t, database.ArchetypeTime, got.Archetype)
	assert.Equal(t, "Running out of time.", got.CentralConflict)
	assert.Equal(t, 1, p.Calls())
	assert.Contains(t, p.Prompts()[0], "Worried about the launch.")
}

func TestAnalyzeStripsCodeFence(t *testing.T) {
	p := llmtest.Static("```json\n" + sampleResponse + "\n```")
	got := NewAnalyzer(p, 0, nil).Analyze(context.Background(), "text")
	assert.Equal(t, 7, got.TensionLevel)
}

func TestAnalyzeUnavailableUsesFallback(t *testing.T) {
	a := NewAnalyzer(llmtest.Unavailable(), 0, nil)
	got := a.Analyze(context.Background(), "I am scared and the deadline is tomorrow")

	assert.Contains(t, database.Archetypes, got.Archetype)
	assert.Equal(t, []string{"uncertainty"}, got.InternalConflicts)
	assert.Equal(t, []string{"pressure"}, got.ExternalConflicts)
	assert.Equal(t, database.ArchetypeTime, got.Archetype)
	assert.Equal(t, 6, got.TensionLevel)
	assert.Equal(t, fallbackCentral, got.CentralConflict)
}

func TestAnalyzeNilProviderUsesFallback(t *testing.T) {
	got := NewAnalyzer(nil, 0, nil).Analyze(context.Background(), "Feeling lonely")
	assert.Equal(t, database.ArchetypeSelf, got.Archetype)
	assert.Equal(t, 4, got.TensionLevel)
}

func TestAnalyzeMalformedUsesFallback(t *testing.T) {
	for _, resp := range []string{
		"I cannot help with that.",
		`{"internal": "doubt"}`,
		`{"tension": "very high"}`,
		`{"archetype": "man vs wild"}`,
		`["not", "an", "object"]`,
	} {
		got := NewAnalyzer(llmtest.Static(resp), 0, nil).Analyze(context.Background(), "Stuck in traffic again")
		assert.Equal(t, []string{"environmental hurdle"}, got.ExternalConflicts, "response %q", resp)
		assert.Equal(t, database.ArchetypeEnvironment, got.Archetype, "response %q", resp)
	}
}

func TestParseDefaultsAndCoercion(t *testing.T) {
	got, err := Parse(`{"tension": "12", "archetype": "Person-vs-Self"}`)
	require.NoError(t, err)
	assert.Equal(t, 10, got.TensionLevel)
	assert.Equal(t, database.ArchetypeSelf, got.Archetype)
	assert.Empty(t, got.InternalConflicts)
	assert.NotNil(t, got.ExternalConflicts)

	got, err = Parse(`{"tension": 0}`)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TensionLevel)
	assert.Equal(t, database.ArchetypeNone, got.Archetype)
}

func TestFallbackTable(t *testing.T) {
	tests := []struct {
		text      string
		tension   int
		archetype database.Archetype
	}{
		{"Ate toast.", 1, database.ArchetypeNone},
		{"I doubt myself", 4, database.ArchetypeSelf},
		{"My boss called", 6, database.ArchetypeTime},
		{"Sad, and the rain would not stop", 6, database.ArchetypeEnvironment},
		{"Client deadline, then a storm", 6, database.ArchetypeEnvironment},
	}
	for _, tt := range tests {
		got := Fallback(tt.text)
		assert.Equal(t, tt.tension, got.TensionLevel, tt.text)
		assert.Equal(t, tt.archetype, got.Archetype, tt.text)
		assert.Equal(t, fallbackCentral, got.CentralConflict)
	}
}

func TestPromptListsArchetypes(t *testing.T) {
	prompt := Prompt("diary")
	for _, a := range database.Archetypes {
		assert.Contains(t, prompt, `"`+string(a)+`"`)
	}
}
