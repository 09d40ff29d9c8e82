package export

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/chronicle/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func fullEntry() *database.Entry {
	title := "Racing Shadows"
	narrative := "She races the clock."
	return &database.Entry{
		ID:            3,
		Date:          "2026-02-06",
		RawText:       "Busy day.\nDinner with Sam.",
		NarrativeText: &narrative,
		Title:         &title,
		TitleOptions: []database.TitleOption{
			{Title: "Racing Shadows", Pattern: "metaphor", Score: 0.9},
			{Title: "Clockwork", Pattern: "single word", Score: 0.4},
		},
		Conflict: &database.ConflictProfile{
			InternalConflicts: []string{"doubt"},
			TensionLevel:      7,
			Archetype:         database.ArchetypeTime,
			CentralConflict:   "Racing the clock.",
		},
		Metadata: &database.EpisodeMetadata{Logline: "A race.", Synopsis: "A long day.", Keywords: []string{"work", "time"}},
	}
}

func TestMarkdown(t *testing.T) {
	doc := Markdown(fullEntry())

	for _, want := range []string{
		"# Racing Shadows\n",
		"*Feb 06, 2026*",
		"> A race.",
		"She races the clock.",
		"- **Archetype:** person vs time",
		"- **Tension:** 7/10",
		"- **Internal:** doubt",
		"## Synopsis\n\nA long day.",
		"**Keywords:** work, time",
		"- Clockwork (single word, 0.40)",
		"> Busy day.\n> Dinner with Sam.\n",
	} {
		assert.Contains(t, doc, want)
	}
	assert.NotContains(t, doc, "External")
}

func TestMarkdownRawEntry(t *testing.T) {
	doc := Markdown(&database.Entry{Date: "2026-02-06", RawText: "Just text."})
	assert.True(t, strings.HasPrefix(doc, "# Entry from 2026-02-06\n"))
	assert.NotContains(t, doc, "## Conflict")
	assert.Contains(t, doc, "> Just text.")
}

func TestRangeOrdersOldestFirst(t *testing.T) {
	newer := database.Entry{Date: "2026-02-07", RawText: "newer"}
	older := database.Entry{Date: "2026-02-01", RawText: "older"}
	doc := Range("Week", []database.Entry{newer, older})

	assert.True(t, strings.HasPrefix(doc, "# Week\n"))
	assert.Contains(t, doc, "## Entry from 2026-02-01")
	assert.Less(t, strings.Index(doc, "older"), strings.Index(doc, "newer"))
}

func TestHTML(t *testing.T) {
	page, err := HTML("A <b> title", "# Hello\n\nSome *text*.")
	require.NoError(t, err)
	assert.Contains(t, page, "<title>A &lt;b&gt; title</title>")
	assert.Contains(t, page, "<h1>Hello</h1>")
	assert.Contains(t, page, "<em>text</em>")
}

func TestExporterWritesFiles(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	today := time.Now().Format(database.DateLayout)
	e := &database.Entry{Date: today, RawText: "Today."}
	require.NoError(t, db.CreateEntry(e))

	path, err := NewExporter(db, dir, false).Entry(e)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "episode_"+today+"_"+itoa(e.ID)+".md"), path)

	path, err = NewExporter(db, dir, true).Weekly()
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, ".html"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Chronicle Weekly")

	path, err = NewExporter(db, dir, false).Daily("2020-01-01")
	require.NoError(t, err)
	assert.Empty(t, path)

	paths, err := NewExporter(db, dir, false).All()
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
