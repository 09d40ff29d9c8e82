package database

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func addEntry(t *testing.T, db *DB, date, text string) *Entry {
	t.Helper()
	e := &Entry{Date: date, RawText: text}
	if err := db.CreateEntry(e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	return e
}

func TestCreateEntry(t *testing.T) {
	db := openTestDB(t)
	e := addEntry(t, db, "2026-02-06", "Woke up late.")
	if e.ID == 0 {
		t.Error("expected non-zero entry ID")
	}

	got, err := db.GetEntry(e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.RawText != "Woke up late." {
		t.Errorf("expected raw text to round-trip, got %q", got.RawText)
	}
	if !got.IsBlank() {
		t.Error("expected fresh entry to be blank")
	}
	if got.CreatedAt == nil {
		t.Error("expected created_at to be set")
	}
}

func TestGetEntryMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetEntry(999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing entry")
	}
}

func TestUpdateEntryDerivedFields(t *testing.T) {
	db := openTestDB(t)
	e := addEntry(t, db, "2026-02-06", "Deadline at work.")

	e.NarrativeText = ptr("The office hums.")
	e.Title = ptr("The Deadline")
	e.TitleOptions = []TitleOption{{Title: "The Deadline", Pattern: "The [Noun]", Score: 0.9}}
	e.Conflict = &ConflictProfile{
		InternalConflicts: []string{"doubt"},
		ExternalConflicts: []string{"deadline"},
		TensionLevel:      7,
		Archetype:         ArchetypeTime,
		CentralConflict:   "Beat the clock",
	}
	e.Metadata = &EpisodeMetadata{Logline: "A race.", Synopsis: "Long day.", Keywords: []string{"work"}}
	if err := db.UpdateEntry(e); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}

	got, err := db.GetEntry(e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if !got.IsComplete() {
		t.Fatal("expected entry to be complete after update")
	}
	if got.Conflict.Archetype != ArchetypeTime || got.Conflict.TensionLevel != 7 {
		t.Errorf("conflict did not round-trip: %+v", got.Conflict)
	}
	if len(got.TitleOptions) != 1 || got.TitleOptions[0].Score != 0.9 {
		t.Errorf("title options did not round-trip: %+v", got.TitleOptions)
	}
	if got.Metadata.Keywords[0] != "work" {
		t.Errorf("expected keyword 'work', got %v", got.Metadata.Keywords)
	}
}

func TestUpdateEntryMissing(t *testing.T) {
	db := openTestDB(t)
	err := db.UpdateEntry(&Entry{ID: 42, Date: "2026-02-06", RawText: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEmptyMetadataStillSet(t *testing.T) {
	db := openTestDB(t)
	e := addEntry(t, db, "2026-02-06", "Quiet.")
	e.Metadata = &EpisodeMetadata{}
	if err := db.UpdateEntry(e); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}

	got, _ := db.GetEntry(e.ID)
	if got.Metadata == nil {
		t.Fatal("expected empty metadata to persist as set")
	}
	if got.Metadata.Keywords == nil {
		t.Error("expected empty keyword list, got nil")
	}
}

func TestListEntries(t *testing.T) {
	db := openTestDB(t)
	addEntry(t, db, "2026-02-04", "A")
	addEntry(t, db, "2026-02-06", "C")
	addEntry(t, db, "2026-02-05", "B")

	entries, err := db.ListEntries(0)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Date != "2026-02-06" {
		t.Errorf("expected newest first, got %s", entries[0].Date)
	}

	limited, _ := db.ListEntries(2)
	if len(limited) != 2 {
		t.Errorf("expected 2 entries with limit, got %d", len(limited))
	}
}

func TestListEntriesBetween(t *testing.T) {
	db := openTestDB(t)
	addEntry(t, db, "2026-01-31", "before")
	addEntry(t, db, "2026-02-01", "in")
	addEntry(t, db, "2026-02-07", "in")
	addEntry(t, db, "2026-02-08", "after")

	entries, err := db.ListEntriesBetween("2026-02-01", "2026-02-07")
	if err != nil {
		t.Fatalf("ListEntriesBetween: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries in range, got %d", len(entries))
	}
}

func TestListEntriesLastNDays(t *testing.T) {
	db := openTestDB(t)
	addEntry(t, db, GetToday(), "today")
	addEntry(t, db, "2000-01-01", "ancient")

	entries, err := db.ListEntriesLastNDays(7)
	if err != nil {
		t.Fatalf("ListEntriesLastNDays: %v", err)
	}
	if len(entries) != 1 || entries[0].RawText != "today" {
		t.Errorf("expected only today's entry, got %+v", entries)
	}
}

func TestListUnprocessed(t *testing.T) {
	db := openTestDB(t)
	done := addEntry(t, db, "2026-02-05", "done")
	done.Conflict = NewConflictProfile()
	done.NarrativeText = ptr("n")
	done.Title = ptr("t")
	done.Metadata = &EpisodeMetadata{}
	if err := db.UpdateEntry(done); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	addEntry(t, db, "2026-02-07", "later")
	addEntry(t, db, "2026-02-06", "pending")

	entries, err := db.ListUnprocessed()
	if err != nil {
		t.Fatalf("ListUnprocessed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 unprocessed entries, got %d", len(entries))
	}
	if entries[0].RawText != "pending" {
		t.Errorf("expected oldest first, got %q", entries[0].RawText)
	}
}

func TestFindEntryByText(t *testing.T) {
	db := openTestDB(t)
	addEntry(t, db, "2026-02-06", "same words")

	found, err := db.FindEntryByText("2026-02-06", "same words")
	if err != nil {
		t.Fatalf("FindEntryByText: %v", err)
	}
	if found == nil {
		t.Fatal("expected to find entry")
	}
	other, _ := db.FindEntryByText("2026-02-07", "same words")
	if other != nil {
		t.Error("expected no match on another date")
	}
}

func TestDeleteEntry(t *testing.T) {
	db := openTestDB(t)
	e := addEntry(t, db, "2026-02-06", "gone")

	deleted, err := db.DeleteEntry(e.ID)
	if err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if !deleted {
		t.Error("expected delete to report true")
	}
	again, _ := db.DeleteEntry(e.ID)
	if again {
		t.Error("expected second delete to report false")
	}
}

func TestSeasonLifecycle(t *testing.T) {
	db := openTestDB(t)
	a := addEntry(t, db, "2026-02-01", "a")
	b := addEntry(t, db, "2026-02-02", "b")

	s := &Season{
		Title:          "Season 1: February",
		StartDate:      "2026-02-01",
		EndDate:        "2026-02-28",
		EpisodeCount:   2,
		Mode:           "monthly",
		DominantThemes: []string{"work"},
	}
	if err := db.CreateSeason(s); err != nil {
		t.Fatalf("CreateSeason: %v", err)
	}
	if err := db.AssignSeason(s.ID, []int64{a.ID, b.ID}); err != nil {
		t.Fatalf("AssignSeason: %v", err)
	}

	got, _ := db.GetEntry(a.ID)
	if got.SeasonID == nil || *got.SeasonID != s.ID {
		t.Errorf("expected entry assigned to season %d", s.ID)
	}

	climax := b.ID
	s.Arc = &SeasonArc{Summary: "It rose.", ClimaxEpisodeID: &climax, Storylines: map[string]string{"work": "grind"}}
	if err := db.UpdateSeason(s); err != nil {
		t.Fatalf("UpdateSeason: %v", err)
	}
	loaded, err := db.GetSeason(s.ID)
	if err != nil {
		t.Fatalf("GetSeason: %v", err)
	}
	if loaded.Arc == nil || *loaded.Arc.ClimaxEpisodeID != b.ID {
		t.Errorf("arc did not round-trip: %+v", loaded.Arc)
	}
	if len(loaded.DominantThemes) != 1 {
		t.Errorf("expected 1 theme, got %v", loaded.DominantThemes)
	}

	if err := db.ClearSeasons(); err != nil {
		t.Fatalf("ClearSeasons: %v", err)
	}
	seasons, _ := db.ListSeasons()
	if len(seasons) != 0 {
		t.Errorf("expected no seasons after clear, got %d", len(seasons))
	}
	got, _ = db.GetEntry(a.ID)
	if got.SeasonID != nil {
		t.Error("expected season link cleared")
	}
}

func TestUpdateSeasonMissing(t *testing.T) {
	db := openTestDB(t)
	err := db.UpdateSeason(&Season{ID: 7, StartDate: "2026-01-01", EndDate: "2026-01-31"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecapRoundTrip(t *testing.T) {
	db := openTestDB(t)
	r := &Recap{Date: "2026-02-06", Content: "Previously on Chronicle...", EntryIDs: []int64{3, 1}}
	if err := db.CreateRecap(r); err != nil {
		t.Fatalf("CreateRecap: %v", err)
	}
	got, err := db.GetRecap(r.ID)
	if err != nil {
		t.Fatalf("GetRecap: %v", err)
	}
	if got.Content != r.Content || len(got.EntryIDs) != 2 || got.EntryIDs[0] != 3 {
		t.Errorf("recap did not round-trip: %+v", got)
	}
	missing, _ := db.GetRecap(99)
	if missing != nil {
		t.Error("expected nil for missing recap")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	addEntry(t, db, "2026-02-01", "a")
	addEntry(t, db, "2026-02-09", "b")
	db.CreateRecap(&Recap{Date: "2026-02-09", Content: "x"})

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalEntries != 2 || stats.ProcessedEntries != 0 || stats.Recaps != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.FirstDate != "2026-02-01" || stats.LastDate != "2026-02-09" {
		t.Errorf("unexpected date span: %s..%s", stats.FirstDate, stats.LastDate)
	}
}

func TestParseArchetype(t *testing.T) {
	tests := []struct {
		in   string
		want Archetype
		ok   bool
	}{
		{"person vs self", ArchetypeSelf, true},
		{"Person-vs-Time", ArchetypeTime, true},
		{"person_vs_environment", ArchetypeEnvironment, true},
		{"", ArchetypeNone, true},
		{"man vs wild", ArchetypeNone, false},
	}
	for _, tt := range tests {
		got, ok := ParseArchetype(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseArchetype(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSnippet(t *testing.T) {
	e := &Entry{RawText: "abcdefghij"}
	if got := e.Snippet(20); got != "abcdefghij" {
		t.Errorf("expected full text, got %q", got)
	}
	if got := e.Snippet(8); got != "abcde..." {
		t.Errorf("expected truncated text, got %q", got)
	}
	e.NarrativeText = ptr("narrative")
	if got := e.Snippet(20); got != "narrative" {
		t.Errorf("expected narrative preferred, got %q", got)
	}
}

func TestFormatDateDisplay(t *testing.T) {
	if got := FormatDateDisplay("2026-02-06", ""); got != "Feb 06, 2026" {
		t.Errorf("single day: got %q", got)
	}
	if got := FormatDateDisplay("2026-02-01", "2026-02-06"); got != "Feb 01 - Feb 06, 2026" {
		t.Errorf("range: got %q", got)
	}
}
