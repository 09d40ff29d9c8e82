// Package export renders episodes as Markdown or HTML documents.
package export

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/chronicle/internal/database"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify))

// Markdown renders a single episode.
func Markdown(e *database.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", e.DisplayTitle())
	fmt.Fprintf(&b, "*%s*\n\n", database.FormatDateDisplay(e.Date, ""))

	if e.Metadata != nil && e.Metadata.Logline != "" {
		fmt.Fprintf(&b, "> %s\n\n", e.Metadata.Logline)
	}
	if e.HasNarrative() {
		fmt.Fprintf(&b, "%s\n\n", *e.NarrativeText)
	}

	if c := e.Conflict; c != nil {
		b.WriteString("## Conflict\n\n")
		if c.CentralConflict != "" {
			fmt.Fprintf(&b, "- **Central:** %s\n", c.CentralConflict)
		}
		fmt.Fprintf(&b, "- **Archetype:** %s\n", c.Archetype)
		fmt.Fprintf(&b, "- **Tension:** %d/10\n", c.TensionLevel)
		if len(c.InternalConflicts) > 0 {
			fmt.Fprintf(&b, "- **Internal:** %s\n", strings.Join(c.InternalConflicts, ", "))
		}
		if len(c.ExternalConflicts) > 0 {
			fmt.Fprintf(&b, "- **External:** %s\n", strings.Join(c.ExternalConflicts, ", "))
		}
		b.WriteString("\n")
	}

	if m := e.Metadata; m != nil {
		if m.Synopsis != "" {
			fmt.Fprintf(&b, "## Synopsis\n\n%s\n\n", m.Synopsis)
		}
		if len(m.Keywords) > 0 {
			fmt.Fprintf(&b, "**Keywords:** %s\n\n", strings.Join(m.Keywords, ", "))
		}
	}

	if len(e.TitleOptions) > 1 {
		b.WriteString("## Alternative Titles\n\n")
		for _, o := range e.TitleOptions {
			fmt.Fprintf(&b, "- %s (%s, %.2f)\n", o.Title, o.Pattern, o.Score)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Original Entry\n\n")
	for _, line := range strings.Split(strings.TrimSpace(e.RawText), "\n") {
		fmt.Fprintf(&b, "> %s\n", line)
	}
	return b.String()
}

// Range renders several episodes under one heading, oldest first.
func Range(heading string, entries []database.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", heading)
	for i := len(entries) - 1; i >= 0; i-- {
		b.WriteString(demote(Markdown(&entries[i])))
		b.WriteString("\n---\n\n")
	}
	return b.String()
}

// demote shifts every heading one level down so entries nest under a range
// heading.
func demote(doc string) string {
	lines := strings.Split(doc, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, "#") {
			lines[i] = "#" + l
		}
	}
	return strings.Join(lines, "\n")
}

// HTML renders markdown as a standalone HTML page.
func HTML(title, markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(title), buf.String()), nil
}

// Exporter writes documents into a directory.
type Exporter struct {
	db   *database.DB
	dir  string
	html bool
	now  func() time.Time
}

// NewExporter creates an exporter writing to dir. asHTML selects HTML
// output instead of Markdown.
func NewExporter(db *database.DB, dir string, asHTML bool) *Exporter {
	return &Exporter{db: db, dir: dir, html: asHTML, now: time.Now}
}

// Entry writes one episode and returns the file path.
func (x *Exporter) Entry(e *database.Entry) (string, error) {
	name := fmt.Sprintf("episode_%s_%d", e.Date, e.ID)
	return x.write(name, e.DisplayTitle(), Markdown(e))
}

// Daily writes every episode of date. It returns "" when there are none.
func (x *Exporter) Daily(date string) (string, error) {
	if err := database.ValidateDate(date); err != nil {
		return "", err
	}
	entries, err := x.db.ListEntriesBetween(date, date)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	heading := "Chronicle: " + database.FormatDateDisplay(date, "")
	return x.write("daily_"+date, heading, Range(heading, entries))
}

// Weekly writes the episodes of the last seven days. It returns "" when
// there are none.
func (x *Exporter) Weekly() (string, error) {
	end := x.now()
	start := end.AddDate(0, 0, -6)
	s, e := start.Format(database.DateLayout), end.Format(database.DateLayout)

	entries, err := x.db.ListEntriesBetween(s, e)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	heading := "Chronicle Weekly: " + database.FormatDateDisplay(s, e)
	return x.write(fmt.Sprintf("weekly_%s_to_%s", s, e), heading, Range(heading, entries))
}

// All writes every episode to its own file.
func (x *Exporter) All() ([]string, error) {
	entries, err := x.db.ListEntries(0)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for i := range entries {
		p, err := x.Entry(&entries[i])
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (x *Exporter) write(name, title, markdown string) (string, error) {
	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}

	content, ext := markdown, ".md"
	if x.html {
		page, err := HTML(title, markdown)
		if err != nil {
			return "", err
		}
		content, ext = page, ".html"
	}

	path := filepath.Join(x.dir, name+ext)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
