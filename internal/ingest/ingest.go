// Package ingest imports RSS and Atom feed items as diary entries.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/logging"
)

const (
	maxPerFeed     = 50
	minPageText    = 100
	maxPageBytes   = 4 << 20
	defaultTimeout = 15 * time.Second
)

// Result holds the outcome of a feed import.
type Result struct {
	Found      int
	Created    int
	Duplicates int
	Empty      int
	Entries    []database.Entry
}

// Importer turns feed items into unprocessed entries.
type Importer struct {
	db     *database.DB
	parser *gofeed.Parser
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewImporter creates a feed importer whose HTTP requests use timeout.
func NewImporter(db *database.DB, timeout time.Duration, logger *zap.Logger) *Importer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	parser := gofeed.NewParser()
	parser.Client = client
	return &Importer{
		db:     db,
		parser: parser,
		client: client,
		logger: logging.OrNop(logger).Named("ingest"),
		now:    time.Now,
	}
}

// ImportFeed parses feedURL and creates one entry per new item. Items whose
// date already has an entry with identical text are skipped.
func (im *Importer) ImportFeed(ctx context.Context, feedURL string) (*Result, error) {
	feed, err := im.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	base, err := url.Parse(feedURL)
	if err != nil {
		return nil, err
	}

	r := &Result{}
	for _, item := range feed.Items {
		if r.Found >= maxPerFeed {
			break
		}
		r.Found++

		e := database.Entry{Date: im.itemDate(item), RawText: im.itemText(ctx, item, base)}
		if e.RawText == "" {
			r.Empty++
			continue
		}

		existing, err := im.db.FindEntryByText(e.Date, e.RawText)
		if err != nil {
			return r, err
		}
		if existing != nil {
			r.Duplicates++
			continue
		}
		if err := im.db.CreateEntry(&e); err != nil {
			return r, err
		}
		r.Created++
		r.Entries = append(r.Entries, e)
	}

	im.logger.Info("feed imported",
		zap.String("feed", feedURL),
		zap.Int("found", r.Found),
		zap.Int("created", r.Created),
		zap.Int("duplicates", r.Duplicates),
	)
	return r, nil
}

func (im *Importer) itemDate(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.Format(database.DateLayout)
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.Format(database.DateLayout)
	}
	return im.now().Format(database.DateLayout)
}

// itemText is the entry body: the item title followed by the readable text
// of its content, description or, failing both, the linked page.
func (im *Importer) itemText(ctx context.Context, item *gofeed.Item, base *url.URL) string {
	if link, err := url.Parse(item.Link); err == nil && link.IsAbs() {
		base = link
	}

	var body string
	switch {
	case item.Content != "":
		body = readableHTML(item.Content, base)
	case item.Description != "":
		body = readableHTML(item.Description, base)
	case item.Link != "":
		text, err := im.fetchPage(ctx, item.Link)
		if err != nil {
			im.logger.Warn("failed to fetch item page", zap.String("url", item.Link), zap.Error(err))
		}
		body = text
	}

	title := strings.TrimSpace(item.Title)
	switch {
	case body == "":
		return title
	case title == "" || strings.HasPrefix(body, title):
		return body
	}
	return title + "\n\n" + body
}

func (im *Importer) fetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "chronicle/1.0 (journal importer)")

	resp, err := im.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetching %s: %s", pageURL, resp.Status)
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), parsedURL)
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", pageURL, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < minPageText {
		return "", nil
	}
	return text, nil
}

// readableHTML extracts the readable text of an item's HTML. Fragments too
// short for readability to score are stripped of tags instead.
func readableHTML(fragment string, base *url.URL) string {
	plain := StripHTML(fragment)
	if len(plain) < minPageText {
		return plain
	}
	article, err := readability.FromReader(strings.NewReader(fragment), base)
	if err != nil {
		return plain
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) < minPageText {
		return plain
	}
	return text
}

// StripHTML removes tags and common entities from a feed HTML fragment and
// keeps paragraph breaks.
func StripHTML(text string) string {
	replacer := strings.NewReplacer(
		"</p>", "\n\n", "<br>", "\n", "<br/>", "\n", "<br />", "\n",
	)
	text = replacer.Replace(text)

	var b strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	s := strings.NewReplacer(
		"&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'",
	).Replace(b.String())

	var paragraphs []string
	for _, p := range strings.Split(s, "\n") {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
