// Package segment splits a diary entry into morning, afternoon and night.
package segment

import "strings"

// Segments holds the three time-of-day buckets. Any bucket may be empty.
type Segments struct {
	Morning   string `json:"morning"`
	Afternoon string `json:"afternoon"`
	Night     string `json:"night"`
}

// IsEmpty reports whether every bucket is empty.
func (s Segments) IsEmpty() bool {
	return s.Morning == "" && s.Afternoon == "" && s.Night == ""
}

type bucket int

const (
	none bucket = iota
	morning
	afternoon
	night
)

var markers = []struct {
	prefix string
	b      bucket
}{
	{"morning:", morning},
	{"afternoon:", afternoon},
	{"night:", night},
	{"evening:", night},
}

var hints = []struct {
	b     bucket
	words []string
}{
	{morning, []string{"woke up", "breakfast", "8am", "9am", "10am", "morning"}},
	{afternoon, []string{"lunch", "1pm", "2pm", "afternoon"}},
	{night, []string{"dinner", "night", "evening", "tonight", "bed"}},
}

// Segment splits text using the first strategy that yields content:
// explicit "Morning:" style markers, then time-of-day keyword hints per
// paragraph, then an even positional split of the paragraphs.
func Segment(text string) Segments {
	if strings.TrimSpace(text) == "" {
		return Segments{}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if s, ok := byMarkers(text); ok {
		return s
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) > 1 {
		if s := byHints(paragraphs); !s.IsEmpty() {
			return s
		}
	}
	return byPosition(paragraphs)
}

func byMarkers(text string) (Segments, bool) {
	captured := map[bucket][]string{}
	current := none
	found := false

	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		lower := strings.ToLower(stripped)

		next := none
		for _, m := range markers {
			if strings.HasPrefix(lower, m.prefix) {
				next = m.b
				break
			}
		}

		switch {
		case next != none:
			current = next
			found = true
			_, rest, _ := strings.Cut(stripped, ":")
			if rest = strings.TrimSpace(rest); rest != "" {
				captured[current] = append(captured[current], rest)
			}
		default:
			// Lines before the first marker land in bucket none and are
			// prepended to morning below.
			captured[current] = append(captured[current], line)
		}
	}
	if !found {
		return Segments{}, false
	}

	return Segments{
		Morning:   joinLines(append(captured[none], captured[morning]...)),
		Afternoon: joinLines(captured[afternoon]),
		Night:     joinLines(captured[night]),
	}, true
}

func byHints(paragraphs []string) Segments {
	assigned := map[bucket][]string{}
	for _, p := range paragraphs {
		lower := strings.ToLower(p)
		for _, h := range hints {
			if containsAny(lower, h.words) {
				assigned[h.b] = append(assigned[h.b], p)
				break
			}
		}
	}
	return Segments{
		Morning:   strings.Join(assigned[morning], "\n\n"),
		Afternoon: strings.Join(assigned[afternoon], "\n\n"),
		Night:     strings.Join(assigned[night], "\n\n"),
	}
}

func byPosition(paragraphs []string) Segments {
	n := len(paragraphs)
	switch {
	case n == 0:
		return Segments{}
	case n == 1:
		return Segments{Morning: paragraphs[0]}
	case n == 2:
		return Segments{Morning: paragraphs[0], Afternoon: paragraphs[1]}
	}

	first, second := Split(n)
	return Segments{
		Morning:   strings.Join(paragraphs[:first], "\n\n"),
		Afternoon: strings.Join(paragraphs[first:second], "\n\n"),
		Night:     strings.Join(paragraphs[second:], "\n\n"),
	}
}

// Split returns the two cut points that partition n items into three
// contiguous groups with non-increasing sizes.
func Split(n int) (first, second int) {
	return (n + 2) / 3, (2*n + 2) / 3
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinLines(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
