package segment

import (
	"fmt"
	"strings"
)

// Guided holds the answers of a guided entry.
type Guided struct {
	Morning   string `json:"morning"`
	Afternoon string `json:"afternoon"`
	Evening   string `json:"evening"`
	Thoughts  string `json:"thoughts"`
	Mood      string `json:"mood"`
}

// Questions are the guided prompts in answer order, keyed by the label each
// answer is written under.
var Questions = []struct {
	Label    string
	Question string
}{
	{"Morning", "How was your morning?"},
	{"Afternoon", "What happened in the afternoon?"},
	{"Evening", "How did your day end?"},
	{"Thoughts", "Any notable thoughts or reflections?"},
	{"Mood", "How was your overall mood today?"},
}

// Set stores the answer for a Questions label.
func (g *Guided) Set(label, answer string) {
	switch label {
	case "Morning":
		g.Morning = answer
	case "Afternoon":
		g.Afternoon = answer
	case "Evening":
		g.Evening = answer
	case "Thoughts":
		g.Thoughts = answer
	case "Mood":
		g.Mood = answer
	}
}

// Compose writes the answers as marker paragraphs ("Morning: ..."), which
// Segment reads back into buckets. It returns "" when every answer is blank.
func (g Guided) Compose() string {
	answers := []struct{ label, text string }{
		{"Morning", g.Morning},
		{"Afternoon", g.Afternoon},
		{"Evening", g.Evening},
		{"Thoughts", g.Thoughts},
		{"Mood", g.Mood},
	}
	var parts []string
	for _, a := range answers {
		if text := strings.TrimSpace(a.text); text != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", a.label, text))
		}
	}
	return strings.Join(parts, "\n\n")
}
