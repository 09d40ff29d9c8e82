package episode

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	minNarrativeChars     = 50
	minNarrativeSentences = 2
	phraseWords           = 4
	maxPhraseRepeats      = 2
)

// Report is the outcome of a narrative quality check.
type Report struct {
	Valid         bool     `json:"valid"`
	Issues        []string `json:"issues"`
	SentenceCount int      `json:"sentence_count"`
	CharCount     int      `json:"char_count"`
}

// Validate checks a narrative for length, sentence count and repetition.
func Validate(narrative string) Report {
	if strings.TrimSpace(narrative) == "" {
		return Report{Issues: []string{"Narrative is empty"}}
	}

	r := Report{CharCount: utf8.RuneCountInString(narrative)}
	sentences := splitSentences(narrative)
	r.SentenceCount = len(sentences)

	if r.CharCount < minNarrativeChars {
		r.Issues = append(r.Issues, fmt.Sprintf("Narrative too short (%d characters)", r.CharCount))
	}
	if r.SentenceCount < minNarrativeSentences {
		r.Issues = append(r.Issues, fmt.Sprintf("Insufficient sentences (%d)", r.SentenceCount))
	}
	if hasRepetition(sentences) {
		r.Issues = append(r.Issues, "Repetition detected in sentences")
	}
	r.Valid = len(r.Issues) == 0
	return r
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasRepetition(sentences []string) bool {
	seen := make(map[string]bool, len(sentences))
	for _, s := range sentences {
		key := strings.ToLower(s)
		if seen[key] {
			return true
		}
		seen[key] = true
	}

	words := strings.Fields(strings.ToLower(strings.Join(sentences, " ")))
	counts := make(map[string]int)
	for i := 0; i+phraseWords <= len(words); i++ {
		phrase := strings.Join(words[i:i+phraseWords], " ")
		counts[phrase]++
		if counts[phrase] > maxPhraseRepeats {
			return true
		}
	}
	return false
}
