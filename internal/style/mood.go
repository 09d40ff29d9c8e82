// Package style classifies entry moods and supplies cinematic direction for
// narrative prompts.
package style

import "strings"

// Mood is a coarse emotional tag derived from entry text.
type Mood string

const (
	MoodProductive Mood = "productive"
	MoodReflective Mood = "reflective"
	MoodStressful  Mood = "stressful"
	MoodRelaxed    Mood = "relaxed"
	MoodMysterious Mood = "mysterious"
	MoodNeutral    Mood = "neutral"
)

// Moods lists every mood in classification order.
var Moods = []Mood{MoodProductive, MoodReflective, MoodStressful, MoodRelaxed, MoodMysterious, MoodNeutral}

var moodKeywords = []struct {
	mood  Mood
	words []string
}{
	{MoodProductive, []string{"productive", "finished", "accomplished", "work", "busy"}},
	{MoodReflective, []string{"sad", "reflective", "thought", "lonely", "missing"}},
	{MoodStressful, []string{"stress", "deadline", "fast", "rushed", "panic"}},
	{MoodRelaxed, []string{"relax", "chill", "calm", "peace", "quiet"}},
	{MoodMysterious, []string{"mystery", "weird", "strange", "dark", "unknown"}},
}

// Classify maps text to a mood. The first category with a matching keyword
// wins; empty text and text without cues are neutral.
func Classify(text string) Mood {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return MoodNeutral
	}
	for _, mk := range moodKeywords {
		if containsAny(lower, mk.words) {
			return mk.mood
		}
	}
	return MoodNeutral
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
