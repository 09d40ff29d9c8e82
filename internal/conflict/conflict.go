// Package conflict extracts narrative conflict from diary entries.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/llm"
	"github.com/TobiSchelling/chronicle/internal/logging"
)

const analysisPrompt = `Analyze the following diary entry for narrative conflicts.
Return your analysis in STRICT JSON format with the following keys:
- internal: list of internal conflicts (e.g., doubt, fear, anxiety, indecision)
- external: list of external conflicts (e.g., deadlines, people, physical obstacles, environmental factors)
- tension: tension level from 1 to 10
- archetype: the best fitting conflict archetype (choose one: %s)
- central_conflict: a one-sentence summary of the day's main struggle

Diary Entry:
%s

JSON Response:`

const (
	defaultTimeout  = 60 * time.Second
	maxTokens       = 400
	fallbackCentral = "Navigating daily challenges."
	minTension      = 1
	maxTension      = 10
)

// ErrInvalid is returned by Parse when a response has the wrong shape.
var ErrInvalid = errors.New("invalid conflict analysis")

var (
	internalCues = []struct {
		tag   string
		words []string
	}{
		{"uncertainty", []string{"doubt", "unsure", "scared", "fear", "worried", "think if"}},
		{"emotional struggle", []string{"sad", "depressed", "lonely"}},
	}
	externalCues = []struct {
		tag       string
		archetype database.Archetype
		words     []string
	}{
		{"pressure", database.ArchetypeTime, []string{"deadline", "work", "boss", "client", "finish"}},
		{"environmental hurdle", database.ArchetypeEnvironment, []string{"traffic", "broken", "rain", "storm"}},
	}
)

// Analyzer turns entry text into a ConflictProfile, using the backend when
// possible and a keyword heuristic otherwise.
type Analyzer struct {
	provider llm.Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewAnalyzer creates an analyzer. provider may be nil, in which case every
// analysis uses the heuristic.
func NewAnalyzer(provider llm.Provider, timeout time.Duration, logger *zap.Logger) *Analyzer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Analyzer{
		provider: provider,
		timeout:  timeout,
		logger:   logging.OrNop(logger).Named("conflict"),
	}
}

// Prompt builds the analysis prompt for text.
func Prompt(text string) string {
	names := make([]string, len(database.Archetypes))
	for i, a := range database.Archetypes {
		names[i] = strconv.Quote(string(a))
	}
	return fmt.Sprintf(analysisPrompt, strings.Join(names, ", "), text)
}

// Analyze returns the conflict profile for text. It never fails; empty text
// yields the neutral profile without contacting the backend.
func (a *Analyzer) Analyze(ctx context.Context, text string) *database.ConflictProfile {
	if strings.TrimSpace(text) == "" {
		return database.NewConflictProfile()
	}
	if a.provider == nil {
		a.logger.Info("no backend, using fallback conflict analysis")
		return Fallback(text)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.provider.Generate(ctx, Prompt(text), maxTokens)
	if err != nil {
		a.logger.Warn("conflict analysis request failed", zap.Error(err))
		return Fallback(text)
	}

	profile, err := Parse(resp)
	if err != nil {
		a.logger.Warn("failed to parse conflict analysis", zap.Error(err))
		a.logger.Debug("raw conflict response", zap.String("response", resp))
		return Fallback(text)
	}
	return profile
}

// Parse decodes a backend response with keys internal, external, tension,
// archetype and central_conflict. Missing keys take neutral defaults; keys
// with the wrong type fail the whole parse.
func Parse(resp string) (*database.ConflictProfile, error) {
	var data map[string]any
	if err := llm.DecodeJSON(resp, &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalid)
	}
	return FromFields(data)
}

// FromFields validates an already-decoded analysis object.
func FromFields(data map[string]any) (*database.ConflictProfile, error) {
	p := database.NewConflictProfile()
	var err error

	if p.InternalConflicts, err = stringList(data, "internal"); err != nil {
		return nil, err
	}
	if p.ExternalConflicts, err = stringList(data, "external"); err != nil {
		return nil, err
	}
	if p.TensionLevel, err = tension(data["tension"]); err != nil {
		return nil, err
	}

	if v, ok := data["archetype"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: archetype is %T", ErrInvalid, v)
		}
		arch, known := database.ParseArchetype(s)
		if !known {
			return nil, fmt.Errorf("%w: unknown archetype %q", ErrInvalid, s)
		}
		p.Archetype = arch
	}

	if v, ok := data["central_conflict"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: central_conflict is %T", ErrInvalid, v)
		}
		p.CentralConflict = strings.TrimSpace(s)
	}
	return p, nil
}

// Fallback derives a profile from keyword cues alone.
func Fallback(text string) *database.ConflictProfile {
	lower := strings.ToLower(text)
	p := database.NewConflictProfile()

	for _, c := range internalCues {
		if containsAny(lower, c.words) {
			p.InternalConflicts = append(p.InternalConflicts, c.tag)
		}
	}
	for _, c := range externalCues {
		if containsAny(lower, c.words) {
			p.ExternalConflicts = append(p.ExternalConflicts, c.tag)
			p.Archetype = c.archetype
		}
	}

	switch {
	case len(p.ExternalConflicts) > 0:
		p.TensionLevel = 6
	case len(p.InternalConflicts) > 0:
		p.Archetype = database.ArchetypeSelf
		p.TensionLevel = 4
	}
	p.CentralConflict = fallbackCentral
	return p
}

func stringList(data map[string]any, key string) ([]string, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return []string{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T, want list", ErrInvalid, key, v)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s contains %T", ErrInvalid, key, item)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// tension accepts a JSON number or numeric string and clamps it to 1..10.
func tension(v any) (int, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return minTension, nil
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: tension %q is not a number", ErrInvalid, t)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: tension is %T", ErrInvalid, v)
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("%w: tension is NaN", ErrInvalid)
	}
	n := int(math.Round(f))
	return max(minTension, min(maxTension, n)), nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
