package style

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// minSensoryLength is the shortest text that receives a sensory layer.
const minSensoryLength = 10

// Direction is a camera/lighting/atmosphere triple. Empty fields are filled
// from the general pools.
type Direction struct {
	Camera     string `yaml:"camera" json:"camera"`
	Lighting   string `yaml:"lighting" json:"lighting"`
	Atmosphere string `yaml:"atmosphere" json:"atmosphere"`
}

// Sensory holds the pools for the closing sensory line.
type Sensory struct {
	Sounds   []string `yaml:"sounds"`
	Textures []string `yaml:"textures"`
	Smells   []string `yaml:"smells"`
}

// Table is the configurable style vocabulary.
type Table struct {
	CameraAngles []string             `yaml:"camera_angles"`
	Lighting     []string             `yaml:"lighting"`
	Atmospheres  []string             `yaml:"atmospheres"`
	MoodMappings map[string]Direction `yaml:"mood_mappings"`
	Sensory      Sensory              `yaml:"sensory_elements"`
}

// DefaultTable returns the built-in style vocabulary. Each call returns a
// fresh copy that may be overlaid by configuration.
func DefaultTable() Table {
	return Table{
		CameraAngles: []string{"close-up", "wide shot", "tracking shot"},
		Lighting:     []string{"harsh fluorescent", "golden hour warmth"},
		Atmospheres:  []string{"heavy with anticipation", "quiet and reflective"},
		MoodMappings: map[string]Direction{
			string(MoodNeutral): {Camera: "wide shot", Lighting: "natural light", Atmosphere: "calm"},
		},
		Sensory: Sensory{
			Sounds:   []string{"a distant hum"},
			Textures: []string{"a cool breeze"},
			Smells:   []string{"fresh air"},
		},
	}
}

var sceneDirections = map[string]string{
	"morning":    "The world awakens in cool, blue tones, shadows long and soft.",
	"afternoon":  "High contrast and sharp lines. The heat of the day is visible in the shimmer.",
	"night":      "Deep blacks and pools of artificial light. Every sound echoes.",
	"action":     "Fast-paced motion blur and tight framing on specific movements.",
	"reflective": "Lingering close-ups on hands, faces, and small objects.",
}

const defaultSceneDirection = "Balanced framing with clear, descriptive visuals."

// Guide augments prompts and narratives with cinematic detail.
// It is safe for concurrent use.
type Guide struct {
	table Table

	mu       sync.Mutex
	rng      *rand.Rand
	resolved map[Mood]Direction
}

// NewGuide creates a guide over table. A nil rng is seeded from the clock.
func NewGuide(table Table, rng *rand.Rand) *Guide {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	return &Guide{table: table, rng: rng, resolved: make(map[Mood]Direction)}
}

// Direction resolves the cinematic triple for mood, filling missing fields
// with random picks from the general pools. A mood resolves once per guide,
// so prompts built from the same inputs stay identical.
func (g *Guide) Direction(mood Mood) Direction {
	key := Mood(strings.ToLower(string(mood)))

	g.mu.Lock()
	defer g.mu.Unlock()
	if d, ok := g.resolved[key]; ok {
		return d
	}

	d := g.table.MoodMappings[string(key)]
	if d.Camera == "" {
		d.Camera = g.pickLocked(g.table.CameraAngles, "medium shot")
	}
	if d.Lighting == "" {
		d.Lighting = g.pickLocked(g.table.Lighting, "natural light")
	}
	if d.Atmosphere == "" {
		d.Atmosphere = g.pickLocked(g.table.Atmospheres, "neutral")
	}
	g.resolved[key] = d
	return d
}

// Enhance appends visual direction for mood to a base prompt.
func (g *Guide) Enhance(basePrompt string, mood Mood) string {
	d := g.Direction(mood)
	return basePrompt + fmt.Sprintf(
		"\n\nVISUAL DIRECTION:\n"+
			"- Imagine the scene captured with a %s.\n"+
			"- Set the mood using %s illumination.\n"+
			"- The air should feel %s."+
			"\nMaintain this artistic lens throughout the narrative.",
		d.Camera, d.Lighting, d.Atmosphere,
	)
}

// AddSensoryLayer appends one randomly chosen sound, texture and smell.
// Text shorter than minSensoryLength is returned unchanged.
func (g *Guide) AddSensoryLayer(text string) string {
	if len(text) < minSensoryLength {
		return text
	}
	s := g.table.Sensory
	sound := g.pick(s.Sounds, "a subtle hum")
	texture := g.pick(s.Textures, "a faint touch")
	smell := g.pick(s.Smells, "fresh air")

	return strings.TrimRight(text, " \t\r\n") + fmt.Sprintf(
		"\n\nUnderneath it all, %s persists. There's %s in the air, accompanied by the faint scent of %s.",
		sound, texture, smell,
	)
}

// SceneDirection returns visual language for a scene type such as "morning".
func SceneDirection(sceneType string) string {
	if d, ok := sceneDirections[strings.ToLower(sceneType)]; ok {
		return d
	}
	return defaultSceneDirection
}

func (g *Guide) pick(pool []string, fallback string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pickLocked(pool, fallback)
}

func (g *Guide) pickLocked(pool []string, fallback string) string {
	if len(pool) == 0 {
		return fallback
	}
	return pool[g.rng.IntN(len(pool))]
}
