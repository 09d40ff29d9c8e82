package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/chronicle/internal/style"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Summarization Summarization `yaml:"summarization"`
	Timeouts      Timeouts      `yaml:"timeouts"`
	Style         style.Table   `yaml:"style"`
	Processing    Processing    `yaml:"processing"`
	Import        Import        `yaml:"import"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
	Logging       Logging       `yaml:"logging"`
}

type Summarization struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	OllamaURL    string `yaml:"ollama_url"`
	OpenAIModel  string `yaml:"openai_model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	GeminiModel  string `yaml:"gemini_model"`
	GeminiKeyEnv string `yaml:"gemini_api_key_env"`
}

// Timeouts holds per-call backend timeouts in seconds.
type Timeouts struct {
	Conflict     int `yaml:"conflict"`
	Narrative    int `yaml:"narrative"`
	Title        int `yaml:"title"`
	TitleOptions int `yaml:"title_options"`
	Synopsis     int `yaml:"synopsis"`
	Combined     int `yaml:"combined"`
	Recap        int `yaml:"recap"`
	Season       int `yaml:"season"`
	Chapters     int `yaml:"chapters"`
	Arc          int `yaml:"arc"`
}

type Processing struct {
	// Strategy is "auto" (combined when an entry is blank) or "sequential".
	Strategy    string `yaml:"strategy"`
	Concurrency int    `yaml:"concurrency"`
}

type Import struct {
	Feeds []Feed `yaml:"feeds"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Seconds converts a configured timeout to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// ConfigDir returns the XDG config directory for chronicle.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "chronicle")
}

// DataDir returns the XDG data directory for chronicle.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "chronicle")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/chronicle/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'chronicle init' to create a default config",
		xdgConfig,
	)
}

// Load reads, parses and validates a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Summarization: Summarization{
			Provider:     "ollama",
			Model:        "llama3.2",
			OllamaURL:    "http://localhost:11434",
			OpenAIModel:  "gpt-4o-mini",
			APIKeyEnv:    "OPENAI_API_KEY",
			GeminiModel:  "gemini-2.0-flash",
			GeminiKeyEnv: "GEMINI_API_KEY",
		},
		Timeouts: Timeouts{
			Conflict:     60,
			Narrative:    60,
			Title:        30,
			TitleOptions: 30,
			Synopsis:     40,
			Combined:     120,
			Recap:        60,
			Season:       40,
			Chapters:     60,
			Arc:          120,
		},
		Style:      style.DefaultTable(),
		Processing: Processing{Strategy: "auto", Concurrency: 2},
		Server:     Server{Port: 8000},
		Logging:    Logging{Level: "info", Format: "console"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	t := c.Timeouts
	for name, v := range map[string]int{
		"conflict":      t.Conflict,
		"narrative":     t.Narrative,
		"title":         t.Title,
		"title_options": t.TitleOptions,
		"synopsis":      t.Synopsis,
		"recap":         t.Recap,
		"season":        t.Season,
		"chapters":      t.Chapters,
		"arc":           t.Arc,
	} {
		if v <= 0 {
			return fmt.Errorf("timeouts.%s must be positive, got %d", name, v)
		}
		if v > t.Combined {
			return fmt.Errorf("timeouts.combined (%d) must be at least timeouts.%s (%d)", t.Combined, name, v)
		}
	}

	switch c.Processing.Strategy {
	case "auto", "sequential":
	default:
		return fmt.Errorf("processing.strategy must be auto or sequential, got %q", c.Processing.Strategy)
	}
	if c.Processing.Concurrency < 1 {
		return fmt.Errorf("processing.concurrency must be at least 1, got %d", c.Processing.Concurrency)
	}

	switch c.Summarization.Provider {
	case "ollama", "openai", "gemini":
	default:
		return fmt.Errorf("unknown summarization provider %q", c.Summarization.Provider)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the SQLite database location inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "chronicle.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
