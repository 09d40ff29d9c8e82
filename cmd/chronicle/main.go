package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/config"
	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/episode"
	"github.com/TobiSchelling/chronicle/internal/llm"
	"github.com/TobiSchelling/chronicle/internal/logging"
	"github.com/TobiSchelling/chronicle/internal/pipeline"
	"github.com/TobiSchelling/chronicle/internal/style"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     = zap.NewNop()
)

var errBackendUnavailable = errors.New("no generative backend is available; start Ollama or set an API key")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "chronicle",
	Short:   "Turn diary entries into TV episodes",
	Long:    "Chronicle rewrites daily diary entries as episodes: conflict, narrative, title and synopsis, grouped into seasons.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		l, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
		if err != nil {
			return err
		}
		logger = l
		zap.ReplaceGlobals(logger)
		logger.Debug("config loaded", zap.String("path", path), zap.String("provider", cfg.Summarization.Provider))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(guidedCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(segmentCmd)
	rootCmd.AddCommand(regenerateCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(recapCmd)
	rootCmd.AddCommand(seasonsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("chronicle", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/chronicle/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to choose the generative backend, timeouts and style table.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and backend status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Today: %s\n", database.GetToday())
		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Episodes:")
		fmt.Printf("  Entries: %d\n", stats.TotalEntries)
		fmt.Printf("  Processed: %d\n", stats.ProcessedEntries)
		if stats.FirstDate != "" {
			fmt.Printf("  Span: %s\n", database.FormatDateDisplay(stats.FirstDate, stats.LastDate))
		}
		fmt.Printf("  Seasons: %d\n", stats.Seasons)
		fmt.Printf("  Recaps: %d\n", stats.Recaps)

		fmt.Println("\nBackend:")
		if provider := connect(cmd.Context()); provider != nil {
			fmt.Printf("  %s (available)\n", provider.Name())
		} else {
			fmt.Printf("  %s (unavailable)\n", cfg.Summarization.Provider)
		}
		return nil
	},
}

func openDB() (*database.DB, error) {
	if err := os.MkdirAll(cfg.GetDataDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath())
}

// connect returns the first available backend, or nil.
func connect(ctx context.Context) llm.Provider {
	s := cfg.Summarization
	return llm.CreateProvider(ctx, llm.Options{
		Provider:     s.Provider,
		Model:        s.Model,
		OllamaURL:    s.OllamaURL,
		OpenAIModel:  s.OpenAIModel,
		OpenAIKeyEnv: s.APIKeyEnv,
		GeminiModel:  s.GeminiModel,
		GeminiKeyEnv: s.GeminiKeyEnv,
	}, logger)
}

func newProcessor(provider llm.Provider) *episode.Processor {
	t := cfg.Timeouts
	return episode.NewProcessor(provider, episode.Options{
		Timeouts: episode.Timeouts{
			Conflict:     config.Seconds(t.Conflict),
			Narrative:    config.Seconds(t.Narrative),
			Title:        config.Seconds(t.Title),
			TitleOptions: config.Seconds(t.TitleOptions),
			Synopsis:     config.Seconds(t.Synopsis),
			Combined:     config.Seconds(t.Combined),
		},
		Strategy: episode.Strategy(cfg.Processing.Strategy),
		Guide:    style.NewGuide(cfg.Style, nil),
		Logger:   logger,
	})
}

func newPipeline(db *database.DB, provider llm.Provider) *pipeline.Pipeline {
	return pipeline.New(db, newProcessor(provider), cfg.Processing.Concurrency, logger)
}

func loadEntry(db *database.DB, arg string) (*database.Entry, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid entry ID: %s", arg)
	}
	e, err := db.GetEntry(id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("entry %d not found", id)
	}
	return e, nil
}
