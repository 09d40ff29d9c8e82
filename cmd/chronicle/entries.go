package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/config"
	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/export"
	"github.com/TobiSchelling/chronicle/internal/recap"
	"github.com/TobiSchelling/chronicle/internal/segment"
	"github.com/TobiSchelling/chronicle/internal/style"
)

// --- add / guided commands ---

var (
	entryDate  string
	skipAI     bool
	withRecap  bool
	recapDays  int
	listLimit  int
	listRecent bool
	viewPlain  bool
)

var addCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a diary entry and turn it into an episode",
	Long:  "Add a diary entry. Without arguments the text is read from stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if len(args) == 0 {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			text = string(data)
		}
		return saveEntry(cmd.Context(), text)
	},
}

var guidedCmd = &cobra.Command{
	Use:   "guided",
	Short: "Write an entry by answering questions about your day",
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(cmd.InOrStdin())
		var g segment.Guided
		for _, q := range segment.Questions {
			fmt.Printf("%s\n> ", q.Question)
			answer, err := reader.ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("reading answer: %w", err)
			}
			g.Set(q.Label, strings.TrimSpace(answer))
			if err == io.EOF {
				break
			}
		}
		fmt.Println()
		return saveEntry(cmd.Context(), g.Compose())
	},
}

func init() {
	for _, c := range []*cobra.Command{addCmd, guidedCmd} {
		c.Flags().StringVarP(&entryDate, "date", "d", "", "Entry date (YYYY-MM-DD, default today)")
		c.Flags().BoolVar(&skipAI, "skip-ai", false, "Save the raw text without generating the episode")
		c.Flags().BoolVar(&withRecap, "with-recap", false, "Generate a \"Previously on...\" recap first")
		c.Flags().IntVar(&recapDays, "recap-days", 7, "Days covered by the recap")
	}
}

func saveEntry(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("entry text is empty")
	}
	date := entryDate
	if date == "" {
		date = database.GetToday()
	} else if err := database.ValidateDate(date); err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	e := &database.Entry{Date: date, RawText: text}

	if skipAI {
		if err := db.CreateEntry(e); err != nil {
			return err
		}
		fmt.Printf("Saved entry [%d] for %s without AI processing.\n", e.ID, date)
		return nil
	}

	provider := connect(ctx)
	if provider == nil {
		if err := db.CreateEntry(e); err != nil {
			return err
		}
		fmt.Printf("Saved entry [%d] for %s as raw text: %v.\n", e.ID, date, errBackendUnavailable)
		fmt.Println("Run 'chronicle process' once a backend is available.")
		return nil
	}

	if withRecap {
		gen := recap.NewGenerator(db, provider, config.Seconds(cfg.Timeouts.Recap), logger)
		r, err := gen.ForDays(ctx, recapDays)
		if err != nil {
			return err
		}
		if err := db.CreateRecap(r); err != nil {
			return fmt.Errorf("saving recap: %w", err)
		}
		e.RecapID = &r.ID
		fmt.Printf("%s\n\n", r.Content)
	}

	fmt.Printf("Generating episode with %s...\n", provider.Name())
	if err := newPipeline(db, provider).Process(ctx, e, false); err != nil {
		return err
	}
	logger.Info("entry saved", zap.Int64("entry", e.ID), zap.Bool("complete", e.IsComplete()))
	printEpisode(e)
	return nil
}

// --- list / view / segment / regenerate commands ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List episodes, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var entries []database.Entry
		if listRecent {
			entries, err = db.ListEntriesLastNDays(7)
		} else {
			entries, err = db.ListEntries(listLimit)
		}
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No entries yet. Add one with: chronicle add")
			return nil
		}

		for _, e := range entries {
			marker := " "
			if !e.IsComplete() {
				marker = "*"
			}
			fmt.Printf("  [%d] %s %s %s\n", e.ID, e.Date, marker, e.DisplayTitle())
		}
		fmt.Println("\n* not fully processed")
		return nil
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of entries (0 for all)")
	listCmd.Flags().BoolVar(&listRecent, "week", false, "Only entries from the last 7 days")
}

var viewCmd = &cobra.Command{
	Use:   "view [id]",
	Short: "Show an episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		e, err := loadEntry(db, args[0])
		if err != nil {
			return err
		}
		doc := export.Markdown(e)
		if viewPlain {
			fmt.Print(doc)
			return nil
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err != nil {
			return fmt.Errorf("creating renderer: %w", err)
		}
		out, err := renderer.Render(doc)
		if err != nil {
			return fmt.Errorf("rendering episode: %w", err)
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	viewCmd.Flags().BoolVar(&viewPlain, "plain", false, "Print raw Markdown instead of styled output")
}

var segmentCmd = &cobra.Command{
	Use:   "segment [id]",
	Short: "Split an entry into morning, afternoon and night",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		e, err := loadEntry(db, args[0])
		if err != nil {
			return err
		}
		s := segment.Segment(e.RawText)
		for _, part := range []struct{ name, text string }{
			{"Morning", s.Morning},
			{"Afternoon", s.Afternoon},
			{"Night", s.Night},
		} {
			text := part.text
			if text == "" {
				text = "(nothing)"
			}
			fmt.Printf("%s: %s\n", part.name, style.SceneDirection(part.name))
			fmt.Printf("  %s\n\n", strings.ReplaceAll(text, "\n", "\n  "))
		}
		return nil
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate [id]",
	Short: "Regenerate every derived field of an episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		e, err := loadEntry(db, args[0])
		if err != nil {
			return err
		}
		provider := connect(cmd.Context())
		if provider == nil {
			return errBackendUnavailable
		}
		if err := newPipeline(db, provider).Process(cmd.Context(), e, true); err != nil {
			return err
		}
		printEpisode(e)
		return nil
	},
}

func printEpisode(e *database.Entry) {
	fmt.Printf("\nEpisode [%d]: %s\n", e.ID, e.DisplayTitle())
	fmt.Printf("  %s\n", database.FormatDateDisplay(e.Date, ""))
	if e.Metadata != nil && e.Metadata.Logline != "" {
		fmt.Printf("  %s\n", e.Metadata.Logline)
	}
	if c := e.Conflict; c != nil {
		fmt.Printf("  Conflict: %s (tension %d/10)\n", c.Archetype, c.TensionLevel)
	}
	if e.HasNarrative() {
		fmt.Printf("\n%s\n", *e.NarrativeText)
	}
}
