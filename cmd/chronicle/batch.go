package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/chronicle/internal/config"
	"github.com/TobiSchelling/chronicle/internal/recap"
)

// --- process command ---

var (
	force     bool
	dryRun    bool
	benchmark int
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Generate episodes for entries that are missing derived fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()

		if dryRun {
			result, err := newPipeline(db, nil).DryRun(force)
			if err != nil {
				return err
			}
			if len(result.Entries) == 0 {
				fmt.Println("Nothing to process.")
				return nil
			}
			fmt.Printf("Would process %d entries:\n", len(result.Entries))
			for _, e := range result.Entries {
				fmt.Printf("  [%d] %s %s\n", e.EntryID, e.Date, e.Title)
			}
			return nil
		}

		provider := connect(ctx)
		if provider == nil {
			return errBackendUnavailable
		}
		pipe := newPipeline(db, provider)

		if benchmark > 0 {
			entries, err := db.ListEntries(benchmark)
			if err != nil {
				return err
			}
			fmt.Printf("Benchmarking %d entries with %s...\n", len(entries), provider.Name())
			b, err := pipe.Benchmark(ctx, entries)
			if err != nil {
				return err
			}
			fmt.Printf("  Total:   %s\n", b.Total.Round(time.Millisecond))
			fmt.Printf("  Average: %s\n", b.Average.Round(time.Millisecond))
			fmt.Printf("  Min:     %s\n", b.Min.Round(time.Millisecond))
			fmt.Printf("  Max:     %s\n", b.Max.Round(time.Millisecond))
			fmt.Printf("  Valid narratives: %d/%d\n", b.ValidNarrated, b.Entries)
			for id, issues := range b.Issues {
				fmt.Printf("  [%d] %v\n", id, issues)
			}
			return nil
		}

		result, err := pipe.Run(ctx, force)
		if result != nil {
			for _, e := range result.Entries {
				if e.Err != nil {
					fmt.Printf("  [%d] %s  error: %v\n", e.EntryID, e.Date, e.Err)
					continue
				}
				fmt.Printf("  [%d] %s  %s (%s)\n", e.EntryID, e.Date, e.Title, e.Duration.Round(time.Millisecond))
			}
			fmt.Printf("\nProcessed %d, failed %d.\n", result.Processed(), result.Failed())
		}
		return err
	},
}

func init() {
	processCmd.Flags().BoolVarP(&force, "force", "f", false, "Regenerate every entry, not only incomplete ones")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be processed without calling the backend")
	processCmd.Flags().IntVar(&benchmark, "benchmark", 0, "Time processing of the N most recent entries without saving")
}

// --- recap command ---

var recapWindow int

var recapCmd = &cobra.Command{
	Use:   "recap",
	Short: "Generate a \"Previously on...\" recap of recent episodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		provider := connect(cmd.Context())
		if provider == nil {
			fmt.Println("No backend available; using the stock recap.")
		}

		gen := recap.NewGenerator(db, provider, config.Seconds(cfg.Timeouts.Recap), logger)
		r, err := gen.ForDays(cmd.Context(), recapWindow)
		if err != nil {
			return err
		}
		if len(r.EntryIDs) > 0 {
			if err := db.CreateRecap(r); err != nil {
				return fmt.Errorf("saving recap: %w", err)
			}
		}
		fmt.Println(r.Content)
		return nil
	},
}

func init() {
	recapCmd.Flags().IntVar(&recapWindow, "days", 7, "Days to look back")
}
