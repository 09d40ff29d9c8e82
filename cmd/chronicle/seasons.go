package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/chronicle/internal/config"
	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/season"
)

// --- seasons command ---

var (
	seasonMode   string
	keepExisting bool
)

var seasonsCmd = &cobra.Command{
	Use:   "seasons",
	Short: "Organize episodes into seasons",
}

var seasonsOrganizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Group every episode into seasons",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := season.ParseMode(seasonMode)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := newSeasonManager(cmd, db).Organize(cmd.Context(), mode, !keepExisting)
		if err != nil {
			return err
		}
		if len(result.Seasons) == 0 {
			fmt.Println("No episodes to organize.")
			return nil
		}
		if result.Mode != mode {
			fmt.Printf("Smart grouping unavailable, used %s seasons.\n", result.Mode)
		}
		for _, s := range result.Seasons {
			printSeason(s)
		}
		return nil
	},
}

var seasonsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List seasons",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		seasons, err := db.ListSeasons()
		if err != nil {
			return err
		}
		if len(seasons) == 0 {
			fmt.Println("No seasons yet. Create them with: chronicle seasons organize")
			return nil
		}
		for _, s := range seasons {
			printSeason(s)
		}
		return nil
	},
}

var seasonsCreateCmd = &cobra.Command{
	Use:   "create [title] [start] [end]",
	Short: "Create a season covering a date range",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		s, err := newSeasonManager(cmd, db).CreateManual(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return err
		}
		printSeason(*s)
		return nil
	},
}

var seasonsArcCmd = &cobra.Command{
	Use:   "arc [id]",
	Short: "Analyze the story arc of a season",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid season ID: %s", args[0])
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		arc, err := newSeasonManager(cmd, db).AnalyzeArc(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("Summary:\n  %s\n", arc.Summary)
		if arc.CharacterGrowth != "" {
			fmt.Printf("\nCharacter growth:\n  %s\n", arc.CharacterGrowth)
		}
		if len(arc.Storylines) > 0 {
			fmt.Println("\nStorylines:")
			names := make([]string, 0, len(arc.Storylines))
			for name := range arc.Storylines {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %s: %s\n", name, arc.Storylines[name])
			}
		}
		if len(arc.Motifs) > 0 {
			fmt.Printf("\nMotifs: %s\n", strings.Join(arc.Motifs, ", "))
		}
		if arc.ClimaxEpisodeID != nil {
			fmt.Printf("Climax: episode %d\n", *arc.ClimaxEpisodeID)
		}
		if len(arc.FinaleWorthyEpisodes) > 0 {
			fmt.Printf("Finale-worthy: %v\n", arc.FinaleWorthyEpisodes)
		}
		return nil
	},
}

func init() {
	seasonsOrganizeCmd.Flags().StringVarP(&seasonMode, "mode", "m", "monthly", "Grouping mode: monthly or smart")
	seasonsOrganizeCmd.Flags().BoolVar(&keepExisting, "keep", false, "Keep existing seasons instead of replacing them")

	seasonsCmd.AddCommand(seasonsOrganizeCmd)
	seasonsCmd.AddCommand(seasonsListCmd)
	seasonsCmd.AddCommand(seasonsCreateCmd)
	seasonsCmd.AddCommand(seasonsArcCmd)
}

func newSeasonManager(cmd *cobra.Command, db *database.DB) *season.Manager {
	t := cfg.Timeouts
	return season.NewManager(db, connect(cmd.Context()), season.Timeouts{
		Metadata: config.Seconds(t.Season),
		Chapters: config.Seconds(t.Chapters),
		Arc:      config.Seconds(t.Arc),
	}, logger)
}

func printSeason(s database.Season) {
	fmt.Printf("  [%d] %s\n", s.ID, s.Title)
	fmt.Printf("      %s, %d episodes (%s)\n", database.FormatDateDisplay(s.StartDate, s.EndDate), s.EpisodeCount, s.Mode)
	if len(s.DominantThemes) > 0 {
		fmt.Printf("      Themes: %s\n", strings.Join(s.DominantThemes, ", "))
	}
}
