package main

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/chronicle/internal/export"
	"github.com/TobiSchelling/chronicle/internal/ingest"
	"github.com/TobiSchelling/chronicle/internal/server"
)

// --- export command ---

var (
	exportWeekly bool
	exportDate   string
	exportAll    bool
	exportHTML   bool
	exportDir    string
)

var exportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export episodes as Markdown or HTML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		dir := exportDir
		if dir == "" {
			dir = filepath.Join(cfg.GetDataDir(), "exports")
		}
		x := export.NewExporter(db, dir, exportHTML)

		var paths []string
		switch {
		case len(args) == 1:
			e, err := loadEntry(db, args[0])
			if err != nil {
				return err
			}
			path, err := x.Entry(e)
			if err != nil {
				return err
			}
			paths = append(paths, path)
		case exportWeekly:
			path, err := x.Weekly()
			if err != nil {
				return err
			}
			if path != "" {
				paths = append(paths, path)
			}
		case exportDate != "":
			path, err := x.Daily(exportDate)
			if err != nil {
				return err
			}
			if path != "" {
				paths = append(paths, path)
			}
		case exportAll:
			if paths, err = x.All(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("give an entry ID or one of --weekly, --date, --all")
		}

		if len(paths) == 0 {
			fmt.Println("Nothing to export.")
			return nil
		}
		for _, p := range paths {
			fmt.Printf("Exported: %s\n", p)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportWeekly, "weekly", false, "Export the last 7 days as one document")
	exportCmd.Flags().StringVar(&exportDate, "date", "", "Export every entry of a day (YYYY-MM-DD)")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Export every entry to its own file")
	exportCmd.Flags().BoolVar(&exportHTML, "html", false, "Write HTML instead of Markdown")
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "", "Output directory (default <data_dir>/exports)")
}

// --- import command ---

var importProcess bool

var importCmd = &cobra.Command{
	Use:   "import [feed-url...]",
	Short: "Import journal or blog feed items as entries",
	Long:  "Import RSS/Atom items as raw entries. Without arguments the feeds from the config are used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := args
		if len(urls) == 0 {
			for _, f := range cfg.Import.Feeds {
				urls = append(urls, f.URL)
			}
		}
		if len(urls) == 0 {
			return fmt.Errorf("no feed URL given and none configured under import.feeds")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		importer := ingest.NewImporter(db, 30*time.Second, logger)
		created := 0
		for _, u := range urls {
			fmt.Printf("Importing %s...\n", u)
			r, err := importer.ImportFeed(cmd.Context(), u)
			if err != nil {
				fmt.Printf("  Error: %v\n", err)
				continue
			}
			fmt.Printf("  Found %d, created %d, duplicates %d, empty %d\n", r.Found, r.Created, r.Duplicates, r.Empty)
			created += r.Created
		}

		if !importProcess || created == 0 {
			return nil
		}
		provider := connect(cmd.Context())
		if provider == nil {
			return errBackendUnavailable
		}
		result, err := newPipeline(db, provider).Run(cmd.Context(), false)
		if result != nil {
			fmt.Printf("Processed %d, failed %d.\n", result.Processed(), result.Failed())
		}
		return err
	},
}

func init() {
	importCmd.Flags().BoolVar(&importProcess, "process", false, "Generate episodes for the imported entries")
}

// --- serve command ---

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		provider := connect(cmd.Context())
		if provider == nil {
			fmt.Println("No backend available; entries will be stored as raw text.")
		}

		srv := server.New(db, newPipeline(db, provider), provider, logger, version)
		addr := net.JoinHostPort(serveHost, strconv.Itoa(port))
		fmt.Printf("Starting server at http://%s\n", addr)
		fmt.Println("Press Ctrl+C to stop")
		return srv.Serve(cmd.Context(), addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Address to bind")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}
