package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"findup/internal/app"
	"findup/internal/config"
	"findup/internal/report"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a FindupApp. The caller must defer
// app.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.FindupApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewFindupApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "findup",
	Short: "Incremental duplicate file finder",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Index:       %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Workers:     %d\n", cfg.Scan.Workers)
		fmt.Printf("Strong hash: %s\n", cfg.Scan.StrongAlgorithm)
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan [PATH]",
	Short: "Scan a directory tree and update the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		enable, _ := cmd.Flags().GetStringSlice("enable")
		progress, _ := cmd.Flags().GetInt64("progress")
		workers, _ := cmd.Flags().GetInt("workers")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		if workers > 0 {
			cfg.Scan.Workers = workers
		}

		a, err := app.NewFindupApp(cfg, "Scan")
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		defer a.Close()

		target := "."
		if len(args) > 0 {
			target = args[0]
		}

		flags := app.ScanFlags{Progress: progress}
		for _, e := range enable {
			switch e {
			case "phash":
				flags.EnablePHash = true
			case "fuzzy":
				flags.EnableFuzzy = true
			default:
				return fmt.Errorf("unknown feature %q (want phash or fuzzy)", e)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := a.Scan(ctx, target, flags)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		fmt.Printf("Scanned %d file(s): %d pre-hashed, %d fully hashed, %d unchanged\n",
			summary.FilesSeen, summary.FilesPreHashed, summary.FilesHashed, summary.Unchanged)
		if len(summary.Warnings) > 0 {
			fmt.Printf("%d warning(s):\n", len(summary.Warnings))
			for _, w := range summary.Warnings {
				fmt.Printf("  %s\n", w.Error())
			}
		}
		return nil
	},
}

// dupes command
var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "List duplicate clusters",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Dupes")
		if err != nil {
			return err
		}
		defer a.Close()

		clusters, err := a.Duplicates(cmd.Context())
		if err != nil {
			return err
		}

		if len(clusters) == 0 {
			fmt.Println("No duplicates found.")
			return nil
		}

		var rows []table.Row
		var reclaimable int64
		for i, c := range clusters {
			reclaimable += c.ReclaimableBytes
			for j, m := range c.Members {
				id := ""
				if j == 0 {
					id = fmt.Sprintf("#%d", i+1)
				}
				rows = append(rows, table.Row{
					id,
					m.Path,
					humanize.IBytes(uint64(m.Size)),
					c.StrongHash[:12],
				})
			}
		}

		fmt.Println(renderTable(table.Row{"Cluster", "Path", "Size", "Hash"}, rows, 3))
		fmt.Printf("%d cluster(s), %s reclaimable\n", len(clusters), humanize.IBytes(uint64(reclaimable)))
		return nil
	},
}

// report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a duplicate report to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("fmt")
		out, _ := cmd.Flags().GetString("out")

		a, err := newApp("Report")
		if err != nil {
			return err
		}
		defer a.Close()

		clusters, err := a.Duplicates(cmd.Context())
		if err != nil {
			return err
		}

		path, err := report.WriteDuplicatesFile(out, format, clusters)
		if err != nil {
			return fmt.Errorf("writing report: %w", err)
		}

		fmt.Printf("Wrote %d cluster(s) to %s\n", len(clusters), path)
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Files indexed: %d\n", stats.TotalFiles)
		fmt.Printf("Total size:    %s\n", humanize.IBytes(uint64(stats.TotalBytes)))
		if stats.LastScanAt.Valid {
			fmt.Printf("Last scan:     %s\n", stats.LastScanAt.Time.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("Last scan:     never")
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringSlice("enable", nil, "Optional features to enable (phash, fuzzy)")
	scanCmd.Flags().Int64("progress", 0, "Log a progress line every N files (0 disables)")
	scanCmd.Flags().IntP("workers", "w", 0, "Override configured worker count")
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("fmt", "json", "Report format (json, ndjson, csv)")
	reportCmd.Flags().StringP("out", "o", "", "Output file or directory (default: ./duplicates.<fmt>)")
	rootCmd.AddCommand(statusCmd)
}
