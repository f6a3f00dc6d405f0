package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/neetlogiq/collegematch/internal/bench"
	"github.com/neetlogiq/collegematch/internal/config"
	"github.com/neetlogiq/collegematch/internal/ledger"
	"github.com/neetlogiq/collegematch/internal/logging"
	"github.com/neetlogiq/collegematch/internal/matcher"
	"github.com/neetlogiq/collegematch/internal/normalize"
	"github.com/neetlogiq/collegematch/internal/registry"
	"github.com/neetlogiq/collegematch/internal/review"
)

var (
	configPath string

	cfg *config.Config
	log *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "collegematch",
		Short: "Institution matching for counselling records",
		Long:  `Cascading entity resolution that links free-text institution names from counselling records to the canonical registry`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			log = logging.New(cfg.Log)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "collegematch.toml", "configuration file")

	rootCmd.AddCommand(createMatchCmd())
	rootCmd.AddCommand(createBenchCmd())
	rootCmd.AddCommand(createReviewCmd())
	rootCmd.AddCommand(createPromoteCmd())
	rootCmd.AddCommand(createStatsCmd())
	rootCmd.AddCommand(createInitConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadIndex builds the registry index from the configured snapshot source.
func loadIndex() (*registry.Index, error) {
	var dict *normalize.Dictionaries
	if cfg.Dictionaries != "" {
		var err error
		dict, err = normalize.LoadDictionaries(cfg.Dictionaries)
		if err != nil {
			return nil, err
		}
	}
	norm := normalize.New(dict)

	var (
		snapshot *registry.Snapshot
		err      error
	)
	switch cfg.Snapshot.Source {
	case "sqlite":
		snapshot, err = registry.LoadSQLite(cfg.Snapshot.Path)
	case "postgres":
		snapshot, err = registry.LoadPostgres(registry.PostgresDSN())
	default:
		snapshot, err = registry.LoadJSON(cfg.Snapshot.Path)
	}
	if err != nil {
		return nil, err
	}

	start := time.Now()
	idx, err := registry.Build(snapshot, norm)
	if err != nil {
		return nil, err
	}
	log.Info("registry index built",
		"snapshot", idx.Version(),
		"institutions", idx.Size(),
		"dictionaries", norm.Version(),
		"elapsed", time.Since(start))
	return idx, nil
}

// createMatchCmd creates the batch matching subcommand.
func createMatchCmd() *cobra.Command {
	var (
		inputPath  string
		outputPath string
		ensemble   bool
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match a batch of counselling records against the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := loadRecords(inputPath)
			if err != nil {
				return err
			}

			idx, err := loadIndex()
			if err != nil {
				return err
			}
			l, err := ledger.Open(cfg.LedgerDir)
			if err != nil {
				return err
			}

			stages := matcher.DefaultStages
			if ensemble {
				stages = matcher.StagesWithEnsemble
			}
			if workers == 0 {
				workers = cfg.Workers
			}

			c := matcher.New(idx, matcher.Options{
				Stages:     stages,
				Thresholds: cfg.Thresholds,
				Ledger:     l,
			})

			results, stats, err := c.MatchBatch(cmd.Context(), records, workers)
			if err != nil {
				return err
			}

			printBatchStats(stats)

			if outputPath != "" {
				if err := writeResults(outputPath, results); err != nil {
					return err
				}
				fmt.Printf("Results written to %s\n", outputPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "records file (JSON array)")
	cmd.Flags().StringVar(&outputPath, "output", "", "write per-record results to this file")
	cmd.Flags().BoolVar(&ensemble, "ensemble", false, "enable the ensemble fallback stage")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (0 = config value)")
	cmd.MarkFlagRequired("input")

	return cmd
}

// createBenchCmd creates the benchmark subcommand.
func createBenchCmd() *cobra.Command {
	var (
		samplePath  string
		configsPath string
		reportPath  string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare cascade configurations over a labeled sample",
		RunE: func(cmd *cobra.Command, args []string) error {
			sample, err := bench.LoadSample(samplePath)
			if err != nil {
				return err
			}

			configs := bench.DefaultConfigs(cfg.Thresholds)
			if configsPath != "" {
				configs, err = bench.LoadConfigs(configsPath, cfg.Thresholds)
				if err != nil {
					return err
				}
			}

			idx, err := loadIndex()
			if err != nil {
				return err
			}

			h := bench.New(idx, cfg.Workers, log)
			report, err := h.Run(cmd.Context(), sample, configs, reportPath)
			if err != nil {
				return err
			}

			report.Render(os.Stdout)

			if reportPath != "" {
				fmt.Printf("\nReport written to %s\n", reportPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&samplePath, "sample", "", "labeled sample file (JSON array)")
	cmd.Flags().StringVar(&configsPath, "configs", "", "configuration list file (JSON array, default: built-in set)")
	cmd.Flags().StringVar(&reportPath, "report", "", "write the JSON report to this file")
	cmd.MarkFlagRequired("sample")

	return cmd
}

// createReviewCmd creates the interactive review subcommand.
func createReviewCmd() *cobra.Command {
	var reviewer string

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review the unmatched backlog interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadIndex()
			if err != nil {
				return err
			}
			l, err := ledger.Open(cfg.LedgerDir)
			if err != nil {
				return err
			}

			s := review.NewSession(idx, l, reviewer, cfg.Thresholds.Review, os.Stdin, os.Stdout)
			return s.Run()
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer name recorded on decisions")

	return cmd
}

// createPromoteCmd creates the snapshot promotion subcommand.
func createPromoteCmd() *cobra.Command {
	var (
		version    string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote reviewed new institutions into a JSON snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Snapshot.Source != "json" {
				return fmt.Errorf("promote writes JSON snapshots; configured source is %q", cfg.Snapshot.Source)
			}

			snapshot, err := registry.LoadJSON(cfg.Snapshot.Path)
			if err != nil {
				return err
			}
			l, err := ledger.Open(cfg.LedgerDir)
			if err != nil {
				return err
			}

			added := l.NewInstitutions()
			if len(added) == 0 {
				fmt.Println("No new institutions to promote.")
				return nil
			}

			idx, err := loadIndex()
			if err != nil {
				return err
			}
			norm := idx.Normalizer()

			// An addition whose composite key is already registered would
			// fail the next index build; skip it and keep its override.
			additions := make([]registry.Institution, 0, len(added))
			for _, a := range added {
				state, _ := norm.State(a.State)
				key := normalize.CompositeKey(norm.Name(a.Name), norm.Address(a.Address, state))
				if existing := idx.ByCompositeKey(key); existing != nil {
					fmt.Printf("Skipping %s: already registered as %s\n", a.ID, existing.ID)
					continue
				}
				additions = append(additions, registry.Institution{
					ID:      a.ID,
					Name:    a.Name,
					State:   a.State,
					Address: a.Address,
					Type:    a.Type,
				})
			}
			if len(additions) == 0 {
				fmt.Println("No new institutions to promote.")
				return nil
			}

			if version == "" {
				version = time.Now().UTC().Format("2006-01-02")
			}
			promoted, err := registry.Promote(snapshot, additions, version)
			if err != nil {
				return err
			}

			if outputPath == "" {
				outputPath = cfg.Snapshot.Path
			}
			if err := registry.SaveJSON(promoted, outputPath); err != nil {
				return err
			}

			fmt.Printf("Promoted %d institutions into snapshot %s (%s)\n",
				len(promoted.Institutions)-len(snapshot.Institutions), version, outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "new snapshot version (default: today's date)")
	cmd.Flags().StringVar(&outputPath, "output", "", "output path (default: configured snapshot path)")

	return cmd
}

// createStatsCmd creates the stats subcommand.
func createStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show registry, override and backlog statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadIndex()
			if err != nil {
				return err
			}
			l, err := ledger.Open(cfg.LedgerDir)
			if err != nil {
				return err
			}
			backlog, err := l.Backlog()
			if err != nil {
				return err
			}

			fmt.Printf("Snapshot version:      %s\n", idx.Version())
			fmt.Printf("Institutions indexed:  %d\n", idx.Size())
			fmt.Printf("Override mappings:     %d\n", len(l.Overrides()))
			fmt.Printf("New institutions:      %d\n", len(l.NewInstitutions()))
			fmt.Printf("Backlog entries:       %d\n", len(backlog))

			pending := 0
			for _, e := range backlog {
				pending += e.Records
			}
			fmt.Printf("Records awaiting review: %d\n", pending)
			return nil
		},
	}
}

// createInitConfigCmd creates the sample config writer.
func createInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write an annotated sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists", configPath)
			}
			if err := config.WriteSample(configPath); err != nil {
				return err
			}
			fmt.Printf("Sample configuration written to %s\n", configPath)
			return nil
		},
	}
}

func loadRecords(path string) ([]matcher.Record, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return loadRecordsCSV(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records %s: %w", path, err)
	}
	var records []matcher.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse records %s: %w", path, err)
	}
	return records, nil
}

// loadRecordsCSV reads counselling export rows. The header row names the
// columns; name and state are required, course/category/rank optional.
func loadRecordsCSV(path string) ([]matcher.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read records %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header %s: %w", path, err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["name"]; !ok {
		return nil, fmt.Errorf("%s: missing name column", path)
	}
	if _, ok := col["state"]; !ok {
		return nil, fmt.Errorf("%s: missing state column", path)
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []matcher.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %s: %w", path, err)
		}
		rec := matcher.Record{
			Name:     field(row, "name"),
			State:    field(row, "state"),
			Course:   field(row, "course"),
			Category: field(row, "category"),
		}
		if v := field(row, "rank"); v != "" {
			rec.Rank, _ = strconv.Atoi(strings.TrimSpace(v))
		}
		records = append(records, rec)
	}
	return records, nil
}

func writeResults(path string, results []matcher.BatchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results %s: %w", path, err)
	}
	return nil
}

func printBatchStats(stats matcher.BatchStats) {
	fmt.Printf("\nMatched %d of %d records (%.1f%%) in %s\n",
		stats.Matched, stats.Total, stats.MatchRate()*100, stats.Elapsed.Round(time.Millisecond))
	fmt.Printf("Mean latency per record: %s\n\n", stats.MeanLatency.Round(time.Microsecond))

	for _, stage := range []matcher.Stage{
		matcher.StageManual, matcher.StageExact, matcher.StageNormalized,
		matcher.StageFuzzy, matcher.StageLocationDisambiguated,
		matcher.StageEnsemble, matcher.StageNone,
	} {
		if n := stats.ByStage[stage]; n > 0 {
			fmt.Printf("  %-24s %d\n", stage, n)
		}
	}
}
