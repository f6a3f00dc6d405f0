// Package bench runs labeled record samples through alternative cascade
// configurations and recommends the one with the best match rate that
// produces no false positives.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/neetlogiq/collegematch/internal/config"
	"github.com/neetlogiq/collegematch/internal/matcher"
	"github.com/neetlogiq/collegematch/internal/registry"
)

// LabeledRecord is one ground-truth sample. ExpectedID is empty when the
// record is known to have no registry counterpart.
type LabeledRecord struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	ExpectedID string `json:"expected_id,omitempty"`
}

// Config is one cascade configuration under test.
type Config struct {
	Name       string            `json:"name"`
	Stages     []matcher.Stage   `json:"stages"`
	Thresholds config.Thresholds `json:"thresholds"`
}

// DefaultConfigs returns the standard comparison set, all derived from the
// operator's base thresholds.
func DefaultConfigs(base config.Thresholds) []Config {
	strict := base
	strict.Fuzzy = 0.80

	relaxed := base
	relaxed.Fuzzy = 0.65

	return []Config{
		{Name: "default", Stages: matcher.DefaultStages, Thresholds: base},
		{Name: "with-ensemble", Stages: matcher.StagesWithEnsemble, Thresholds: base},
		{Name: "strict-fuzzy", Stages: matcher.DefaultStages, Thresholds: strict},
		{Name: "relaxed-fuzzy", Stages: matcher.DefaultStages, Thresholds: relaxed},
	}
}

// ConfigResult holds one configuration's measured outcome.
type ConfigResult struct {
	Name              string                `json:"name"`
	Total             int                   `json:"total"`
	Matched           int                   `json:"matched"`
	MatchRate         float64               `json:"match_rate"`
	Correct           int                   `json:"correct"`
	FalsePositives    int                   `json:"false_positives"`
	FalsePositiveRate float64               `json:"false_positive_rate"`
	MissedKnown       int                   `json:"missed_known"`
	ByStage           map[matcher.Stage]int `json:"by_stage"`
	MeanLatency       time.Duration         `json:"mean_latency_ns"`
}

// Report is the outcome of one benchmark run.
type Report struct {
	SnapshotVersion string         `json:"snapshot_version"`
	SampleSize      int            `json:"sample_size"`
	GeneratedAt     time.Time      `json:"generated_at"`
	Results         []ConfigResult `json:"results"`
	Recommended     string         `json:"recommended"`
}

// Harness drives benchmark runs against one registry index.
type Harness struct {
	idx     *registry.Index
	workers int
	log     *slog.Logger
}

// New builds a harness. A nil logger discards output.
func New(idx *registry.Index, workers int, log *slog.Logger) *Harness {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if workers < 1 {
		workers = 1
	}
	return &Harness{idx: idx, workers: workers, log: log}
}

// Run evaluates every configuration over the labeled sample. Benchmark runs
// never touch the override ledger; a run must leave no trace in production
// state. When flushPath is set the report file is rewritten after every
// configuration, so an interrupted run keeps the finished ones.
func (h *Harness) Run(ctx context.Context, sample []LabeledRecord, configs []Config, flushPath string) (*Report, error) {
	if len(sample) == 0 {
		return nil, fmt.Errorf("bench: empty sample")
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("bench: no configurations")
	}

	records := make([]matcher.Record, len(sample))
	for i, s := range sample {
		records[i] = matcher.Record{Name: s.Name, State: s.State}
	}

	report := &Report{
		SnapshotVersion: h.idx.Version(),
		SampleSize:      len(sample),
		GeneratedAt:     time.Now().UTC(),
	}

	for _, cfg := range configs {
		h.log.Info("benchmarking configuration", "config", cfg.Name, "stages", len(cfg.Stages))

		c := matcher.New(h.idx, matcher.Options{
			Stages:     cfg.Stages,
			Thresholds: cfg.Thresholds,
		})

		results, stats, err := c.MatchBatch(ctx, records, h.workers)
		if err != nil {
			return nil, fmt.Errorf("bench %s: %w", cfg.Name, err)
		}

		report.Results = append(report.Results, score(cfg.Name, sample, results, stats))

		if flushPath != "" {
			if err := report.WriteJSON(flushPath); err != nil {
				return nil, err
			}
		}
	}

	report.Recommended = recommend(report.Results)
	if flushPath != "" {
		if err := report.WriteJSON(flushPath); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// score compares batch results against the labels.
func score(name string, sample []LabeledRecord, results []matcher.BatchResult, stats matcher.BatchStats) ConfigResult {
	out := ConfigResult{
		Name:        name,
		Total:       stats.Total,
		Matched:     stats.Matched,
		MatchRate:   stats.MatchRate(),
		ByStage:     stats.ByStage,
		MeanLatency: stats.MeanLatency,
	}

	for i, r := range results {
		expected := sample[i].ExpectedID
		switch {
		case r.Result.Matched() && r.Result.CandidateID == expected:
			out.Correct++
		case r.Result.Matched():
			// Matched a record with no counterpart, or the wrong one.
			out.FalsePositives++
		case expected != "":
			out.MissedKnown++
		}
	}

	if out.Total > 0 {
		out.FalsePositiveRate = float64(out.FalsePositives) / float64(out.Total)
	}
	return out
}

// recommend picks the configuration to run in production. Only runs with
// zero false positives are eligible; a wrong match costs a student a
// counselling seat, an unmatched record only costs reviewer time. Among the
// eligible, higher match rate wins, then lower latency. Returns "" when no
// configuration is eligible.
func recommend(results []ConfigResult) string {
	best := -1
	for i, r := range results {
		if r.FalsePositives != 0 {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := results[best]
		switch {
		case r.MatchRate != b.MatchRate:
			if r.MatchRate > b.MatchRate {
				best = i
			}
		case r.MeanLatency < b.MeanLatency:
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return results[best].Name
}

// configurableStages are the stages a Config may list. The remaining stage
// labels describe outcomes, not strategies.
var configurableStages = map[matcher.Stage]bool{
	matcher.StageExact:      true,
	matcher.StageNormalized: true,
	matcher.StageFuzzy:      true,
	matcher.StageEnsemble:   true,
}

// LoadConfigs reads a configuration list file. Entries may omit stages or
// thresholds; those inherit the default cascade and the base thresholds.
func LoadConfigs(path string, base config.Thresholds) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configs %s: %w", path, err)
	}
	var configs []Config
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("parse configs %s: %w", path, err)
	}

	for i := range configs {
		c := &configs[i]
		if c.Name == "" {
			return nil, fmt.Errorf("%s: configuration %d has no name", path, i+1)
		}
		if len(c.Stages) == 0 {
			c.Stages = matcher.DefaultStages
		}
		for _, stage := range c.Stages {
			if !configurableStages[stage] {
				return nil, fmt.Errorf("%s: configuration %q: unknown stage %q", path, c.Name, stage)
			}
		}
		if c.Thresholds.Fuzzy == 0 {
			c.Thresholds = base
		}
	}
	return configs, nil
}

// LoadSample reads a labeled sample file.
func LoadSample(path string) ([]LabeledRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sample %s: %w", path, err)
	}
	var sample []LabeledRecord
	if err := json.Unmarshal(data, &sample); err != nil {
		return nil, fmt.Errorf("parse sample %s: %w", path, err)
	}
	return sample, nil
}

// WriteJSON saves the report for later comparison between snapshot versions.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
