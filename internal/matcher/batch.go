package matcher

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neetlogiq/collegematch/internal/ledger"
)

// BatchResult pairs one input record with its match outcome.
type BatchResult struct {
	Record Record
	Result Result
}

// BatchStats summarizes one batch run.
type BatchStats struct {
	Total       int
	Matched     int
	ByStage     map[Stage]int
	MeanLatency time.Duration
	Elapsed     time.Duration
}

// MatchRate returns the matched fraction, 0 for an empty batch.
func (s BatchStats) MatchRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.Total)
}

// MatchBatch resolves records concurrently with the given worker count.
// Output order mirrors input order regardless of scheduling, and unmatched
// pairs are aggregated into the ledger backlog when a ledger is attached.
func (c *Cascade) MatchBatch(ctx context.Context, records []Record, workers int) ([]BatchResult, BatchStats, error) {
	if workers < 1 {
		workers = 1
	}

	start := time.Now()
	results := make([]BatchResult, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range records {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = BatchResult{
				Record: records[i],
				Result: c.Match(records[i].Name, records[i].State),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, BatchStats{}, err
	}

	stats := summarize(results)
	stats.Elapsed = time.Since(start)

	if c.overrides != nil {
		if backlog := unmatchedBacklog(c, results); len(backlog) > 0 {
			if err := c.overrides.RecordBacklog(backlog); err != nil {
				return results, stats, err
			}
		}
	}
	return results, stats, nil
}

func summarize(results []BatchResult) BatchStats {
	stats := BatchStats{
		Total:   len(results),
		ByStage: make(map[Stage]int),
	}
	var total time.Duration
	for _, r := range results {
		stats.ByStage[r.Result.Stage]++
		total += r.Result.ProcessingTime
		if r.Result.Matched() {
			stats.Matched++
		}
	}
	if stats.Total > 0 {
		stats.MeanLatency = total / time.Duration(stats.Total)
	}
	return stats
}

// unmatchedBacklog aggregates unmatched pairs by normalized form, counting
// how many input records each pair covers. First-seen order is preserved so
// backlog files diff cleanly between runs.
func unmatchedBacklog(c *Cascade, results []BatchResult) []ledger.BacklogEntry {
	type key struct{ name, state string }
	index := make(map[key]int)
	var entries []ledger.BacklogEntry

	for _, r := range results {
		if r.Result.Matched() || r.Result.Reason == ReasonMalformedInput {
			continue
		}
		k := key{r.Result.NormalizedName, r.Result.NormalizedState}
		if pos, ok := index[k]; ok {
			entries[pos].Records++
			continue
		}
		index[k] = len(entries)
		entries = append(entries, ledger.BacklogEntry{
			RawName:         r.Record.Name,
			NormalizedName:  r.Result.NormalizedName,
			NormalizedState: r.Result.NormalizedState,
			Records:         1,
		})
	}
	return entries
}
