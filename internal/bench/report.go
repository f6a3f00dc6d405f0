package bench

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/neetlogiq/collegematch/internal/matcher"
)

// stageColumns fixes the per-stage column order in the rendered table.
var stageColumns = []matcher.Stage{
	matcher.StageManual,
	matcher.StageExact,
	matcher.StageNormalized,
	matcher.StageFuzzy,
	matcher.StageLocationDisambiguated,
	matcher.StageEnsemble,
	matcher.StageNone,
}

// Render writes the report as a comparison table.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "Benchmark over %d records, snapshot %s\n\n", r.SampleSize, r.SnapshotVersion)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"Config", "Match Rate", "Correct", "False Pos", "Missed", "Mean Latency"}
	for _, stage := range stageColumns {
		header = append(header, string(stage))
	}
	t.AppendHeader(header)

	for _, res := range r.Results {
		row := table.Row{
			res.Name,
			fmt.Sprintf("%.1f%%", res.MatchRate*100),
			res.Correct,
			res.FalsePositives,
			res.MissedKnown,
			res.MeanLatency.Round(time.Microsecond).String(),
		}
		for _, stage := range stageColumns {
			row = append(row, res.ByStage[stage])
		}
		t.AppendRow(row)
	}
	t.Render()

	if r.Recommended != "" {
		fmt.Fprintf(w, "\nRecommended configuration: %s\n", r.Recommended)
	} else {
		fmt.Fprintln(w, "\nNo configuration recommended: every run produced false positives.")
	}
}
