package cli

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"oilcatalog/internal/core/pipeline"
)

var stdout io.Writer = os.Stdout

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(stdout)
	return t
}

func renderSummary(sum pipeline.Summary) {
	st := sum.Stats
	t := newTable()
	t.SetTitle("run " + sum.RunID)
	t.AppendRows([]table.Row{
		{"state", sum.State},
		{"categories", strings.Join(sum.Categories, ", ")},
		{"listing pages", st.Pages},
		{"links discovered", st.Discovered},
		{"inserted", st.Inserted},
		{"updated", st.Updated},
		{"unchanged", st.Skipped},
		{"failed", st.Failed},
		{"rejected", st.Rejected},
		{"key collisions", st.Collisions},
		{"ambiguous lists", st.Ambiguous},
		{"cache hits", st.CacheHits},
		{"partition writes", st.Writes},
		{"elapsed", sum.Finished.Sub(sum.Started).Round(time.Second)},
	})
	if sum.Published != "" {
		t.AppendRow(table.Row{"published", sum.Published})
	}
	if sum.Error != "" {
		t.AppendRow(table.Row{"error", sum.Error})
	}
	t.Render()
}
