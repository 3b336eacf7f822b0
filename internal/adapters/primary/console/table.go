package console

import (
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"model-stage-promoter/internal/core/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// RenderVersions renders versions as a table, newest version first.
func RenderVersions(versions []*domain.ModelVersion) string {
	sorted := make([]*domain.ModelVersion, len(versions))
	copy(sorted, versions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version > sorted[j].Version })

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Version", "Stage", "Status", "Run ID", "Updated"})

	for _, mv := range sorted {
		updated := ""
		if !mv.UpdatedAt.IsZero() {
			updated = mv.UpdatedAt.Local().Format(timeLayout)
		}
		tw.AppendRow(table.Row{strconv.Itoa(mv.Version), string(mv.CurrentStage), mv.Status, mv.RunID, updated})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
