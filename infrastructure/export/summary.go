package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// RunSummary is the end-of-run report emitted to the log stream, never to
// the tabular export.
type RunSummary struct {
	Records           int
	Organizations     int
	ProjectsCompleted int
	ProjectsFailed    int
	Duration          time.Duration
	OutputFile        string
}

// AveragePerOrganization returns the mean processing time per organization.
func (s RunSummary) AveragePerOrganization() time.Duration {
	if s.Organizations == 0 {
		return 0
	}
	return s.Duration / time.Duration(s.Organizations)
}

var (
	summaryTitle = color.New(color.FgHiCyan, color.Bold).SprintFunc()
	failedValue  = color.New(color.FgHiRed).SprintFunc()
)

// RenderSummary prints the execution summary as a compact table.
func RenderSummary(w io.Writer, s RunSummary) error {
	fmt.Fprintf(w, "\n%s\n", summaryTitle("EXECUTION SUMMARY"))

	failed := strconv.Itoa(s.ProjectsFailed)
	if s.ProjectsFailed > 0 {
		failed = failedValue(failed)
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)

	rows := [][]string{
		{"Total records", strconv.Itoa(s.Records)},
		{"Organizations processed", strconv.Itoa(s.Organizations)},
		{"Projects completed", strconv.Itoa(s.ProjectsCompleted)},
		{"Projects failed", failed},
		{"Total execution time", s.Duration.Round(10 * time.Millisecond).String()},
		{"Average time per organization", s.AveragePerOrganization().Round(10 * time.Millisecond).String()},
	}
	if s.OutputFile != "" {
		rows = append(rows, []string{"Data exported to", s.OutputFile})
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append summary row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	return nil
}
