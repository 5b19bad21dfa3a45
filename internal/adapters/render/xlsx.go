package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/evanschultz/selftrack/internal/domain"
)

// Sheet names used by the spreadsheet renderer.
const (
	TotalsSheet  = "Totals"
	DetailsSheet = "Details"
)

var (
	totalsHeader  = []any{"Program", "Executable", "Project", "Total Duration", "Active Duration", "Inactive Duration"}
	detailsHeader = []any{"Program", "Project", "Start", "End", "Duration", "Interaction", "Details"}
)

// XLSX writes the report as a workbook with a Totals and a Details sheet.
func XLSX(w io.Writer, report domain.FinalReport) error {
	f, err := Workbook(report)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Workbook builds the report workbook.
func Workbook(report domain.FinalReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", TotalsSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename totals sheet: %w", err)
	}
	if _, err := f.NewSheet(DetailsSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create details sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeTotalsSheet(f, report, bold); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeDetailsSheet(f, report, bold); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func writeTotalsSheet(f *excelize.File, report domain.FinalReport, headerStyle int) error {
	rows := [][]any{
		{"Report Start", report.StartDate},
		{"Report End", report.EndDate},
		{"Total Duration", report.TotalDuration},
		{"Active Duration", reportTotal(report.TotalActiveDuration)},
		{"Inactive Duration", reportTotal(report.TotalInactiveDuration)},
		{},
		totalsHeader,
	}
	headerRow := len(rows)
	for _, program := range report.Activities {
		rows = append(rows, []any{
			program.Program,
			program.Executable,
			"",
			program.TotalDuration,
			nodeTotal(program.TotalActiveDuration),
			nodeTotal(program.TotalInactiveDuration),
		})
		for _, project := range program.Projects {
			rows = append(rows, []any{
				program.Program,
				"",
				label(project.Project),
				project.TotalDuration,
				nodeTotal(project.TotalActiveDuration),
				nodeTotal(project.TotalInactiveDuration),
			})
		}
	}
	if err := writeRows(f, TotalsSheet, rows); err != nil {
		return err
	}
	if err := styleRow(f, TotalsSheet, headerRow, len(totalsHeader), headerStyle); err != nil {
		return err
	}
	if err := f.SetColStyle(TotalsSheet, "A", headerStyle); err != nil {
		return fmt.Errorf("style totals labels: %w", err)
	}
	return f.SetColWidth(TotalsSheet, "A", "F", 24)
}

func writeDetailsSheet(f *excelize.File, report domain.FinalReport, headerStyle int) error {
	rows := [][]any{detailsHeader}
	for _, program := range report.Activities {
		for _, project := range program.Projects {
			for _, period := range project.Periods {
				rows = append(rows, []any{
					program.Program,
					label(project.Project),
					period.StartDate,
					period.EndDate,
					period.Duration,
					string(period.Interactive),
					domain.OrNotApplicable(period.Details),
				})
			}
		}
	}
	if err := writeRows(f, DetailsSheet, rows); err != nil {
		return err
	}
	if err := styleRow(f, DetailsSheet, 1, len(detailsHeader), headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(DetailsSheet, "A", "F", 22); err != nil {
		return fmt.Errorf("size details columns: %w", err)
	}
	return f.SetColWidth(DetailsSheet, "G", "G", 60)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for idx, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, idx+1, err)
		}
	}
	return nil
}

func styleRow(f *excelize.File, sheet string, row, width, style int) error {
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(width, row)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, first, last, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}
