// Package report exports the analysis journal as a spreadsheet.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/claude/formcoach/internal/models"
)

// SheetHistory is the name of the exported worksheet.
const SheetHistory = "History"

var historyColumns = []struct {
	title string
	width float64
}{
	{"ID", 8},
	{"Created", 20},
	{"Source", 10},
	{"Kind", 10},
	{"Exercise", 12},
	{"Mode", 12},
	{"Status", 10},
	{"Feedback", 10},
	{"Duration (s)", 13},
	{"Processed video", 48},
	{"Error", 40},
}

// WriteHistory writes logs as an .xlsx workbook to w.
func WriteHistory(w io.Writer, logs []models.AnalysisLog) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetHistory); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#2E75B6"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	failed, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#9C0006"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating error style: %w", err)
	}

	for i, c := range historyColumns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetHistory, col, col, c.width); err != nil {
			return fmt.Errorf("setting width of %s: %w", col, err)
		}
		if err := f.SetCellValue(SheetHistory, col+"1", c.title); err != nil {
			return fmt.Errorf("writing header %s: %w", c.title, err)
		}
	}
	last, _ := excelize.ColumnNumberToName(len(historyColumns))
	if err := f.SetCellStyle(SheetHistory, "A1", last+"1", header); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetPanes(SheetHistory, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}

	for i, l := range logs {
		row := i + 2
		values := []any{
			l.ID,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			l.Source,
			string(l.Kind),
			string(l.Exercise),
			l.Mode,
			l.Status,
			l.FeedbackCount,
			durationSeconds(l.DurationMs),
			deref(l.Processed),
			deref(l.ErrorMessage),
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetHistory, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", row, err)
		}
		if l.Status == "error" {
			end, _ := excelize.CoordinatesToCellName(len(historyColumns), row)
			if err := f.SetCellStyle(SheetHistory, cell, end, failed); err != nil {
				return fmt.Errorf("styling row %d: %w", row, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func durationSeconds(ms *int) any {
	if ms == nil {
		return ""
	}
	return float64(*ms) / 1000
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
