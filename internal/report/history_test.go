package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/claude/formcoach/internal/models"
)

func TestWriteHistory(t *testing.T) {
	processed := "http://backend/outputs/analyzed_lift.mp4"
	msg := "Video processing failed"
	ms := 1500
	logs := []models.AnalysisLog{
		{
			ID:         2,
			CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			Source:     "web",
			Kind:       models.KindUpload,
			Exercise:   models.Squat,
			Mode:       "Pro",
			Status:     "success",
			Processed:  &processed,
			DurationMs: &ms,
		},
		{
			ID:           1,
			CreatedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			Source:       "cli",
			Kind:         models.KindUpload,
			Exercise:     models.Plank,
			Mode:         "Beginner",
			Status:       "error",
			ErrorMessage: &msg,
		},
	}

	var buf bytes.Buffer
	if err := WriteHistory(&buf, logs); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetHistory)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][4] != "Exercise" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][4] != "squat" || rows[1][9] != processed {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[1][8] != "1.5" {
		t.Errorf("duration = %q, want 1.5", rows[1][8])
	}
	if rows[2][6] != "error" || rows[2][10] != msg {
		t.Errorf("row 2 = %v", rows[2])
	}
}

func TestWriteHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHistory(&buf, nil); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, _ := f.GetRows(SheetHistory)
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}
