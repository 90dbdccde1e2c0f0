// Package export renders compliance checklists into spreadsheets.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
)

const (
	sheetName    = "Checklist"
	headerRow    = 4
	dataRowStart = 5
)

var columns = []struct {
	header string
	width  float64
}{
	{"Tag", 14},
	{"Document", 34},
	{"Type", 24},
	{"Required", 10},
	{"File", 36},
	{"Uploaded", 20},
	{"Verified", 10},
}

// ChecklistWriter writes the slot checklist of a task as an xlsx workbook
type ChecklistWriter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewChecklistWriter creates a new checklist writer
func NewChecklistWriter(logger *zap.Logger) *ChecklistWriter {
	return &ChecklistWriter{
		logger: logger,
		now:    time.Now,
	}
}

// Export implements port.ChecklistExporter
func (w *ChecklistWriter) Export(task *entity.Task, rows []port.ChecklistRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := w.writeHeader(f, task); err != nil {
		return nil, err
	}

	missing := 0
	for i, row := range rows {
		r := dataRowStart + i
		values := []interface{}{
			row.Tag,
			row.DisplayName,
			row.DocumentType,
			yesNo(row.Required),
			row.FileName,
			row.UploadedAt,
			yesNo(row.Verified),
		}
		cell, err := excelize.CoordinatesToCellName(1, r)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", r, err)
		}
		if row.Required && row.FileName == "" {
			missing++
		}
	}

	summary := fmt.Sprintf("%d slots, %d required missing", len(rows), missing)
	if err := f.SetCellValue(sheetName, "A3", summary); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Info("Checklist exported",
		zap.Int64("task_id", task.ID),
		zap.Int("rows", len(rows)),
		zap.Int("missing_required", missing))
	return buf.Bytes(), nil
}

func (w *ChecklistWriter) writeHeader(f *excelize.File, task *entity.Task) error {
	title := fmt.Sprintf("Task #%d: %s", task.ID, task.Title)
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return fmt.Errorf("failed to write title: %w", err)
	}
	generated := fmt.Sprintf("Status: %s | Generated %s", task.Status, w.now().Format("2006-01-02 15:04"))
	if err := f.SetCellValue(sheetName, "A2", generated); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	headers := make([]interface{}, len(columns))
	for i, c := range columns {
		headers[i] = c.header
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, c.width); err != nil {
			return fmt.Errorf("failed to set width of %s: %w", col, err)
		}
	}

	start, _ := excelize.CoordinatesToCellName(1, headerRow)
	end, _ := excelize.CoordinatesToCellName(len(columns), headerRow)
	if err := f.SetSheetRow(sheetName, start, &headers); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	if err := f.SetCellStyle(sheetName, start, end, bold); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}
	return f.SetCellStyle(sheetName, "A1", "A1", bold)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Verify interface compliance
var _ port.ChecklistExporter = (*ChecklistWriter)(nil)
