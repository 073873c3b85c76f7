// Package report exports a batch run's outcome as an xlsx workbook for the
// people who review processing results without touching the JSON artifacts.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"meeting-insights-go/internal/batch"
)

const (
	summarySheet = "Summary"
	itemsSheet   = "Items"
)

// WriteWorkbook writes the run report to path, overwriting an existing file.
func WriteWorkbook(path string, rep *batch.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", summarySheet)
	summary := [][]any{
		{"Run ID", rep.RunID},
		{"Total items", rep.Total},
		{"Completed", rep.Completed},
		{"Skipped (already done)", rep.Skipped},
		{"Failed", len(rep.Failures)},
		{"Not attempted", rep.NotAttempted},
		{"Halted early", rep.Halted},
		{"Elapsed", rep.Elapsed.String()},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("summary cell: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	if _, err := f.NewSheet(itemsSheet); err != nil {
		return fmt.Errorf("create items sheet: %w", err)
	}
	header := []any{"Item ID", "Title", "Outcome", "Stage", "State", "Reason"}
	if err := f.SetSheetRow(itemsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write items header: %w", err)
	}
	rowNum := 2
	writeRow := func(cols []any) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		rowNum++
		return f.SetSheetRow(itemsSheet, cell, &cols)
	}
	for _, id := range rep.CompletedIDs {
		if err := writeRow([]any{id, "", "completed", "", "", ""}); err != nil {
			return fmt.Errorf("write completed row: %w", err)
		}
	}
	for _, fail := range rep.Failures {
		if err := writeRow([]any{fail.ID, fail.Title, "failed", fail.Stage, fail.State, fail.Reason}); err != nil {
			return fmt.Errorf("write failure row: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
