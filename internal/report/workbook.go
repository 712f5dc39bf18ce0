package report

import (
	"fmt"

	"item-resolver/internal/core"

	excelize "github.com/xuri/excelize/v2"
)

const reviewSheet = "Review Queue"

// WriteReviewWorkbook exports suggestion groups as a spreadsheet for the
// human review pass: one row per (group, candidate), groups with no
// candidates still get a row so definite-new work is visible.
func WriteReviewWorkbook(path string, groups []*core.SuggestionGroup) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reviewSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []interface{}{
		"Vendor", "Vendor Code", "Raw Description", "Normalized",
		"Line Count", "Pack Size", "Bucket",
		"Candidate SKU", "Candidate Name", "Score", "Matched On",
	}
	if err := f.SetSheetRow(reviewSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, g := range groups {
		code := ""
		if g.VendorItemCode != nil {
			code = *g.VendorItemCode
		}
		base := []interface{}{
			g.VendorName, code, g.RawDescription, g.Normalized,
			len(g.LineIDs), g.PackSize.String(), string(g.Bucket),
		}

		if len(g.Suggestions) == 0 {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(reviewSheet, cell, &base); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
			row++
			continue
		}
		for _, s := range g.Suggestions {
			vals := append(append([]interface{}{}, base...),
				s.ItemSKU, s.ItemName, s.Score, s.MatchedOn)
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(reviewSheet, cell, &vals); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
			row++
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
