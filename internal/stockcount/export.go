package stockcount

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Count"

// Export renders the count sheet in walk order, one row per product.
func (s *Service) Export(ctx context.Context, id uint) (*excelize.File, string, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	snap, err := s.load(ctx, c)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("export sheet: %w", err)
	}

	header := [][]any{
		{"Unit", c.Unit.Name},
		{"Date", c.Date.Format("2006-01-02")},
		{"Responsible", c.Responsible.Name},
		{"Status", StatusLabel(c.Status)},
		{},
		{"Category", "Product", "Measure", "Counted", "System"},
	}
	row := 1
	for _, values := range header {
		if err := setRow(f, row, values); err != nil {
			f.Close()
			return nil, "", err
		}
		row++
	}

	cats, _, _ := categoryViews(snap, true)
	for _, cat := range cats {
		for _, it := range cat.Items {
			values := []any{cat.Name, it.Name, it.Measure, "", ""}
			if it.CountedQuantity != nil && it.Counted {
				values[3] = *it.CountedQuantity
			}
			if it.SystemQuantity != nil {
				values[4] = *it.SystemQuantity
			}
			if err := setRow(f, row, values); err != nil {
				f.Close()
				return nil, "", err
			}
			row++
		}
	}
	_ = f.SetColWidth(exportSheet, "A", "B", 28)

	name := fmt.Sprintf("stock-count-%d-%s.xlsx", c.ID, c.Date.Format("2006-01-02"))
	return f, name, nil
}

func setRow(f *excelize.File, row int, values []any) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
		return fmt.Errorf("export row %d: %w", row, err)
	}
	return nil
}
