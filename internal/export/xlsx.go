// Package export renders a world snapshot as a spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kittclouds/worldbuilder/internal/schema"
	"github.com/kittclouds/worldbuilder/internal/store"
)

// TagsSheet and WorldSheet name the two bookkeeping sheets.
const (
	WorldSheet = "World"
	TagsSheet  = "Tags"
)

// WriteXLSX writes snap as an xlsx workbook: a World sheet, one sheet per
// category of registry in declared order, and a Tags sheet. Blob columns are
// written as their size since binary data has no cell form.
func WriteXLSX(w io.Writer, snap *store.Snapshot, registry *schema.Registry) error {
	if registry == nil {
		registry = schema.Default()
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	worldRow := []any{"", ""}
	if snap.World != nil {
		worldRow = []any{snap.World.Name, blobCell(snap.World.WorldMap)}
	}
	index, err := writeSheet(f, WorldSheet, header, []string{"Name", "World Map"}, [][]any{worldRow})
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	for _, category := range registry.ListCategories() {
		rt := registry.RecordTypeOf(category)

		headers := []string{"ID"}
		for _, c := range rt.Columns {
			headers = append(headers, schema.DisplayName(c.Name))
		}

		rows := make([][]any, 0, len(snap.Records[category]))
		for _, rec := range snap.Records[category] {
			row := []any{rec.ID}
			for _, c := range rt.Columns {
				v := rec.Fields[c.Name]
				if c.Kind == schema.KindBlob {
					b, _ := v.([]byte)
					row = append(row, blobCell(b))
					continue
				}
				row = append(row, v)
			}
			rows = append(rows, row)
		}

		if _, err := writeSheet(f, schema.DisplayName(category), header, headers, rows); err != nil {
			return err
		}
	}

	tagRows := make([][]any, len(snap.Tags))
	for i, t := range snap.Tags {
		tagRows[i] = []any{t.ID, t.EntryName, t.EntryLocation}
	}
	if _, err := writeSheet(f, TagsSheet, header, []string{"ID", "Entry Name", "Entry Location"}, tagRows); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, style int, headers []string, rows [][]any) (int, error) {
	index, err := f.NewSheet(name)
	if err != nil {
		return 0, fmt.Errorf("create sheet %s: %w", name, err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return 0, err
		}
		if err := f.SetCellValue(name, cell, h); err != nil {
			return 0, fmt.Errorf("set header %s!%s: %w", name, cell, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return 0, err
	}
	if err := f.SetCellStyle(name, "A1", last, style); err != nil {
		return 0, fmt.Errorf("style header %s: %w", name, err)
	}

	for r, row := range rows {
		for col, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return 0, err
			}
			if err := f.SetCellValue(name, cell, v); err != nil {
				return 0, fmt.Errorf("set %s!%s: %w", name, cell, err)
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(name, "A", lastCol, 20); err != nil {
		return 0, fmt.Errorf("set column width %s: %w", name, err)
	}
	return index, nil
}

func blobCell(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return fmt.Sprintf("<%d bytes>", len(b))
}
