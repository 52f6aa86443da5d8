package export

import (
	"fmt"
	"io"

	"github.com/tealeg/xlsx"

	"github.com/JonMunkholm/leaddesk/internal/table"
)

// WriteXLSX writes rows as a single-sheet workbook: a header row of column
// labels, then one row per record. Number cells that parse are written as
// numbers so spreadsheet formulas work on them.
func WriteXLSX(w io.Writer, sheetName string, cols []table.Column, rows []table.Record) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, c := range cols {
		header.AddCell().SetString(c.Label)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		for _, c := range cols {
			cell := row.AddCell()
			v := r.Get(c.Key)
			if c.Kind == table.KindNumber {
				if f, ok := table.ParseNumber(v); ok {
					cell.SetFloat(f)
					continue
				}
			}
			cell.SetString(v)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
