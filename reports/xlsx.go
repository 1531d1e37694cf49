package reports

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"patiotools/internal/apperrors"
)

const (
	// limite do Excel para nome de aba
	maxSheetName = 31
	minColWidth  = 10
	maxColWidth  = 50
)

// ExportXLSX grava as Sheets numa planilha, uma aba por Sheet
func ExportXLSX(path string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return apperrors.NewValidationError("no sheets to export", nil)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	used := make(map[string]bool)
	for i, sheet := range sheets {
		name := sheetName(sheet.Name, i, used)

		if i == 0 {
			// a planilha nova já vem com "Sheet1"
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}

		if err := writeSheet(f, name, sheet, headerStyle); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, sheet Sheet, headerStyle int) error {
	widths := make([]int, len(sheet.Headers))

	for col, header := range sheet.Headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(name, cell, header); err != nil {
			return fmt.Errorf("failed to write header %s: %w", header, err)
		}
		widths[col] = utf8.RuneCountInString(header)
	}
	if len(sheet.Headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(sheet.Headers), 1)
		if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for r, row := range sheet.Rows {
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			if err := f.SetCellValue(name, cell, value); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
			if col < len(widths) {
				if n := utf8.RuneCountInString(fmt.Sprint(value)); n > widths[col] {
					widths[col] = n
				}
			}
		}
	}

	for col, width := range widths {
		width += 2
		if width < minColWidth {
			width = minColWidth
		}
		if width > maxColWidth {
			width = maxColWidth
		}
		colName, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(name, colName, colName, float64(width)); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if len(sheet.Rows) > 0 {
		if err := f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return fmt.Errorf("failed to freeze header: %w", err)
		}
	}
	return nil
}

// sheetName nome de aba válido e único
func sheetName(name string, index int, used map[string]bool) string {
	if name == "" {
		name = fmt.Sprintf("Relatorio %d", index+1)
	}
	runes := []rune(name)
	if len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	base := name
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf(" %d", n)
		r := []rune(base)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		name = string(r) + suffix
	}
	used[name] = true
	return name
}
