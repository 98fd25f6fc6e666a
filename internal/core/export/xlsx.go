// Package export renders the aggregate catalog as a spreadsheet.
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"oilcatalog/internal/core/product"
)

type column struct {
	title string
	width float64
	value func(product.Record) any
}

var columns = []column{
	{"Key", 18, func(r product.Record) any { return r.BusinessKey }},
	{"Name", 24, func(r product.Record) any { return r.Name }},
	{"English Name", 24, func(r product.Record) any { return r.EnglishName }},
	{"Scientific Name", 24, func(r product.Record) any { return r.ScientificName }},
	{"Code", 12, func(r product.Record) any { return r.ProductCode }},
	{"Volume", 10, func(r product.Record) any { return r.Volume }},
	{"Retail", 10, func(r product.Record) any { return intOrBlank(r.RetailPrice) }},
	{"Member", 10, func(r product.Record) any { return intOrBlank(r.MemberPrice) }},
	{"PV", 8, func(r product.Record) any { return floatOrBlank(r.PVPoints) }},
	{"Benefits", 40, func(r product.Record) any { return strings.Join(r.MainBenefits, "\n") }},
	{"Ingredients", 40, func(r product.Record) any { return strings.Join(r.MainIngredients, "\n") }},
	{"Usage", 40, func(r product.Record) any { return strings.Join(r.UsageInstructions, "\n") }},
	{"Cautions", 40, func(r product.Record) any { return strings.Join(r.Cautions, "\n") }},
	{"Collections", 20, func(r product.Record) any { return strings.Join(r.Collections, ", ") }},
	{"URL", 40, func(r product.Record) any { return r.URL }},
}

func intOrBlank(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func floatOrBlank(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

// Workbook builds one sheet per category, in category order. Categories with
// no records still get a sheet holding only the header row.
func Workbook(records []product.Record) (*excelize.File, error) {
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		f.Close()
		return nil, err
	}

	byCat := map[product.Category][]product.Record{}
	for _, r := range records {
		byCat[r.Category] = append(byCat[r.Category], r)
	}

	for i, cat := range product.Categories {
		sheet := string(cat)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeSheet(f, sheet, byCat[cat], header, wrap); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, records []product.Record, header, wrap int) error {
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col.title); err != nil {
			return err
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, name, name, col.width); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	for row, r := range records {
		for i, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, row+2)
			if err := f.SetCellValue(sheet, cell, col.value(r)); err != nil {
				return err
			}
		}
	}
	if len(records) > 0 {
		end, _ := excelize.CoordinatesToCellName(len(columns), len(records)+1)
		return f.SetCellStyle(sheet, "A2", end, wrap)
	}
	return nil
}

// WriteFile renders records to path.
func WriteFile(records []product.Record, path string) error {
	f, err := Workbook(records)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}
