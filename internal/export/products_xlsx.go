// Package export renders inventory reports as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"zapstock/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the media type of the workbooks written here.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const productSheet = "Products"

var productHeadings = []string{
	"SKU", "Name", "Category", "Supplier", "Current Stock", "Min Stock",
	"Cost Price", "Selling Price", "Stock Value", "Low Stock",
}

// ProductsFilename names an export generated at t.
func ProductsFilename(t time.Time) string {
	return fmt.Sprintf("products-%s.xlsx", t.Format("20060102-150405"))
}

// WriteProducts writes one row per product, with stock value at cost, to w as an xlsx workbook.
func WriteProducts(w io.Writer, products []*domain.ProductDetail) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", productSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, heading := range productHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(productSheet, cell, heading); err != nil {
			return fmt.Errorf("failed to write heading: %w", err)
		}
	}

	for i, p := range products {
		row := i + 2
		value := p.CostPrice.Mul(decimal.NewFromInt(int64(p.CurrentStock)))
		values := []any{
			p.SKU,
			p.Name,
			p.CategoryName,
			p.SupplierName,
			p.CurrentStock,
			p.MinStockQuantity,
			p.CostPrice.InexactFloat64(),
			p.SellingPrice.InexactFloat64(),
			value.InexactFloat64(),
			lowStockLabel(p.LowStock()),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(productSheet, cell, v); err != nil {
				return fmt.Errorf("failed to write product row: %w", err)
			}
		}
	}

	if err := f.SetPanes(productSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze heading row: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func lowStockLabel(low bool) string {
	if low {
		return "yes"
	}
	return "no"
}
