package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/gelato-pos/internal/domain/catalog"
	"github.com/Spok95/gelato-pos/internal/domain/sales"
)

// BuildSalesReport собирает книгу: лист с чеками и лист с позициями,
// по которым остаток просел до порога дозаказа.
func BuildSalesReport(saleRows []sales.Sale, products []catalog.Product) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{
		"sale_number", "created_at", "customer", "payment_method", "payment_status",
		"subtotal", "tax", "discount", "total", "sync_status", "last_synced",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("report header: %w", err)
	}

	row := 2
	for _, s := range saleRows {
		excelRow := []interface{}{
			s.SaleNumber,
			s.CreatedAt.Format(time.RFC3339),
			s.CustomerName,
			s.PaymentMethod,
			s.PaymentStatus,
			s.Subtotal,
			s.TaxAmount,
			s.DiscountAmount,
			s.TotalAmount,
			string(s.SyncStatus),
			fmtSynced(s.LastSynced),
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return nil, fmt.Errorf("report row %d: %w", row, err)
		}
		row++
	}

	// Второй лист — что пора дозаказывать
	if _, err := f.NewSheet("Low stock"); err != nil {
		return nil, err
	}
	lowHeader := []interface{}{"product", "sku", "current_stock", "available_stock", "min_stock_level", "reorder_point"}
	if err := f.SetSheetRow("Low stock", "A1", &lowHeader); err != nil {
		return nil, err
	}
	row = 2
	for _, p := range products {
		if p.CurrentStock > p.ReorderPoint {
			continue
		}
		excelRow := []interface{}{p.Name, p.SKU, p.CurrentStock, p.AvailableStock, p.MinStockLevel, p.ReorderPoint}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow("Low stock", cell, &excelRow); err != nil {
			return nil, err
		}
		row++
	}

	return f, nil
}

func fmtSynced(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
