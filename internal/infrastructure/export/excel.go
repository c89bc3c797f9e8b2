// Package export writes ledger snapshots to spreadsheet documents.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
)

// SheetName is the worksheet holding the ledger
const SheetName = "Invoices"

const dateLayout = "2006-01-02"

var headers = []string{
	"ID", "Vendor", "Invoice #", "Issue Date", "Due Date", "Project",
	"Category", "Status", "Amount", "Tax", "Total", "Currency", "Notes",
}

// ExcelExporter implements port.LedgerExporter as an xlsx workbook
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// ContentType returns the xlsx MIME type
func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Export writes one row per ledger entry in ledger order, followed by the
// outstanding and paid totals
func (e *ExcelExporter) Export(ctx context.Context, w io.Writer, invoices []*entity.Invoice, totals port.LedgerTotals) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("create money style: %w", err)
	}

	for i, h := range headers {
		e.setCell(f, cellName(i+1, 1), h)
	}
	if err := f.SetCellStyle(SheetName, "A1", cellName(len(headers), 1), headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	row := 2
	for _, inv := range invoices {
		if err := ctx.Err(); err != nil {
			return err
		}

		due := ""
		if inv.DueDate != nil {
			due = inv.DueDate.Format(dateLayout)
		}
		values := []interface{}{
			inv.ID.Value(),
			inv.VendorName,
			inv.InvoiceNumber,
			inv.IssueDate.Format(dateLayout),
			due,
			inv.ProjectName,
			string(inv.Category),
			string(inv.Status),
			inv.Amount.InexactFloat64(),
			inv.TaxAmount.InexactFloat64(),
			inv.EffectiveTotal().InexactFloat64(),
			inv.Currency,
			inv.Notes,
		}
		for i, v := range values {
			e.setCell(f, cellName(i+1, row), v)
		}
		row++
	}
	if row > 2 {
		if err := f.SetCellStyle(SheetName, cellName(9, 2), cellName(11, row-1), moneyStyle); err != nil {
			return fmt.Errorf("style amounts: %w", err)
		}
	}

	row++
	e.setCell(f, cellName(10, row), "Outstanding")
	e.setCell(f, cellName(11, row), totals.Outstanding.InexactFloat64())
	e.setCell(f, cellName(10, row+1), "Paid")
	e.setCell(f, cellName(11, row+1), totals.Paid.InexactFloat64())
	if err := f.SetCellStyle(SheetName, cellName(11, row), cellName(11, row+1), moneyStyle); err != nil {
		return fmt.Errorf("style totals: %w", err)
	}
	if err := f.SetCellStyle(SheetName, cellName(10, row), cellName(10, row+1), headerStyle); err != nil {
		return fmt.Errorf("style totals: %w", err)
	}

	if err := f.SetColWidth(SheetName, "B", "B", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "M", "M", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	e.logger.Info("Ledger exported",
		zap.Int("rows", len(invoices)),
		zap.String("outstanding", totals.Outstanding.StringFixed(2)),
		zap.String("paid", totals.Paid.StringFixed(2)))
	return nil
}

func (e *ExcelExporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

var _ port.LedgerExporter = (*ExcelExporter)(nil)
