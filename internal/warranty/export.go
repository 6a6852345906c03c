package warranty

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Devices"

var exportHeader = []any{
	"Brand", "Category", "Serial No.", "Warranty Period", "Purchase Date", "Expiry Date",
	"Free Service Dates", "Helpline", "Invoice No.", "Service Receipt", "Added",
}

// WriteWorkbook writes devices to w as a single-sheet XLSX workbook
func WriteWorkbook(w io.Writer, devices []*Device) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, d := range devices {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			d.BrandName, d.Category, d.DeviceSerial, d.WarrantyPeriod, d.PurchaseDate, d.ExpiryDate,
			strings.Join(d.FreeServiceDates, ", "), d.HelplineNumber, d.InvoiceNumber, d.ServiceReceipt,
			d.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
