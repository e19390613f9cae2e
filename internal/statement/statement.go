// Package statement renders account statements as CSV, XLSX and PDF documents.
package statement

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Format names a statement rendering.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat maps a query value onto a Format. The empty string means CSV.
func ParseFormat(v string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(v))) {
	case "", FormatCSV:
		return FormatCSV, true
	case FormatXLSX:
		return FormatXLSX, true
	case FormatPDF:
		return FormatPDF, true
	}
	return "", false
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// Filename builds the attachment name for an account's statement.
func (f Format) Filename(accountNumber string) string {
	return fmt.Sprintf("statement_%s.%s", accountNumber, f)
}

// Document is the input every renderer consumes.
type Document struct {
	Account      *domain.Account
	Transactions []domain.Transaction
	GeneratedAt  time.Time
}

// Write renders doc in the requested format.
func Write(w io.Writer, f Format, doc Document) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, doc)
	case FormatPDF:
		return WritePDF(w, doc)
	case FormatCSV:
		return WriteCSV(w, doc)
	}
	return fmt.Errorf("unsupported statement format %q", f)
}

var csvHeader = []string{"date", "type", "amount", "balance_after", "transaction_id", "description"}

// WriteCSV writes one row per transaction under a fixed header.
func WriteCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, txn := range doc.Transactions {
		row := []string{
			txn.CreatedAt.Format(time.RFC3339),
			string(txn.Type),
			txn.Amount.StringFixed(2),
			txn.BalanceAfter.StringFixed(2),
			txn.ID.String(),
			txn.Description,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const xlsxSheet = "Statement"

// WriteXLSX writes a single-sheet workbook with the account header above the rows.
func WriteXLSX(w io.Writer, doc Document) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(xlsxSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	if doc.Account != nil {
		f.SetCellValue(xlsxSheet, "A1", "Account")
		f.SetCellValue(xlsxSheet, "B1", doc.Account.AccountNumber)
		f.SetCellValue(xlsxSheet, "A2", "Holder")
		f.SetCellValue(xlsxSheet, "B2", doc.Account.HolderName)
		f.SetCellValue(xlsxSheet, "A3", "Balance")
		f.SetCellValue(xlsxSheet, "B3", doc.Account.Balance.InexactFloat64())
	}

	headers := []string{"Date", "Type", "Amount", "Balance After", "Transaction ID", "Description"}
	const headerRow = 5
	for i, h := range headers {
		f.SetCellValue(xlsxSheet, fmt.Sprintf("%c%d", 'A'+i, headerRow), h)
	}

	for i, txn := range doc.Transactions {
		row := headerRow + 1 + i
		f.SetCellValue(xlsxSheet, fmt.Sprintf("A%d", row), txn.CreatedAt.Format("2006-01-02 15:04"))
		f.SetCellValue(xlsxSheet, fmt.Sprintf("B%d", row), string(txn.Type))
		f.SetCellValue(xlsxSheet, fmt.Sprintf("C%d", row), txn.SignedAmount().InexactFloat64())
		f.SetCellValue(xlsxSheet, fmt.Sprintf("D%d", row), txn.BalanceAfter.InexactFloat64())
		f.SetCellValue(xlsxSheet, fmt.Sprintf("E%d", row), txn.ID.String())
		f.SetCellValue(xlsxSheet, fmt.Sprintf("F%d", row), txn.Description)
	}

	f.SetColWidth(xlsxSheet, "A", "A", 18)
	f.SetColWidth(xlsxSheet, "B", "B", 16)
	f.SetColWidth(xlsxSheet, "C", "D", 14)
	f.SetColWidth(xlsxSheet, "E", "E", 38)
	f.SetColWidth(xlsxSheet, "F", "F", 40)

	return f.Write(w)
}

// WritePDF lays the statement out as an A4 table, repeating the header on each page.
func WritePDF(w io.Writer, doc Document) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "ACCOUNT STATEMENT", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	if doc.Account != nil {
		pdf.CellFormat(0, 6, "Account: "+doc.Account.AccountNumber, "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, "Holder: "+doc.Account.HolderName, "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, "Balance: "+doc.Account.Balance.StringFixed(2), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, "Generated: "+doc.GeneratedAt.Format(time.RFC1123), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	colW := []float64{34, 30, 70, 26, 26}
	header := []string{"Date", "Type", "Description", "Amount", "Balance"}
	drawHeader := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(235, 235, 235)
		for i, h := range header {
			pdf.CellFormat(colW[i], 7, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	drawHeader()

	for _, txn := range doc.Transactions {
		if pdf.GetY() > 270 {
			pdf.AddPage()
			drawHeader()
		}
		pdf.CellFormat(colW[0], 6, txn.CreatedAt.Format("2006-01-02 15:04"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[1], 6, string(txn.Type), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[2], 6, trimTo(txn.Description, 44), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[3], 6, txn.SignedAmount().StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[4], 6, txn.BalanceAfter.StringFixed(2), "1", 1, "R", false, 0, "")
	}
	if len(doc.Transactions) == 0 {
		pdf.CellFormat(0, 8, "No transactions in this period.", "", 1, "C", false, 0, "")
	}

	return pdf.Output(w)
}

func trimTo(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
