package reports

import (
	"fmt"

	"bitbucket.org/thinkfish/tutoradmin_backend/models"
	"github.com/xuri/excelize/v2"
)

// BuildPayrollWorkbook renders a week's payroll items as a spreadsheet for
// offline review. Display only; the artifacts themselves stay in the DB.
func BuildPayrollWorkbook(weekKey string, items []models.PayrollItem) (*excelize.File, error) {
	f := excelize.NewFile()
	sheetName := "Payroll " + weekKey
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	headings := []string{"Tutor", "Lesson Hours", "Lessons", "Additional Hours", "Total Hours", "Rate", "Pay", "Exported", "Export Error"}
	for i, h := range headings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	for i, item := range items {
		row := i + 2
		f.SetCellValue(sheetName, "A"+fmt.Sprint(row), item.TutorName)
		f.SetCellValue(sheetName, "B"+fmt.Sprint(row), item.LessonHours.InexactFloat64())
		f.SetCellValue(sheetName, "C"+fmt.Sprint(row), item.LessonCount)
		f.SetCellValue(sheetName, "D"+fmt.Sprint(row), item.AdditionalHours.InexactFloat64())
		f.SetCellValue(sheetName, "E"+fmt.Sprint(row), item.TotalHours.InexactFloat64())
		f.SetCellValue(sheetName, "F"+fmt.Sprint(row), item.PayRate.InexactFloat64())
		f.SetCellValue(sheetName, "G"+fmt.Sprint(row), item.PayAmount.InexactFloat64())
		exported := false
		if item.ExportedToXero != nil {
			exported = *item.ExportedToXero
		}
		f.SetCellValue(sheetName, "H"+fmt.Sprint(row), exported)
		if item.XeroExportError != nil {
			f.SetCellValue(sheetName, "I"+fmt.Sprint(row), *item.XeroExportError)
		}
	}

	return f, nil
}

// BuildInvoiceWorkbook renders a week's invoices, one row per line item.
func BuildInvoiceWorkbook(weekKey string, invoices []models.Invoice) (*excelize.File, error) {
	f := excelize.NewFile()
	sheetName := "Invoices " + weekKey
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	headings := []string{"Family", "Student", "Tutor", "Date", "Subject", "Hours", "Price", "Invoice Total", "Exported"}
	for i, h := range headings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	row := 2
	for _, invoice := range invoices {
		exported := false
		if invoice.ExportedToXero != nil {
			exported = *invoice.ExportedToXero
		}
		for _, li := range invoice.LineItems {
			f.SetCellValue(sheetName, "A"+fmt.Sprint(row), invoice.FamilyName)
			f.SetCellValue(sheetName, "B"+fmt.Sprint(row), li.StudentName)
			f.SetCellValue(sheetName, "C"+fmt.Sprint(row), li.TutorName)
			f.SetCellValue(sheetName, "D"+fmt.Sprint(row), li.LessonDate.Format("2006-01-02"))
			f.SetCellValue(sheetName, "E"+fmt.Sprint(row), li.Subject)
			f.SetCellValue(sheetName, "F"+fmt.Sprint(row), li.DurationHours.InexactFloat64())
			f.SetCellValue(sheetName, "G"+fmt.Sprint(row), li.Price.InexactFloat64())
			f.SetCellValue(sheetName, "H"+fmt.Sprint(row), invoice.Total.InexactFloat64())
			f.SetCellValue(sheetName, "I"+fmt.Sprint(row), exported)
			row++
		}
	}

	return f, nil
}
