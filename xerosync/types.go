package xerosync

// ExportResult summarizes one export batch. It is returned to the caller and
// never persisted; the durable record is the per-item exported_to_xero /
// xero_export_error fields.
type ExportResult struct {
	Exported     int               `json:"exported"`
	Errors       int               `json:"errors"`
	Skipped      int               `json:"skipped"`
	AllExported  bool              `json:"all_exported"`
	Results      []ItemResult      `json:"results"`
	ErrorDetails map[string]string `json:"error_details,omitempty"`
}

type ItemResult struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Exported bool   `json:"exported"`
	Skipped  bool   `json:"skipped"`
	Error    string `json:"error,omitempty"`
}

// Wire shapes for the Xero payroll/accounting APIs. Field names follow Xero's
// PascalCase JSON convention.

type xeroTimesheet struct {
	EmployeeName   string              `json:"EmployeeName"`
	PayPeriodStart string              `json:"PayPeriodStartDate"`
	PayPeriodEnd   string              `json:"PayPeriodEndDate"`
	Status         string              `json:"Status"`
	TimesheetLines []xeroTimesheetLine `json:"TimesheetLines"`
}

type xeroTimesheetLine struct {
	Description   string  `json:"Description"`
	NumberOfUnits float64 `json:"NumberOfUnits"`
	UnitAmount    float64 `json:"UnitAmount"`
}

type xeroInvoice struct {
	Type      string            `json:"Type"`
	Contact   xeroContact       `json:"Contact"`
	Date      string            `json:"Date"`
	DueDate   string            `json:"DueDate"`
	Reference string            `json:"Reference"`
	Status    string            `json:"Status"`
	LineItems []xeroInvoiceLine `json:"LineItems"`
}

type xeroContact struct {
	Name         string `json:"Name"`
	EmailAddress string `json:"EmailAddress,omitempty"`
}

type xeroInvoiceLine struct {
	Description string  `json:"Description"`
	Quantity    float64 `json:"Quantity"`
	UnitAmount  float64 `json:"UnitAmount"`
	AccountCode string  `json:"AccountCode,omitempty"`
}
