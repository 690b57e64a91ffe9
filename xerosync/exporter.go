package xerosync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"bitbucket.org/thinkfish/tutoradmin_backend/models"
	"bitbucket.org/thinkfish/tutoradmin_backend/utils"
	"bitbucket.org/thinkfish/tutoradmin_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// Exporter pushes generated payroll items and invoices to Xero, recording the
// outcome per item. Export is a best-effort batch: one item's failure never
// aborts its siblings, and a successfully exported item is never re-sent
// (exported_to_xero is a write-once latch). Retry is caller-invoked via an
// explicit id scope; nothing here retries on its own.
type Exporter struct {
	client poster
	logger *logrus.Logger
}

func NewExporter() (*Exporter, error) {
	client, err := newXeroClient()
	if err != nil {
		return nil, err
	}
	return &Exporter{client: client, logger: config.GetLogger()}, nil
}

// ExportPayroll exports the week's payroll items. With tutorIds the call is a
// scoped retry: only the named items are attempted and the pending-requests
// gate is skipped (the full batch already passed it).
func (e *Exporter) ExportPayroll(ctx context.Context, weekKey string, tutorIds []int) (*ExportResult, error) {
	weekStart, err := utils.ParseWeekKey(weekKey)
	if err != nil {
		return nil, &workflow.ValidationError{Msg: err.Error()}
	}

	meta, err := models.GetPayrollMeta(ctx, weekKey)
	if err != nil {
		return nil, err
	}
	if meta == nil || meta.Generated == nil || !*meta.Generated {
		return nil, workflow.NewPreconditionError("payroll for week %s has not been generated", weekKey)
	}

	if len(tutorIds) == 0 {
		pending, err := models.GetPendingRequests(ctx, weekKey)
		if err != nil {
			return nil, err
		}
		if len(pending) > 0 {
			return nil, &workflow.PendingRequestsError{WeekStart: weekKey, Count: len(pending)}
		}
	}

	release := e.obtainBatchLock(ctx, "xero:payroll:"+weekKey)
	defer release()

	items, err := models.GetPayrollItems(ctx, weekKey)
	if err != nil {
		return nil, err
	}

	scope := make(map[int]bool, len(tutorIds))
	for _, id := range tutorIds {
		scope[id] = true
	}

	db := config.GetDB().WithContext(ctx)
	result := newExportResult()
	for _, item := range items {
		if len(scope) > 0 && !scope[item.TutorId] {
			continue
		}
		id := strconv.Itoa(item.TutorId)
		if item.ExportedToXero != nil && *item.ExportedToXero {
			result.skip(id, item.TutorName)
			continue
		}

		sheet := xeroTimesheet{
			EmployeeName:   item.TutorName,
			PayPeriodStart: weekKey,
			PayPeriodEnd:   utils.WeekEndFor(weekStart).Format(utils.WeekKeyLayout),
			Status:         "Draft",
			TimesheetLines: []xeroTimesheetLine{{
				Description:   fmt.Sprintf("Tutoring hours week %s", weekKey),
				NumberOfUnits: item.TotalHours.InexactFloat64(),
				UnitAmount:    item.PayRate.InexactFloat64(),
			}},
		}

		postErr := e.client.PostTimesheet(ctx, sheet)
		if postErr != nil {
			config.LogError(e.logger, "exporter.go", "ExportPayroll", "PostTimesheet", item.TutorName, postErr)
			if err := db.Model(&models.PayrollItem{}).
				Where("id = ? AND exported_to_xero = ?", item.ID, false).
				Update("xero_export_error", postErr.Error()).Error; err != nil {
				return nil, err
			}
			result.record(id, item.TutorName, postErr)
			continue
		}

		// The latch write is the claim: only the batch whose guarded update
		// flips the row records the export. RowsAffected 0 means a concurrent
		// batch already recorded this item.
		claim := db.Model(&models.PayrollItem{}).
			Where("id = ? AND exported_to_xero = ?", item.ID, false).
			Updates(map[string]interface{}{"exported_to_xero": true, "xero_export_error": nil})
		if claim.Error != nil {
			return nil, claim.Error
		}
		if claim.RowsAffected == 0 {
			result.skip(id, item.TutorName)
			continue
		}
		result.record(id, item.TutorName, nil)
	}

	allExported, err := e.latchIfComplete(ctx, weekKey, "payroll")
	if err != nil {
		return nil, err
	}
	result.AllExported = allExported
	return result, nil
}

// ExportInvoices is the invoice-side twin of ExportPayroll, scoped by invoice
// ids instead of tutor ids. Invoices have no approval gate; their only
// preconditions are generation and the per-item write-once latch.
func (e *Exporter) ExportInvoices(ctx context.Context, weekKey string, invoiceIds []string) (*ExportResult, error) {
	weekStart, err := utils.ParseWeekKey(weekKey)
	if err != nil {
		return nil, &workflow.ValidationError{Msg: err.Error()}
	}

	meta, err := models.GetInvoiceMeta(ctx, weekKey)
	if err != nil {
		return nil, err
	}
	if meta == nil || meta.Generated == nil || !*meta.Generated {
		return nil, workflow.NewPreconditionError("invoices for week %s have not been generated", weekKey)
	}

	release := e.obtainBatchLock(ctx, "xero:invoices:"+weekKey)
	defer release()

	invoices, err := models.GetInvoicesForWeek(ctx, weekKey)
	if err != nil {
		return nil, err
	}

	scope := make(map[string]bool, len(invoiceIds))
	for _, id := range invoiceIds {
		scope[id] = true
	}

	dueDate := utils.WeekEndFor(weekStart).AddDate(0, 0, 14)

	db := config.GetDB().WithContext(ctx)
	result := newExportResult()
	for _, invoice := range invoices {
		if len(scope) > 0 && !scope[invoice.ID] {
			continue
		}
		if invoice.ExportedToXero != nil && *invoice.ExportedToXero {
			result.skip(invoice.ID, invoice.FamilyName)
			continue
		}

		lines := make([]xeroInvoiceLine, 0, len(invoice.LineItems))
		for _, li := range invoice.LineItems {
			lines = append(lines, xeroInvoiceLine{
				Description: fmt.Sprintf("%s - %s (%s)", li.StudentName, li.Subject, li.LessonDate.Format("2006-01-02")),
				Quantity:    li.DurationHours.InexactFloat64(),
				UnitAmount:  unitRate(li),
			})
		}

		payload := xeroInvoice{
			Type: "ACCREC",
			Contact: xeroContact{
				Name:         invoice.FamilyName,
				EmailAddress: invoice.ParentEmail,
			},
			Date:      weekKey,
			DueDate:   dueDate.Format(utils.WeekKeyLayout),
			Reference: fmt.Sprintf("Tuition week %s", weekKey),
			Status:    "AUTHORISED",
			LineItems: lines,
		}

		postErr := e.client.PostInvoice(ctx, payload)
		if postErr != nil {
			config.LogError(e.logger, "exporter.go", "ExportInvoices", "PostInvoice", invoice.FamilyName, postErr)
			if err := db.Model(&models.Invoice{}).
				Where("id = ? AND exported_to_xero = ?", invoice.ID, false).
				Update("xero_export_error", postErr.Error()).Error; err != nil {
				return nil, err
			}
			result.record(invoice.ID, invoice.FamilyName, postErr)
			continue
		}

		claim := db.Model(&models.Invoice{}).
			Where("id = ? AND exported_to_xero = ?", invoice.ID, false).
			Updates(map[string]interface{}{"exported_to_xero": true, "xero_export_error": nil})
		if claim.Error != nil {
			return nil, claim.Error
		}
		if claim.RowsAffected == 0 {
			result.skip(invoice.ID, invoice.FamilyName)
			continue
		}
		result.record(invoice.ID, invoice.FamilyName, nil)
	}

	allExported, err := e.latchIfComplete(ctx, weekKey, "invoices")
	if err != nil {
		return nil, err
	}
	result.AllExported = allExported
	return result, nil
}

// latchIfComplete sets the week's meta to locked when every item is exported.
// Locking is one-directional; nothing ever clears it.
func (e *Exporter) latchIfComplete(ctx context.Context, weekKey string, scope string) (bool, error) {
	db := config.GetDB().WithContext(ctx)

	var remaining int64
	var err error
	switch scope {
	case "payroll":
		err = db.Model(&models.PayrollItem{}).
			Where("week_start = ? AND exported_to_xero = ?", weekKey, false).
			Count(&remaining).Error
	default:
		err = db.Model(&models.Invoice{}).
			Where("week_start = ? AND exported_to_xero = ?", weekKey, false).
			Count(&remaining).Error
	}
	if err != nil {
		return false, err
	}
	if remaining > 0 {
		return false, nil
	}

	switch scope {
	case "payroll":
		err = db.Model(&models.PayrollMeta{}).Where("week_start = ?", weekKey).Update("locked", true).Error
	default:
		err = db.Model(&models.InvoiceMeta{}).Where("week_start = ?", weekKey).Update("locked", true).Error
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// obtainBatchLock takes a best-effort redis lock to dedupe concurrent export
// clicks. Reliability must not depend on Redis: if the lock is unavailable we
// proceed, and the per-item write-once latch keeps items from double-posting
// across completed batches.
func (e *Exporter) obtainBatchLock(ctx context.Context, key string) func() {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}
	}
	lock, err := locker.Obtain(ctx, key, 60*time.Second, nil)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"field": "obtainBatchLock",
			"key":   key,
		}).Warn("could not obtain redis export lock; proceeding: " + err.Error())
		return func() {}
	}
	return func() {
		if releaseErr := lock.Release(context.Background()); releaseErr != nil && releaseErr != redislock.ErrLockNotHeld {
			e.logger.WithFields(logrus.Fields{
				"field": "obtainBatchLock",
				"key":   key,
			}).Warn("failed to release redis export lock: " + releaseErr.Error())
		}
	}
}

func newExportResult() *ExportResult {
	return &ExportResult{
		Results:      []ItemResult{},
		ErrorDetails: map[string]string{},
	}
}

func (r *ExportResult) record(id string, name string, err error) {
	if err == nil {
		r.Exported++
		r.Results = append(r.Results, ItemResult{Id: id, Name: name, Exported: true})
		return
	}
	r.Errors++
	r.ErrorDetails[id] = err.Error()
	r.Results = append(r.Results, ItemResult{Id: id, Name: name, Error: err.Error()})
}

func (r *ExportResult) skip(id string, name string) {
	r.Skipped++
	r.Results = append(r.Results, ItemResult{Id: id, Name: name, Exported: true, Skipped: true})
}

func unitRate(li models.InvoiceLineItem) float64 {
	if li.DurationHours.IsZero() {
		return 0
	}
	return li.Price.Div(li.DurationHours).Round(4).InexactFloat64()
}
