package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"bitbucket.org/thinkfish/tutoradmin_backend/models"
	"bitbucket.org/thinkfish/tutoradmin_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GenerateWeeklyInvoices materializes one Invoice per family for the week
// starting at weekStart. Same write discipline as payroll generation: the
// InvoiceMeta insert is the check-and-set, regeneration is refused rather
// than silently overwriting, and an invoice an admin has edited by hand is
// never clobbered.
func GenerateWeeklyInvoices(ctx context.Context, weekStart time.Time) error {
	if weekStart.Weekday() != time.Saturday {
		return NewValidationError("week start %s is not a Saturday", weekStart.Format(utils.WeekKeyLayout))
	}
	weekKey := utils.WeekKeyFor(weekStart)
	weekEnd := utils.WeekEndFor(weekStart)
	if time.Now().Before(weekEnd) {
		return NewPreconditionError("week %s has not ended yet; invoices can only be generated for a completed week", weekKey)
	}

	db := config.GetDB().WithContext(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		if err := AcquireWeekPostingLock(tx, "invoices", weekKey); err != nil {
			return err
		}
		defer ReleaseWeekPostingLock(tx, "invoices", weekKey)

		var existing models.InvoiceMeta
		err := tx.Where("week_start = ?", weekKey).Take(&existing).Error
		if err == nil {
			if existing.Locked != nil && *existing.Locked {
				return NewPreconditionError("invoices for week %s are locked after export and cannot be regenerated", weekKey)
			}
			return NewPreconditionError("invoices for week %s have already been generated", weekKey)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now()
		meta := models.InvoiceMeta{
			WeekStart:     weekKey,
			Generated:     utils.NewTrue(),
			Locked:        utils.NewFalse(),
			LastGenerated: &now,
		}
		if err := tx.Create(&meta).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return NewPreconditionError("invoices for week %s have already been generated", weekKey)
			}
			return err
		}

		var lessons []models.Lesson
		if err := tx.Preload("Attendees").
			Where("start_time >= ? AND start_time <= ?", weekStart, weekEnd).
			Order("start_time ASC").
			Find(&lessons).Error; err != nil {
			return err
		}

		tutors, students, families, err := directoryForLessonsTx(tx, lessons)
		if err != nil {
			return err
		}

		for _, draft := range BuildFamilyDrafts(lessons, tutors, students, families) {
			invoice := models.Invoice{
				ID:                    uuid.NewString(),
				WeekStart:             weekKey,
				FamilyId:              draft.FamilyId,
				FamilyName:            draft.FamilyName,
				ParentEmail:           draft.ParentEmail,
				Total:                 draft.Total,
				LineItems:             draft.LineItems,
				EditedSinceGeneration: utils.NewFalse(),
				ExportedToXero:        utils.NewFalse(),
			}
			if err := tx.Create(&invoice).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// EditInvoice applies a manual admin edit to a generated invoice: line items
// are replaced wholesale and the total recomputed. The edit marks the invoice
// so later regeneration attempts skip it. Exported invoices are immutable.
func EditInvoice(ctx context.Context, invoiceId string, lineItems []models.InvoiceLineItem) error {
	db := config.GetDB().WithContext(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := tx.Where("id = ?", invoiceId).Take(&invoice).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if invoice.ExportedToXero != nil && *invoice.ExportedToXero {
			return NewPreconditionError("invoice %s has been exported to Xero and can no longer be edited", invoiceId)
		}
		if len(lineItems) == 0 {
			return NewValidationError("an invoice needs at least one line item")
		}

		total := decimal.Zero
		for i := range lineItems {
			lineItems[i].ID = 0
			lineItems[i].InvoiceId = invoiceId
			total = total.Add(lineItems[i].Price)
		}

		if err := tx.Where("invoice_id = ?", invoiceId).Delete(&models.InvoiceLineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&lineItems).Error; err != nil {
			return err
		}
		return tx.Model(&models.Invoice{}).
			Where("id = ?", invoiceId).
			Updates(map[string]interface{}{
				"total":                   total,
				"edited_since_generation": true,
			}).Error
	})
}

func directoryForLessonsTx(tx *gorm.DB, lessons []models.Lesson) (map[int]models.Tutor, map[int]models.Student, map[int]models.Family, error) {
	tutorIds := make([]int, 0, len(lessons))
	studentIds := make([]int, 0)
	for _, lesson := range lessons {
		tutorIds = append(tutorIds, lesson.TutorId)
		for _, attendee := range lesson.Attendees {
			studentIds = append(studentIds, attendee.StudentId)
		}
	}

	var tutors []models.Tutor
	if err := tx.Where("id IN ?", utils.UniqueSlice(tutorIds)).Find(&tutors).Error; err != nil {
		return nil, nil, nil, err
	}
	tutorById := make(map[int]models.Tutor, len(tutors))
	for _, t := range tutors {
		tutorById[t.ID] = t
	}

	var students []models.Student
	if err := tx.Where("id IN ?", utils.UniqueSlice(studentIds)).Find(&students).Error; err != nil {
		return nil, nil, nil, err
	}
	studentById := make(map[int]models.Student, len(students))
	familyIds := make([]int, 0, len(students))
	for _, s := range students {
		studentById[s.ID] = s
		familyIds = append(familyIds, s.FamilyId)
	}

	var families []models.Family
	if err := tx.Where("id IN ?", utils.UniqueSlice(familyIds)).Find(&families).Error; err != nil {
		return nil, nil, nil, err
	}
	familyById := make(map[int]models.Family, len(families))
	for _, f := range families {
		familyById[f.ID] = f
	}

	return tutorById, studentById, familyById, nil
}
