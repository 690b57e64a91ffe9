package workflow

import (
	"context"
	"errors"
	"sort"
	"time"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"bitbucket.org/thinkfish/tutoradmin_backend/models"
	"bitbucket.org/thinkfish/tutoradmin_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GenerateWeeklyPayroll materializes the immutable payroll snapshot for the
// week starting at weekStart: one PayrollItem per tutor with lessons or
// approved additional-hours requests that week, with the approved requests
// folded into the item.
//
// Generation is deliberately not idempotent-by-overwrite. The PayrollMeta row
// is inserted inside the transaction with the week key as primary key, so two
// concurrent calls cannot both succeed: the loser hits the duplicate key and
// fails with a PreconditionError, it does not merge.
func GenerateWeeklyPayroll(ctx context.Context, weekStart time.Time) error {
	logger := config.GetLogger()

	if weekStart.Weekday() != time.Saturday {
		return NewValidationError("week start %s is not a Saturday", weekStart.Format(utils.WeekKeyLayout))
	}
	weekKey := utils.WeekKeyFor(weekStart)
	weekEnd := utils.WeekEndFor(weekStart)
	if time.Now().Before(weekEnd) {
		return NewPreconditionError("week %s has not ended yet; payroll can only be generated for a completed week", weekKey)
	}

	db := config.GetDB().WithContext(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		if err := AcquireWeekPostingLock(tx, "payroll", weekKey); err != nil {
			return err
		}
		defer ReleaseWeekPostingLock(tx, "payroll", weekKey)

		var existing models.PayrollMeta
		err := tx.Where("week_start = ?", weekKey).Take(&existing).Error
		if err == nil {
			if existing.Locked != nil && *existing.Locked {
				return NewPreconditionError("payroll for week %s is locked after export and cannot be regenerated", weekKey)
			}
			return NewPreconditionError("payroll for week %s has already been generated", weekKey)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// The meta insert is the check-and-set: the week-key primary key makes
		// the first writer win and every concurrent writer fail here.
		now := time.Now()
		meta := models.PayrollMeta{
			WeekStart:     weekKey,
			Generated:     utils.NewTrue(),
			Locked:        utils.NewFalse(),
			LastGenerated: &now,
		}
		if err := tx.Create(&meta).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return NewPreconditionError("payroll for week %s has already been generated", weekKey)
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

		byTutor := HoursByTutor(lessons)

		// Approved requests are folded by tutor. A tutor who taught nothing but
		// has approved additional hours still gets an item; approved hours must
		// never be dropped at generation.
		var allApproved []models.AdditionalHoursRequest
		if err := tx.Where("week_start = ? AND status = ?", weekKey, models.RequestStatusApproved).
			Order("created_at ASC").
			Find(&allApproved).Error; err != nil {
			return err
		}
		approvedByTutor := make(map[int][]models.AdditionalHoursRequest)
		for _, request := range allApproved {
			approvedByTutor[request.TutorId] = append(approvedByTutor[request.TutorId], request)
		}

		seen := make(map[int]bool, len(byTutor)+len(approvedByTutor))
		tutorIds := make([]int, 0, len(byTutor)+len(approvedByTutor))
		for tutorId := range byTutor {
			seen[tutorId] = true
			tutorIds = append(tutorIds, tutorId)
		}
		for tutorId := range approvedByTutor {
			if !seen[tutorId] {
				tutorIds = append(tutorIds, tutorId)
			}
		}
		sort.Ints(tutorIds)

		var tutors []models.Tutor
		if err := tx.Where("id IN ?", tutorIds).Find(&tutors).Error; err != nil {
			return err
		}
		tutorById := make(map[int]models.Tutor, len(tutors))
		for _, t := range tutors {
			tutorById[t.ID] = t
		}

		for _, tutorId := range tutorIds {
			tutor, ok := tutorById[tutorId]
			if !ok {
				// Lesson references a tutor no longer in the directory; skip
				// rather than fail the whole week.
				config.LogError(logger, "payrollWorkflow.go", "GenerateWeeklyPayroll", "tutor not found", tutorId, gorm.ErrRecordNotFound)
				continue
			}

			lessonHours := decimal.Zero
			lessonCount := 0
			if agg, ok := byTutor[tutorId]; ok {
				lessonHours = agg.LessonHours
				lessonCount = agg.LessonCount
			}

			approved := approvedByTutor[tutorId]
			additionalHours := decimal.Zero
			details := make([]models.AppliedRequestDetail, 0, len(approved))
			for _, request := range approved {
				additionalHours = additionalHours.Add(request.Hours)
				details = append(details, models.AppliedRequestDetail{
					RequestId:   request.ID,
					Hours:       request.Hours,
					Description: request.Description,
					ReviewedBy:  request.ReviewedBy,
					ReviewedAt:  request.ReviewedAt,
				})
			}

			totalHours := lessonHours.Add(additionalHours)
			item := models.PayrollItem{
				WeekStart:       weekKey,
				TutorId:         tutorId,
				TutorName:       tutor.Name,
				LessonHours:     lessonHours,
				LessonCount:     lessonCount,
				AdditionalHours: additionalHours,
				DetailsJSON:     models.EncodeAppliedRequestDetails(details),
				TotalHours:      totalHours,
				PayRate:         tutor.PayRate,
				PayAmount:       totalHours.Mul(tutor.PayRate).Round(4),
				ExportedToXero:  utils.NewFalse(),
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}

		return nil
	})
}
