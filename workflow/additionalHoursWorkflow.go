package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"bitbucket.org/thinkfish/tutoradmin_backend/models"
	"bitbucket.org/thinkfish/tutoradmin_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type NewAdditionalHoursRequest struct {
	TutorId     int             `json:"tutor_id" binding:"required"`
	WeekStart   string          `json:"week_start" binding:"required"`
	Hours       decimal.Decimal `json:"hours" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Notes       string          `json:"notes" binding:"required"`
}

// SubmitAdditionalHoursRequest records a tutor's correction request for a
// week. Requests are always created pending; a tutor may have at most one
// pending request per week.
func SubmitAdditionalHoursRequest(ctx context.Context, input NewAdditionalHoursRequest) (*models.AdditionalHoursRequest, error) {
	if !input.Hours.IsPositive() {
		return nil, NewValidationError("hours must be greater than zero")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, NewValidationError("description is required")
	}
	if strings.TrimSpace(input.Notes) == "" {
		return nil, NewValidationError("notes are required")
	}
	if _, err := utils.ParseWeekKey(input.WeekStart); err != nil {
		return nil, NewValidationError("invalid week: %v", err)
	}

	db := config.GetDB().WithContext(ctx)

	var tutorCount int64
	if err := db.Model(&models.Tutor{}).Where("id = ?", input.TutorId).Count(&tutorCount).Error; err != nil {
		return nil, err
	}
	if tutorCount == 0 {
		return nil, NewValidationError("tutor %d not found", input.TutorId)
	}

	marker := "P"
	request := models.AdditionalHoursRequest{
		ID:          uuid.NewString(),
		TutorId:     input.TutorId,
		WeekStart:   input.WeekStart,
		Hours:       input.Hours.Round(4),
		Description: strings.TrimSpace(input.Description),
		Notes:       strings.TrimSpace(input.Notes),
		Status:      models.RequestStatusPending,
		OpenMarker:  &marker,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var pendingCount int64
		if err := tx.Model(&models.AdditionalHoursRequest{}).
			Where("tutor_id = ? AND week_start = ? AND status = ?",
				input.TutorId, input.WeekStart, models.RequestStatusPending).
			Count(&pendingCount).Error; err != nil {
			return err
		}
		if pendingCount > 0 {
			return NewValidationError("tutor %d already has a pending request for week %s", input.TutorId, input.WeekStart)
		}
		if err := tx.Create(&request).Error; err != nil {
			// Unique index over (tutor_id, week_start, open_marker) backstops
			// the count check against concurrent submissions.
			if isDuplicateKeyErr(err) {
				return NewValidationError("tutor %d already has a pending request for week %s", input.TutorId, input.WeekStart)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// ReviewAdditionalHoursRequest transitions a pending request to approved or
// declined. The transition is terminal and idempotent-guarded: reviewing a
// resolved request fails with a StateTransitionError instead of silently
// succeeding. On approval, if the week's payroll is already generated the
// hours are folded into the tutor's PayrollItem in the same transaction; if
// payroll is still pending generation the fold happens at generation time.
func ReviewAdditionalHoursRequest(ctx context.Context, requestId string, approved bool, reviewedBy string) error {
	if strings.TrimSpace(reviewedBy) == "" {
		return NewValidationError("reviewedBy is required")
	}

	db := config.GetDB().WithContext(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		var request models.AdditionalHoursRequest
		if err := tx.Where("id = ?", requestId).Take(&request).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if request.IsResolved() {
			return NewStateTransitionError("request %s is already %s", requestId, request.Status)
		}

		status := models.RequestStatusDeclined
		if approved {
			status = models.RequestStatusApproved
		}

		// Approving hours after export would change amounts money already
		// moved on. Refuse; the week is closed.
		if approved {
			meta, err := payrollMetaTx(tx, request.WeekStart)
			if err != nil {
				return err
			}
			if meta != nil && meta.Locked != nil && *meta.Locked {
				return NewPreconditionError("payroll for week %s is locked; the request can no longer be approved", request.WeekStart)
			}
		}

		now := time.Now()
		result := tx.Model(&models.AdditionalHoursRequest{}).
			Where("id = ? AND status = ?", requestId, models.RequestStatusPending).
			Updates(map[string]interface{}{
				"status":      status,
				"open_marker": nil,
				"reviewed_at": now,
				"reviewed_by": reviewedBy,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NewStateTransitionError("request %s is already resolved", requestId)
		}

		if !approved {
			return nil
		}

		meta, err := payrollMetaTx(tx, request.WeekStart)
		if err != nil {
			return err
		}
		if meta == nil || meta.Generated == nil || !*meta.Generated {
			// Payroll not generated yet; generation will pick the approval up.
			return nil
		}

		request.Status = models.RequestStatusApproved
		request.ReviewedAt = &now
		request.ReviewedBy = reviewedBy
		return foldApprovedRequest(tx, request)
	})
}

// foldApprovedRequest adds an approved request's hours to the tutor's payroll
// item for the week, recomputing total hours and pay. A tutor who had no
// lessons that week gets an item carrying only the additional hours.
func foldApprovedRequest(tx *gorm.DB, request models.AdditionalHoursRequest) error {
	detail := models.AppliedRequestDetail{
		RequestId:   request.ID,
		Hours:       request.Hours,
		Description: request.Description,
		ReviewedBy:  request.ReviewedBy,
		ReviewedAt:  request.ReviewedAt,
	}

	var item models.PayrollItem
	err := tx.Where("week_start = ? AND tutor_id = ?", request.WeekStart, request.TutorId).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var tutor models.Tutor
		if err := tx.Where("id = ?", request.TutorId).Take(&tutor).Error; err != nil {
			return err
		}
		item = models.PayrollItem{
			WeekStart:       request.WeekStart,
			TutorId:         request.TutorId,
			TutorName:       tutor.Name,
			LessonHours:     decimal.Zero,
			LessonCount:     0,
			AdditionalHours: request.Hours,
			DetailsJSON:     models.EncodeAppliedRequestDetails([]models.AppliedRequestDetail{detail}),
			TotalHours:      request.Hours,
			PayRate:         tutor.PayRate,
			PayAmount:       request.Hours.Mul(tutor.PayRate).Round(4),
			ExportedToXero:  utils.NewFalse(),
		}
		return tx.Create(&item).Error
	}
	if err != nil {
		return err
	}

	details := models.DecodeAppliedRequestDetails(item.DetailsJSON)
	details = append(details, detail)
	additionalHours := item.AdditionalHours.Add(request.Hours)
	totalHours := item.LessonHours.Add(additionalHours)

	return tx.Model(&models.PayrollItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"additional_hours": additionalHours,
			"details_json":     models.EncodeAppliedRequestDetails(details),
			"total_hours":      totalHours,
			"pay_amount":       totalHours.Mul(item.PayRate).Round(4),
		}).Error
}

func payrollMetaTx(tx *gorm.DB, weekStart string) (*models.PayrollMeta, error) {
	var meta models.PayrollMeta
	err := tx.Where("week_start = ?", weekStart).Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}
