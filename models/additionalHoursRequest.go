package models

import (
	"context"
	"time"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"github.com/shopspring/decimal"
)

// AdditionalHoursRequest is a tutor-submitted correction to payable hours for
// a week. It is created pending and transitions exactly once, to approved or
// declined. Resolved requests are immutable; a tutor who needs more hours
// submits a new request.
//
// OpenMarker is "P" while the request is pending and NULL once resolved. The
// unique index over (tutor_id, week_start, open_marker) therefore allows at
// most one pending request per tutor per week while leaving resolved history
// unconstrained.
type AdditionalHoursRequest struct {
	ID          string          `gorm:"primary_key;size:36" json:"id"`
	TutorId     int             `gorm:"not null;uniqueIndex:uniq_open_request,priority:1" json:"tutor_id" binding:"required"`
	WeekStart   string          `gorm:"size:10;not null;index;uniqueIndex:uniq_open_request,priority:2" json:"week_start" binding:"required"`
	Hours       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"hours" binding:"required"`
	Description string          `gorm:"size:255;not null" json:"description" binding:"required"`
	Notes       string          `gorm:"type:text;not null" json:"notes" binding:"required"`
	Status      RequestStatus   `gorm:"size:20;not null;index" json:"status"`
	OpenMarker  *string         `gorm:"size:1;uniqueIndex:uniq_open_request,priority:3" json:"-"`
	ReviewedAt  *time.Time      `json:"reviewed_at"`
	ReviewedBy  string          `gorm:"size:255" json:"reviewed_by"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r AdditionalHoursRequest) IsResolved() bool {
	return r.Status != RequestStatusPending
}

// GetPendingRequests returns the pending requests for a week. A non-empty
// result gates both payroll export and unscoped regeneration workflows.
func GetPendingRequests(ctx context.Context, weekStart string) ([]AdditionalHoursRequest, error) {
	db := config.GetDB()
	var requests []AdditionalHoursRequest
	err := db.WithContext(ctx).
		Where("week_start = ? AND status = ?", weekStart, RequestStatusPending).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// GetApprovedRequests returns approved requests for (tutor, week), used when
// folding additional hours into a payroll item at generation time.
func GetApprovedRequests(ctx context.Context, weekStart string, tutorId int) ([]AdditionalHoursRequest, error) {
	db := config.GetDB()
	var requests []AdditionalHoursRequest
	err := db.WithContext(ctx).
		Where("week_start = ? AND tutor_id = ? AND status = ?", weekStart, tutorId, RequestStatusApproved).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}
