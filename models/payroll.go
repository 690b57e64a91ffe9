package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayrollMeta is the per-week control document for payroll generation.
// Generated flips once when the week's items are materialized; Locked flips
// once after every item has been exported to Xero. Locked is terminal: a
// locked week can never be regenerated.
type PayrollMeta struct {
	WeekStart     string     `gorm:"primary_key;size:10" json:"week_start"`
	Generated     *bool      `gorm:"not null;default:false" json:"generated"`
	Locked        *bool      `gorm:"not null;default:false" json:"locked"`
	LastGenerated *time.Time `json:"last_generated"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PayrollItem is one tutor's finalized hours record for a week. It is written
// in full by payroll generation (pre-lock only); after that the exporter may
// touch the export fields and nothing else.
type PayrollItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	WeekStart       string          `gorm:"size:10;not null;uniqueIndex:uniq_payroll_item,priority:1" json:"week_start"`
	TutorId         int             `gorm:"not null;uniqueIndex:uniq_payroll_item,priority:2" json:"tutor_id"`
	TutorName       string          `gorm:"size:255;not null" json:"tutor_name"`
	LessonHours     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"lesson_hours"`
	LessonCount     int             `gorm:"default:0" json:"lesson_count"`
	AdditionalHours decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"additional_hours"`
	DetailsJSON     []byte          `gorm:"type:json" json:"additional_hours_details"`
	TotalHours      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_hours"`
	PayRate         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pay_rate"`
	PayAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pay_amount"`
	ExportedToXero  *bool           `gorm:"not null;default:false" json:"exported_to_xero"`
	XeroExportError *string         `gorm:"type:text" json:"xero_export_error"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// AppliedRequestDetail is the audit record of one approved additional-hours
// request folded into a payroll item. Stored as a JSON list on the item.
type AppliedRequestDetail struct {
	RequestId   string          `json:"request_id"`
	Hours       decimal.Decimal `json:"hours"`
	Description string          `json:"description"`
	ReviewedBy  string          `json:"reviewed_by"`
	ReviewedAt  *time.Time      `json:"reviewed_at"`
}

func EncodeAppliedRequestDetails(details []AppliedRequestDetail) []byte {
	if len(details) == 0 {
		return []byte("[]")
	}
	b, err := json.Marshal(details)
	if err != nil {
		return []byte("[]")
	}
	return b
}

func DecodeAppliedRequestDetails(raw []byte) []AppliedRequestDetail {
	if len(raw) == 0 {
		return nil
	}
	var details []AppliedRequestDetail
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil
	}
	return details
}

func (obj PayrollItem) GetId() int {
	return obj.ID
}

// GetPayrollMeta returns the meta row for a week, or nil when the week has
// never been generated.
func GetPayrollMeta(ctx context.Context, weekStart string) (*PayrollMeta, error) {
	db := config.GetDB()
	var meta PayrollMeta
	err := db.WithContext(ctx).Where("week_start = ?", weekStart).Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func GetPayrollItems(ctx context.Context, weekStart string) ([]PayrollItem, error) {
	db := config.GetDB()
	var items []PayrollItem
	err := db.WithContext(ctx).
		Where("week_start = ?", weekStart).
		Order("tutor_name ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
