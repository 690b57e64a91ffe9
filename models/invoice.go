package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceMeta mirrors PayrollMeta for the invoice side of the week.
type InvoiceMeta struct {
	WeekStart     string     `gorm:"primary_key;size:10" json:"week_start"`
	Generated     *bool      `gorm:"not null;default:false" json:"generated"`
	Locked        *bool      `gorm:"not null;default:false" json:"locked"`
	LastGenerated *time.Time `json:"last_generated"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Invoice is one family's finalized billing record for a week.
// EditedSinceGeneration marks invoices an admin has touched by hand;
// regeneration must skip them rather than clobber the edit.
type Invoice struct {
	ID                    string            `gorm:"primary_key;size:36" json:"id"`
	WeekStart             string            `gorm:"size:10;not null;uniqueIndex:uniq_invoice_family,priority:1" json:"week_start"`
	FamilyId              int               `gorm:"not null;uniqueIndex:uniq_invoice_family,priority:2" json:"family_id"`
	FamilyName            string            `gorm:"size:255;not null" json:"family_name"`
	ParentEmail           string            `gorm:"size:255" json:"parent_email"`
	Total                 decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"total"`
	LineItems             []InvoiceLineItem `gorm:"foreignKey:InvoiceId" json:"line_items"`
	EditedSinceGeneration *bool             `gorm:"not null;default:false" json:"edited_since_generation"`
	ExportedToXero        *bool             `gorm:"not null;default:false" json:"exported_to_xero"`
	XeroExportError       *string           `gorm:"type:text" json:"xero_export_error"`
	CreatedAt             time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceLineItem struct {
	ID            int             `gorm:"primary_key" json:"id"`
	InvoiceId     string          `gorm:"size:36;index;not null" json:"invoice_id"`
	StudentName   string          `gorm:"size:255;not null" json:"student_name"`
	TutorName     string          `gorm:"size:255;not null" json:"tutor_name"`
	LessonDate    time.Time       `gorm:"not null" json:"lesson_date"`
	DurationHours decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"duration_hours"`
	Subject       string          `gorm:"size:255" json:"subject"`
	Price         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetInvoiceMeta returns the meta row for a week, or nil when the week has
// never been generated.
func GetInvoiceMeta(ctx context.Context, weekStart string) (*InvoiceMeta, error) {
	db := config.GetDB()
	var meta InvoiceMeta
	err := db.WithContext(ctx).Where("week_start = ?", weekStart).Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func GetInvoicesForWeek(ctx context.Context, weekStart string) ([]Invoice, error) {
	db := config.GetDB()
	var invoices []Invoice
	err := db.WithContext(ctx).
		Preload("LineItems").
		Where("week_start = ?", weekStart).
		Order("family_name ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func GetInvoiceById(ctx context.Context, id string) (*Invoice, error) {
	db := config.GetDB()
	var invoice Invoice
	err := db.WithContext(ctx).Preload("LineItems").Where("id = ?", id).Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
