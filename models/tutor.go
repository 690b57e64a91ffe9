package models

import (
	"context"
	"time"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"github.com/shopspring/decimal"
)

type Tutor struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Email     string          `gorm:"size:255" json:"email"`
	PayRate   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pay_rate"`
	IsActive  *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Tutor) GetId() int {
	return obj.ID
}

func GetTutorsByIds(ctx context.Context, ids []int) (map[int]Tutor, error) {
	db := config.GetDB()
	var tutors []Tutor
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&tutors).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]Tutor, len(tutors))
	for _, t := range tutors {
		byId[t.ID] = t
	}
	return byId, nil
}
