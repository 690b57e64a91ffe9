package models

import (
	"context"
	"time"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"github.com/shopspring/decimal"
)

type Family struct {
	ID          int       `gorm:"primary_key" json:"id"`
	FamilyName  string    `gorm:"size:255;not null" json:"family_name" binding:"required"`
	ParentEmail string    `gorm:"size:255" json:"parent_email"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Student struct {
	ID        int             `gorm:"primary_key" json:"id"`
	FamilyId  int             `gorm:"index;not null" json:"family_id" binding:"required"`
	Name      string          `gorm:"size:255;not null" json:"name" binding:"required"`
	BillRate  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bill_rate"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Family) GetId() int {
	return obj.ID
}

func (obj Student) GetId() int {
	return obj.ID
}

func GetStudentsByIds(ctx context.Context, ids []int) (map[int]Student, error) {
	db := config.GetDB()
	var students []Student
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&students).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]Student, len(students))
	for _, s := range students {
		byId[s.ID] = s
	}
	return byId, nil
}

func GetFamiliesByIds(ctx context.Context, ids []int) (map[int]Family, error) {
	db := config.GetDB()
	var families []Family
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&families).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]Family, len(families))
	for _, f := range families {
		byId[f.ID] = f
	}
	return byId, nil
}
