package models

import (
	"context"
	"time"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"github.com/shopspring/decimal"
)

// Lesson is owned by the scheduling subsystem. The reconciliation engine only
// reads it; nothing here may mutate a lesson.
type Lesson struct {
	ID        int              `gorm:"primary_key" json:"id"`
	TutorId   int              `gorm:"index;not null" json:"tutor_id" binding:"required"`
	Subject   string           `gorm:"size:255" json:"subject"`
	Location  string           `gorm:"size:255" json:"location"`
	StartTime time.Time        `gorm:"index;not null" json:"start_time" binding:"required"`
	EndTime   time.Time        `gorm:"not null" json:"end_time" binding:"required"`
	Type      LessonType       `gorm:"size:20;not null;default:Normal" json:"type"`
	Attendees []LessonAttendee `gorm:"foreignKey:LessonId" json:"attendees"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type LessonAttendee struct {
	ID        int       `gorm:"primary_key" json:"id"`
	LessonId  int       `gorm:"index;not null" json:"lesson_id" binding:"required"`
	StudentId int       `gorm:"index;not null" json:"student_id" binding:"required"`
	Attended  *bool     `gorm:"default:null" json:"attended"`
	Report    string    `gorm:"type:text" json:"report"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Lesson) GetId() int {
	return obj.ID
}

// DurationHours returns end - start in fractional hours, rounded to 4 decimal
// places. Non-positive durations return zero so malformed records are skipped
// rather than producing negative pay.
func (l Lesson) DurationHours() decimal.Decimal {
	mins := l.EndTime.Sub(l.StartTime).Minutes()
	if mins <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(mins).Div(decimal.NewFromInt(60)).Round(4)
}

// GetLessonsBetween returns lessons whose start time falls inside the closed
// interval [start, end]. A lesson spanning the boundary belongs to the week
// containing its start, never split.
func GetLessonsBetween(ctx context.Context, start time.Time, end time.Time) ([]Lesson, error) {
	db := config.GetDB()
	var lessons []Lesson
	err := db.WithContext(ctx).
		Preload("Attendees").
		Where("start_time >= ? AND start_time <= ?", start, end).
		Order("start_time ASC").
		Find(&lessons).Error
	if err != nil {
		return nil, err
	}
	return lessons, nil
}
