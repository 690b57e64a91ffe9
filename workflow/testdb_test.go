package workflow

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"bitbucket.org/thinkfish/tutoradmin_backend/models"
)

// newTestDB opens an isolated in-memory database, runs the migrations and
// installs it as the package-wide connection for the duration of the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	prev := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() { config.SetDB(prev) })
	models.MigrateTable()
	return db
}

// testWeek is a completed week safely in the past: Saturday 2024-03-02
// through Friday 2024-03-08.
var testWeek = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

const testWeekKey = "2024-03-02"

func seedTutor(t *testing.T, db *gorm.DB, id int, name string, payRate int64) models.Tutor {
	t.Helper()
	active := true
	tutor := models.Tutor{ID: id, Name: name, Email: name + "@example.com", PayRate: decimal.NewFromInt(payRate), IsActive: &active}
	if err := db.Create(&tutor).Error; err != nil {
		t.Fatalf("failed to seed tutor: %v", err)
	}
	return tutor
}

func seedFamily(t *testing.T, db *gorm.DB, id int, name string) models.Family {
	t.Helper()
	family := models.Family{ID: id, FamilyName: name, ParentEmail: name + "@example.com"}
	if err := db.Create(&family).Error; err != nil {
		t.Fatalf("failed to seed family: %v", err)
	}
	return family
}

func seedStudent(t *testing.T, db *gorm.DB, id int, familyId int, name string, billRate int64) models.Student {
	t.Helper()
	student := models.Student{ID: id, FamilyId: familyId, Name: name, BillRate: decimal.NewFromInt(billRate)}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("failed to seed student: %v", err)
	}
	return student
}

func seedLesson(t *testing.T, db *gorm.DB, id int, tutorId int, start time.Time, minutes int, lessonType models.LessonType, studentIds ...int) models.Lesson {
	t.Helper()
	lesson := models.Lesson{
		ID:        id,
		TutorId:   tutorId,
		Subject:   "Maths",
		Type:      lessonType,
		StartTime: start,
		EndTime:   start.Add(time.Duration(minutes) * time.Minute),
	}
	for _, studentId := range studentIds {
		lesson.Attendees = append(lesson.Attendees, models.LessonAttendee{StudentId: studentId})
	}
	if err := db.Create(&lesson).Error; err != nil {
		t.Fatalf("failed to seed lesson: %v", err)
	}
	return lesson
}

func seedApprovedRequest(t *testing.T, db *gorm.DB, tutorId int, weekKey string, hours int64) models.AdditionalHoursRequest {
	t.Helper()
	now := time.Now()
	request := models.AdditionalHoursRequest{
		ID:          uuid.NewString(),
		TutorId:     tutorId,
		WeekStart:   weekKey,
		Hours:       decimal.NewFromInt(hours),
		Description: "extra marking",
		Notes:       "approved in test setup",
		Status:      models.RequestStatusApproved,
		ReviewedAt:  &now,
		ReviewedBy:  "admin",
	}
	if err := db.Create(&request).Error; err != nil {
		t.Fatalf("failed to seed approved request: %v", err)
	}
	return request
}
