// seed-dev populates a development database with a small tutoring roster:
// three tutors, two families with students, and a week of lessons ending on
// the most recent Friday, so payroll and invoice generation can be exercised
// immediately.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"bitbucket.org/thinkfish/tutoradmin_backend/models"
	"bitbucket.org/thinkfish/tutoradmin_backend/utils"
)

func main() {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	// Seed into the most recently completed week so generation preconditions pass.
	weekStart, _ := utils.WeekRangeFor(time.Now().UTC().AddDate(0, 0, -7))
	weekKey := utils.WeekKeyFor(weekStart)

	err := db.Transaction(func(tx *gorm.DB) error {
		tutors := []models.Tutor{
			{ID: 1, Name: "Alice Wong", Email: "alice@example.com", PayRate: decimal.NewFromInt(45), IsActive: utils.NewTrue()},
			{ID: 2, Name: "Ben Osei", Email: "ben@example.com", PayRate: decimal.NewFromInt(50), IsActive: utils.NewTrue()},
			{ID: 3, Name: "Carla Diaz", Email: "carla@example.com", PayRate: decimal.NewFromFloat(42.5), IsActive: utils.NewTrue()},
		}
		for i := range tutors {
			if err := tx.Where(models.Tutor{ID: tutors[i].ID}).Assign(tutors[i]).FirstOrCreate(&tutors[i]).Error; err != nil {
				return err
			}
		}

		families := []models.Family{
			{ID: 1, FamilyName: "Nguyen", ParentEmail: "nguyen@example.com"},
			{ID: 2, FamilyName: "Patel", ParentEmail: "patel@example.com"},
		}
		for i := range families {
			if err := tx.Where(models.Family{ID: families[i].ID}).Assign(families[i]).FirstOrCreate(&families[i]).Error; err != nil {
				return err
			}
		}

		students := []models.Student{
			{ID: 1, FamilyId: 1, Name: "Minh Nguyen", BillRate: decimal.NewFromInt(80)},
			{ID: 2, FamilyId: 1, Name: "Lan Nguyen", BillRate: decimal.NewFromInt(75)},
			{ID: 3, FamilyId: 2, Name: "Riya Patel", BillRate: decimal.NewFromInt(90)},
		}
		for i := range students {
			if err := tx.Where(models.Student{ID: students[i].ID}).Assign(students[i]).FirstOrCreate(&students[i]).Error; err != nil {
				return err
			}
		}

		type seedLesson struct {
			id        int
			tutorId   int
			studentId int
			dayOffset int
			hour      int
			minutes   int
			subject   string
			kind      models.LessonType
		}
		lessons := []seedLesson{
			{1, 1, 1, 0, 10, 60, "Maths", models.LessonTypeNormal},
			{2, 1, 2, 0, 11, 90, "Maths", models.LessonTypeNormal},
			{3, 2, 3, 2, 16, 60, "English", models.LessonTypeNormal},
			{4, 2, 1, 3, 17, 45, "Science", models.LessonTypeNormal},
			{5, 3, 3, 4, 9, 60, "Maths", models.LessonTypeTrial},
			{6, 1, 1, 5, 10, 60, "Maths", models.LessonTypeCancelled},
		}
		for _, l := range lessons {
			start := weekStart.AddDate(0, 0, l.dayOffset).Add(time.Duration(l.hour) * time.Hour)
			row := models.Lesson{
				ID:        l.id,
				TutorId:   l.tutorId,
				Subject:   l.subject,
				Type:      l.kind,
				StartTime: start,
				EndTime:   start.Add(time.Duration(l.minutes) * time.Minute),
			}
			if err := tx.Where(models.Lesson{ID: l.id}).Assign(row).FirstOrCreate(&row).Error; err != nil {
				return err
			}
			attendee := models.LessonAttendee{LessonId: l.id, StudentId: l.studentId}
			if err := tx.Where(models.LessonAttendee{LessonId: l.id, StudentId: l.studentId}).
				FirstOrCreate(&attendee).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeded tutors, families, students and lessons for week %s\n", weekKey)
}
