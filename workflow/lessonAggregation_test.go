package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/thinkfish/tutoradmin_backend/models"
	"bitbucket.org/thinkfish/tutoradmin_backend/utils"
)

func lessonAt(tutorId int, dayOffset int, minutes int, lessonType models.LessonType, studentIds ...int) models.Lesson {
	start := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC).AddDate(0, 0, dayOffset)
	lesson := models.Lesson{
		TutorId:   tutorId,
		Subject:   "Maths",
		Type:      lessonType,
		StartTime: start,
		EndTime:   start.Add(time.Duration(minutes) * time.Minute),
	}
	for _, id := range studentIds {
		lesson.Attendees = append(lesson.Attendees, models.LessonAttendee{StudentId: id})
	}
	return lesson
}

func TestHoursByTutor_ExcludesCancelled(t *testing.T) {
	lessons := []models.Lesson{
		lessonAt(1, 0, 60, models.LessonTypeNormal),
		lessonAt(1, 1, 60, models.LessonTypeCancelled),
		lessonAt(1, 2, 60, models.LessonTypeTrial),
	}
	byTutor := HoursByTutor(lessons)
	agg := byTutor[1]
	if agg == nil {
		t.Fatal("expected aggregate for tutor 1")
	}
	if !agg.LessonHours.Equal(decimal.NewFromInt(2)) {
		t.Errorf("LessonHours = %s, want 2", agg.LessonHours)
	}
	if agg.LessonCount != 2 {
		t.Errorf("LessonCount = %d, want 2", agg.LessonCount)
	}
}

func TestHoursByTutor_FractionalHours(t *testing.T) {
	lessons := []models.Lesson{
		lessonAt(1, 0, 90, models.LessonTypeNormal),
		lessonAt(1, 1, 45, models.LessonTypeNormal),
	}
	agg := HoursByTutor(lessons)[1]
	if agg == nil {
		t.Fatal("expected aggregate for tutor 1")
	}
	if !agg.LessonHours.Equal(decimal.NewFromFloat(2.25)) {
		t.Errorf("LessonHours = %s, want 2.25", agg.LessonHours)
	}
}

func TestHoursByTutor_SkipsUnattributableLessons(t *testing.T) {
	lessons := []models.Lesson{
		lessonAt(0, 0, 60, models.LessonTypeNormal), // no tutor
		lessonAt(2, 1, 0, models.LessonTypeNormal),  // zero duration
	}
	byTutor := HoursByTutor(lessons)
	if len(byTutor) != 0 {
		t.Errorf("expected no aggregates, got %d", len(byTutor))
	}
}

func TestBuildFamilyDrafts_PricesPerAttendee(t *testing.T) {
	tutors := map[int]models.Tutor{1: {ID: 1, Name: "Alice Wong"}}
	students := map[int]models.Student{
		10: {ID: 10, FamilyId: 100, Name: "Minh", BillRate: decimal.NewFromInt(80)},
		11: {ID: 11, FamilyId: 100, Name: "Lan", BillRate: decimal.NewFromInt(60)},
		12: {ID: 12, FamilyId: 200, Name: "Riya", BillRate: decimal.NewFromInt(90)},
	}
	families := map[int]models.Family{
		100: {ID: 100, FamilyName: "Nguyen", ParentEmail: "nguyen@example.com"},
		200: {ID: 200, FamilyName: "Patel"},
	}
	lessons := []models.Lesson{
		lessonAt(1, 0, 90, models.LessonTypeNormal, 10, 11), // shared lesson, two line items
		lessonAt(1, 1, 60, models.LessonTypeNormal, 12),
		lessonAt(1, 2, 60, models.LessonTypeCancelled, 10), // never billed
	}

	drafts := BuildFamilyDrafts(lessons, tutors, students, families)
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	// Drafts come back ordered by family id.
	nguyen, patel := drafts[0], drafts[1]
	if nguyen.FamilyId != 100 || patel.FamilyId != 200 {
		t.Fatalf("drafts out of order: %d, %d", nguyen.FamilyId, patel.FamilyId)
	}
	if len(nguyen.LineItems) != 2 {
		t.Errorf("Nguyen line items = %d, want 2", len(nguyen.LineItems))
	}
	// 1.5h x 80 + 1.5h x 60 = 210
	if !nguyen.Total.Equal(decimal.NewFromInt(210)) {
		t.Errorf("Nguyen total = %s, want 210", nguyen.Total)
	}
	if !patel.Total.Equal(decimal.NewFromInt(90)) {
		t.Errorf("Patel total = %s, want 90", patel.Total)
	}
	if nguyen.LineItems[0].TutorName != "Alice Wong" {
		t.Errorf("TutorName = %q, want %q", nguyen.LineItems[0].TutorName, "Alice Wong")
	}
}

func TestBuildFamilyDrafts_SkipsUnresolvableAttendees(t *testing.T) {
	tutors := map[int]models.Tutor{1: {ID: 1, Name: "Alice Wong"}}
	students := map[int]models.Student{
		10: {ID: 10, FamilyId: 999, Name: "Orphan", BillRate: decimal.NewFromInt(80)},
	}
	families := map[int]models.Family{}
	lessons := []models.Lesson{
		lessonAt(1, 0, 60, models.LessonTypeNormal, 10), // family unresolvable
		lessonAt(1, 1, 60, models.LessonTypeNormal, 55), // student unresolvable
	}
	drafts := BuildFamilyDrafts(lessons, tutors, students, families)
	if len(drafts) != 0 {
		t.Errorf("expected no drafts, got %d", len(drafts))
	}
}

func TestLessonsForWeek_FridayBoundaryAttribution(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTutor(t, db, 1, "Alice Wong", 45)

	// Friday 2024-03-08 09:00-10:30 belongs to the week keyed 2024-03-02.
	friday := time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC)
	seedLesson(t, db, 1, 1, friday, 90, models.LessonTypeNormal)
	// Saturday 2024-03-09 starts the next week.
	seedLesson(t, db, 2, 1, friday.AddDate(0, 0, 1), 60, models.LessonTypeNormal)

	lessons, err := LessonsForWeek(ctx, testWeek)
	if err != nil {
		t.Fatalf("LessonsForWeek failed: %v", err)
	}
	if len(lessons) != 1 {
		t.Fatalf("expected 1 lesson in week %s, got %d", testWeekKey, len(lessons))
	}
	if !HoursByTutor(lessons)[1].LessonHours.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("friday lesson should contribute 1.5 hours to week %s", testWeekKey)
	}

	next, err := LessonsForWeek(ctx, utils.NextWeek(testWeek))
	if err != nil {
		t.Fatalf("LessonsForWeek failed: %v", err)
	}
	if len(next) != 1 || next[0].ID != 2 {
		t.Fatalf("expected only the saturday lesson in the following week, got %d", len(next))
	}
}
