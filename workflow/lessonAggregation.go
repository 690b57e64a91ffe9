package workflow

import (
	"context"
	"sort"
	"time"

	"bitbucket.org/thinkfish/tutoradmin_backend/models"
	"bitbucket.org/thinkfish/tutoradmin_backend/utils"
	"github.com/shopspring/decimal"
)

// TutorWeekHours is one tutor's aggregated lesson time for a week, carrying
// the contributing lessons for audit display.
type TutorWeekHours struct {
	TutorId     int
	LessonHours decimal.Decimal
	LessonCount int
	Lessons     []models.Lesson
}

// FamilyInvoiceDraft is the pre-persistence shape of one family's invoice:
// one line item per (lesson, attendee), priced at the student's bill rate.
type FamilyInvoiceDraft struct {
	FamilyId    int
	FamilyName  string
	ParentEmail string
	Total       decimal.Decimal
	LineItems   []models.InvoiceLineItem
}

// LessonsForWeek fetches the lessons attributed to the week starting at
// weekStart (attribution by lesson start time; boundary-spanning lessons are
// never split).
func LessonsForWeek(ctx context.Context, weekStart time.Time) ([]models.Lesson, error) {
	return models.GetLessonsBetween(ctx, weekStart, utils.WeekEndFor(weekStart))
}

// HoursByTutor reduces lessons to per-tutor duration totals. Cancelled lessons
// never contribute. Lessons without a resolvable tutor or duration are
// skipped, not errored: this output is audit data, not authoritative
// accounting until generation freezes it.
func HoursByTutor(lessons []models.Lesson) map[int]*TutorWeekHours {
	byTutor := make(map[int]*TutorWeekHours)
	for _, lesson := range lessons {
		if lesson.Type == models.LessonTypeCancelled {
			continue
		}
		if lesson.TutorId == 0 {
			continue
		}
		hours := lesson.DurationHours()
		if hours.IsZero() {
			continue
		}
		agg := byTutor[lesson.TutorId]
		if agg == nil {
			agg = &TutorWeekHours{TutorId: lesson.TutorId}
			byTutor[lesson.TutorId] = agg
		}
		agg.LessonHours = agg.LessonHours.Add(hours)
		agg.LessonCount++
		agg.Lessons = append(agg.Lessons, lesson)
	}
	return byTutor
}

// BuildFamilyDrafts turns lessons into per-family invoice drafts. One line
// item per (lesson, attendee); price = duration x the student's bill rate.
// Attendees whose student or family cannot be resolved are skipped.
func BuildFamilyDrafts(
	lessons []models.Lesson,
	tutors map[int]models.Tutor,
	students map[int]models.Student,
	families map[int]models.Family,
) []*FamilyInvoiceDraft {
	byFamily := make(map[int]*FamilyInvoiceDraft)
	for _, lesson := range lessons {
		if lesson.Type == models.LessonTypeCancelled {
			continue
		}
		hours := lesson.DurationHours()
		if hours.IsZero() {
			continue
		}
		tutorName := ""
		if tutor, ok := tutors[lesson.TutorId]; ok {
			tutorName = tutor.Name
		}
		for _, attendee := range lesson.Attendees {
			student, ok := students[attendee.StudentId]
			if !ok {
				continue
			}
			family, ok := families[student.FamilyId]
			if !ok {
				continue
			}
			draft := byFamily[family.ID]
			if draft == nil {
				draft = &FamilyInvoiceDraft{
					FamilyId:    family.ID,
					FamilyName:  family.FamilyName,
					ParentEmail: family.ParentEmail,
				}
				byFamily[family.ID] = draft
			}
			price := hours.Mul(student.BillRate).Round(4)
			draft.LineItems = append(draft.LineItems, models.InvoiceLineItem{
				StudentName:   student.Name,
				TutorName:     tutorName,
				LessonDate:    lesson.StartTime,
				DurationHours: hours,
				Subject:       lesson.Subject,
				Price:         price,
			})
			draft.Total = draft.Total.Add(price)
		}
	}

	drafts := make([]*FamilyInvoiceDraft, 0, len(byFamily))
	for _, draft := range byFamily {
		drafts = append(drafts, draft)
	}
	sort.Slice(drafts, func(i, j int) bool { return drafts[i].FamilyId < drafts[j].FamilyId })
	return drafts
}

// DirectoryForLessons loads the tutor/student/family lookup maps needed to
// price and label a week's lessons.
func DirectoryForLessons(ctx context.Context, lessons []models.Lesson) (map[int]models.Tutor, map[int]models.Student, map[int]models.Family, error) {
	tutorIds := make([]int, 0, len(lessons))
	studentIds := make([]int, 0)
	for _, lesson := range lessons {
		tutorIds = append(tutorIds, lesson.TutorId)
		for _, attendee := range lesson.Attendees {
			studentIds = append(studentIds, attendee.StudentId)
		}
	}

	tutors, err := models.GetTutorsByIds(ctx, utils.UniqueSlice(tutorIds))
	if err != nil {
		return nil, nil, nil, err
	}
	students, err := models.GetStudentsByIds(ctx, utils.UniqueSlice(studentIds))
	if err != nil {
		return nil, nil, nil, err
	}
	familyIds := make([]int, 0, len(students))
	for _, student := range students {
		familyIds = append(familyIds, student.FamilyId)
	}
	families, err := models.GetFamiliesByIds(ctx, utils.UniqueSlice(familyIds))
	if err != nil {
		return nil, nil, nil, err
	}
	return tutors, students, families, nil
}
