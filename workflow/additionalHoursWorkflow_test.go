package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/thinkfish/tutoradmin_backend/models"
	"bitbucket.org/thinkfish/tutoradmin_backend/utils"
)

func validRequestInput(tutorId int) NewAdditionalHoursRequest {
	return NewAdditionalHoursRequest{
		TutorId:     tutorId,
		WeekStart:   testWeekKey,
		Hours:       decimal.NewFromFloat(1.5),
		Description: "exam prep session",
		Notes:       "ran over with two students",
	}
}

func TestSubmitAdditionalHoursRequest_Validation(t *testing.T) {
	db := newTestDB(t)
	seedTutor(t, db, 1, "Alice Wong", 45)
	ctx := context.Background()

	cases := []struct {
		name  string
		input NewAdditionalHoursRequest
	}{
		{"zero hours", func() NewAdditionalHoursRequest {
			in := validRequestInput(1)
			in.Hours = decimal.Zero
			return in
		}()},
		{"negative hours", func() NewAdditionalHoursRequest {
			in := validRequestInput(1)
			in.Hours = decimal.NewFromInt(-1)
			return in
		}()},
		{"blank description", func() NewAdditionalHoursRequest {
			in := validRequestInput(1)
			in.Description = "   "
			return in
		}()},
		{"blank notes", func() NewAdditionalHoursRequest {
			in := validRequestInput(1)
			in.Notes = ""
			return in
		}()},
		{"non-saturday week", func() NewAdditionalHoursRequest {
			in := validRequestInput(1)
			in.WeekStart = "2024-03-04"
			return in
		}()},
		{"unknown tutor", validRequestInput(99)},
	}
	for _, tc := range cases {
		_, err := SubmitAdditionalHoursRequest(ctx, tc.input)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}
}

func TestSubmitAdditionalHoursRequest_CreatesPending(t *testing.T) {
	db := newTestDB(t)
	seedTutor(t, db, 1, "Alice Wong", 45)
	ctx := context.Background()

	request, err := SubmitAdditionalHoursRequest(ctx, validRequestInput(1))
	if err != nil {
		t.Fatalf("SubmitAdditionalHoursRequest failed: %v", err)
	}
	if request.Status != models.RequestStatusPending {
		t.Errorf("status = %s, want pending", request.Status)
	}
	if request.ID == "" {
		t.Error("expected an id to be assigned")
	}

	pending, err := models.GetPendingRequests(ctx, testWeekKey)
	if err != nil {
		t.Fatalf("GetPendingRequests failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(pending))
	}
}

func TestSubmitAdditionalHoursRequest_OnePendingPerTutorWeek(t *testing.T) {
	db := newTestDB(t)
	seedTutor(t, db, 1, "Alice Wong", 45)
	ctx := context.Background()

	if _, err := SubmitAdditionalHoursRequest(ctx, validRequestInput(1)); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	_, err := SubmitAdditionalHoursRequest(ctx, validRequestInput(1))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for duplicate pending request, got %v", err)
	}

	// A different week is fine.
	other := validRequestInput(1)
	other.WeekStart = utils.WeekKeyFor(utils.NextWeek(testWeek))
	if _, err := SubmitAdditionalHoursRequest(ctx, other); err != nil {
		t.Errorf("submission for another week failed: %v", err)
	}
}

func TestSubmitAdditionalHoursRequest_AllowedAfterResolution(t *testing.T) {
	db := newTestDB(t)
	seedTutor(t, db, 1, "Alice Wong", 45)
	ctx := context.Background()

	first, err := SubmitAdditionalHoursRequest(ctx, validRequestInput(1))
	if err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if err := ReviewAdditionalHoursRequest(ctx, first.ID, false, "admin"); err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if _, err := SubmitAdditionalHoursRequest(ctx, validRequestInput(1)); err != nil {
		t.Errorf("submission after decline failed: %v", err)
	}
}

func TestReviewAdditionalHoursRequest_Terminal(t *testing.T) {
	db := newTestDB(t)
	seedTutor(t, db, 1, "Alice Wong", 45)
	ctx := context.Background()

	request, err := SubmitAdditionalHoursRequest(ctx, validRequestInput(1))
	if err != nil {
		t.Fatalf("submission failed: %v", err)
	}
	if err := ReviewAdditionalHoursRequest(ctx, request.ID, true, "admin"); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	// Re-reviewing in either direction is a state transition violation.
	for _, approve := range []bool{true, false} {
		err := ReviewAdditionalHoursRequest(ctx, request.ID, approve, "admin")
		var sErr *StateTransitionError
		if !errors.As(err, &sErr) {
			t.Errorf("approve=%v: expected StateTransitionError, got %v", approve, err)
		}
	}

	var stored models.AdditionalHoursRequest
	if err := db.Where("id = ?", request.ID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to reload request: %v", err)
	}
	if stored.Status != models.RequestStatusApproved {
		t.Errorf("status = %s, want approved", stored.Status)
	}
	if stored.OpenMarker != nil {
		t.Error("open marker should be cleared on resolution")
	}
	if stored.ReviewedAt == nil || stored.ReviewedBy != "admin" {
		t.Errorf("review audit fields not set: %+v", stored)
	}
}

func TestReviewAdditionalHoursRequest_NotFound(t *testing.T) {
	newTestDB(t)
	err := ReviewAdditionalHoursRequest(context.Background(), "no-such-id", true, "admin")
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound, got %v", err)
	}
}

func TestReviewAdditionalHoursRequest_ApprovalFoldsIntoGeneratedPayroll(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTutor(t, db, 1, "Alice Wong", 45)
	seedLesson(t, db, 1, 1, testWeek.Add(10*time.Hour), 60, models.LessonTypeNormal)

	if err := GenerateWeeklyPayroll(ctx, testWeek); err != nil {
		t.Fatalf("GenerateWeeklyPayroll failed: %v", err)
	}

	request, err := SubmitAdditionalHoursRequest(ctx, validRequestInput(1))
	if err != nil {
		t.Fatalf("submission failed: %v", err)
	}
	if err := ReviewAdditionalHoursRequest(ctx, request.ID, true, "admin"); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	items, _ := models.GetPayrollItems(ctx, testWeekKey)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if !item.AdditionalHours.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("AdditionalHours = %s, want 1.5", item.AdditionalHours)
	}
	if !item.TotalHours.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("TotalHours = %s, want 2.5", item.TotalHours)
	}
	if !item.PayAmount.Equal(decimal.NewFromFloat(112.5)) {
		t.Errorf("PayAmount = %s, want 112.5", item.PayAmount)
	}
}

func TestReviewAdditionalHoursRequest_ApprovalCreatesItemForLessonlessTutor(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTutor(t, db, 1, "Alice Wong", 45)
	seedTutor(t, db, 2, "Ben Osei", 50)
	seedLesson(t, db, 1, 1, testWeek.Add(10*time.Hour), 60, models.LessonTypeNormal)

	if err := GenerateWeeklyPayroll(ctx, testWeek); err != nil {
		t.Fatalf("GenerateWeeklyPayroll failed: %v", err)
	}

	request, err := SubmitAdditionalHoursRequest(ctx, validRequestInput(2))
	if err != nil {
		t.Fatalf("submission failed: %v", err)
	}
	if err := ReviewAdditionalHoursRequest(ctx, request.ID, true, "admin"); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	items, _ := models.GetPayrollItems(ctx, testWeekKey)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	var ben models.PayrollItem
	for _, item := range items {
		if item.TutorId == 2 {
			ben = item
		}
	}
	if !ben.LessonHours.IsZero() || ben.LessonCount != 0 {
		t.Errorf("lessonless tutor should carry zero lesson hours, got %s/%d", ben.LessonHours, ben.LessonCount)
	}
	if !ben.TotalHours.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("TotalHours = %s, want 1.5", ben.TotalHours)
	}
	if !ben.PayAmount.Equal(decimal.NewFromFloat(75)) {
		t.Errorf("PayAmount = %s, want 75", ben.PayAmount)
	}
}

func TestReviewAdditionalHoursRequest_ApprovalRefusedWhenLocked(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTutor(t, db, 1, "Alice Wong", 45)

	request, err := SubmitAdditionalHoursRequest(ctx, validRequestInput(1))
	if err != nil {
		t.Fatalf("submission failed: %v", err)
	}

	locked := models.PayrollMeta{
		WeekStart: testWeekKey,
		Generated: utils.NewTrue(),
		Locked:    utils.NewTrue(),
	}
	if err := db.Create(&locked).Error; err != nil {
		t.Fatalf("failed to seed locked meta: %v", err)
	}

	err = ReviewAdditionalHoursRequest(ctx, request.ID, true, "admin")
	var pErr *PreconditionError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}

	// Declining a request never touches money and stays allowed.
	if err := ReviewAdditionalHoursRequest(ctx, request.ID, false, "admin"); err != nil {
		t.Errorf("decline after lock failed: %v", err)
	}
}
