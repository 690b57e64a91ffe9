package main

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"bitbucket.org/thinkfish/tutoradmin_backend/config"
	"bitbucket.org/thinkfish/tutoradmin_backend/models"
	"bitbucket.org/thinkfish/tutoradmin_backend/models/reports"
	"bitbucket.org/thinkfish/tutoradmin_backend/utils"
	"bitbucket.org/thinkfish/tutoradmin_backend/workflow"
	"bitbucket.org/thinkfish/tutoradmin_backend/xerosync"
)

type generateWeekRequest struct {
	WeekStart string `json:"week_start" binding:"required"`
	WeekEnd   string `json:"week_end"`
}

type reviewRequest struct {
	RequestId string `json:"request_id" binding:"required"`
	Approved  *bool  `json:"approved" binding:"required"`
	// Optional; when absent the reviewer comes from the authenticated
	// identity (X-User-Name).
	ReviewedBy string `json:"reviewed_by"`
}

type exportPayrollRequest struct {
	WeekStart string `json:"week_start" binding:"required"`
	TutorIds  []int  `json:"tutor_ids"`
}

type exportInvoicesRequest struct {
	WeekStart  string   `json:"week_start" binding:"required"`
	InvoiceIds []string `json:"invoice_ids"`
}

type editInvoiceRequest struct {
	LineItems []models.InvoiceLineItem `json:"line_items" binding:"required"`
}

// respondEngineError maps the engine's error taxonomy onto HTTP statuses.
// Validation problems are the caller's fault; state problems are conflicts.
func respondEngineError(c *gin.Context, err error) {
	var validationErr *workflow.ValidationError
	var preconditionErr *workflow.PreconditionError
	var pendingErr *workflow.PendingRequestsError
	var transitionErr *workflow.StateTransitionError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Msg})
	case errors.As(err, &pendingErr):
		c.JSON(http.StatusConflict, gin.H{"error": pendingErr.Error(), "pending_count": pendingErr.Count})
	case errors.As(err, &preconditionErr):
		c.JSON(http.StatusConflict, gin.H{"error": preconditionErr.Msg})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Msg})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func respondBindingError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

// parseGenerateWeek validates a generation request: week_start must name a
// Saturday, and if the caller supplies week_end it must be the matching
// Friday. Fail closed on anything else.
func parseGenerateWeek(req generateWeekRequest) (time.Time, error) {
	weekStart, err := utils.ParseWeekKey(req.WeekStart)
	if err != nil {
		return time.Time{}, workflow.NewValidationError("invalid week_start: %v", err)
	}
	if req.WeekEnd != "" {
		expected := weekStart.AddDate(0, 0, 6).Format(utils.WeekKeyLayout)
		if req.WeekEnd != expected {
			return time.Time{}, workflow.NewValidationError("week_end %s does not match week starting %s (expected %s)", req.WeekEnd, req.WeekStart, expected)
		}
	}
	return weekStart, nil
}

func generatePayrollHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateWeekRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}
		weekStart, err := parseGenerateWeek(req)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		if err := workflow.GenerateWeeklyPayroll(c.Request.Context(), weekStart); err != nil {
			respondEngineError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func generateInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateWeekRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}
		weekStart, err := parseGenerateWeek(req)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		if err := workflow.GenerateWeeklyInvoices(c.Request.Context(), weekStart); err != nil {
			respondEngineError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func submitAdditionalHoursHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.NewAdditionalHoursRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		request, err := workflow.SubmitAdditionalHoursRequest(c.Request.Context(), input)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		c.JSON(http.StatusCreated, request)
	}
}

func pendingRequestsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		weekStart := c.Query("week_start")
		if _, err := utils.ParseWeekKey(weekStart); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid week_start: " + err.Error()})
			return
		}
		requests, err := models.GetPendingRequests(c.Request.Context(), weekStart)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": requests})
	}
}

func reviewAdditionalHoursHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}
		reviewedBy := req.ReviewedBy
		if reviewedBy == "" {
			if userName, ok := utils.GetUserNameFromContext(c.Request.Context()); ok {
				reviewedBy = userName
			}
		}
		if err := workflow.ReviewAdditionalHoursRequest(c.Request.Context(), req.RequestId, *req.Approved, reviewedBy); err != nil {
			respondEngineError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func exportPayrollHandler(exporter *xerosync.Exporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if exporter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "xero export is not configured"})
			return
		}
		var req exportPayrollRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}
		result, err := exporter.ExportPayroll(c.Request.Context(), req.WeekStart, req.TutorIds)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func exportInvoicesHandler(exporter *xerosync.Exporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if exporter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "xero export is not configured"})
			return
		}
		var req exportInvoicesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}
		result, err := exporter.ExportInvoices(c.Request.Context(), req.WeekStart, req.InvoiceIds)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getPayrollHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		weekKey := c.Param("weekKey")
		if _, err := utils.ParseWeekKey(weekKey); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid week key: " + err.Error()})
			return
		}
		meta, err := models.GetPayrollMeta(c.Request.Context(), weekKey)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		items, err := models.GetPayrollItems(c.Request.Context(), weekKey)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"meta": meta, "items": items})
	}
}

func getInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		weekKey := c.Param("weekKey")
		if _, err := utils.ParseWeekKey(weekKey); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid week key: " + err.Error()})
			return
		}
		meta, err := models.GetInvoiceMeta(c.Request.Context(), weekKey)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		invoices, err := models.GetInvoicesForWeek(c.Request.Context(), weekKey)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"meta": meta, "invoices": invoices})
	}
}

func editInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invoiceId := c.Param("id")
		var req editInvoiceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}
		if err := workflow.EditInvoice(c.Request.Context(), invoiceId, req.LineItems); err != nil {
			respondEngineError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func payrollWorkbookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		weekKey := c.Param("weekKey")
		if _, err := utils.ParseWeekKey(weekKey); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid week key: " + err.Error()})
			return
		}
		items, err := models.GetPayrollItems(c.Request.Context(), weekKey)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		f, err := reports.BuildPayrollWorkbook(weekKey, items)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=payroll-"+weekKey+".xlsx")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "payrollWorkbookHandler", "write workbook", weekKey, err)
		}
	}
}

func invoiceWorkbookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		weekKey := c.Param("weekKey")
		if _, err := utils.ParseWeekKey(weekKey); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid week key: " + err.Error()})
			return
		}
		invoices, err := models.GetInvoicesForWeek(c.Request.Context(), weekKey)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		f, err := reports.BuildInvoiceWorkbook(weekKey, invoices)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=invoices-"+weekKey+".xlsx")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "invoiceWorkbookHandler", "write workbook", weekKey, err)
		}
	}
}

// weekHoursPreviewHandler aggregates a week's lessons live, before anything
// is generated. Nothing here is authoritative until generation freezes it.
func weekHoursPreviewHandler() gin.HandlerFunc {
	type tutorPreview struct {
		TutorId         int             `json:"tutor_id"`
		TutorName       string          `json:"tutor_name"`
		LessonHours     decimal.Decimal `json:"lesson_hours"`
		LessonCount     int             `json:"lesson_count"`
		AdditionalHours decimal.Decimal `json:"additional_hours"`
		TotalHours      decimal.Decimal `json:"total_hours"`
	}
	return func(c *gin.Context) {
		weekKey := c.Param("weekKey")
		weekStart, err := utils.ParseWeekKey(weekKey)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid week key: " + err.Error()})
			return
		}
		lessons, err := workflow.LessonsForWeek(c.Request.Context(), weekStart)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		tutors, _, _, err := workflow.DirectoryForLessons(c.Request.Context(), lessons)
		if err != nil {
			respondEngineError(c, err)
			return
		}

		byTutor := workflow.HoursByTutor(lessons)
		tutorIds := make([]int, 0, len(byTutor))
		for tutorId := range byTutor {
			tutorIds = append(tutorIds, tutorId)
		}
		sort.Ints(tutorIds)

		previews := make([]tutorPreview, 0, len(tutorIds))
		for _, tutorId := range tutorIds {
			agg := byTutor[tutorId]
			approved, err := models.GetApprovedRequests(c.Request.Context(), weekKey, tutorId)
			if err != nil {
				respondEngineError(c, err)
				return
			}
			additional := decimal.Zero
			for _, request := range approved {
				additional = additional.Add(request.Hours)
			}
			previews = append(previews, tutorPreview{
				TutorId:         tutorId,
				TutorName:       tutors[tutorId].Name,
				LessonHours:     agg.LessonHours,
				LessonCount:     agg.LessonCount,
				AdditionalHours: additional,
				TotalHours:      agg.LessonHours.Add(additional),
			})
		}
		c.JSON(http.StatusOK, gin.H{"week_start": weekKey, "tutors": previews})
	}
}

func currentWeekHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		at := time.Now()
		if v := c.Query("at"); v != "" {
			parsed, err := time.ParseInLocation(utils.WeekKeyLayout, v, time.Local)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date: " + err.Error()})
				return
			}
			at = parsed
		}
		start, end := utils.WeekRangeFor(at)
		c.JSON(http.StatusOK, gin.H{
			"week_start": start.Format(utils.WeekKeyLayout),
			"week_end":   end.Format(utils.WeekKeyLayout),
			"prev":       utils.PrevWeek(start).Format(utils.WeekKeyLayout),
			"next":       utils.NextWeek(start).Format(utils.WeekKeyLayout),
		})
	}
}
