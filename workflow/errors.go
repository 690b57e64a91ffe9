package workflow

import (
	"errors"
	"fmt"
	"strings"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ValidationError reports malformed input. Rejected before any write.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// PreconditionError reports an operation attempted against a week in the
// wrong state (already generated, locked, not yet elapsed, not generated).
// Fatal to the single operation; no partial state is written.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

func NewPreconditionError(format string, args ...any) error {
	return &PreconditionError{Msg: fmt.Sprintf(format, args...)}
}

// PendingRequestsError reports an export attempted while additional-hours
// approvals are still outstanding for the week.
type PendingRequestsError struct {
	WeekStart string
	Count     int
}

func (e *PendingRequestsError) Error() string {
	return fmt.Sprintf("%d additional hours request(s) still pending for week %s", e.Count, e.WeekStart)
}

// StateTransitionError reports an attempt to re-resolve an already-resolved
// additional-hours request.
type StateTransitionError struct {
	Msg string
}

func (e *StateTransitionError) Error() string { return e.Msg }

func NewStateTransitionError(format string, args ...any) error {
	return &StateTransitionError{Msg: fmt.Sprintf(format, args...)}
}

func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	// sqlite (tests) reports constraint violations as plain strings.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
