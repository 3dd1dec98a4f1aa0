package workflow

import (
	"time"

	"github.com/rongwang/claims-tracker/internal/models"
)

// DueClass buckets a claim by how overdue its follow-up is
type DueClass string

const (
	DueNone    DueClass = ""
	DueToday   DueClass = "due-today"
	DueWarning DueClass = "due-warning"
	DueDanger  DueClass = "due-danger"
)

// Classify buckets a follow-up date against now using calendar days in loc.
// Time of day is ignored. Paid claims and claims without a follow-up are
// never due; follow-ups in the future are not due yet.
func Classify(next *time.Time, status *string, now time.Time, loc *time.Location) DueClass {
	if next == nil || models.IsPaid(status) {
		return DueNone
	}

	overdue := DaysBetween(*next, now, loc)
	switch {
	case overdue == 0:
		return DueToday
	case overdue >= 1 && overdue < 3:
		return DueWarning
	case overdue >= 3:
		return DueDanger
	}
	return DueNone
}

// IsOverdue reports whether an unpaid claim's follow-up is before today
func IsOverdue(c *models.Claim, now time.Time, loc *time.Location) bool {
	if c.NextFollowUp == nil || c.IsPaid() {
		return false
	}
	return DaysBetween(*c.NextFollowUp, now, loc) > 0
}
