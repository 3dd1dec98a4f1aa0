package models

import "time"

// ClaimBucket selects a reporting slice of the claim set
type ClaimBucket string

const (
	BucketAll     ClaimBucket = "all"
	BucketPending ClaimBucket = "pending"
	BucketPaid    ClaimBucket = "paid"
	BucketOverdue ClaimBucket = "overdue"
)

// ClaimQuery filters claims for reports and stats
type ClaimQuery struct {
	AssignedTo string
	Bucket     ClaimBucket
	WorkedFrom *time.Time
	WorkedTo   *time.Time
	// OverdueBefore is the start of the current business day; claims whose
	// follow-up falls before it are overdue.
	OverdueBefore time.Time
}

// Matches evaluates the query against a single claim in process.
func (q ClaimQuery) Matches(c *Claim) bool {
	if q.AssignedTo != "" && !c.IsOwnedBy(q.AssignedTo) {
		return false
	}

	switch q.Bucket {
	case BucketPending:
		if c.DateWorked != nil || c.IsPaid() {
			return false
		}
	case BucketPaid:
		if !c.IsPaid() {
			return false
		}
	case BucketOverdue:
		if c.NextFollowUp == nil || !c.NextFollowUp.Before(q.OverdueBefore) || c.IsPaid() {
			return false
		}
	}

	if q.WorkedFrom != nil && (c.DateWorked == nil || c.DateWorked.Before(*q.WorkedFrom)) {
		return false
	}
	if q.WorkedTo != nil && (c.DateWorked == nil || c.DateWorked.After(*q.WorkedTo)) {
		return false
	}
	return true
}
