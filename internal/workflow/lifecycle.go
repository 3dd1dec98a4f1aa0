// Package workflow holds the claim lifecycle: recording follow-up work,
// assignment and sharing, and due-date classification.
package workflow

import (
	"errors"
	"strings"
	"time"

	"github.com/rongwang/claims-tracker/internal/models"
)

// Follow-up scheduling rule: high-balance claims are revisited sooner.
const (
	HighBalanceThreshold    = 500.0
	HighBalanceFollowUpDays = 14
	StandardFollowUpDays    = 21
)

var (
	ErrRemarksRequired = errors.New("remarks are required")
	ErrStatusRequired  = errors.New("please select a status")
	ErrActionRequired  = errors.New("please select an action taken")
)

// Work describes one follow-up action recorded against a claim. A
// FollowUpDays of zero or less means the balance-dependent default.
type Work struct {
	Remarks      string
	Status       string
	ActionTaken  string
	FollowUpDays int
	DateWorked   time.Time
}

// Validate checks the required fields of a work entry
func (w Work) Validate() error {
	if strings.TrimSpace(w.Remarks) == "" {
		return ErrRemarksRequired
	}
	if strings.TrimSpace(w.Status) == "" {
		return ErrStatusRequired
	}
	if strings.TrimSpace(w.ActionTaken) == "" {
		return ErrActionRequired
	}
	return nil
}

// DefaultFollowUpDays returns the follow-up interval for a claim balance
func DefaultFollowUpDays(balance float64) int {
	if balance > HighBalanceThreshold {
		return HighBalanceFollowUpDays
	}
	return StandardFollowUpDays
}

// NextFollowUp returns dateWorked advanced by the given number of calendar days
func NextFollowUp(dateWorked time.Time, days int) time.Time {
	return dateWorked.AddDate(0, 0, days)
}

// RecordWork applies a work entry to the claim: it appends one history entry
// and overwrites the claim's current status, action, dates and last worker.
// The claim is left untouched when validation fails.
func RecordWork(c *models.Claim, w Work, by models.Actor) (models.HistoryEntry, error) {
	if err := w.Validate(); err != nil {
		return models.HistoryEntry{}, err
	}

	days := w.FollowUpDays
	if days <= 0 {
		days = DefaultFollowUpDays(c.Balance)
	}

	var next *time.Time
	if !models.IsPaidStatus(w.Status) {
		next = models.Ptr(NextFollowUp(w.DateWorked, days))
	}

	entry := models.HistoryEntry{
		ClaimID:      c.ID,
		Seq:          len(c.History) + 1,
		Remarks:      w.Remarks,
		Status:       w.Status,
		ActionTaken:  w.ActionTaken,
		DateWorked:   w.DateWorked,
		NextFollowUp: next,
		WorkedBy:     by.Name,
	}

	c.History = append(c.History, entry)
	c.Status = models.Ptr(w.Status)
	c.ActionTaken = models.Ptr(w.ActionTaken)
	c.DateWorked = models.Ptr(w.DateWorked)
	c.NextFollowUp = next
	c.LastWorkedBy = models.Ptr(by.ID)

	return entry, nil
}

// NormalizeFollowUp clears the follow-up of a claim in a paid state
func NormalizeFollowUp(c *models.Claim) {
	if c.IsPaid() {
		c.NextFollowUp = nil
	}
}

// Assign gives the claim to one agent (nil unassigns) and revokes every share
func Assign(c *models.Claim, agentID *string) {
	if agentID != nil && strings.TrimSpace(*agentID) == "" {
		agentID = nil
	}
	c.AssignedTo = agentID
	c.SharedWith = []string{}
}

// Share replaces the claim's collaborators. Duplicates, blanks and the owner
// are dropped; the order of first appearance is kept.
func Share(c *models.Claim, agentIDs []string) {
	seen := make(map[string]bool, len(agentIDs))
	shared := make([]string, 0, len(agentIDs))
	for _, id := range agentIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] || c.IsOwnedBy(id) {
			continue
		}
		seen[id] = true
		shared = append(shared, id)
	}
	c.SharedWith = shared
}

// CanWork reports whether the actor may record work on or update the claim
func CanWork(a models.Actor, c *models.Claim) bool {
	return a.Can(models.CapWorkAnyClaim) || c.IsOwnedBy(a.ID) || c.IsSharedWith(a.ID)
}

// CanShare reports whether the actor may change the claim's collaborators
func CanShare(a models.Actor, c *models.Claim) bool {
	return a.Can(models.CapShareAnyClaim) || c.IsOwnedBy(a.ID)
}
