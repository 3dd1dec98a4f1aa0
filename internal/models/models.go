package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// User represents an operator of the work queue
type User struct {
	OdooID            string    `db:"odoo_id" json:"odoo_id"`
	Name              string    `db:"name" json:"name"`
	Email             *string   `db:"email" json:"email"`
	Password          string    `db:"password" json:"-"` // Password hash, not returned in JSON
	Role              Role      `db:"role" json:"role"`
	Avatar            string    `db:"avatar" json:"avatar"`
	Color             string    `db:"color" json:"color"`
	IsDefaultPassword bool      `db:"is_default_password" json:"isDefaultPassword"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// Actor returns the identity used for permission checks and audit rows
func (u *User) Actor() Actor {
	return Actor{ID: u.OdooID, Name: u.Name, Role: u.Role}
}

// Actor is the authenticated caller of an operation
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Can reports whether the actor's role grants the capability
func (a Actor) Can(c Capability) bool {
	return a.Role.Can(c)
}

// Claim represents a billing record tracked through follow-up work until paid
type Claim struct {
	ID            string         `db:"id" json:"id"`
	ClaimNo       string         `db:"claim_no" json:"claimNo"`
	Patient       string         `db:"patient" json:"patient"`
	Balance       float64        `db:"balance" json:"balance"`
	DOS           *time.Time     `db:"dos" json:"dos"`
	VisitType     *string        `db:"visit_type" json:"visitType"`
	AcctNo        *string        `db:"acct_no" json:"acctNo"`
	PrimaryPayer  *string        `db:"primary_payer" json:"primaryPayer"`
	BilledCharges float64        `db:"billed_charges" json:"billedCharges"`
	Priority      *string        `db:"priority" json:"priority"`
	Age           *int           `db:"age" json:"age"`
	AgeBucket     *string        `db:"age_bucket" json:"ageBucket"`
	AssignedTo    *string        `db:"assigned_to" json:"assignedTo"`
	SharedWith    pq.StringArray `db:"shared_with" json:"sharedWith"`
	Status        *string        `db:"status" json:"status"`
	ActionTaken   *string        `db:"action_taken" json:"actionTaken"`
	DateWorked    *time.Time     `db:"date_worked" json:"dateWorked"`
	NextFollowUp  *time.Time     `db:"next_follow_up" json:"nextFollowUp"`
	LastWorkedBy  *string        `db:"last_worked_by" json:"lastWorkedBy"`
	History       []HistoryEntry `db:"-" json:"history"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// IsOwnedBy reports whether the agent is the claim's assignee
func (c *Claim) IsOwnedBy(agentID string) bool {
	return c.AssignedTo != nil && *c.AssignedTo == agentID
}

// IsSharedWith reports whether the agent is in the claim's share list
func (c *Claim) IsSharedWith(agentID string) bool {
	for _, id := range c.SharedWith {
		if id == agentID {
			return true
		}
	}
	return false
}

// IsPaid reports whether the claim sits in a terminal paid state
func (c *Claim) IsPaid() bool {
	return IsPaid(c.Status)
}

// HistoryEntry is one immutable record of work done on a claim
type HistoryEntry struct {
	ID           string     `db:"id" json:"id"`
	ClaimID      string     `db:"claim_id" json:"-"`
	Seq          int        `db:"seq" json:"seq"`
	Remarks      string     `db:"remarks" json:"remarks"`
	Status       string     `db:"status" json:"status"`
	ActionTaken  string     `db:"action_taken" json:"actionTaken"`
	DateWorked   time.Time  `db:"date_worked" json:"dateWorked"`
	NextFollowUp *time.Time `db:"next_follow_up" json:"nextFollowUp"`
	WorkedBy     string     `db:"worked_by" json:"workedBy"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}

// ActivityLog is an append-only audit row for a privileged action
type ActivityLog struct {
	ID         string    `db:"id" json:"id"`
	Actor      string    `db:"actor" json:"actor"`
	Action     string    `db:"action" json:"action"`
	TargetType string    `db:"target_type" json:"targetType"`
	TargetID   string    `db:"target_id" json:"targetId"`
	Details    string    `db:"details" json:"details"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// DeletedClaim keeps a full snapshot of a removed claim so it can be restored
type DeletedClaim struct {
	ID        string          `db:"id" json:"id"`
	ClaimID   string          `db:"claim_id" json:"claimId"`
	ClaimNo   string          `db:"claim_no" json:"claimNo"`
	Snapshot  json.RawMessage `db:"snapshot" json:"snapshot"`
	DeletedBy string          `db:"deleted_by" json:"deletedBy"`
	DeletedAt time.Time       `db:"deleted_at" json:"deletedAt"`
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the value behind p, or the zero value when p is nil
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
