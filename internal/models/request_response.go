package models

import "time"

// Request models
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
	Color    string `json:"color"`
	Role     string `json:"role"`
}

type UpdateUserRequest struct {
	Name            string           `json:"name"`
	Email           Optional[string] `json:"email"`
	CurrentPassword string           `json:"currentPassword"`
	NewPassword     string           `json:"newPassword"`
}

// ClaimInput is the payload for creating a claim, singly or in bulk
type ClaimInput struct {
	ClaimNo       string     `json:"claimNo"`
	Patient       string     `json:"patient"`
	Balance       float64    `json:"balance"`
	DOS           *time.Time `json:"dos"`
	VisitType     *string    `json:"visitType"`
	AcctNo        *string    `json:"acctNo"`
	PrimaryPayer  *string    `json:"primaryPayer"`
	BilledCharges float64    `json:"billedCharges"`
	Priority      *string    `json:"priority"`
	Age           *int       `json:"age"`
	AgeBucket     *string    `json:"ageBucket"`
	AssignedTo    *string    `json:"assignedTo"`
	SharedWith    []string   `json:"sharedWith"`
	Status        *string    `json:"status"`
}

// ToClaim converts the input into a new claim with an empty history
func (in ClaimInput) ToClaim() *Claim {
	shared := in.SharedWith
	if shared == nil {
		shared = []string{}
	}
	return &Claim{
		ClaimNo:       in.ClaimNo,
		Patient:       in.Patient,
		Balance:       in.Balance,
		DOS:           in.DOS,
		VisitType:     in.VisitType,
		AcctNo:        in.AcctNo,
		PrimaryPayer:  in.PrimaryPayer,
		BilledCharges: in.BilledCharges,
		Priority:      in.Priority,
		Age:           in.Age,
		AgeBucket:     in.AgeBucket,
		AssignedTo:    in.AssignedTo,
		SharedWith:    shared,
		Status:        in.Status,
		History:       []HistoryEntry{},
	}
}

// ClaimPatch is a generic claim update. Only keys present in the JSON body
// are applied; history cannot be written through a patch.
type ClaimPatch struct {
	ClaimNo       Optional[string]    `json:"claimNo"`
	Patient       Optional[string]    `json:"patient"`
	Balance       Optional[float64]   `json:"balance"`
	DOS           Optional[time.Time] `json:"dos"`
	VisitType     Optional[string]    `json:"visitType"`
	AcctNo        Optional[string]    `json:"acctNo"`
	PrimaryPayer  Optional[string]    `json:"primaryPayer"`
	BilledCharges Optional[float64]   `json:"billedCharges"`
	Priority      Optional[string]    `json:"priority"`
	Age           Optional[int]       `json:"age"`
	AgeBucket     Optional[string]    `json:"ageBucket"`
	AssignedTo    Optional[string]    `json:"assignedTo"`
	SharedWith    Optional[[]string]  `json:"sharedWith"`
	Status        Optional[string]    `json:"status"`
	ActionTaken   Optional[string]    `json:"actionTaken"`
	DateWorked    Optional[time.Time] `json:"dateWorked"`
	NextFollowUp  Optional[time.Time] `json:"nextFollowUp"`
	LastWorkedBy  Optional[string]    `json:"lastWorkedBy"`
}

type RecordWorkRequest struct {
	Remarks      string     `json:"remarks"`
	Status       string     `json:"status"`
	ActionTaken  string     `json:"actionTaken"`
	FollowUpDays int        `json:"followUpDays"`
	DateWorked   *time.Time `json:"dateWorked"`
}

type AssignRequest struct {
	AssignedTo *string `json:"assignedTo"`
}

type ShareRequest struct {
	SharedWith []string `json:"sharedWith"`
}

// Response models
type LoginResponse struct {
	ID                string  `json:"id"`
	OdooID            string  `json:"odoo_id"`
	Name              string  `json:"name"`
	Email             *string `json:"email"`
	Role              Role    `json:"role"`
	Avatar            string  `json:"avatar"`
	Color             string  `json:"color"`
	IsDefaultPassword bool    `json:"isDefaultPassword"`
	Token             string  `json:"token,omitempty"`
	ExpiresIn         int     `json:"expiresIn,omitempty"`
}

type UserSummary struct {
	OdooID string  `json:"odoo_id"`
	Name   string  `json:"name"`
	Email  *string `json:"email"`
	Role   Role    `json:"role"`
	Avatar string  `json:"avatar"`
	Color  string  `json:"color"`
	EmpID  string  `json:"empId,omitempty"`
}

type UserResponse struct {
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type BulkImportResponse struct {
	Imported   int `json:"imported"`
	Errors     int `json:"errors,omitempty"`
	Dropped    int `json:"dropped,omitempty"`
	Unassigned int `json:"unassigned,omitempty"`
}

type Period struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

type AgentRef struct {
	Name   string `json:"name"`
	OdooID string `json:"odoo_id"`
}

type AgentDailyReport struct {
	Date        string  `json:"date"`
	UserID      string  `json:"userId"`
	TotalClaims int     `json:"totalClaims"`
	Claims      []Claim `json:"claims"`
}

type AgentReport struct {
	UserID      string    `json:"userId,omitempty"`
	Agent       *AgentRef `json:"agent,omitempty"`
	Period      Period    `json:"period"`
	TotalClaims int       `json:"totalClaims"`
	Claims      []Claim   `json:"claims"`
}

type ClaimsReport struct {
	FilterType  ClaimBucket `json:"filterType"`
	Period      Period      `json:"period"`
	TotalClaims int         `json:"totalClaims"`
	Claims      []Claim     `json:"claims"`
}

type StatsResponse struct {
	All     int `json:"all"`
	Pending int `json:"pending"`
	Paid    int `json:"paid"`
	Overdue int `json:"overdue"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
