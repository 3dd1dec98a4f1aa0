// Package workqueue computes the list of claims an operator sees: search,
// priority/status and agent-scope filtering, pagination and queue stats.
// Everything here is a pure function of its inputs.
package workqueue

import (
	"strings"

	"github.com/rongwang/claims-tracker/internal/models"
)

// Scope selects which claims an agent's queue shows
type Scope string

const (
	ScopeMine   Scope = "my"
	ScopeShared Scope = "shared"
	ScopeAll    Scope = "all"
)

// Special values for Filter.Agent and the priority/status filters
const (
	All        = "all"
	Unassigned = "unassigned"
)

// Filter is the operator's current view selection
type Filter struct {
	Search   string `form:"search" json:"search"`
	Priority string `form:"priority" json:"priority"`
	Status   string `form:"status" json:"status"`
	Scope    Scope  `form:"scope" json:"scope"`
	Agent    string `form:"agent" json:"agent"`
}

// Normalize fills defaults: no search, every priority and status, the
// agent's own queue and every agent.
func (f Filter) Normalize() Filter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Priority == "" {
		f.Priority = All
	}
	if f.Status == "" {
		f.Status = All
	}
	switch f.Scope {
	case ScopeMine, ScopeShared, ScopeAll:
	default:
		f.Scope = ScopeMine
	}
	if f.Agent == "" {
		f.Agent = All
	}
	return f
}

// Apply returns the claims visible to viewer under the filter, in input order
func Apply(claims []models.Claim, viewer models.Actor, f Filter) []models.Claim {
	f = f.Normalize()
	out := make([]models.Claim, 0, len(claims))
	for i := range claims {
		if Matches(&claims[i], viewer, f) {
			out = append(out, claims[i])
		}
	}
	return out
}

// Matches reports whether one claim passes a normalized filter
func Matches(c *models.Claim, viewer models.Actor, f Filter) bool {
	return matchesSearch(c, f.Search) &&
		matchesExact(c.Priority, f.Priority) &&
		matchesExact(c.Status, f.Status) &&
		matchesAgent(c, viewer, f)
}

func matchesSearch(c *models.Claim, term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(c.ClaimNo), term) ||
		strings.Contains(strings.ToLower(c.Patient), term)
}

func matchesExact(value *string, want string) bool {
	if want == All {
		return true
	}
	return value != nil && *value == want
}

func matchesAgent(c *models.Claim, viewer models.Actor, f Filter) bool {
	if viewer.Can(models.CapManageQueue) {
		switch f.Agent {
		case All:
			return true
		case Unassigned:
			return c.AssignedTo == nil || *c.AssignedTo == ""
		default:
			return c.IsOwnedBy(f.Agent)
		}
	}

	owner := c.IsOwnedBy(viewer.ID)
	switch f.Scope {
	case ScopeShared:
		return c.IsSharedWith(viewer.ID) && !owner
	case ScopeAll:
		return f.Agent == All || c.IsOwnedBy(f.Agent)
	default:
		return owner
	}
}
