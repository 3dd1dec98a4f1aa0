package workqueue

import (
	"time"

	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/workflow"
)

// OnlineWindow is how recently an agent must have worked a claim to count as online
const OnlineWindow = time.Hour

// Stats are the headline counters above the queue
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Paid    int `json:"paid"`
	Overdue int `json:"overdue"`
}

// AgentSummary is a supervisor's per-agent card
type AgentSummary struct {
	AgentID string `json:"agentId"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar"`
	Color   string `json:"color"`
	Total   int    `json:"total"`
	Overdue int    `json:"overdue"`
	Online  bool   `json:"online"`
}

// Summarize counts claims for the viewer. Agents only count claims they own;
// queue managers count everything.
func Summarize(claims []models.Claim, viewer models.Actor, now time.Time, loc *time.Location) Stats {
	var s Stats
	for i := range claims {
		c := &claims[i]
		if !viewer.Can(models.CapManageQueue) && !c.IsOwnedBy(viewer.ID) {
			continue
		}
		s.Total++
		if models.IsPendingStatus(c.Status) {
			s.Pending++
		}
		if c.IsPaid() {
			s.Paid++
		}
		if workflow.IsOverdue(c, now, loc) {
			s.Overdue++
		}
	}
	return s
}

// SummarizeAgents builds one summary per agent, in the order given
func SummarizeAgents(claims []models.Claim, agents []models.User, now time.Time, loc *time.Location) []AgentSummary {
	out := make([]AgentSummary, 0, len(agents))
	for _, a := range agents {
		sum := AgentSummary{AgentID: a.OdooID, Name: a.Name, Avatar: a.Avatar, Color: a.Color}
		for i := range claims {
			c := &claims[i]
			if !c.IsOwnedBy(a.OdooID) {
				continue
			}
			sum.Total++
			if workflow.IsOverdue(c, now, loc) {
				sum.Overdue++
			}
			if c.DateWorked != nil && now.Sub(*c.DateWorked) < OnlineWindow && !c.DateWorked.After(now) {
				sum.Online = true
			}
		}
		out = append(out, sum)
	}
	return out
}
