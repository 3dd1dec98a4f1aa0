package workqueue

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/workflow"
)

var (
	admin   = models.Actor{ID: "yashpal", Name: "Yashpal", Role: models.RoleAdmin}
	ravi    = models.Actor{ID: "ravi", Name: "Ravi", Role: models.RoleAgent}
	chirag  = models.Actor{ID: "chirag", Name: "Chirag", Role: models.RoleAgent}
	nowTime = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
)

func sampleClaims() []models.Claim {
	return []models.Claim{
		{ID: "1", ClaimNo: "CLM001", Patient: "John Doe", Priority: models.Ptr("P-1"), AssignedTo: models.Ptr("ravi"), SharedWith: []string{"chirag"}, Status: models.Ptr("INPRCS")},
		{ID: "2", ClaimNo: "clm002", Patient: "Jane Smith", Priority: models.Ptr("P-2"), AssignedTo: models.Ptr("chirag"), Status: models.Ptr("PAID")},
		{ID: "3", ClaimNo: "CLM003", Patient: "Robert Johnson", Priority: models.Ptr("CHERRY"), AssignedTo: models.Ptr("chirag"), SharedWith: []string{"ravi"}},
		{ID: "4", ClaimNo: "X-9", Patient: "Emily Clmoore", Priority: models.Ptr("P-1")},
		{ID: "5", ClaimNo: "CLM005", Patient: "Michael Brown", SharedWith: []string{"ravi"}, AssignedTo: models.Ptr("ravi")},
	}
}

func ids(claims []models.Claim) []string {
	out := make([]string, len(claims))
	for i, c := range claims {
		out[i] = c.ID
	}
	return out
}

func TestSearchIsCaseInsensitiveSubstring(t *testing.T) {
	got := Apply(sampleClaims(), admin, Filter{Search: "CLM00", Priority: All, Agent: All})
	assert.Equal(t, []string{"1", "2", "3", "5"}, ids(got))

	got = Apply(sampleClaims(), admin, Filter{Search: "clmoore"})
	assert.Equal(t, []string{"4"}, ids(got))

	got = Apply(sampleClaims(), admin, Filter{Search: "  jane "})
	assert.Equal(t, []string{"2"}, ids(got))
}

func TestPriorityAndStatusFilters(t *testing.T) {
	assert.Equal(t, []string{"1", "4"}, ids(Apply(sampleClaims(), admin, Filter{Priority: "P-1"})))
	assert.Equal(t, []string{"2"}, ids(Apply(sampleClaims(), admin, Filter{Status: "PAID"})))
	assert.Empty(t, Apply(sampleClaims(), admin, Filter{Priority: "P-3"}))
}

func TestAdminAgentFilter(t *testing.T) {
	assert.Len(t, Apply(sampleClaims(), admin, Filter{Agent: All}), 5)
	assert.Equal(t, []string{"4"}, ids(Apply(sampleClaims(), admin, Filter{Agent: Unassigned})))
	assert.Equal(t, []string{"2", "3"}, ids(Apply(sampleClaims(), admin, Filter{Agent: "chirag"})))

	// scope is ignored for queue managers
	assert.Len(t, Apply(sampleClaims(), admin, Filter{Scope: ScopeShared}), 5)
}

func TestAgentScopes(t *testing.T) {
	assert.Equal(t, []string{"1", "5"}, ids(Apply(sampleClaims(), ravi, Filter{Scope: ScopeMine})))
	// claim 5 is owned by ravi and lists ravi as a share; owners never see their claims as shared
	assert.Equal(t, []string{"3"}, ids(Apply(sampleClaims(), ravi, Filter{Scope: ScopeShared})))
	assert.Len(t, Apply(sampleClaims(), ravi, Filter{Scope: ScopeAll}), 5)
	assert.Equal(t, []string{"2", "3"}, ids(Apply(sampleClaims(), ravi, Filter{Scope: ScopeAll, Agent: "chirag"})))

	// unknown scopes fall back to the agent's own queue
	assert.Equal(t, []string{"2", "3"}, ids(Apply(sampleClaims(), chirag, Filter{Scope: "bogus"})))
}

func TestPaginate(t *testing.T) {
	claims := make([]models.Claim, 23)
	for i := range claims {
		claims[i] = models.Claim{ID: fmt.Sprint(i)}
	}

	rows, page, total := Paginate(claims, 1, 10)
	assert.Len(t, rows, 10)
	assert.Equal(t, 1, page)
	assert.Equal(t, 3, total)

	rows, page, _ = Paginate(claims, 3, 10)
	assert.Len(t, rows, 3)
	assert.Equal(t, 3, page)

	rows, page, _ = Paginate(claims, 9, 10)
	assert.Equal(t, 3, page)
	assert.Equal(t, "20", rows[0].ID)

	rows, page, total = Paginate(nil, 4, 10)
	assert.Empty(t, rows)
	assert.Equal(t, 1, page)
	assert.Equal(t, 0, total)
}

func TestStateView(t *testing.T) {
	claims := sampleClaims()
	claims[0].NextFollowUp = models.Ptr(nowTime.AddDate(0, 0, -4))
	claims[4].NextFollowUp = models.Ptr(nowTime)

	state := NewState(ravi, time.UTC).WithClaims(claims).WithPage(3)
	state = state.WithFilter(Filter{Scope: ScopeMine})
	assert.Equal(t, 1, state.Page)

	view := state.View(nowTime)
	require.Len(t, view.Items, 2)
	assert.Equal(t, workflow.DueDanger, view.Items[0].DueClass)
	assert.Equal(t, workflow.DueToday, view.Items[1].DueClass)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, 1, view.TotalPages)
	assert.Equal(t, Stats{Total: 2, Pending: 2, Paid: 0, Overdue: 1}, view.Stats)

	// the original state's claims are untouched
	assert.Len(t, state.Claims, 5)
}

func TestSummarize(t *testing.T) {
	claims := sampleClaims()
	claims[2].NextFollowUp = models.Ptr(nowTime.AddDate(0, 0, -1))
	claims[1].NextFollowUp = models.Ptr(nowTime.AddDate(0, 0, -1))

	assert.Equal(t, Stats{Total: 5, Pending: 4, Paid: 1, Overdue: 1}, Summarize(claims, admin, nowTime, time.UTC))
	assert.Equal(t, Stats{Total: 2, Pending: 1, Paid: 1, Overdue: 1}, Summarize(claims, chirag, nowTime, time.UTC))
}

func TestSummarizeAgents(t *testing.T) {
	claims := sampleClaims()
	claims[0].DateWorked = models.Ptr(nowTime.Add(-10 * time.Minute))
	claims[2].DateWorked = models.Ptr(nowTime.Add(-3 * time.Hour))
	claims[2].NextFollowUp = models.Ptr(nowTime.AddDate(0, 0, -5))

	agents := []models.User{{OdooID: "ravi", Name: "Ravi"}, {OdooID: "chirag", Name: "Chirag"}, {OdooID: "shubham", Name: "Shubham"}}
	got := SummarizeAgents(claims, agents, nowTime, time.UTC)

	require.Len(t, got, 3)
	assert.Equal(t, AgentSummary{AgentID: "ravi", Name: "Ravi", Total: 2, Online: true}, got[0])
	assert.Equal(t, AgentSummary{AgentID: "chirag", Name: "Chirag", Total: 2, Overdue: 1}, got[1])
	assert.Equal(t, AgentSummary{AgentID: "shubham", Name: "Shubham"}, got[2])
}
