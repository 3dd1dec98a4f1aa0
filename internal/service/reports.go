package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/workflow"
	"github.com/rongwang/claims-tracker/internal/workqueue"
)

// DefaultActivityLimit caps ListActivity when the caller gives no limit
const DefaultActivityLimit = 100

// AgentDailyReport lists the agent's claims worked today in the business
// timezone, most recent first
func (s *DefaultService) AgentDailyReport(ctx context.Context, actor models.Actor, userID string) (*models.AgentDailyReport, error) {
	if actor.ID != userID && !actor.Can(models.CapViewReports) {
		return nil, forbidden()
	}

	today := workflow.StartOfDay(s.now(), s.loc)
	end := today.AddDate(0, 0, 1).Add(-time.Nanosecond)

	claims, err := s.findWorked(ctx, models.ClaimQuery{
		AssignedTo: userID,
		Bucket:     models.BucketAll,
		WorkedFrom: &today,
		WorkedTo:   &end,
	})
	if err != nil {
		return nil, err
	}

	return &models.AgentDailyReport{
		Date:        workflow.FormatDay(today, s.loc),
		UserID:      userID,
		TotalClaims: len(claims),
		Claims:      claims,
	}, nil
}

// AgentReport lists the agent's claims, optionally limited to those worked
// within the inclusive date range
func (s *DefaultService) AgentReport(ctx context.Context, actor models.Actor, userID, startDate, endDate string) (*models.AgentReport, error) {
	if actor.ID != userID && !actor.Can(models.CapViewReports) {
		return nil, forbidden()
	}

	claims, err := s.agentClaims(ctx, userID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	return &models.AgentReport{
		UserID:      userID,
		Period:      models.Period{StartDate: startDate, EndDate: endDate},
		TotalClaims: len(claims),
		Claims:      claims,
	}, nil
}

// AdminAgentReport is AgentReport for supervisors, with the agent's name
func (s *DefaultService) AdminAgentReport(ctx context.Context, actor models.Actor, userID, startDate, endDate string) (*models.AgentReport, error) {
	if !actor.Can(models.CapViewReports) {
		return nil, forbidden()
	}

	claims, err := s.agentClaims(ctx, userID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	report := &models.AgentReport{
		Period:      models.Period{StartDate: startDate, EndDate: endDate},
		TotalClaims: len(claims),
		Claims:      claims,
	}
	if user != nil {
		report.Agent = &models.AgentRef{Name: user.Name, OdooID: user.OdooID}
	}
	return report, nil
}

func (s *DefaultService) agentClaims(ctx context.Context, userID, startDate, endDate string) ([]models.Claim, error) {
	from, to, err := workflow.DayRange(startDate, endDate, s.loc)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}
	return s.findWorked(ctx, models.ClaimQuery{
		AssignedTo: userID,
		Bucket:     models.BucketAll,
		WorkedFrom: from,
		WorkedTo:   to,
	})
}

// AdminClaimsReport lists claims in a bucket, optionally limited to those
// worked within the date range. An empty filter type means all claims.
func (s *DefaultService) AdminClaimsReport(ctx context.Context, actor models.Actor, filterType, startDate, endDate string) (*models.ClaimsReport, error) {
	if !actor.Can(models.CapViewReports) {
		return nil, forbidden()
	}

	bucket := models.ClaimBucket(filterType)
	switch bucket {
	case "":
		bucket = models.BucketAll
	case models.BucketAll, models.BucketPending, models.BucketPaid, models.BucketOverdue:
	default:
		return nil, validationError("Unknown filter type %q", filterType)
	}

	from, to, err := workflow.DayRange(startDate, endDate, s.loc)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}

	claims, err := s.findWorked(ctx, models.ClaimQuery{
		Bucket:        bucket,
		WorkedFrom:    from,
		WorkedTo:      to,
		OverdueBefore: workflow.StartOfDay(s.now(), s.loc),
	})
	if err != nil {
		return nil, err
	}

	return &models.ClaimsReport{
		FilterType:  bucket,
		Period:      models.Period{StartDate: startDate, EndDate: endDate},
		TotalClaims: len(claims),
		Claims:      claims,
	}, nil
}

// AdminStats counts claims per reporting bucket
func (s *DefaultService) AdminStats(ctx context.Context, actor models.Actor) (*models.StatsResponse, error) {
	if !actor.Can(models.CapViewReports) {
		return nil, forbidden()
	}

	cutoff := workflow.StartOfDay(s.now(), s.loc)
	count := func(b models.ClaimBucket) (int, error) {
		n, err := s.repo.CountClaims(ctx, models.ClaimQuery{Bucket: b, OverdueBefore: cutoff})
		if err != nil {
			return 0, fmt.Errorf("error counting %s claims: %w", b, err)
		}
		return n, nil
	}

	var stats models.StatsResponse
	var err error
	if stats.All, err = count(models.BucketAll); err != nil {
		return nil, err
	}
	if stats.Pending, err = count(models.BucketPending); err != nil {
		return nil, err
	}
	if stats.Paid, err = count(models.BucketPaid); err != nil {
		return nil, err
	}
	if stats.Overdue, err = count(models.BucketOverdue); err != nil {
		return nil, err
	}
	return &stats, nil
}

// AgentSummaries builds the supervisor's per-agent cards
func (s *DefaultService) AgentSummaries(ctx context.Context, actor models.Actor) ([]workqueue.AgentSummary, error) {
	if !actor.Can(models.CapViewReports) {
		return nil, forbidden()
	}

	agents, err := s.repo.ListUsers(ctx, models.RoleAgent)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	claims, err := s.repo.ListClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing claims: %w", err)
	}
	return workqueue.SummarizeAgents(claims, agents, s.now(), s.loc), nil
}

func (s *DefaultService) ListActivity(ctx context.Context, actor models.Actor, limit int) ([]models.ActivityLog, error) {
	if !actor.Can(models.CapViewAudit) {
		return nil, forbidden()
	}
	if limit <= 0 || limit > DefaultActivityLimit {
		limit = DefaultActivityLimit
	}
	logs, err := s.repo.ListActivity(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing activity: %w", err)
	}
	return logs, nil
}

// findWorked runs the query and orders the result by work date, newest
// first, with never-worked claims last
func (s *DefaultService) findWorked(ctx context.Context, q models.ClaimQuery) ([]models.Claim, error) {
	claims, err := s.repo.FindClaims(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("error finding claims: %w", err)
	}
	sort.SliceStable(claims, func(i, j int) bool {
		a, b := claims[i].DateWorked, claims[j].DateWorked
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})
	return claims, nil
}
