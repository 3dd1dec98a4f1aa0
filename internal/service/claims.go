package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/workflow"
	"github.com/rongwang/claims-tracker/internal/workqueue"
)

// ListClaims returns every claim; the work queue narrows it per viewer
func (s *DefaultService) ListClaims(ctx context.Context, actor models.Actor) ([]models.Claim, error) {
	claims, err := s.repo.ListClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing claims: %w", err)
	}
	return claims, nil
}

func (s *DefaultService) GetClaim(ctx context.Context, actor models.Actor, id string) (*models.Claim, error) {
	return s.loadClaim(ctx, id)
}

func (s *DefaultService) loadClaim(ctx context.Context, id string) (*models.Claim, error) {
	claim, err := s.repo.GetClaim(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting claim: %w", err)
	}
	if claim == nil {
		return nil, notFound("Claim")
	}
	return claim, nil
}

func validateInput(in *models.ClaimInput) error {
	in.ClaimNo = strings.TrimSpace(in.ClaimNo)
	in.Patient = strings.TrimSpace(in.Patient)
	normalizeAgents(in)
	if in.ClaimNo == "" {
		return validationError("Claim number is required")
	}
	if in.Patient == "" {
		return validationError("Patient is required")
	}
	return nil
}

func (s *DefaultService) CreateClaim(ctx context.Context, actor models.Actor, in models.ClaimInput) (*models.Claim, error) {
	if !actor.Can(models.CapManageClaims) {
		return nil, forbidden()
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	if err := s.requireAgent(ctx, in.AssignedTo); err != nil {
		return nil, err
	}
	if err := s.requireAgents(ctx, in.SharedWith); err != nil {
		return nil, err
	}

	claim := in.ToClaim()
	workflow.Share(claim, claim.SharedWith)
	workflow.NormalizeFollowUp(claim)

	if err := s.repo.CreateClaim(ctx, claim); err != nil {
		return nil, storeError(err, "Claim number")
	}

	s.audit(ctx, actor, "claim.create", "claim", claim.ID, claim.ClaimNo)
	return claim, nil
}

// UpdateClaim applies a partial update and stores the whole claim; the last
// write wins. Reassignment needs queue rights and clears the shares unless
// the same patch sets them; changing shares follows the share rules.
func (s *DefaultService) UpdateClaim(ctx context.Context, actor models.Actor, id string, patch models.ClaimPatch) (*models.Claim, error) {
	claim, err := s.loadClaim(ctx, id)
	if err != nil {
		return nil, err
	}

	if !workflow.CanWork(actor, claim) {
		return nil, forbidden()
	}
	if patch.AssignedTo.Set && !actor.Can(models.CapManageQueue) {
		return nil, forbidden()
	}
	if patch.SharedWith.Set && !workflow.CanShare(actor, claim) {
		return nil, forbidden()
	}

	if patch.ClaimNo.Set {
		if patch.ClaimNo.Value == nil || strings.TrimSpace(*patch.ClaimNo.Value) == "" {
			return nil, validationError("Claim number is required")
		}
		claim.ClaimNo = strings.TrimSpace(*patch.ClaimNo.Value)
	}
	if patch.Patient.Set {
		if patch.Patient.Value == nil || strings.TrimSpace(*patch.Patient.Value) == "" {
			return nil, validationError("Patient is required")
		}
		claim.Patient = strings.TrimSpace(*patch.Patient.Value)
	}
	if patch.Balance.Set {
		claim.Balance = models.Deref(patch.Balance.Value)
	}
	if patch.BilledCharges.Set {
		claim.BilledCharges = models.Deref(patch.BilledCharges.Value)
	}
	patch.DOS.Apply(&claim.DOS)
	patch.VisitType.Apply(&claim.VisitType)
	patch.AcctNo.Apply(&claim.AcctNo)
	patch.PrimaryPayer.Apply(&claim.PrimaryPayer)
	patch.Priority.Apply(&claim.Priority)
	patch.Age.Apply(&claim.Age)
	patch.AgeBucket.Apply(&claim.AgeBucket)
	patch.Status.Apply(&claim.Status)
	patch.ActionTaken.Apply(&claim.ActionTaken)
	patch.DateWorked.Apply(&claim.DateWorked)
	patch.NextFollowUp.Apply(&claim.NextFollowUp)
	patch.LastWorkedBy.Apply(&claim.LastWorkedBy)

	if patch.AssignedTo.Set {
		if err := s.requireAgent(ctx, patch.AssignedTo.Value); err != nil {
			return nil, err
		}
		workflow.Assign(claim, patch.AssignedTo.Value)
	}
	if patch.SharedWith.Set {
		ids := models.Deref(patch.SharedWith.Value)
		if err := s.requireAgents(ctx, ids); err != nil {
			return nil, err
		}
		workflow.Share(claim, ids)
	}
	workflow.NormalizeFollowUp(claim)

	if err := s.repo.UpdateClaim(ctx, claim); err != nil {
		return nil, storeError(err, "Claim number")
	}

	s.audit(ctx, actor, "claim.update", "claim", claim.ID, claim.ClaimNo)
	return claim, nil
}

// DeleteClaim removes a claim, keeping a snapshot that can be restored
func (s *DefaultService) DeleteClaim(ctx context.Context, actor models.Actor, id string) error {
	if !actor.Can(models.CapManageClaims) {
		return forbidden()
	}

	deleted, err := s.repo.DeleteClaim(ctx, id, actor.ID)
	if err != nil {
		return fmt.Errorf("error deleting claim: %w", err)
	}
	if deleted == nil {
		return notFound("Claim")
	}

	s.audit(ctx, actor, "claim.delete", "claim", id, deleted.ClaimNo)
	return nil
}

// RecordWork appends a history entry and moves the claim to its new state.
// Work is dated now unless the request says otherwise.
func (s *DefaultService) RecordWork(ctx context.Context, actor models.Actor, id string, req models.RecordWorkRequest) (*models.Claim, error) {
	claim, err := s.loadClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.CanWork(actor, claim) {
		return nil, forbidden()
	}

	work := workflow.Work{
		Remarks:      strings.TrimSpace(req.Remarks),
		Status:       strings.TrimSpace(req.Status),
		ActionTaken:  strings.TrimSpace(req.ActionTaken),
		FollowUpDays: req.FollowUpDays,
		DateWorked:   s.now().In(s.loc),
	}
	if req.DateWorked != nil {
		work.DateWorked = *req.DateWorked
	}

	entry, err := workflow.RecordWork(claim, work, actor)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}

	if err := s.repo.RecordWork(ctx, claim, &entry); err != nil {
		return nil, storeError(err, "Claim")
	}
	claim.History[len(claim.History)-1] = entry

	s.logger.Debug().Str("claim_id", claim.ID).Str("status", entry.Status).Str("worked_by", actor.ID).Msg("work recorded")
	return claim, nil
}

// AssignClaim gives the claim to an agent, or unassigns it, revoking shares
func (s *DefaultService) AssignClaim(ctx context.Context, actor models.Actor, id string, req models.AssignRequest) (*models.Claim, error) {
	if !actor.Can(models.CapManageQueue) {
		return nil, forbidden()
	}

	claim, err := s.loadClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAgent(ctx, req.AssignedTo); err != nil {
		return nil, err
	}

	workflow.Assign(claim, req.AssignedTo)
	if err := s.repo.UpdateClaim(ctx, claim); err != nil {
		return nil, storeError(err, "Claim")
	}

	s.audit(ctx, actor, "claim.assign", "claim", claim.ID, models.Deref(claim.AssignedTo))
	return claim, nil
}

// ShareClaim replaces the claim's collaborators
func (s *DefaultService) ShareClaim(ctx context.Context, actor models.Actor, id string, req models.ShareRequest) (*models.Claim, error) {
	claim, err := s.loadClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.CanShare(actor, claim) {
		return nil, forbidden()
	}
	if err := s.requireAgents(ctx, req.SharedWith); err != nil {
		return nil, err
	}

	workflow.Share(claim, req.SharedWith)
	if err := s.repo.UpdateClaim(ctx, claim); err != nil {
		return nil, storeError(err, "Claim")
	}

	s.audit(ctx, actor, "claim.share", "claim", claim.ID, strings.Join(claim.SharedWith, ","))
	return claim, nil
}

// Queue renders the viewer's work-queue page as of now
func (s *DefaultService) Queue(ctx context.Context, actor models.Actor, f workqueue.Filter, page, perPage int) (*workqueue.Page, error) {
	claims, err := s.ListClaims(ctx, actor)
	if err != nil {
		return nil, err
	}

	state := workqueue.NewState(actor, s.loc).WithClaims(claims).WithFilter(f).WithPage(page)
	if perPage > 0 {
		state.PerPage = perPage
	}
	view := state.View(s.now())
	return &view, nil
}

// ListDeletedClaims returns the snapshots of removed claims, newest first
func (s *DefaultService) ListDeletedClaims(ctx context.Context, actor models.Actor) ([]models.DeletedClaim, error) {
	if !actor.Can(models.CapViewAudit) {
		return nil, forbidden()
	}
	deleted, err := s.repo.ListDeletedClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing deleted claims: %w", err)
	}
	return deleted, nil
}

// RestoreClaim brings a deleted claim back with its history
func (s *DefaultService) RestoreClaim(ctx context.Context, actor models.Actor, deletedID string) (*models.Claim, error) {
	if !actor.Can(models.CapRestoreClaims) {
		return nil, forbidden()
	}

	claim, err := s.repo.RestoreClaim(ctx, deletedID)
	if err != nil {
		return nil, storeError(err, "Claim number")
	}
	if claim == nil {
		return nil, notFound("Deleted claim")
	}

	s.audit(ctx, actor, "claim.restore", "claim", claim.ID, claim.ClaimNo)
	return claim, nil
}

// normalizeAgents lower-cases assignee and share ids to match stored user
// ids; a blank assignee becomes nil
func normalizeAgents(in *models.ClaimInput) {
	if in.AssignedTo != nil {
		id := strings.ToLower(strings.TrimSpace(*in.AssignedTo))
		if id == "" {
			in.AssignedTo = nil
		} else {
			in.AssignedTo = &id
		}
	}
	shared := make([]string, 0, len(in.SharedWith))
	for _, id := range in.SharedWith {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			shared = append(shared, id)
		}
	}
	in.SharedWith = shared
}

// requireAgent checks that a non-nil, non-blank assignee is a known user
func (s *DefaultService) requireAgent(ctx context.Context, id *string) error {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return s.requireAgents(ctx, []string{*id})
}

func (s *DefaultService) requireAgents(ctx context.Context, ids []string) error {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		user, err := s.repo.GetUserByID(ctx, id)
		if err != nil {
			return fmt.Errorf("error getting user: %w", err)
		}
		if user == nil {
			return validationError("Unknown agent %q", id)
		}
	}
	return nil
}
