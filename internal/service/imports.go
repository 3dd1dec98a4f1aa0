package service

import (
	"context"
	"fmt"
	"io"

	"github.com/rongwang/claims-tracker/internal/importer"
	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/workflow"
)

// BulkCreateClaims inserts a batch of claims. Invalid rows and claim numbers
// that already exist are skipped and counted as errors; the rest go in.
// Claims assigned to an unknown user go in unassigned and are counted, and
// unknown share ids are dropped.
func (s *DefaultService) BulkCreateClaims(ctx context.Context, actor models.Actor, inputs []models.ClaimInput) (*models.BulkImportResponse, error) {
	if !actor.Can(models.CapManageClaims) {
		return nil, forbidden()
	}

	users, err := s.repo.ListUsers(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[u.OdooID] = true
	}

	claims := make([]*models.Claim, 0, len(inputs))
	invalid, unassigned := 0, 0
	for i := range inputs {
		in := &inputs[i]
		if err := validateInput(in); err != nil {
			invalid++
			continue
		}
		if in.AssignedTo != nil && !known[*in.AssignedTo] {
			in.AssignedTo = nil
			unassigned++
		}
		shared := make([]string, 0, len(in.SharedWith))
		for _, id := range in.SharedWith {
			if known[id] {
				shared = append(shared, id)
			}
		}
		in.SharedWith = shared

		claim := inputs[i].ToClaim()
		workflow.Share(claim, claim.SharedWith)
		workflow.NormalizeFollowUp(claim)
		claims = append(claims, claim)
	}

	imported := 0
	if len(claims) > 0 {
		n, err := s.repo.BulkInsertClaims(ctx, claims)
		if err != nil {
			return nil, fmt.Errorf("error inserting claims: %w", err)
		}
		imported = n
	}

	res := &models.BulkImportResponse{
		Imported:   imported,
		Errors:     invalid + len(claims) - imported,
		Unassigned: unassigned,
	}

	s.audit(ctx, actor, "claims.import", "claim", "bulk",
		fmt.Sprintf("imported=%d errors=%d unassigned=%d", res.Imported, res.Errors, res.Unassigned))
	s.logger.Info().
		Int("imported", res.Imported).
		Int("errors", res.Errors).
		Int("unassigned", res.Unassigned).
		Str("actor", actor.ID).
		Msg("bulk claim import")
	return res, nil
}

// ImportRows maps spreadsheet rows onto claims and inserts the survivors.
// Rows without a claim number or patient are dropped before insertion.
func (s *DefaultService) ImportRows(ctx context.Context, actor models.Actor, rows []importer.Row) (*models.BulkImportResponse, error) {
	if !actor.Can(models.CapManageClaims) {
		return nil, forbidden()
	}

	parsed := importer.Parse(rows, s.loc)
	if len(parsed.Claims) == 0 {
		return nil, validationError("No valid claims found in file")
	}

	res, err := s.BulkCreateClaims(ctx, actor, parsed.Claims)
	if err != nil {
		return nil, err
	}
	res.Dropped = parsed.Dropped
	return res, nil
}

// ImportCSV reads a CSV spreadsheet export and imports it
func (s *DefaultService) ImportCSV(ctx context.Context, actor models.Actor, r io.Reader) (*models.BulkImportResponse, error) {
	if !actor.Can(models.CapManageClaims) {
		return nil, forbidden()
	}

	rows, err := importer.ReadCSV(r)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}
	return s.ImportRows(ctx, actor, rows)
}

// ExportClaims returns the claims the actor may export: everything for
// queue managers, only their own claims for agents
func (s *DefaultService) ExportClaims(ctx context.Context, actor models.Actor) ([]models.Claim, error) {
	q := models.ClaimQuery{Bucket: models.BucketAll}
	if !actor.Can(models.CapManageQueue) {
		q.AssignedTo = actor.ID
	}

	claims, err := s.repo.FindClaims(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("error exporting claims: %w", err)
	}
	return claims, nil
}
