package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/rongwang/claims-tracker/internal/models"
)

var sqlFlavor = sqlbuilder.PostgreSQL

var claimColumns = []string{
	"id", "claim_no", "patient", "balance", "dos", "visit_type", "acct_no",
	"primary_payer", "billed_charges", "priority", "age", "age_bucket",
	"assigned_to", "shared_with", "status", "action_taken", "date_worked",
	"next_follow_up", "last_worked_by", "created_at", "updated_at",
}

const historyColumns = `id, claim_id, seq, remarks, status, action_taken, date_worked, next_follow_up, worked_by, created_at`

const insertClaim = `
	INSERT INTO claims (id, claim_no, patient, balance, dos, visit_type, acct_no, primary_payer, billed_charges,
		priority, age, age_bucket, assigned_to, shared_with, status, action_taken, date_worked, next_follow_up,
		last_worked_by, created_at, updated_at)
	VALUES (:id, :claim_no, :patient, :balance, :dos, :visit_type, :acct_no, :primary_payer, :billed_charges,
		:priority, :age, :age_bucket, :assigned_to, :shared_with, :status, :action_taken, :date_worked, :next_follow_up,
		:last_worked_by, :created_at, :updated_at)
`

func prepareNew(claim *models.Claim, now time.Time) {
	if claim.ID == "" {
		claim.ID = uuid.New().String()
	}
	if claim.SharedWith == nil {
		claim.SharedWith = pq.StringArray{}
	}
	if claim.History == nil {
		claim.History = []models.HistoryEntry{}
	}
	claim.CreatedAt = now
	claim.UpdatedAt = now
}

// Claim repository methods
func (r *PostgresRepository) CreateClaim(ctx context.Context, claim *models.Claim) error {
	prepareNew(claim, time.Now().UTC())

	_, err := r.db.NamedExecContext(ctx, insertClaim, claim)
	return translate(err, "create claim")
}

// BulkInsertClaims inserts the claims in one transaction, skipping any whose
// claim number already exists. It returns the number inserted.
func (r *PostgresRepository) BulkInsertClaims(ctx context.Context, claims []*models.Claim) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, translate(err, "begin bulk insert")
	}
	defer rollback(tx)

	query := insertClaim + ` ON CONFLICT (claim_no) DO NOTHING`
	now := time.Now().UTC()
	inserted := 0
	for _, claim := range claims {
		prepareNew(claim, now)
		res, err := tx.NamedExecContext(ctx, query, claim)
		if err != nil {
			return 0, translate(err, "bulk insert claim")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, translate(err, "bulk insert claim")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, translate(err, "commit bulk insert")
	}
	return inserted, nil
}

func (r *PostgresRepository) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	return getClaim(ctx, r.db, id, false)
}

func getClaim(ctx context.Context, q sqlx.QueryerContext, id string, forUpdate bool) (*models.Claim, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(claimColumns...).From("claims").Where(sb.Equal("id", id))
	query, args := sb.Build()
	if forUpdate {
		query += " FOR UPDATE"
	}

	var claim models.Claim
	if err := sqlx.GetContext(ctx, q, &claim, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Claim not found
		}
		return nil, translate(err, "get claim")
	}

	claims := []models.Claim{claim}
	if err := attachHistory(ctx, q, claims); err != nil {
		return nil, err
	}
	return &claims[0], nil
}

func (r *PostgresRepository) ListClaims(ctx context.Context) ([]models.Claim, error) {
	return r.FindClaims(ctx, models.ClaimQuery{Bucket: models.BucketAll})
}

// UpdateClaim overwrites every stored column of the claim. History is left
// untouched.
func (r *PostgresRepository) UpdateClaim(ctx context.Context, claim *models.Claim) error {
	claim.UpdatedAt = time.Now().UTC()

	ub := sqlFlavor.NewUpdateBuilder()
	ub.Update("claims").Set(
		ub.Assign("claim_no", claim.ClaimNo),
		ub.Assign("patient", claim.Patient),
		ub.Assign("balance", claim.Balance),
		ub.Assign("dos", claim.DOS),
		ub.Assign("visit_type", claim.VisitType),
		ub.Assign("acct_no", claim.AcctNo),
		ub.Assign("primary_payer", claim.PrimaryPayer),
		ub.Assign("billed_charges", claim.BilledCharges),
		ub.Assign("priority", claim.Priority),
		ub.Assign("age", claim.Age),
		ub.Assign("age_bucket", claim.AgeBucket),
		ub.Assign("assigned_to", claim.AssignedTo),
		ub.Assign("shared_with", sharedWith(claim)),
		ub.Assign("status", claim.Status),
		ub.Assign("action_taken", claim.ActionTaken),
		ub.Assign("date_worked", claim.DateWorked),
		ub.Assign("next_follow_up", claim.NextFollowUp),
		ub.Assign("last_worked_by", claim.LastWorkedBy),
		ub.Assign("updated_at", claim.UpdatedAt),
	)
	ub.Where(ub.Equal("id", claim.ID))
	query, args := ub.Build()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err, "update claim")
	}
	return requireRow(res)
}

func sharedWith(claim *models.Claim) pq.StringArray {
	if claim.SharedWith == nil {
		return pq.StringArray{}
	}
	return claim.SharedWith
}

// FindClaims returns the claims matching the query, oldest first, with
// their history loaded
func (r *PostgresRepository) FindClaims(ctx context.Context, q models.ClaimQuery) ([]models.Claim, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(claimColumns...).From("claims")
	applyClaimQuery(sb, q)
	sb.OrderBy("created_at", "claim_no").Asc()
	query, args := sb.Build()

	claims := []models.Claim{}
	if err := r.db.SelectContext(ctx, &claims, query, args...); err != nil {
		return nil, translate(err, "find claims")
	}
	if err := attachHistory(ctx, r.db, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *PostgresRepository) CountClaims(ctx context.Context, q models.ClaimQuery) (int, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("COUNT(*)").From("claims")
	applyClaimQuery(sb, q)
	query, args := sb.Build()

	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, translate(err, "count claims")
	}
	return n, nil
}

// applyClaimQuery mirrors models.ClaimQuery.Matches in SQL
func applyClaimQuery(sb *sqlbuilder.SelectBuilder, q models.ClaimQuery) {
	paid := make([]interface{}, len(models.PaidStatuses))
	for i, s := range models.PaidStatuses {
		paid[i] = s
	}
	notPaid := sb.Or(sb.IsNull("status"), sb.NotIn("status", paid...))

	if q.AssignedTo != "" {
		sb.Where(sb.Equal("assigned_to", q.AssignedTo))
	}

	switch q.Bucket {
	case models.BucketPending:
		sb.Where(sb.IsNull("date_worked"), notPaid)
	case models.BucketPaid:
		sb.Where(sb.In("status", paid...))
	case models.BucketOverdue:
		sb.Where(sb.LessThan("next_follow_up", q.OverdueBefore), notPaid)
	}

	if q.WorkedFrom != nil {
		sb.Where(sb.GreaterEqualThan("date_worked", *q.WorkedFrom))
	}
	if q.WorkedTo != nil {
		sb.Where(sb.LessEqualThan("date_worked", *q.WorkedTo))
	}
}

// attachHistory loads the history of every claim in one query
func attachHistory(ctx context.Context, q sqlx.QueryerContext, claims []models.Claim) error {
	if len(claims) == 0 {
		return nil
	}

	ids := make([]string, len(claims))
	for i := range claims {
		ids[i] = claims[i].ID
	}

	var entries []models.HistoryEntry
	query := `SELECT ` + historyColumns + ` FROM claim_history WHERE claim_id = ANY($1) ORDER BY claim_id, seq`
	if err := sqlx.SelectContext(ctx, q, &entries, query, pq.Array(ids)); err != nil {
		return translate(err, "load history")
	}

	byClaim := make(map[string][]models.HistoryEntry, len(claims))
	for _, e := range entries {
		byClaim[e.ClaimID] = append(byClaim[e.ClaimID], e)
	}
	for i := range claims {
		h := byClaim[claims[i].ID]
		if h == nil {
			h = []models.HistoryEntry{}
		}
		claims[i].History = h
	}
	return nil
}

func (r *PostgresRepository) RecordWork(ctx context.Context, claim *models.Claim, entry *models.HistoryEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return translate(err, "begin record work")
	}
	defer rollback(tx)

	now := time.Now().UTC()
	claim.UpdatedAt = now

	res, err := tx.ExecContext(ctx, `
		UPDATE claims SET status = $1, action_taken = $2, date_worked = $3, next_follow_up = $4,
			last_worked_by = $5, updated_at = $6
		WHERE id = $7
	`, claim.Status, claim.ActionTaken, claim.DateWorked, claim.NextFollowUp, claim.LastWorkedBy, now, claim.ID)
	if err != nil {
		return translate(err, "update worked claim")
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.ClaimID = claim.ID
	entry.CreatedAt = now

	// seq follows the stored history, not the caller's copy of it
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO claim_history (id, claim_id, seq, remarks, status, action_taken, date_worked, next_follow_up, worked_by, created_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(seq), 0) + 1 FROM claim_history WHERE claim_id = $2), $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`, entry.ID, entry.ClaimID, entry.Remarks, entry.Status, entry.ActionTaken, entry.DateWorked,
		entry.NextFollowUp, entry.WorkedBy, entry.CreatedAt).Scan(&entry.Seq)
	if err != nil {
		return translate(err, "append history")
	}

	return translate(tx.Commit(), "commit record work")
}

// DeleteClaim snapshots the claim with its history and removes it. A nil
// result means the claim did not exist.
func (r *PostgresRepository) DeleteClaim(ctx context.Context, id, deletedBy string) (*models.DeletedClaim, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, translate(err, "begin delete claim")
	}
	defer rollback(tx)

	claim, err := getClaim(ctx, tx, id, true)
	if err != nil || claim == nil {
		return nil, err
	}

	snapshot, err := json.Marshal(claim)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot claim")
	}

	deleted := &models.DeletedClaim{
		ID:        uuid.New().String(),
		ClaimID:   claim.ID,
		ClaimNo:   claim.ClaimNo,
		Snapshot:  snapshot,
		DeletedBy: deletedBy,
		DeletedAt: time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deleted_claims (id, claim_id, claim_no, snapshot, deleted_by, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, deleted.ID, deleted.ClaimID, deleted.ClaimNo, string(deleted.Snapshot), deleted.DeletedBy, deleted.DeletedAt)
	if err != nil {
		return nil, translate(err, "store deleted claim")
	}

	// history rows go with the claim through ON DELETE CASCADE
	if _, err := tx.ExecContext(ctx, `DELETE FROM claims WHERE id = $1`, id); err != nil {
		return nil, translate(err, "delete claim")
	}

	if err := tx.Commit(); err != nil {
		return nil, translate(err, "commit delete claim")
	}
	return deleted, nil
}

func (r *PostgresRepository) ListDeletedClaims(ctx context.Context) ([]models.DeletedClaim, error) {
	deleted := []models.DeletedClaim{}
	err := r.db.SelectContext(ctx, &deleted, `
		SELECT id, claim_id, claim_no, snapshot, deleted_by, deleted_at
		FROM deleted_claims ORDER BY deleted_at DESC
	`)
	if err != nil {
		return nil, translate(err, "list deleted claims")
	}
	return deleted, nil
}

// RestoreClaim puts a deleted claim back with its original id and history.
// It returns ErrDuplicateKey when the claim number has been reused since.
func (r *PostgresRepository) RestoreClaim(ctx context.Context, deletedID string) (*models.Claim, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, translate(err, "begin restore claim")
	}
	defer rollback(tx)

	var deleted models.DeletedClaim
	err = tx.GetContext(ctx, &deleted, `
		SELECT id, claim_id, claim_no, snapshot, deleted_by, deleted_at
		FROM deleted_claims WHERE id = $1 FOR UPDATE
	`, deletedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translate(err, "get deleted claim")
	}

	var claim models.Claim
	if err := json.Unmarshal(deleted.Snapshot, &claim); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	if claim.SharedWith == nil {
		claim.SharedWith = pq.StringArray{}
	}
	if claim.History == nil {
		claim.History = []models.HistoryEntry{}
	}
	claim.UpdatedAt = time.Now().UTC()

	if _, err := tx.NamedExecContext(ctx, insertClaim, &claim); err != nil {
		return nil, translate(err, "restore claim")
	}

	for i := range claim.History {
		entry := &claim.History[i]
		entry.ClaimID = claim.ID
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO claim_history (id, claim_id, seq, remarks, status, action_taken, date_worked, next_follow_up, worked_by, created_at)
			VALUES (:id, :claim_id, :seq, :remarks, :status, :action_taken, :date_worked, :next_follow_up, :worked_by, :created_at)
		`, entry)
		if err != nil {
			return nil, translate(err, "restore history")
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM deleted_claims WHERE id = $1`, deletedID); err != nil {
		return nil, translate(err, "clear deleted claim")
	}

	if err := tx.Commit(); err != nil {
		return nil, translate(err, "commit restore claim")
	}
	return &claim, nil
}

// Activity repository methods
func (r *PostgresRepository) AddActivity(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO activity_logs (id, actor, action, target_type, target_id, details, created_at)
		VALUES (:id, :actor, :action, :target_type, :target_id, :details, :created_at)
	`, entry)
	return translate(err, "add activity")
}

// ListActivity returns the newest entries first
func (r *PostgresRepository) ListActivity(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	logs := []models.ActivityLog{}
	err := r.db.SelectContext(ctx, &logs, `
		SELECT id, actor, action, target_type, target_id, details, created_at
		FROM activity_logs ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, translate(err, "list activity")
	}
	return logs, nil
}
