package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"

	"github.com/rongwang/claims-tracker/internal/models"
)

type RepositoryTestSuite struct {
	suite.Suite
	mock sqlmock.Sqlmock
	repo *PostgresRepository
	ctx  context.Context
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.mock = mock
	s.repo = NewPostgresRepository(sqlx.NewDb(db, "postgres"))
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.repo.GetDB().Close()
}

func claimRows() *sqlmock.Rows {
	return sqlmock.NewRows(claimColumns)
}

func addClaimRow(rows *sqlmock.Rows, id, claimNo string, assignedTo interface{}) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, claimNo, "Patient "+id, 600.0, nil, nil, nil, nil, 0.0, "P-1", nil, nil,
		assignedTo, "{}", nil, nil, nil, nil, nil, now, now)
}

func historyRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "claim_id", "seq", "remarks", "status", "action_taken",
		"date_worked", "next_follow_up", "worked_by", "created_at"})
}

func (s *RepositoryTestSuite) TestCreateUser_Duplicate() {
	s.mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_pkey"})

	err := s.repo.CreateUser(s.ctx, &models.User{OdooID: "ravi", Name: "Ravi", Role: models.RoleAgent})

	s.True(errors.Is(err, ErrDuplicateKey))
}

func (s *RepositoryTestSuite) TestCreateUser_WrapsDriverErrors() {
	s.mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("connection reset"))

	err := s.repo.CreateUser(s.ctx, &models.User{OdooID: "ravi"})

	s.Require().Error(err)
	s.False(errors.Is(err, ErrDuplicateKey))
	s.Contains(err.Error(), "create user")
}

func (s *RepositoryTestSuite) TestGetUserByID_NotFound() {
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE odoo_id = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"odoo_id"}))

	user, err := s.repo.GetUserByID(s.ctx, "ghost")

	s.NoError(err)
	s.Nil(user)
}

func (s *RepositoryTestSuite) TestListUsers_ByRole() {
	now := time.Now()
	rows := sqlmock.NewRows([]string{"odoo_id", "name", "email", "password", "role", "avatar", "color",
		"is_default_password", "created_at", "updated_at"}).
		AddRow("ravi", "Ravi", nil, "hash", "agent", "R", "#fff", true, now, now)
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role = $1 ORDER BY created_at, odoo_id")).
		WithArgs(models.RoleAgent).
		WillReturnRows(rows)

	users, err := s.repo.ListUsers(s.ctx, models.RoleAgent)

	s.Require().NoError(err)
	s.Require().Len(users, 1)
	s.Equal("ravi", users[0].OdooID)
	s.Equal(models.RoleAgent, users[0].Role)
	s.True(users[0].IsDefaultPassword)
}

func (s *RepositoryTestSuite) TestUpdateClaim_Missing() {
	s.mock.ExpectExec(regexp.QuoteMeta("UPDATE claims SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.repo.UpdateClaim(s.ctx, &models.Claim{ID: "missing", ClaimNo: "CLM1"})

	s.True(errors.Is(err, ErrNotFound))
}

func (s *RepositoryTestSuite) TestFindClaims_Buckets() {
	cutoff := time.Date(2024, 1, 10, 5, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query models.ClaimQuery
		where string
	}{
		{"all", models.ClaimQuery{Bucket: models.BucketAll}, "FROM claims ORDER BY created_at, claim_no ASC"},
		{
			"pending for agent",
			models.ClaimQuery{AssignedTo: "ravi", Bucket: models.BucketPending},
			"WHERE assigned_to = $1 AND date_worked IS NULL AND (status IS NULL OR status NOT IN ($2, $3, $4))",
		},
		{"paid", models.ClaimQuery{Bucket: models.BucketPaid}, "WHERE status IN ($1, $2, $3)"},
		{
			"overdue",
			models.ClaimQuery{Bucket: models.BucketOverdue, OverdueBefore: cutoff},
			"WHERE next_follow_up < $1 AND (status IS NULL OR status NOT IN ($2, $3, $4))",
		},
		{
			"worked range",
			models.ClaimQuery{Bucket: models.BucketAll, WorkedFrom: &cutoff, WorkedTo: &cutoff},
			"WHERE date_worked >= $1 AND date_worked <= $2",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			s.mock.ExpectQuery(regexp.QuoteMeta(tt.where)).
				WillReturnRows(addClaimRow(claimRows(), "c1", "CLM001", "ravi"))
			s.mock.ExpectQuery(regexp.QuoteMeta("FROM claim_history WHERE claim_id = ANY($1)")).
				WillReturnRows(historyRows().
					AddRow("h1", "c1", 1, "called payer", "waiting", "Called", time.Now(), nil, "Ravi", time.Now()))

			claims, err := s.repo.FindClaims(s.ctx, tt.query)

			s.Require().NoError(err)
			s.Require().Len(claims, 1)
			s.Equal("CLM001", claims[0].ClaimNo)
			s.Equal(pq.StringArray{}, claims[0].SharedWith)
			s.Require().Len(claims[0].History, 1)
			s.Equal("called payer", claims[0].History[0].Remarks)
			s.NoError(s.mock.ExpectationsWereMet())
		})
	}
}

func (s *RepositoryTestSuite) TestFindClaims_EmptySkipsHistory() {
	s.mock.ExpectQuery("FROM claims").WillReturnRows(claimRows())

	claims, err := s.repo.FindClaims(s.ctx, models.ClaimQuery{})

	s.NoError(err)
	s.Empty(claims)
	s.NotNil(claims)
}

func (s *RepositoryTestSuite) TestCountClaims() {
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM claims WHERE status IN ($1, $2, $3)")).
		WithArgs("paid", "PAID", "PAID_TO_OTHER_PROV").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.repo.CountClaims(s.ctx, models.ClaimQuery{Bucket: models.BucketPaid})

	s.NoError(err)
	s.Equal(7, n)
}

func (s *RepositoryTestSuite) TestBulkInsertClaims_SkipsDuplicates() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec("ON CONFLICT \\(claim_no\\) DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec("ON CONFLICT \\(claim_no\\) DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectExec("ON CONFLICT \\(claim_no\\) DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	claims := []*models.Claim{
		{ClaimNo: "CLM1", Patient: "A"},
		{ClaimNo: "CLM1", Patient: "A again"},
		{ClaimNo: "CLM2", Patient: "B"},
	}
	n, err := s.repo.BulkInsertClaims(s.ctx, claims)

	s.NoError(err)
	s.Equal(2, n)
	for _, c := range claims {
		s.NotEmpty(c.ID)
		s.NotNil(c.SharedWith)
	}
}

func (s *RepositoryTestSuite) TestBulkInsertClaims_RollsBackOnError() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec("INSERT INTO claims").WillReturnError(errors.New("disk full"))
	s.mock.ExpectRollback()

	_, err := s.repo.BulkInsertClaims(s.ctx, []*models.Claim{{ClaimNo: "CLM1", Patient: "A"}})

	s.Error(err)
}

func (s *RepositoryTestSuite) TestRecordWork() {
	claim := &models.Claim{
		ID:           "c1",
		Status:       models.Ptr("waiting"),
		ActionTaken:  models.Ptr("Called"),
		LastWorkedBy: models.Ptr("ravi"),
	}
	entry := &models.HistoryEntry{Remarks: "called", Status: "waiting", ActionTaken: "Called", WorkedBy: "Ravi"}

	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta("UPDATE claims SET status = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO claim_history")).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(3))
	s.mock.ExpectCommit()

	s.Require().NoError(s.repo.RecordWork(s.ctx, claim, entry))
	s.Equal(3, entry.Seq)
	s.Equal("c1", entry.ClaimID)
	s.NotEmpty(entry.ID)
}

func (s *RepositoryTestSuite) TestRecordWork_MissingClaim() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec("UPDATE claims").WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectRollback()

	err := s.repo.RecordWork(s.ctx, &models.Claim{ID: "gone"}, &models.HistoryEntry{})

	s.True(errors.Is(err, ErrNotFound))
}

func (s *RepositoryTestSuite) TestDeleteClaim() {
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM claims WHERE id = $1 FOR UPDATE")).
		WithArgs("c1").
		WillReturnRows(addClaimRow(claimRows(), "c1", "CLM001", nil))
	s.mock.ExpectQuery("FROM claim_history").WillReturnRows(historyRows())
	s.mock.ExpectExec("INSERT INTO deleted_claims").WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM claims WHERE id = $1")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	deleted, err := s.repo.DeleteClaim(s.ctx, "c1", "admin")

	s.Require().NoError(err)
	s.Require().NotNil(deleted)
	s.Equal("CLM001", deleted.ClaimNo)
	s.Equal("admin", deleted.DeletedBy)
	s.Contains(string(deleted.Snapshot), `"claimNo":"CLM001"`)
}

func (s *RepositoryTestSuite) TestDeleteClaim_NotFound() {
	s.mock.ExpectBegin()
	s.mock.ExpectQuery("FROM claims").WillReturnRows(claimRows())
	s.mock.ExpectRollback()

	deleted, err := s.repo.DeleteClaim(s.ctx, "nope", "admin")

	s.NoError(err)
	s.Nil(deleted)
}

func (s *RepositoryTestSuite) TestRestoreClaim() {
	snapshot := `{"id":"c1","claimNo":"CLM001","patient":"P","balance":10,"sharedWith":null,
		"history":[{"id":"h1","seq":1,"remarks":"r","status":"waiting","actionTaken":"a","dateWorked":"2024-01-01T00:00:00Z","workedBy":"Ravi"}]}`

	s.mock.ExpectBegin()
	s.mock.ExpectQuery("FROM deleted_claims WHERE id = \\$1 FOR UPDATE").
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "claim_id", "claim_no", "snapshot", "deleted_by", "deleted_at"}).
			AddRow("d1", "c1", "CLM001", []byte(snapshot), "admin", time.Now()))
	s.mock.ExpectExec("INSERT INTO claims").WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec("INSERT INTO claim_history").WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec("DELETE FROM deleted_claims").WithArgs("d1").WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	claim, err := s.repo.RestoreClaim(s.ctx, "d1")

	s.Require().NoError(err)
	s.Require().NotNil(claim)
	s.Equal("c1", claim.ID)
	s.NotNil(claim.SharedWith)
	s.Require().Len(claim.History, 1)
	s.Equal("c1", claim.History[0].ClaimID)
}

func (s *RepositoryTestSuite) TestRestoreClaim_NumberReused() {
	s.mock.ExpectBegin()
	s.mock.ExpectQuery("FROM deleted_claims").
		WillReturnRows(sqlmock.NewRows([]string{"id", "claim_id", "claim_no", "snapshot", "deleted_by", "deleted_at"}).
			AddRow("d1", "c1", "CLM001", []byte(`{"id":"c1","claimNo":"CLM001"}`), "admin", time.Now()))
	s.mock.ExpectExec("INSERT INTO claims").WillReturnError(&pq.Error{Code: "23505"})
	s.mock.ExpectRollback()

	_, err := s.repo.RestoreClaim(s.ctx, "d1")

	s.True(errors.Is(err, ErrDuplicateKey))
}

func (s *RepositoryTestSuite) TestListActivity() {
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM activity_logs ORDER BY created_at DESC LIMIT $1")).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor", "action", "target_type", "target_id", "details", "created_at"}).
			AddRow("a1", "admin", "claim.delete", "claim", "c1", "CLM001", time.Now()))

	logs, err := s.repo.ListActivity(s.ctx, 50)

	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal("claim.delete", logs[0].Action)
}
