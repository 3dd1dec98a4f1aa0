package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/rongwang/claims-tracker/internal/models"
)

var (
	// ErrDuplicateKey is returned when a unique column (claim number,
	// username) already exists
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNotFound is returned by writes that target a missing row. Reads
	// return a nil result instead.
	ErrNotFound = errors.New("not found")
)

const uniqueViolation = "23505"

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, role models.Role) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) (bool, error)
	CountUsers(ctx context.Context) (int, error)

	// Claim operations
	CreateClaim(ctx context.Context, claim *models.Claim) error
	BulkInsertClaims(ctx context.Context, claims []*models.Claim) (int, error)
	GetClaim(ctx context.Context, id string) (*models.Claim, error)
	ListClaims(ctx context.Context) ([]models.Claim, error)
	UpdateClaim(ctx context.Context, claim *models.Claim) error
	FindClaims(ctx context.Context, q models.ClaimQuery) ([]models.Claim, error)
	CountClaims(ctx context.Context, q models.ClaimQuery) (int, error)

	// RecordWork stores the claim's work fields and appends the history
	// entry in one transaction. entry.Seq is set from the stored row.
	RecordWork(ctx context.Context, claim *models.Claim, entry *models.HistoryEntry) error

	// Deletion operations
	DeleteClaim(ctx context.Context, id, deletedBy string) (*models.DeletedClaim, error)
	ListDeletedClaims(ctx context.Context) ([]models.DeletedClaim, error)
	RestoreClaim(ctx context.Context, deletedID string) (*models.Claim, error)

	// Activity operations
	AddActivity(ctx context.Context, entry *models.ActivityLog) error
	ListActivity(ctx context.Context, limit int) ([]models.ActivityLog, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return errors.Wrap(r.db.PingContext(ctx), "ping database")
}

// translate maps driver errors onto repository errors and adds context
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateKey
	}
	return errors.Wrap(err, msg)
}

// rollback is deferred by every transaction; it is a no-op after commit
func rollback(tx *sqlx.Tx) {
	_ = tx.Rollback()
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (odoo_id, name, email, password, role, avatar, color, is_default_password, created_at, updated_at)
		VALUES (:odoo_id, :name, :email, :password, :role, :avatar, :color, :is_default_password, :created_at, :updated_at)
	`

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.NamedExecContext(ctx, query, user)
	return translate(err, "create user")
}

const userColumns = `odoo_id, name, email, password, role, avatar, color, is_default_password, created_at, updated_at`

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE odoo_id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, translate(err, "get user")
	}

	return &user, nil
}

// ListUsers returns users with the given role, or everyone when role is empty
func (r *PostgresRepository) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []interface{}{}
	if role != "" {
		query += ` WHERE role = $1`
		args = append(args, role)
	}
	query += ` ORDER BY created_at, odoo_id`

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, translate(err, "list users")
	}
	return users, nil
}

func (r *PostgresRepository) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET name = :name, email = :email, password = :password, role = :role,
			avatar = :avatar, color = :color, is_default_password = :is_default_password, updated_at = :updated_at
		WHERE odoo_id = :odoo_id
	`

	user.UpdatedAt = time.Now().UTC()

	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return translate(err, "update user")
	}
	return requireRow(res)
}

func (r *PostgresRepository) DeleteUser(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE odoo_id = $1`, id)
	if err != nil {
		return false, translate(err, "delete user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, translate(err, "delete user")
	}
	return n > 0, nil
}

func (r *PostgresRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, translate(err, "count users")
	}
	return n, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
