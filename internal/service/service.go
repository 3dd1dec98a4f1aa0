package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/rongwang/claims-tracker/internal/importer"
	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/repository"
	"github.com/rongwang/claims-tracker/internal/workqueue"
)

// Service defines all the business logic operations. Every operation except
// Login and Seed runs on behalf of an authenticated actor.
type Service interface {
	// Authentication
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)

	// User operations
	ListAgents(ctx context.Context, actor models.Actor) ([]models.User, error)
	GetUser(ctx context.Context, actor models.Actor, id string) (*models.User, error)
	CreateUser(ctx context.Context, actor models.Actor, req models.CreateUserRequest) (*models.UserResponse, error)
	UpdateUser(ctx context.Context, actor models.Actor, id string, req models.UpdateUserRequest) (*models.UserResponse, error)
	DeleteUser(ctx context.Context, actor models.Actor, id string) error

	// Claim operations
	ListClaims(ctx context.Context, actor models.Actor) ([]models.Claim, error)
	GetClaim(ctx context.Context, actor models.Actor, id string) (*models.Claim, error)
	CreateClaim(ctx context.Context, actor models.Actor, in models.ClaimInput) (*models.Claim, error)
	UpdateClaim(ctx context.Context, actor models.Actor, id string, patch models.ClaimPatch) (*models.Claim, error)
	DeleteClaim(ctx context.Context, actor models.Actor, id string) error
	RecordWork(ctx context.Context, actor models.Actor, id string, req models.RecordWorkRequest) (*models.Claim, error)
	AssignClaim(ctx context.Context, actor models.Actor, id string, req models.AssignRequest) (*models.Claim, error)
	ShareClaim(ctx context.Context, actor models.Actor, id string, req models.ShareRequest) (*models.Claim, error)
	Queue(ctx context.Context, actor models.Actor, f workqueue.Filter, page, perPage int) (*workqueue.Page, error)

	// Bulk operations
	BulkCreateClaims(ctx context.Context, actor models.Actor, inputs []models.ClaimInput) (*models.BulkImportResponse, error)
	ImportRows(ctx context.Context, actor models.Actor, rows []importer.Row) (*models.BulkImportResponse, error)
	ImportCSV(ctx context.Context, actor models.Actor, r io.Reader) (*models.BulkImportResponse, error)
	ExportClaims(ctx context.Context, actor models.Actor) ([]models.Claim, error)

	// Deleted claims
	ListDeletedClaims(ctx context.Context, actor models.Actor) ([]models.DeletedClaim, error)
	RestoreClaim(ctx context.Context, actor models.Actor, deletedID string) (*models.Claim, error)

	// Reports
	AgentDailyReport(ctx context.Context, actor models.Actor, userID string) (*models.AgentDailyReport, error)
	AgentReport(ctx context.Context, actor models.Actor, userID, startDate, endDate string) (*models.AgentReport, error)
	AdminAgentReport(ctx context.Context, actor models.Actor, userID, startDate, endDate string) (*models.AgentReport, error)
	AdminClaimsReport(ctx context.Context, actor models.Actor, filterType, startDate, endDate string) (*models.ClaimsReport, error)
	AdminStats(ctx context.Context, actor models.Actor) (*models.StatsResponse, error)
	AgentSummaries(ctx context.Context, actor models.Actor) ([]workqueue.AgentSummary, error)
	ListActivity(ctx context.Context, actor models.Actor, limit int) ([]models.ActivityLog, error)

	// Seed creates the default users and sample claims when the store is empty
	Seed(ctx context.Context) error

	// Location is the business timezone
	Location() *time.Location
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	jwtSecret     []byte
	tokenDuration time.Duration
	loc           *time.Location
	logger        zerolog.Logger
	now           func() time.Time
	passwordCost  int
}

// Option customizes a DefaultService
type Option func(*DefaultService)

// WithTokenTTL sets how long issued tokens stay valid
func WithTokenTTL(d time.Duration) Option {
	return func(s *DefaultService) { s.tokenDuration = d }
}

// WithLocation sets the business timezone
func WithLocation(loc *time.Location) Option {
	return func(s *DefaultService) { s.loc = loc }
}

// WithLogger sets the service logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *DefaultService) { s.logger = l }
}

// WithPasswordCost sets the bcrypt cost of new password hashes
func WithPasswordCost(cost int) Option {
	return func(s *DefaultService) { s.passwordCost = cost }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *DefaultService) { s.now = now }
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, jwtSecret string, opts ...Option) *DefaultService {
	s := &DefaultService{
		repo:          repo,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
		loc:           time.UTC,
		logger:        zerolog.Nop(),
		now:           time.Now,
		passwordCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the business timezone
func (s *DefaultService) Location() *time.Location {
	return s.loc
}

// Authentication methods
func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.Password == "" {
		return nil, validationError("Username and password required")
	}

	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("login while database unavailable")
		return nil, newError(ErrUnavailable, "Database connecting... Please wait and try again.")
	}

	user, err := s.repo.GetUserByID(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, newError(ErrInvalidCredentials, "Invalid credentials")
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, newError(ErrInvalidCredentials, "Invalid credentials")
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.LoginResponse{
		ID:                strings.ToUpper(user.OdooID),
		OdooID:            user.OdooID,
		Name:              user.Name,
		Email:             user.Email,
		Role:              user.Role,
		Avatar:            user.Avatar,
		Color:             user.Color,
		IsDefaultPassword: user.IsDefaultPassword,
		Token:             token,
		ExpiresIn:         int(s.tokenDuration.Seconds()),
	}, nil
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  user.OdooID,
		"name": user.Name,
		"role": string(user.Role),
		"exp":  now.Add(s.tokenDuration).Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *DefaultService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hashed), nil
}

// audit records a privileged action. A failed write is logged, never
// returned; the action itself already happened.
func (s *DefaultService) audit(ctx context.Context, actor models.Actor, action, targetType, targetID, details string) {
	entry := &models.ActivityLog{
		Actor:      actor.ID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
	}
	if err := s.repo.AddActivity(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Str("target_id", targetID).Msg("failed to write activity log")
	}
}

// storeError converts repository errors into service errors
func storeError(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateKey):
		return newError(ErrDuplicate, "%s already exists", what)
	case errors.Is(err, repository.ErrNotFound):
		return notFound(what)
	}
	return err
}

func (s *DefaultService) today() time.Time {
	return s.now().In(s.loc)
}
