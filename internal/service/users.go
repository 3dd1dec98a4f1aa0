package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/rongwang/claims-tracker/internal/models"
)

// ListAgents returns every agent. Any signed in user may list them so
// claims can be shared and assigned.
func (s *DefaultService) ListAgents(ctx context.Context, actor models.Actor) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx, models.RoleAgent)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

func (s *DefaultService) GetUser(ctx context.Context, actor models.Actor, id string) (*models.User, error) {
	if actor.ID != id && !actor.Can(models.CapManageUsers) {
		return nil, forbidden()
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, notFound("User")
	}
	return user, nil
}

func (s *DefaultService) CreateUser(ctx context.Context, actor models.Actor, req models.CreateUserRequest) (*models.UserResponse, error) {
	if !actor.Can(models.CapManageUsers) {
		return nil, forbidden()
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	name := strings.TrimSpace(req.Name)
	if username == "" || name == "" || req.Password == "" {
		return nil, validationError("Username, name, and password are required")
	}

	role := models.RoleAgent
	if req.Role != "" {
		parsed, ok := models.ParseRole(req.Role)
		if !ok || parsed == models.RoleMaster {
			return nil, validationError("Invalid role %q", req.Role)
		}
		role = parsed
	}
	if role == models.RoleAdmin && !actor.Can(models.CapManageAdmins) {
		return nil, forbidden()
	}

	existing, err := s.repo.GetUserByID(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}
	if existing != nil {
		return nil, newError(ErrDuplicate, "Username already exists")
	}

	// Employee ids follow the agent count at creation time
	agents, err := s.repo.ListUsers(ctx, models.RoleAgent)
	if err != nil {
		return nil, fmt.Errorf("error counting agents: %w", err)
	}
	empID := fmt.Sprintf("EMP00%d", len(agents)+1)

	hashed, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	color := strings.TrimSpace(req.Color)
	if color == "" {
		color = randomColor()
	}

	user := &models.User{
		OdooID:            username,
		Name:              name,
		Email:             optionalString(req.Email),
		Password:          hashed,
		Role:              role,
		Avatar:            avatarFor(name),
		Color:             color,
		IsDefaultPassword: true,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, storeError(err, "Username")
	}

	s.audit(ctx, actor, "user.create", "user", user.OdooID, string(role))

	summary := summarize(user)
	summary.EmpID = empID
	return &models.UserResponse{Message: "User created successfully", User: summary}, nil
}

// UpdateUser changes a profile. A new password requires the current one and
// clears the default password flag.
func (s *DefaultService) UpdateUser(ctx context.Context, actor models.Actor, id string, req models.UpdateUserRequest) (*models.UserResponse, error) {
	if actor.ID != id && !actor.Can(models.CapManageUsers) {
		return nil, forbidden()
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, notFound("User")
	}

	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			return nil, validationError("Current password is required to change password")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
			return nil, newError(ErrInvalidCredentials, "Current password is incorrect")
		}
		hashed, err := s.hashPassword(req.NewPassword)
		if err != nil {
			return nil, err
		}
		user.Password = hashed
		user.IsDefaultPassword = false
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
		user.Avatar = avatarFor(name)
	}
	req.Email.Apply(&user.Email)

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, storeError(err, "User")
	}

	if actor.ID != id {
		s.audit(ctx, actor, "user.update", "user", id, "")
	}

	return &models.UserResponse{Message: "Profile updated successfully", User: summarize(user)}, nil
}

// DeleteUser removes an agent. Admin accounts cannot be deleted this way.
func (s *DefaultService) DeleteUser(ctx context.Context, actor models.Actor, id string) error {
	if !actor.Can(models.CapManageUsers) {
		return forbidden()
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return fmt.Errorf("error getting user: %w", err)
	}
	if user == nil || user.Role != models.RoleAgent {
		return notFound("User")
	}

	ok, err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	if !ok {
		return notFound("User")
	}

	s.audit(ctx, actor, "user.delete", "user", id, user.Name)
	return nil
}

func summarize(u *models.User) models.UserSummary {
	return models.UserSummary{
		OdooID: u.OdooID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Avatar: u.Avatar,
		Color:  u.Color,
	}
}

func avatarFor(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}

func randomColor() string {
	return fmt.Sprintf("#%06x", rand.Intn(0x1000000))
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
