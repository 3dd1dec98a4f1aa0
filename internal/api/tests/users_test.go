package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rongwang/claims-tracker/internal/api/testutils"
	"github.com/rongwang/claims-tracker/internal/models"
)

func TestListUsers(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users", nil, testutils.AuthHeaders(testCtx.AgentJWT))
	require.Equal(t, http.StatusOK, w.Code)

	var users []models.User
	testutils.DecodeJSON(t, w, &users)
	require.Len(t, users, 3)
	for _, u := range users {
		assert.Equal(t, models.RoleAgent, u.Role)
	}
	assert.NotContains(t, w.Body.String(), "password")
}

func TestCreateUser(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	req := models.CreateUserRequest{Username: "Priya", Name: "priya", Password: "secret"}

	// Agents cannot create users
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/users", req, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/users", req, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.UserResponse
	testutils.DecodeJSON(t, w, &resp)
	assert.Equal(t, "priya", resp.User.OdooID)
	assert.Equal(t, "P", resp.User.Avatar)
	assert.Equal(t, models.RoleAgent, resp.User.Role)
	assert.Equal(t, "EMP004", resp.User.EmpID)
	assert.NotEmpty(t, resp.User.Color)

	// Duplicate username
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/users", req, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing fields
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/users",
		models.CreateUserRequest{Username: "x"}, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Only the master may create admins
	adminReq := models.CreateUserRequest{Username: "lead", Name: "Lead", Password: "secret", Role: "admin"}
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/users", adminReq, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/users", adminReq, testutils.AuthHeaders(testCtx.MasterJWT))
	assert.Equal(t, http.StatusCreated, w.Code)

	// The new agent can sign in
	assert.NotEmpty(t, testutils.Login(t, testCtx.Router, "priya", "secret"))
}

func TestGetUser(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/ravi", nil, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/chirag", nil, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/ghost", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateUser_ChangePassword(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/users/ravi",
		map[string]string{"currentPassword": "wrong", "newPassword": "better"},
		testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/users/ravi",
		map[string]string{"name": "Ravi K", "currentPassword": "pass123", "newPassword": "better"},
		testutils.AuthHeaders(testCtx.AgentJWT))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.UserResponse
	testutils.DecodeJSON(t, w, &resp)
	assert.Equal(t, "Ravi K", resp.User.Name)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/login",
		models.LoginRequest{Username: "ravi", Password: "pass123"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/login",
		models.LoginRequest{Username: "ravi", Password: "better"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var login models.LoginResponse
	testutils.DecodeJSON(t, w, &login)
	assert.False(t, login.IsDefaultPassword)

	// Agents cannot edit other users
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/users/chirag",
		map[string]string{"name": "Hacked"}, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteUser(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/users/chirag", nil, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin accounts cannot be deleted through this endpoint
	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/users/yashpal", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/users/chirag", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/chirag", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
