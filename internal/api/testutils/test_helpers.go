package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rongwang/claims-tracker/internal/api"
	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/repository/repotest"
	"github.com/rongwang/claims-tracker/internal/service"
	"github.com/rongwang/claims-tracker/internal/utils"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository *repotest.Memory
	Service    *service.DefaultService
	JWTSecret  []byte
	Location   *time.Location

	// Tokens for the seeded users plus an extra admin
	MasterJWT string // yashpal
	AdminJWT  string // boss
	AgentJWT  string // ravi
	OtherJWT  string // chirag
}

// SetupTestContext creates a router over a seeded in-memory store
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	repo := repotest.NewMemory()
	svc := service.NewDefaultService(repo, testJWTSecret,
		service.WithLocation(loc),
		service.WithPasswordCost(bcrypt.MinCost),
	)
	require.NoError(t, svc.Seed(context.Background()))

	logger := utils.NopLogger()
	handler := api.NewHandler(svc, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(api.RequestID(), api.Recovery(logger), api.JWTSecret([]byte(testJWTSecret)))
	handler.SetupRoutes(router)

	testCtx := &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		JWTSecret:  []byte(testJWTSecret),
		Location:   loc,
	}

	master := models.Actor{ID: "yashpal", Name: "Yashpal", Role: models.RoleMaster}
	_, err = svc.CreateUser(context.Background(), master, models.CreateUserRequest{
		Username: "boss",
		Name:     "Boss",
		Password: "boss123",
		Role:     string(models.RoleAdmin),
	})
	require.NoError(t, err, "Failed to create test admin")

	testCtx.MasterJWT = Login(t, router, "yashpal", "admin123")
	testCtx.AdminJWT = Login(t, router, "boss", "boss123")
	testCtx.AgentJWT = Login(t, router, "ravi", "pass123")
	testCtx.OtherJWT = Login(t, router, "chirag", "pass123")
	return testCtx
}

// Login signs in through the API and returns the token
func Login(t *testing.T, r http.Handler, username, password string) string {
	t.Helper()

	w := PerformRequest(r, http.MethodPost, "/api/login",
		models.LoginRequest{Username: username, Password: password}, nil)
	require.Equal(t, http.StatusOK, w.Code, "login %s: %s", username, w.Body.String())

	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

// ClaimID returns the id of the stored claim with the given number
func (tc *TestContext) ClaimID(t *testing.T, claimNo string) string {
	t.Helper()

	claims, err := tc.Repository.ListClaims(context.Background())
	require.NoError(t, err)
	for _, c := range claims {
		if c.ClaimNo == claimNo {
			return c.ID
		}
	}
	t.Fatalf("claim %s not found", claimNo)
	return ""
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// PerformUpload posts content as the multipart form field "file"
func PerformUpload(r http.Handler, path, filename string, content []byte, headers map[string]string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", filename)
	_, _ = part.Write(content)
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// DecodeJSON unmarshals the recorded response body into v
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
