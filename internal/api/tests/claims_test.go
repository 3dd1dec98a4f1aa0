package api_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rongwang/claims-tracker/internal/api/testutils"
	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/workqueue"
)

func TestListAndGetClaims(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/claims", nil, testutils.AuthHeaders(testCtx.AgentJWT))
	require.Equal(t, http.StatusOK, w.Code)

	var claims []models.Claim
	testutils.DecodeJSON(t, w, &claims)
	require.Len(t, claims, 6)
	assert.Equal(t, "CLM001", claims[0].ClaimNo)

	id := testCtx.ClaimID(t, "CLM001")
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/claims/"+id, nil, testutils.AuthHeaders(testCtx.AgentJWT))
	require.Equal(t, http.StatusOK, w.Code)

	var claim models.Claim
	testutils.DecodeJSON(t, w, &claim)
	assert.Equal(t, "John Doe", claim.Patient)
	assert.Len(t, claim.History, 1)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/claims/missing", nil, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateClaim(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	in := models.ClaimInput{ClaimNo: "CLM100", Patient: "New Patient", Balance: 120, AssignedTo: models.Ptr("ravi")}

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims", in, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims", in, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var claim models.Claim
	testutils.DecodeJSON(t, w, &claim)
	assert.NotEmpty(t, claim.ID)
	assert.Empty(t, claim.History)
	assert.Empty(t, claim.SharedWith)

	// Same claim number again
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims", in, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing patient
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims",
		models.ClaimInput{ClaimNo: "CLM101"}, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateClaim(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	id := testCtx.ClaimID(t, "CLM002")

	// Owner edits a field; absent fields stay as they were
	w := testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/claims/"+id,
		map[string]interface{}{"priority": "High"}, testutils.AuthHeaders(testCtx.AgentJWT))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var claim models.Claim
	testutils.DecodeJSON(t, w, &claim)
	assert.Equal(t, "High", models.Deref(claim.Priority))
	assert.Equal(t, "Jane Smith", claim.Patient)
	assert.Equal(t, models.StatusInReview, models.Deref(claim.Status))

	// Setting a paid status drops the follow-up
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/claims/"+id,
		map[string]interface{}{"status": models.StatusPaid}, testutils.AuthHeaders(testCtx.AgentJWT))
	require.Equal(t, http.StatusOK, w.Code)
	claim = models.Claim{}
	testutils.DecodeJSON(t, w, &claim)
	assert.Nil(t, claim.NextFollowUp)

	// Agents cannot reassign
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/claims/"+id,
		map[string]interface{}{"assignedTo": "chirag"}, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Nor touch claims that are not theirs
	other := testCtx.ClaimID(t, "CLM003")
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/claims/"+other,
		map[string]interface{}{"priority": "Low"}, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRecordWork(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	id := testCtx.ClaimID(t, "CLM005")

	work := models.RecordWorkRequest{
		Remarks:     "Called payer, claim on file",
		Status:      models.StatusInReview,
		ActionTaken: "Called payer",
	}

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims/"+id+"/work", work, testutils.AuthHeaders(testCtx.AgentJWT))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var claim models.Claim
	testutils.DecodeJSON(t, w, &claim)
	require.Len(t, claim.History, 1)
	assert.Equal(t, 1, claim.History[0].Seq)
	assert.Equal(t, "Ravi", claim.History[0].WorkedBy)
	assert.Equal(t, "ravi", models.Deref(claim.LastWorkedBy))
	assert.Equal(t, models.StatusInReview, models.Deref(claim.Status))
	require.NotNil(t, claim.DateWorked)
	require.NotNil(t, claim.NextFollowUp)
	// Balance 890 follows up after 14 days
	loc := testCtx.Location
	assert.Equal(t,
		claim.DateWorked.In(loc).AddDate(0, 0, 14).Format("2006-01-02"),
		claim.NextFollowUp.In(loc).Format("2006-01-02"))

	// Missing remarks
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims/"+id+"/work",
		models.RecordWorkRequest{Status: models.StatusWaiting, ActionTaken: "Called"}, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Someone else's claim
	other := testCtx.ClaimID(t, "CLM003")
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims/"+other+"/work", work, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Shared claims can be worked
	shared := testCtx.ClaimID(t, "CLM001")
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims/"+shared+"/work", work, testutils.AuthHeaders(testCtx.AgentJWT))
	require.Equal(t, http.StatusOK, w.Code)
	claim = models.Claim{}
	testutils.DecodeJSON(t, w, &claim)
	assert.Len(t, claim.History, 2)
}

func TestRecordWork_PaidClearsFollowUp(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	id := testCtx.ClaimID(t, "CLM002")

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims/"+id+"/work",
		models.RecordWorkRequest{Remarks: "EOB received", Status: models.StatusPaidLow, ActionTaken: "Payment posted", FollowUpDays: 7},
		testutils.AuthHeaders(testCtx.AgentJWT))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var claim models.Claim
	testutils.DecodeJSON(t, w, &claim)
	assert.Nil(t, claim.NextFollowUp)
	assert.Nil(t, claim.History[len(claim.History)-1].NextFollowUp)
}

func TestAssignAndShare(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	id := testCtx.ClaimID(t, "CLM001")

	// Agents cannot assign
	w := testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/claims/"+id+"/assign",
		map[string]string{"assignedTo": "chirag"}, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Unknown agent
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/claims/"+id+"/assign",
		map[string]string{"assignedTo": "ghost"}, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Reassigning revokes the shares
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/claims/"+id+"/assign",
		map[string]string{"assignedTo": "chirag"}, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var claim models.Claim
	testutils.DecodeJSON(t, w, &claim)
	assert.Equal(t, "chirag", models.Deref(claim.AssignedTo))
	assert.Empty(t, claim.SharedWith)

	// The new owner shares with ravi; the owner is never in the list
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/claims/"+id+"/share",
		map[string][]string{"sharedWith": {"ravi", "chirag", "ravi"}}, testutils.AuthHeaders(testCtx.OtherJWT))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	claim = models.Claim{}
	testutils.DecodeJSON(t, w, &claim)
	assert.Equal(t, []string{"ravi"}, []string(claim.SharedWith))

	// A shared agent cannot re-share
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/claims/"+id+"/share",
		map[string][]string{"sharedWith": {"shubham"}}, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Unassign
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/claims/"+id+"/assign",
		map[string]interface{}{"assignedTo": nil}, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)
	claim = models.Claim{}
	testutils.DecodeJSON(t, w, &claim)
	assert.Nil(t, claim.AssignedTo)
}

func TestDeleteAndRestoreClaim(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	id := testCtx.ClaimID(t, "CLM001")

	w := testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/claims/"+id, nil, testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/claims/"+id, nil, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/claims/"+id, nil, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/claims/deleted", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)

	var deleted []models.DeletedClaim
	testutils.DecodeJSON(t, w, &deleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, "CLM001", deleted[0].ClaimNo)
	assert.Equal(t, "boss", deleted[0].DeletedBy)

	restorePath := "/api/claims/deleted/" + deleted[0].ID + "/restore"

	// Only the master restores
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, restorePath, nil, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, restorePath, nil, testutils.AuthHeaders(testCtx.MasterJWT))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var claim models.Claim
	testutils.DecodeJSON(t, w, &claim)
	assert.Equal(t, "CLM001", claim.ClaimNo)
	assert.Len(t, claim.History, 1)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, restorePath, nil, testutils.AuthHeaders(testCtx.MasterJWT))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBulkCreateClaims(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	batch := []models.ClaimInput{
		{ClaimNo: "CLM200", Patient: "A"},
		{ClaimNo: "CLM201", Patient: "B"},
	}
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims/bulk", batch, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.BulkImportResponse
	testutils.DecodeJSON(t, w, &resp)
	assert.Equal(t, 2, resp.Imported)
	assert.Zero(t, resp.Errors)

	// One duplicate, one new
	batch = []models.ClaimInput{
		{ClaimNo: "CLM200", Patient: "A"},
		{ClaimNo: "CLM202", Patient: "C"},
	}
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims/bulk", batch, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusMultiStatus, w.Code)

	resp = models.BulkImportResponse{}
	testutils.DecodeJSON(t, w, &resp)
	assert.Equal(t, 1, resp.Imported)
	assert.Equal(t, 1, resp.Errors)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims/bulk",
		map[string]string{"claimNo": "x"}, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportClaims_JSONRows(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	rows := []map[string]interface{}{
		{"Claim No": "CLM300", "Patient Name": "Row One", "Balance": "$1,250.50", "DOS": "15/03/24", "AssignTo": "ravi"},
		{"Claim#": "CLM301", "Patient": "Row Two", "DOS": 45366},
		{"Claim No": "CLM302"},
	}
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/claims/import", rows, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.BulkImportResponse
	testutils.DecodeJSON(t, w, &resp)
	assert.Equal(t, 2, resp.Imported)
	assert.Equal(t, 1, resp.Dropped)

	claims, err := testCtx.Repository.FindClaims(context.Background(), models.ClaimQuery{AssignedTo: "ravi", Bucket: models.BucketAll})
	require.NoError(t, err)
	var found *models.Claim
	for i := range claims {
		if claims[i].ClaimNo == "CLM300" {
			found = &claims[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 1250.50, found.Balance)
	require.NotNil(t, found.DOS)
	assert.Equal(t, "2024-03-15", found.DOS.Format("2006-01-02"))
}

func TestImportClaims_CSVUpload(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	csv := "\ufeffClaim No,Patient Name,Balance,DOS\nCLM400,Csv One,100,2024-02-01\nCLM001,Existing,5,\n,No Number,1,\n"
	w := testutils.PerformUpload(testCtx.Router, "/api/claims/import", "claims.csv", []byte(csv), testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())

	var resp models.BulkImportResponse
	testutils.DecodeJSON(t, w, &resp)
	assert.Equal(t, 1, resp.Imported)
	assert.Equal(t, 1, resp.Errors)
	assert.Equal(t, 1, resp.Dropped)

	w = testutils.PerformUpload(testCtx.Router, "/api/claims/import", "claims.csv", []byte(csv), testutils.AuthHeaders(testCtx.AgentJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportClaims(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/claims/export", nil, testutils.AuthHeaders(testCtx.AgentJWT))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "claims-export-")

	var claims []models.Claim
	testutils.DecodeJSON(t, w, &claims)
	require.Len(t, claims, 2)
	for _, c := range claims {
		assert.Equal(t, "ravi", models.Deref(c.AssignedTo))
	}

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/claims/export?format=csv", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "ClaimNo,Patient,Balance"))

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/claims/export?format=xlsx", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueue(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	var page workqueue.Page

	// Agent default scope: own claims
	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/queue", nil, testutils.AuthHeaders(testCtx.AgentJWT))
	require.Equal(t, http.StatusOK, w.Code)
	testutils.DecodeJSON(t, w, &page)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Page)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/queue?scope=shared", nil, testutils.AuthHeaders(testCtx.AgentJWT))
	require.Equal(t, http.StatusOK, w.Code)
	page = workqueue.Page{}
	testutils.DecodeJSON(t, w, &page)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "CLM001", page.Items[0].ClaimNo)
	assert.NotEmpty(t, page.Items[0].DueClass)

	// Admin search covers every agent
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/queue?search=clm00", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)
	page = workqueue.Page{}
	testutils.DecodeJSON(t, w, &page)
	assert.Equal(t, 6, page.Total)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/queue?agent=unassigned", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)
	page = workqueue.Page{}
	testutils.DecodeJSON(t, w, &page)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "CLM006", page.Items[0].ClaimNo)

	// Pages clamp and can be resized
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/queue?perPage=4&page=9", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)
	page = workqueue.Page{}
	testutils.DecodeJSON(t, w, &page)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 2)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/queue?page=abc", nil, testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
