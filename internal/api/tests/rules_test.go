package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsmart/finsmart-server/internal/api/testutils"
	"github.com/finsmart/finsmart-server/internal/models"
)

func createCategory(t *testing.T, testCtx *testutils.TestContext, name string) models.Category {
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/categories",
		models.CreateCategoryRequest{Name: name},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	var category models.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &category))
	return category
}

func TestRuleCRUD(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	category := createCategory(t, testCtx, "Transport")

	// Create
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/rules",
		models.CreateRuleRequest{Pattern: "uber", Field: models.RuleFieldMerchant, CategoryID: category.ID},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	var rule models.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))
	assert.True(t, rule.Active)
	assert.Equal(t, 100, rule.Priority)

	// Rule against a missing category is rejected
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/rules",
		models.CreateRuleRequest{Pattern: "x", Field: models.RuleFieldMerchant, CategoryID: "no-such-category"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Partial update: deactivate and bump priority, pattern untouched
	newPriority := 5
	active := false
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPut,
		"/api/rules/"+rule.ID,
		models.UpdateRuleRequest{Priority: &newPriority, Active: &active},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "uber", updated.Pattern)
	assert.Equal(t, 5, updated.Priority)
	assert.False(t, updated.Active)

	// Stats reflect the deactivation
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/rules/stats",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var stats models.RuleStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, 1, stats.Inactive)

	// Delete
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodDelete,
		"/api/rules/"+rule.ID,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/rules/"+rule.ID,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRulePriorityBounds(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	category := createCategory(t, testCtx, "Bounds")

	tooHigh := 1001
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/rules",
		models.CreateRuleRequest{Pattern: "x", Field: models.RuleFieldMerchant, CategoryID: category.ID, Priority: &tooHigh},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	zero := 0
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/rules",
		models.CreateRuleRequest{Pattern: "x", Field: models.RuleFieldMerchant, CategoryID: category.ID, Priority: &zero},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRuleOwnershipIsolation(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	_, otherToken := testutils.CreateSecondUser(t, testCtx)
	category := createCategory(t, testCtx, "Isolation")

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/rules",
		models.CreateRuleRequest{Pattern: "mine", Field: models.RuleFieldBoth, CategoryID: category.ID},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	var rule models.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))

	// The other user cannot read it and doesn't see it in their list
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/rules/"+rule.ID,
		nil,
		testutils.AuthHeaders(otherToken),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/rules",
		nil,
		testutils.AuthHeaders(otherToken),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Rules []models.Rule `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Empty(t, listResp.Rules)
}
