package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsmart/finsmart-server/internal/api/testutils"
	"github.com/finsmart/finsmart-server/internal/models"
)

func createAccount(t *testing.T, testCtx *testutils.TestContext, name string) models.Account {
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/accounts",
		models.CreateAccountRequest{Name: name, Currency: "USD"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	var account models.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	return account
}

func getAccount(t *testing.T, testCtx *testutils.TestContext, id string) models.Account {
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/accounts/"+id,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var account models.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	return account
}

func previewCSV(t *testing.T, testCtx *testutils.TestContext, accountID, csv string) models.ImportPreviewResponse {
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/imports/preview",
		models.ImportPreviewRequest{AccountID: accountID, CSVContent: csv, Filename: "test.csv"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.ImportPreviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestImportRoundTrip(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	account := createAccount(t, testCtx, "Round Trip")

	// Two identical rows: the second must be flagged duplicate at preview
	csv := "date,amount,direction,merchant,description\n" +
		"2024-01-15,125.43,DEBIT,Whole Foods,Groceries\n" +
		"2024-01-15,125.43,DEBIT,Whole Foods,Groceries\n"

	preview := previewCSV(t, testCtx, account.ID, csv)
	assert.Equal(t, models.BatchStatusPreview, preview.Batch.Status)
	assert.Equal(t, 2, preview.Stats.TotalRows)
	assert.Equal(t, 1, preview.Stats.ValidRows)
	assert.Equal(t, 1, preview.Stats.DuplicateRows)
	assert.Equal(t, 0, preview.Stats.ErrorRows)
	require.Len(t, preview.Rows, 2)
	assert.Nil(t, preview.Rows[0].DuplicateOfID)
	assert.NotNil(t, preview.Rows[1].DuplicateOfID)

	// Preview never touches the balance
	assert.True(t, getAccount(t, testCtx, account.ID).Balance.IsZero())

	// Commit: exactly one transaction, balance drops by 125.43
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/imports/"+preview.Batch.ID+"/commit?accountId="+account.ID,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var committed models.ImportBatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &committed))
	assert.Equal(t, models.BatchStatusCommitted, committed.Batch.Status)

	assert.True(t, getAccount(t, testCtx, account.ID).Balance.Equal(decimal.RequireFromString("-125.43")))

	// Committing a second time is an illegal state transition
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/imports/"+preview.Batch.ID+"/commit?accountId="+account.ID,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Undo: balance back to zero
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/imports/"+preview.Batch.ID+"/undo?accountId="+account.ID,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var undone models.ImportBatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &undone))
	assert.Equal(t, models.BatchStatusUndone, undone.Batch.Status)

	assert.True(t, getAccount(t, testCtx, account.ID).Balance.IsZero())

	// Undoing again is an illegal state transition
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/imports/"+preview.Batch.ID+"/undo?accountId="+account.ID,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestImportNormalization(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	account := createAccount(t, testCtx, "Normalization")

	// Mixed date formats, currency symbols with thousands separators, and
	// one unparseable row
	csv := "date,amount,merchant,description\n" +
		"15/01/2024,-86.40,Woolworths,Weekly shop\n" +
		"2024-01-16,\"$1,234.56\",Acme Corp,Salary payment\n" +
		"not-a-date,10.00,Nowhere,Broken row\n"

	preview := previewCSV(t, testCtx, account.ID, csv)
	assert.Equal(t, 3, preview.Stats.TotalRows)
	assert.Equal(t, 2, preview.Stats.ValidRows)
	assert.Equal(t, 0, preview.Stats.DuplicateRows)
	assert.Equal(t, 1, preview.Stats.ErrorRows)

	require.Len(t, preview.Rows, 3)
	require.NotNil(t, preview.Rows[0].Normalized)
	assert.Equal(t, models.DirectionDebit, preview.Rows[0].Normalized.Direction)
	assert.True(t, preview.Rows[0].Normalized.Amount.Equal(decimal.RequireFromString("86.40")))
	require.NotNil(t, preview.Rows[1].Normalized)
	assert.Equal(t, models.DirectionCredit, preview.Rows[1].Normalized.Direction)
	assert.True(t, preview.Rows[1].Normalized.Amount.Equal(decimal.RequireFromString("1234.56")))
	assert.NotNil(t, preview.Rows[2].Error)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/imports/"+preview.Batch.ID+"/commit?accountId="+account.ID,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	// -86.40 + 1234.56
	assert.True(t, getAccount(t, testCtx, account.ID).Balance.Equal(decimal.RequireFromString("1148.16")))
}

func TestImportIdempotentDuplicateDetection(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	account := createAccount(t, testCtx, "Idempotence")

	csv := "date,amount,direction,merchant,description\n" +
		"2024-01-15,125.43,DEBIT,Whole Foods,Groceries\n" +
		"2024-01-20,50.00,CREDIT,Refund Co,Refund\n"

	first := previewCSV(t, testCtx, account.ID, csv)
	assert.Equal(t, 2, first.Stats.ValidRows)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/imports/"+first.Batch.ID+"/commit?accountId="+account.ID,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	// Same CSV again: every row is a duplicate of a committed transaction
	second := previewCSV(t, testCtx, account.ID, csv)
	assert.Equal(t, 2, second.Stats.TotalRows)
	assert.Equal(t, 0, second.Stats.ValidRows)
	assert.Equal(t, 2, second.Stats.DuplicateRows)

	// An equivalent date in another format is still the same transaction
	reformatted := "date,amount,direction,merchant,description\n" +
		"15/01/2024,125.43,DEBIT,Whole Foods,Groceries\n"

	third := previewCSV(t, testCtx, account.ID, reformatted)
	assert.Equal(t, 0, third.Stats.ValidRows)
	assert.Equal(t, 1, third.Stats.DuplicateRows)

	// Committing a batch with nothing valid is allowed and changes nothing
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/imports/"+second.Batch.ID+"/commit?accountId="+account.ID,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	// -125.43 + 50.00 from the first commit only
	assert.True(t, getAccount(t, testCtx, account.ID).Balance.Equal(decimal.RequireFromString("-75.43")))
}

func TestImportRuleSuggestions(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	account := createAccount(t, testCtx, "Suggestions")

	// Create a category and a rule pointing at it
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/categories",
		models.CreateCategoryRequest{Name: "Groceries", Color: "#4caf50"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code)
	var category models.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &category))

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/rules",
		models.CreateRuleRequest{Pattern: "woolworths", Field: models.RuleFieldMerchant, CategoryID: category.ID},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	csv := "date,amount,merchant,description\n" +
		"2024-02-01,-12.50,WOOLWORTHS METRO,Lunch\n" +
		"2024-02-02,-30.00,Cinema,Movies\n"

	preview := previewCSV(t, testCtx, account.ID, csv)
	require.Len(t, preview.Rows, 2)
	require.NotNil(t, preview.Rows[0].SuggestedCategoryID)
	assert.Equal(t, category.ID, *preview.Rows[0].SuggestedCategoryID)
	assert.Nil(t, preview.Rows[1].SuggestedCategoryID)

	// The suggestion carries through to the committed transaction
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/imports/"+preview.Batch.ID+"/commit?accountId="+account.ID,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/transactions?accountId="+account.ID+"&categoryId="+category.ID,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Transactions []models.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Len(t, listResp.Transactions, 1)
	assert.Equal(t, "WOOLWORTHS METRO", listResp.Transactions[0].Merchant)
}

func TestImportBatchOwnership(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	_, otherToken := testutils.CreateSecondUser(t, testCtx)
	account := createAccount(t, testCtx, "Ownership")

	csv := "date,amount,merchant,description\n2024-03-01,-5.00,Kiosk,Coffee\n"
	preview := previewCSV(t, testCtx, account.ID, csv)

	// Another user cannot see or commit the batch
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/imports/"+preview.Batch.ID,
		nil,
		testutils.AuthHeaders(otherToken),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/imports/"+preview.Batch.ID+"/commit?accountId="+account.ID,
		nil,
		testutils.AuthHeaders(otherToken),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Owner listing sees exactly one batch
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/imports",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Batches []models.ImportBatch `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Batches, 1)
}

func TestImportStructuralParseFailure(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	account := createAccount(t, testCtx, "Broken CSV")

	// Unbalanced quote makes the CSV structurally unreadable
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/imports/preview",
		models.ImportPreviewRequest{
			AccountID:  account.ID,
			CSVContent: "date,amount\n\"2024-01-01,5.00\n",
		},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The batch was created and is now FAILED
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/imports",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Batches []models.ImportBatch `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Len(t, listResp.Batches, 1)
	assert.Equal(t, models.BatchStatusFailed, listResp.Batches[0].Status)
}

func TestImportHeaderMapping(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	account := createAccount(t, testCtx, "Header Mapping")

	// Bank-specific headers renamed through the caller-supplied mapping
	csv := "Transaction Date,Value,Payee\n2024-04-01,-9.99,Spotify\n"
	mapping := map[string]string{
		"Transaction Date": "date",
		"Value":            "amount",
		"Payee":            "merchant",
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/imports/preview",
		models.ImportPreviewRequest{AccountID: account.ID, CSVContent: csv, HeaderMapping: mapping},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	var preview models.ImportPreviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, 1, preview.Stats.ValidRows)
	require.Len(t, preview.Rows, 1)
	require.NotNil(t, preview.Rows[0].Normalized)
	assert.Equal(t, "Spotify", preview.Rows[0].Normalized.Merchant)
}
