package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/finsmart/finsmart-server/internal/service"
)

// Handler holds dependencies for API handlers
type Handler struct {
	service service.Service
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{service: svc}
}

// SetupRoutes configures all API routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.SignUp)
			auth.POST("/login", h.Login)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(AuthMiddleware())
		{
			accounts := protected.Group("/accounts")
			{
				accounts.POST("", h.CreateAccount)
				accounts.GET("", h.ListAccounts)
				accounts.GET("/:id", h.GetAccount)
				accounts.PUT("/:id", h.UpdateAccount)
				accounts.DELETE("/:id", h.DeleteAccount)
			}

			categories := protected.Group("/categories")
			{
				categories.POST("", h.CreateCategory)
				categories.GET("", h.ListCategories)
				categories.GET("/:id", h.GetCategory)
			}

			rules := protected.Group("/rules")
			{
				rules.POST("", h.CreateRule)
				rules.GET("", h.ListRules)
				rules.GET("/stats", h.RuleStats)
				rules.GET("/:id", h.GetRule)
				rules.PUT("/:id", h.UpdateRule)
				rules.DELETE("/:id", h.DeleteRule)
			}

			transactions := protected.Group("/transactions")
			{
				transactions.POST("", h.CreateTransaction)
				transactions.GET("", h.ListTransactions)
				transactions.POST("/bulk-delete", h.BulkDeleteTransactions)
				transactions.POST("/bulk-recategorize", h.BulkRecategorizeTransactions)
				transactions.POST("/suggest-categories", h.SuggestCategories)
				transactions.GET("/:id", h.GetTransaction)
				transactions.PUT("/:id", h.UpdateTransaction)
				transactions.DELETE("/:id", h.DeleteTransaction)
			}

			imports := protected.Group("/imports")
			{
				imports.POST("/preview", h.PreviewImport)
				imports.GET("", h.ListImportBatches)
				imports.GET("/:id", h.GetImportBatch)
				imports.GET("/:id/rows", h.GetImportRows)
				imports.POST("/:id/commit", h.CommitImport)
				imports.POST("/:id/undo", h.UndoImport)
			}
		}
	}
}

// Authentication handlers
func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	resp, err := h.service.SignUp(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		// Invalid credentials read as 401, not 400
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    "UNAUTHORIZED",
				Message: "Invalid email or password",
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Account handlers
func (h *Handler) CreateAccount(c *gin.Context) {
	var req models.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	account, err := h.service.CreateAccount(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.service.GetAccount(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.service.ListAccounts(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "accounts": accounts})
}

func (h *Handler) UpdateAccount(c *gin.Context) {
	var req models.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	account, err := h.service.UpdateAccount(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.service.DeleteAccount(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Category handlers
func (h *Handler) CreateCategory(c *gin.Context) {
	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	category, err := h.service.CreateCategory(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (h *Handler) GetCategory(c *gin.Context) {
	category, err := h.service.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, category)
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "categories": categories})
}

// Rule handlers
func (h *Handler) CreateRule(c *gin.Context) {
	var req models.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	rule, err := h.service.CreateRule(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.service.GetRule(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	var req models.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	rule, err := h.service.UpdateRule(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

func (h *Handler) DeleteRule(c *gin.Context) {
	if err := h.service.DeleteRule(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) ListRules(c *gin.Context) {
	ruleList, err := h.service.ListRules(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "rules": ruleList})
}

func (h *Handler) RuleStats(c *gin.Context) {
	stats, err := h.service.RuleStats(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Transaction handlers
func (h *Handler) CreateTransaction(c *gin.Context) {
	var req models.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	txn, err := h.service.CreateTransaction(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, txn)
}

func (h *Handler) GetTransaction(c *gin.Context) {
	txn, err := h.service.GetTransaction(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}

func (h *Handler) UpdateTransaction(c *gin.Context) {
	var req models.UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	txn, err := h.service.UpdateTransaction(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}

func (h *Handler) DeleteTransaction(c *gin.Context) {
	if err := h.service.DeleteTransaction(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	opts, err := parseListOptions(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	txns, err := h.service.ListTransactions(c.Request.Context(), userID(c), opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "transactions": txns})
}

func (h *Handler) BulkDeleteTransactions(c *gin.Context) {
	var req models.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	applied, err := h.service.BulkDeleteTransactions(c.Request.Context(), userID(c), req.TransactionIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BulkActionResponse{Status: "success", Applied: applied})
}

func (h *Handler) BulkRecategorizeTransactions(c *gin.Context) {
	var req models.BulkRecategorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	applied, err := h.service.BulkRecategorizeTransactions(c.Request.Context(), userID(c), req.TransactionIDs, req.CategoryID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BulkActionResponse{Status: "success", Applied: applied})
}

func (h *Handler) SuggestCategories(c *gin.Context) {
	var req models.SuggestCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	suggestions, err := h.service.SuggestCategories(c.Request.Context(), userID(c), req.Transactions)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuggestCategoriesResponse{Status: "success", Suggestions: suggestions})
}

// Import handlers
func (h *Handler) PreviewImport(c *gin.Context) {
	var req models.ImportPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	resp, err := h.service.PreviewImport(c.Request.Context(), userID(c), req.AccountID, req.CSVContent, req.Filename, req.HeaderMapping)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) CommitImport(c *gin.Context) {
	accountID := c.Query("accountId")
	if accountID == "" {
		respondBadRequest(c, "accountId query parameter is required")
		return
	}

	resp, err := h.service.CommitImport(c.Request.Context(), userID(c), accountID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) UndoImport(c *gin.Context) {
	accountID := c.Query("accountId")
	if accountID == "" {
		respondBadRequest(c, "accountId query parameter is required")
		return
	}

	resp, err := h.service.UndoImport(c.Request.Context(), userID(c), accountID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetImportBatch(c *gin.Context) {
	resp, err := h.service.GetImportBatch(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListImportBatches(c *gin.Context) {
	batches, err := h.service.ListImportBatches(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "batches": batches})
}

func (h *Handler) GetImportRows(c *gin.Context) {
	rows, err := h.service.GetImportRows(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "rows": rows})
}

// Helpers

func userID(c *gin.Context) string {
	return c.MustGet("userId").(string)
}

// parseListOptions reads the transaction list filters from query parameters.
func parseListOptions(c *gin.Context) (service.TransactionListOptions, error) {
	opts := service.TransactionListOptions{
		AccountID: c.Query("accountId"),
		Query:     c.Query("q"),
	}

	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return opts, errors.New("invalid from date, expected YYYY-MM-DD")
		}
		opts.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return opts, errors.New("invalid to date, expected YYYY-MM-DD")
		}
		opts.To = &t
	}
	if v := c.Query("direction"); v != "" {
		d := models.Direction(v)
		if d != models.DirectionCredit && d != models.DirectionDebit {
			return opts, errors.New("invalid direction, expected CREDIT or DEBIT")
		}
		opts.Direction = &d
	}
	if v := c.Query("categoryId"); v != "" {
		opts.CategoryID = &v
	}
	if v := c.Query("minAmount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return opts, errors.New("invalid minAmount")
		}
		opts.MinAmount = &d
	}
	if v := c.Query("maxAmount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return opts, errors.New("invalid maxAmount")
		}
		opts.MaxAmount = &d
	}

	return opts, nil
}

func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "BAD_REQUEST",
		Message: msg,
	})
}

// respondError maps service sentinel errors to HTTP statuses. Anything
// unrecognized is a 500 with a generic message.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "NOT_FOUND",
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_STATE",
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "VALIDATION_FAILED",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:  "error",
			Code:    "INTERNAL_ERROR",
			Message: "An internal error occurred",
		})
	}
}
