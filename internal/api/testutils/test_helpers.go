package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/finsmart/finsmart-server/internal/ai"
	"github.com/finsmart/finsmart-server/internal/api"
	"github.com/finsmart/finsmart-server/internal/logger"
	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/finsmart/finsmart-server/internal/repository"
	"github.com/finsmart/finsmart-server/internal/service"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Repository  repository.Repository
	Service     service.Service
	JWTSecret   []byte
	TestUserID  string
	TestUserJWT string
}

// SetupTestContext creates a new test context backed by an in-memory
// repository, so tests run hermetically without a database.
func SetupTestContext(t *testing.T) *TestContext {
	repo := repository.NewMemoryRepository()

	// Empty base URL: the categorizer always fails and the rule fallback
	// path is exercised instead.
	categorizer := ai.NewHTTPClient("", time.Second)

	svc := service.NewDefaultService(repo, categorizer, testJWTSecret, logger.Nop())

	handler := api.NewHandler(svc)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})

	handler.SetupRoutes(router)

	testUserID, token := createTestUser(t, repo)

	return &TestContext{
		Router:      router,
		Repository:  repo,
		Service:     svc,
		JWTSecret:   []byte(testJWTSecret),
		TestUserID:  testUserID,
		TestUserJWT: token,
	}
}

// CreateSecondUser registers another user and returns its ID and token, for
// ownership isolation tests.
func CreateSecondUser(t *testing.T, testCtx *TestContext) (string, string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("otherpassword"), bcrypt.DefaultCost)

	user := &models.User{
		Email:    fmt.Sprintf("other-%s@example.com", uuid.New().String()[:8]),
		Name:     "Other User",
		Password: string(hashedPassword),
	}
	err := testCtx.Repository.CreateUser(context.Background(), user)
	assert.NoError(t, err, "Failed to create second user")

	return user.ID, signToken(t, user.ID)
}

func createTestUser(t *testing.T, repo repository.Repository) (string, string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)

	user := &models.User{
		Email:    "testuser@example.com",
		Name:     "Test User",
		Password: string(hashedPassword),
	}

	err := repo.CreateUser(context.Background(), user)
	assert.NoError(t, err, "Failed to create test user")

	return user.ID, signToken(t, user.ID)
}

func signToken(t *testing.T, userID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(testJWTSecret))
	assert.NoError(t, err, "Failed to generate JWT token")
	return tokenString
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

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
