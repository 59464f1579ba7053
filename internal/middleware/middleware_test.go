package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-pharmacy-pos/internal/auth"
	"go-pharmacy-pos/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(t *testing.T) (*gin.Engine, *auth.Tokens) {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.Use(RequestID())
	api := r.Group("/api", AuthMiddleware(tokens))
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(KeyUsername), "role": c.GetString(KeyRole)})
	})
	api.GET("/admin", RequireRole(auth.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r, tokens
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r, tokens := newRouter(t)
	cashier, _, err := tokens.Generate("amina", auth.RoleCashier)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/me", cashier).Code, "missing Bearer prefix")
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/me", "Bearer junk").Code)

	w := get(r, "/api/me", "Bearer "+cashier)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"amina","role":"cashier"}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	r, tokens := newRouter(t)
	cashier, _, err := tokens.Generate("amina", auth.RoleCashier)
	require.NoError(t, err)
	admin, _, err := tokens.Generate("root", auth.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(r, "/api/admin", "Bearer "+cashier).Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/api/admin", "Bearer "+admin).Code)
}

func TestRequestID(t *testing.T) {
	r, _ := newRouter(t)

	w := get(r, "/api/me", "")
	_, err := uuid.Parse(w.Header().Get(HeaderRequestID))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(HeaderRequestID, id)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(HeaderRequestID))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), RequestLogger(logging.NewWithWriter(&buf, "info")))
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	get(r, "/boom", "")
	assert.Contains(t, buf.String(), `"msg":"request failed"`)
	assert.Contains(t, buf.String(), `"path":"/boom"`)
	assert.Contains(t, buf.String(), `"status":500`)
}
