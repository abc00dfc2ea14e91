package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greendrake/negotiation/internal/api/middleware"
	"greendrake/negotiation/internal/auth"
	"greendrake/negotiation/internal/utils"
)

func setupAuthEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.AuthMiddleware("secret"))
	r.GET("/me", func(c *gin.Context) {
		party, ok := middleware.PartyID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, party.String())
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	router := setupAuthEngine()
	party := utils.NewSixID()
	token, err := auth.GenerateJWT(party, "secret", time.Hour)
	require.NoError(t, err)

	t.Run("bearer header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, party.String(), w.Body.String())
	})

	t.Run("query token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/me?access_token="+token, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/me", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Token "+token)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := auth.GenerateJWT(party, "other", time.Hour)
		require.NoError(t, err)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+other)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
