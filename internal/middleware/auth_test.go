package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashsale/internal/config"
)

func authTestConfig() config.AuthConfig {
	return config.AuthConfig{
		Enabled: true,
		Secret:  "test-secret",
		Issuer:  "flashsale",
		TTL:     time.Hour,
	}
}

func newAuthRouter(cfg config.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(cfg))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": c.GetString(CallerKey)})
	})
	return router
}

func TestServiceTokenRoundTrip(t *testing.T) {
	cfg := authTestConfig()

	token, err := GenerateServiceToken(cfg, "checkout-service")
	require.NoError(t, err)

	claims, err := ParseServiceToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "checkout-service", claims.Subject)
	assert.Equal(t, "flashsale", claims.Issuer)
}

func TestParseServiceTokenRejectsWrongSecret(t *testing.T) {
	cfg := authTestConfig()
	token, err := GenerateServiceToken(cfg, "checkout-service")
	require.NoError(t, err)

	wrong := cfg
	wrong.Secret = "other-secret"
	_, err = ParseServiceToken(wrong, token)
	assert.Error(t, err)
}

func TestParseServiceTokenRejectsWrongIssuer(t *testing.T) {
	cfg := authTestConfig()
	cfg.Issuer = "someone-else"
	token, err := GenerateServiceToken(cfg, "checkout-service")
	require.NoError(t, err)

	_, err = ParseServiceToken(authTestConfig(), token)
	assert.Error(t, err)
}

func TestParseServiceTokenRejectsExpired(t *testing.T) {
	cfg := authTestConfig()
	cfg.TTL = -time.Minute
	token, err := GenerateServiceToken(cfg, "checkout-service")
	require.NoError(t, err)

	_, err = ParseServiceToken(authTestConfig(), token)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := authTestConfig()

	t.Run("valid token passes and sets caller", func(t *testing.T) {
		router := newAuthRouter(cfg)
		token, err := GenerateServiceToken(cfg, "checkout-service")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "checkout-service")
	})

	t.Run("missing header", func(t *testing.T) {
		router := newAuthRouter(cfg)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		router := newAuthRouter(cfg)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("disabled auth passes through", func(t *testing.T) {
		router := newAuthRouter(config.AuthConfig{Enabled: false})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
