package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"flashsale/internal/config"
	"flashsale/pkg/utils"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	// CallerKey context key holding the authenticated caller service name
	CallerKey = "caller"
)

// ServiceClaims are the JWT claims carried by service-to-service tokens
type ServiceClaims struct {
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("invalid token")

// GenerateServiceToken issues a signed token for the named caller service
func GenerateServiceToken(cfg config.AuthConfig, caller string) (string, error) {
	now := time.Now()
	claims := &ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseServiceToken validates a token and returns its claims
func ParseServiceToken(cfg config.AuthConfig, tokenString string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, errInvalidToken
	}
	return claims, nil
}

// Auth validates service-to-service bearer tokens. Disabled auth passes
// everything through, for local development.
func Auth(cfg config.AuthConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		header := c.GetHeader(authorizationHeader)
		if header == "" || !strings.HasPrefix(header, bearerPrefix) {
			utils.ErrorResponse(c, http.StatusUnauthorized, utils.CodeUnauthorized, "missing bearer token")
			c.Abort()
			return
		}

		claims, err := ParseServiceToken(cfg, strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, utils.CodeUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set(CallerKey, claims.Subject)
		c.Next()
	}
}
