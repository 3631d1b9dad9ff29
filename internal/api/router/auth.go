package router

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuongbtq/genesis-be/internal/api/handler"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies an HS256 bearer token and stores its subject as the caller
func AuthMiddleware(config AuthConfig, logger *slog.Logger) gin.HandlerFunc {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		options = append(options, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		options = append(options, jwt.WithAudience(config.Audience))
	}
	parser := jwt.NewParser(options...)
	secret := []byte(config.Secret)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		var tokenClaims claims
		_, err := parser.ParseWithClaims(strings.TrimSpace(raw), &tokenClaims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err == nil && tokenClaims.Subject == "" {
			err = errors.New("token has no subject")
		}
		if err != nil {
			logger.Warn("Rejected bearer token",
				slog.String("path", c.Request.URL.Path),
				slog.String("error", err.Error()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}

		c.Set(handler.ContextUserID, tokenClaims.Subject)
		c.Set(handler.ContextEmail, tokenClaims.Email)
		c.Next()
	}
}
