package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/workflow"
)

// AuthMiddleware validates JWT tokens
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Authorization header required",
				Message: "Please provide a valid authorization token",
			})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Invalid authorization format",
				Message: "Authorization header must be in format 'Bearer <token>'",
			})
			c.Abort()
			return
		}

		tokenString := tokenParts[1]

		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "Server not configured",
				Message: "JWT secret missing",
			})
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Invalid token",
				Message: "The provided token is invalid or expired",
			})
			c.Abort()
			return
		}

		// Extract claims
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			c.Set("user_id", claims["user_id"])
			if e, ok := claims["email"].(string); ok {
				c.Set("email", e)
			}
			if r, ok := claims["role"].(string); ok {
				c.Set("role", r)
			}
			if org, ok := claims["organization"].(string); ok {
				c.Set("organization", org)
			}
		}

		c.Next()
	}
}

// GetActor extracts the acting identity from the JWT token claims
func GetActor(c *gin.Context) (workflow.Actor, bool) {
	emailVal, exists := c.Get("email")
	if !exists {
		return workflow.Actor{}, false
	}
	email, ok := emailVal.(string)
	if !ok || email == "" {
		return workflow.Actor{}, false
	}

	orgVal, _ := c.Get("organization")
	org, _ := orgVal.(string)

	return workflow.Actor{Email: email, Organization: org}, true
}

// IsAdmin reports whether the token carries the strict Admin role
func IsAdmin(c *gin.Context) bool {
	roleVal, _ := c.Get("role")
	role, _ := roleVal.(string)
	return role == "Admin"
}

// AdminMiddleware ensures the user has strict Admin role for admin endpoints
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "Admin access required",
				Message: "Admin role required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
