package api

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rongwang/claims-tracker/internal/models"
)

// Context keys set by the middleware
const (
	ctxJWTSecret = "jwtSecret"
	ctxUserID    = "userId"
	ctxUserRole  = "userRole"
	ctxUserName  = "userName"
	ctxRequestID = "requestId"
)

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error: message,
		Code:  "UNAUTHORIZED",
	})
}

// JWTSecret makes the signing secret available to AuthMiddleware
func JWTSecret(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxJWTSecret, secret)
		c.Next()
	}
}

// AuthMiddleware returns a Gin middleware for authentication
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the JWT token from the Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Authentication required")
			return
		}

		// Check if the Authorization header starts with "Bearer "
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(c, "Invalid token format")
			return
		}

		tokenString := parts[1]

		// Parse the JWT token
		jwtSecret := c.MustGet(ctxJWTSecret).([]byte)
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			// Validate the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return jwtSecret, nil
		})

		if err != nil || !token.Valid {
			unauthorized(c, "Invalid token")
			return
		}

		// Extract claims from the token
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			unauthorized(c, "Invalid token claims")
			return
		}

		// Get user ID and role from the token claims
		userID, ok := claims["sub"].(string)
		if !ok || userID == "" {
			unauthorized(c, "Invalid user ID in token")
			return
		}
		roleName, _ := claims["role"].(string)
		role, ok := models.ParseRole(roleName)
		if !ok {
			unauthorized(c, "Invalid role in token")
			return
		}
		name, _ := claims["name"].(string)

		c.Set(ctxUserID, userID)
		c.Set(ctxUserRole, role)
		c.Set(ctxUserName, name)
		c.Next()
	}
}

// actor returns the authenticated caller set by AuthMiddleware
func actor(c *gin.Context) models.Actor {
	role, _ := c.Get(ctxUserRole)
	r, _ := role.(models.Role)
	return models.Actor{
		ID:   c.GetString(ctxUserID),
		Name: c.GetString(ctxUserName),
		Role: r,
	}
}

// RequireCapability rejects callers whose role lacks the capability
func RequireCapability(capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actor(c).Can(capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Error: "You do not have permission to perform this action",
				Code:  "FORBIDDEN",
			})
			return
		}
		c.Next()
	}
}

// RequestID tags every request with an id, reusing the client's when sent
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set(ctxRequestID, rid)
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		evt := logger.Info()
		if len(c.Errors) > 0 {
			evt = logger.Error().Err(c.Errors.Last())
		}

		evt.
			Str("request_id", c.GetString(ctxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("remote_ip", c.ClientIP()).
			Str("user_id", c.GetString(ctxUserID)).
			Msg("request")
	}
}

// Recovery turns panics into a 500 JSON response
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				var stack [4096]byte
				n := runtime.Stack(stack[:], false)

				logger.Error().
					Str("request_id", c.GetString(ctxRequestID)).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(stack[:n])).
					Msg("panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
					Error: "Internal server error",
					Code:  "INTERNAL_ERROR",
				})
			}
		}()
		c.Next()
	}
}
