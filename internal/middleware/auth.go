package middleware

import (
	"errors"
	"strings"

	"github.com/codename/server/internal/models"
	"github.com/codename/server/internal/pkg/jwt"
	"github.com/codename/server/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const contextKeyUser = "auth_user"

// Auth returns a middleware that requires a valid signed token resolving to
// an existing user.
func Auth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := ResolveUser(db, extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(contextKeyUser, user)
		c.Next()
	}
}

// AdminAuth behaves like Auth and additionally requires the admin flag.
func AdminAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := ResolveUser(db, extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		if !user.IsAdmin {
			response.Forbidden(c, "")
			return
		}
		c.Set(contextKeyUser, user)
		c.Next()
	}
}

// OptionalAuth attaches the user if a valid token is present, but never
// blocks the request. Anonymous callers proceed with a nil user.
func OptionalAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, err := ResolveUser(db, extractToken(c)); err == nil {
			c.Set(contextKeyUser, user)
		}
		c.Next()
	}
}

// ResolveUser verifies a signed token and loads the corresponding user row.
func ResolveUser(db *gorm.DB, rawToken string) (*models.UserModel, error) {
	token := NormalizeToken(rawToken)
	if token == "" {
		return nil, errors.New("token is required")
	}

	claims, err := jwt.Parse(token)
	if err != nil {
		return nil, err
	}

	var user models.UserModel
	if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUser extracts the authenticated user from context, nil if anonymous.
func CurrentUser(c *gin.Context) *models.UserModel {
	v, _ := c.Get(contextKeyUser)
	user, _ := v.(*models.UserModel)
	return user
}

// IsAuthenticated returns true if the request carries a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUser(c) != nil
}

// IsAdmin returns true if the request is authenticated as an admin.
func IsAdmin(c *gin.Context) bool {
	user := CurrentUser(c)
	return user != nil && user.IsAdmin
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
