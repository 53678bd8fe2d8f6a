package user

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codename/server/internal/database"
	"github.com/codename/server/internal/middleware"
	"github.com/codename/server/internal/models"
	"github.com/codename/server/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UsernameChangeWindow is how long after account creation a user may pick
// their own username. Once the window closes the name is frozen so accounts
// cannot shed an established reputation.
const UsernameChangeWindow = 15 * time.Minute

type ChangeUsernameDTO struct {
	Username string `json:"username"`
}

type whoamiResponse struct {
	response.Envelope
	ID       string `json:"id"`
	Username string `json:"username"`
	ImageURL string `json:"imageUrl"`
	IsAdmin  bool   `json:"isAdmin"`
}

type SetAdminDTO struct {
	IsAdmin *bool `json:"isAdmin" binding:"required"`
}

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/user")
	g.GET("/whoami", authMW, h.whoami)
	g.POST("/whoami", authMW, h.changeUsername)
	g.PUT("/:username/admin", adminMW, h.setAdmin)
}

// GET /user/whoami
func (h *Handler) whoami(c *gin.Context) {
	user := middleware.CurrentUser(c)
	response.OK(c, whoamiResponse{
		Envelope: response.Success(""),
		ID:       user.ID,
		Username: user.Username,
		ImageURL: user.ImageURL,
		IsAdmin:  user.IsAdmin,
	})
}

// POST /user/whoami
func (h *Handler) changeUsername(c *gin.Context) {
	user := middleware.CurrentUser(c)

	if time.Since(user.CreatedAt) > UsernameChangeWindow {
		response.Forbidden(c, fmt.Sprintf(
			"You are only allowed to change your username within %d minutes of creating your account.",
			int(UsernameChangeWindow.Minutes())))
		return
	}

	var dto ChangeUsernameDTO
	if err := c.ShouldBindJSON(&dto); err != nil || strings.TrimSpace(dto.Username) == "" {
		response.BadRequest(c, "Username is a required field.")
		return
	}

	err := h.db.Model(user).Update("username", strings.TrimSpace(dto.Username)).Error
	if err != nil {
		if database.IsDuplicateEntry(err) {
			response.Conflict(c, fmt.Sprintf("Username %q is already taken.", dto.Username))
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, response.Success("Username changed successfully."))
}

// PUT /user/:username/admin
func (h *Handler) setAdmin(c *gin.Context) {
	var dto SetAdminDTO
	if err := c.ShouldBindJSON(&dto); err != nil || dto.IsAdmin == nil {
		response.BadRequest(c, "isAdmin is a required field.")
		return
	}

	username := c.Param("username")
	var target models.UserModel
	if err := h.db.First(&target, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, fmt.Sprintf("User %q does not exist.", username))
		} else {
			response.InternalError(c, err)
		}
		return
	}

	if err := h.db.Model(&target).Update("is_admin", *dto.IsAdmin).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, response.Success(fmt.Sprintf("User %q is admin: %t.", username, *dto.IsAdmin)))
}
