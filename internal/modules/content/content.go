package content

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/codename/server/internal/models"
	"github.com/codename/server/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"
)

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
	),
)

type UpdateContentDTO struct {
	Markdown string `json:"markdown" binding:"required"`
}

type contentResponse struct {
	response.Envelope
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
	Updated  int64  `json:"updated"`
}

// Handler serves the named Markdown slots hardwired into templates. Slots
// are seeded by the CLI; the API can only read and replace them.
type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminMW gin.HandlerFunc) {
	g := rg.Group("/content")
	g.GET("/:name", h.get)
	g.PUT("/:name", adminMW, h.update)
}

// GET /content/:name
func (h *Handler) get(c *gin.Context) {
	content, ok := h.loadContent(c)
	if !ok {
		return
	}

	var rendered bytes.Buffer
	if err := markdownEngine.Convert([]byte(content.Markdown), &rendered); err != nil {
		response.InternalError(c, err)
		return
	}

	response.OK(c, contentResponse{
		Envelope: response.Success(""),
		Markdown: content.Markdown,
		HTML:     rendered.String(),
		Updated:  content.UpdatedAt.Unix(),
	})
}

// PUT /content/:name
func (h *Handler) update(c *gin.Context) {
	var dto UpdateContentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Markdown is a required field.")
		return
	}

	content, ok := h.loadContent(c)
	if !ok {
		return
	}

	err := h.db.Model(content).Updates(map[string]interface{}{
		"markdown":   dto.Markdown,
		"updated_at": time.Now(),
	}).Error
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, response.Success(fmt.Sprintf("Content %q updated.", content.Name)))
}

func (h *Handler) loadContent(c *gin.Context) (*models.ContentModel, bool) {
	name := c.Param("name")

	var content models.ContentModel
	if err := h.db.First(&content, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, fmt.Sprintf("Content named %q does not exist.", name))
		} else {
			response.InternalError(c, err)
		}
		return nil, false
	}
	return &content, true
}
