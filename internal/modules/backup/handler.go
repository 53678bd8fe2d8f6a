package backup

import (
	"github.com/codename/server/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type backupResponse struct {
	response.Envelope
	Key string `json:"key"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminMW gin.HandlerFunc) {
	rg.POST("/backup", adminMW, h.run)
}

// POST /backup
func (h *Handler) run(c *gin.Context) {
	key, err := h.svc.Run(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, backupResponse{
		Envelope: response.Success("Backup uploaded."),
		Key:      key,
	})
}
