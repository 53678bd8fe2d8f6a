package auth

import (
	"errors"

	"github.com/codename/server/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/authenticate/twitter")
	g.GET("", h.begin)
	g.POST("", h.finish)
}

// GET /authenticate/twitter
func (h *Handler) begin(c *gin.Context) {
	authURL, key, err := h.svc.BeginTwitter(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, requestTokenResponse{
		Envelope:         response.Success(""),
		URL:              authURL,
		ResourceOwnerKey: key,
	})
}

// POST /authenticate/twitter
func (h *Handler) finish(c *gin.Context) {
	var dto VerifierDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "resource_owner_key and verifier are required fields.")
		return
	}

	_, token, firstLogin, err := h.svc.FinishTwitter(c.Request.Context(), dto.ResourceOwnerKey, dto.Verifier)
	if err != nil {
		switch {
		case errors.Is(err, errHandshakeExpired):
			response.BadRequest(c, err.Error())
		case errors.Is(err, errDuplicateIdentity):
			response.Conflict(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}

	response.OK(c, loginResponse{
		Envelope:     response.Success("Twitter authentication is successful."),
		Token:        token,
		PickUsername: firstLogin,
	})
}
