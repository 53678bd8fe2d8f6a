package image

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/codename/server/internal/middleware"
	"github.com/codename/server/internal/models"
	codenamemod "github.com/codename/server/internal/modules/codename"
	"github.com/codename/server/internal/pkg/imaging"
	"github.com/codename/server/internal/pkg/pagination"
	"github.com/codename/server/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// maxUploadBytes caps raw upload size well above any valid image at the
// required dimensions.
const maxUploadBytes = 8 << 20

type Handler struct {
	svc         *Service
	codenameSvc *codenamemod.Service
}

func NewHandler(svc *Service, codenameSvc *codenamemod.Service) *Handler {
	return &Handler{svc: svc, codenameSvc: codenameSvc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/codename")

	g.POST("/:slug/images", authMW, h.upload)
	g.GET("/:slug/images/:id", h.serveImage)
	g.GET("/:slug/images/:id/thumbnail", h.serveThumb)
	g.DELETE("/:slug/images/:id", adminMW, h.delete)
	g.POST("/:slug/images/:id/approve", adminMW, h.approve)
	g.PUT("/:slug/images/:id/vote", authMW, h.vote)
	g.DELETE("/:slug/images/:id/vote", authMW, h.unvote)

	rg.GET("/image/queue", adminMW, h.queue)
}

type uploadedResponse struct {
	response.Envelope
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl"`
}

type queueEntry struct {
	ID          string `json:"id"`
	Codename    string `json:"codename"`
	Slug        string `json:"slug"`
	URL         string `json:"url"`
	ThumbURL    string `json:"thumbUrl"`
	Contributor string `json:"contributor"`
	Added       int64  `json:"added"`
}

type votedResponse struct {
	response.Envelope
	Votes int `json:"votes"`
}

// POST /codename/:slug/images
func (h *Handler) upload(c *gin.Context) {
	cn, ok := h.loadCodename(c)
	if !ok {
		return
	}

	data, contentType, err := readUpload(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	img, err := h.svc.Ingest(cn, middleware.CurrentUser(c), data, contentType)
	if err != nil {
		switch {
		case errors.Is(err, imaging.ErrUnsupportedType),
			errors.Is(err, imaging.ErrUndecodable),
			errors.Is(err, imaging.ErrWrongDimensions):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}

	response.OK(c, uploadedResponse{
		Envelope: response.Success(fmt.Sprintf("Image added to codename %q. It will appear once an administrator approves it.", cn.Name)),
		URL:      fmt.Sprintf("/api/codename/%s/images/%s", cn.Slug, img.ID),
		ThumbURL: fmt.Sprintf("/api/codename/%s/images/%s/thumbnail", cn.Slug, img.ID),
	})
}

// GET /codename/:slug/images/:id
func (h *Handler) serveImage(c *gin.Context) {
	img, ok := h.loadVisibleImage(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "image/png")
	c.File(h.svc.FilePath(img.Path))
}

// GET /codename/:slug/images/:id/thumbnail
func (h *Handler) serveThumb(c *gin.Context) {
	img, ok := h.loadVisibleImage(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "image/png")
	c.File(h.svc.FilePath(img.ThumbPath))
}

// PUT /codename/:slug/images/:id/vote
func (h *Handler) vote(c *gin.Context) {
	h.mutateVote(c, h.svc.Vote, "Vote recorded.")
}

// DELETE /codename/:slug/images/:id/vote
func (h *Handler) unvote(c *gin.Context) {
	h.mutateVote(c, h.svc.Unvote, "Vote removed.")
}

func (h *Handler) mutateVote(c *gin.Context, mutate func(imageID, userID string) error, message string) {
	img, ok := h.loadVisibleImage(c)
	if !ok {
		return
	}

	user := middleware.CurrentUser(c)
	if err := mutate(img.ID, user.ID); err != nil {
		response.InternalError(c, err)
		return
	}

	// Re-read the counter so the response reflects the committed state.
	votes, err := h.svc.VoteCount(img.ID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, votedResponse{Envelope: response.Success(message), Votes: votes})
}

// POST /codename/:slug/images/:id/approve
func (h *Handler) approve(c *gin.Context) {
	cn, img, ok := h.loadImage(c)
	if !ok {
		return
	}
	if err := h.svc.Approve(img.ID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, response.Success(fmt.Sprintf("Image approved for codename %q.", cn.Name)))
}

// DELETE /codename/:slug/images/:id
func (h *Handler) delete(c *gin.Context) {
	cn, img, ok := h.loadImage(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(img); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, response.Success(fmt.Sprintf("Image %s deleted from codename %q.", img.ID, cn.Name)))
}

// GET /image/queue
func (h *Handler) queue(c *gin.Context) {
	items, pag, err := h.svc.Queue(pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}

	// Slugs are needed for URLs; cache codename lookups across entries.
	slugs := map[string][2]string{}
	entries := make([]queueEntry, len(items))
	for i, img := range items {
		name, slug, err := h.codenameNames(img.CodenameID, slugs)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		contributor := ""
		if img.Contributor != nil {
			contributor = img.Contributor.Username
		}
		entries[i] = queueEntry{
			ID:          img.ID,
			Codename:    name,
			Slug:        slug,
			URL:         fmt.Sprintf("/api/codename/%s/images/%s", slug, img.ID),
			ThumbURL:    fmt.Sprintf("/api/codename/%s/images/%s/thumbnail", slug, img.ID),
			Contributor: contributor,
			Added:       img.CreatedAt.Unix(),
		}
	}
	response.Paged(c, entries, pag)
}

func (h *Handler) loadCodename(c *gin.Context) (*models.CodenameModel, bool) {
	slug := c.Param("slug")
	cn, err := h.codenameSvc.GetBySlug(slug)
	if err != nil {
		response.InternalError(c, err)
		return nil, false
	}
	if cn == nil {
		response.NotFound(c, fmt.Sprintf("No codename exists for %q slug.", slug))
		return nil, false
	}
	return cn, true
}

func (h *Handler) loadImage(c *gin.Context) (*models.CodenameModel, *models.ImageModel, bool) {
	cn, ok := h.loadCodename(c)
	if !ok {
		return nil, nil, false
	}
	img, err := h.svc.GetForCodename(cn, c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return nil, nil, false
	}
	if img == nil {
		response.NotFound(c, "Image does not exist for this codename.")
		return nil, nil, false
	}
	return cn, img, true
}

// loadVisibleImage additionally hides unapproved images from everyone but
// their contributor and admins.
func (h *Handler) loadVisibleImage(c *gin.Context) (*models.ImageModel, bool) {
	_, img, ok := h.loadImage(c)
	if !ok {
		return nil, false
	}
	if !img.VisibleTo(middleware.CurrentUser(c)) {
		response.NotFound(c, "Image does not exist for this codename.")
		return nil, false
	}
	return img, true
}

func (h *Handler) codenameNames(codenameID string, cache map[string][2]string) (name, slug string, err error) {
	if v, ok := cache[codenameID]; ok {
		return v[0], v[1], nil
	}
	var cn models.CodenameModel
	if err := h.svc.db.Select("name, slug").First(&cn, "id = ?", codenameID).Error; err != nil {
		return "", "", err
	}
	cache[codenameID] = [2]string{cn.Name, cn.Slug}
	return cn.Name, cn.Slug, nil
}

// readUpload accepts either a multipart form with an "image" file or a raw
// request body, returning the bytes and declared content type.
func readUpload(c *gin.Context) ([]byte, string, error) {
	if file, err := c.FormFile("image"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			return nil, "", err
		}
		return data, file.Header.Get("Content-Type"), nil
	}

	contentType := c.ContentType()
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("an image file is required")
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes))
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("an image file is required")
	}
	return data, contentType, nil
}
