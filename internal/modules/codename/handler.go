package codename

import (
	"fmt"
	"strings"

	"github.com/codename/server/internal/middleware"
	"github.com/codename/server/internal/models"
	"github.com/codename/server/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	svc *Service
	db  *gorm.DB
}

func NewHandler(svc *Service, db *gorm.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminMW gin.HandlerFunc) {
	g := rg.Group("/codename")

	g.GET("/index", h.index)
	g.POST("/index", adminMW, h.create)
	g.GET("/search", h.search)

	g.GET("/:slug", h.get)
	g.PUT("/:slug", adminMW, h.update)
	g.DELETE("/:slug", adminMW, h.delete)

	g.POST("/:slug/references", adminMW, h.createReference)
	g.GET("/:slug/references/:id", h.getReference)
	g.PUT("/:slug/references/:id", adminMW, h.updateReference)
	g.DELETE("/:slug/references/:id", adminMW, h.deleteReference)
}

// GET /codename/index
func (h *Handler) index(c *gin.Context) {
	items, err := h.svc.List()
	if err != nil {
		response.InternalError(c, err)
		return
	}

	viewer := middleware.CurrentUser(c)
	entries := make([]indexEntry, len(items))
	for i, cn := range items {
		entries[i] = indexEntry{
			Name:     cn.Name,
			Slug:     cn.Slug,
			URL:      codenameURL(cn.Slug),
			ThumbURL: firstThumbURL(&cn, viewer),
		}
	}
	response.OK(c, indexResponse{Envelope: response.Success(""), Codenames: entries})
}

// GET /codename/search?q=
func (h *Handler) search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		response.BadRequest(c, `The query parameter "q" is required.`)
		return
	}

	items, err := h.svc.Search(query)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	viewer := middleware.CurrentUser(c)
	entries := make([]searchEntry, len(items))
	for i, cn := range items {
		entries[i] = searchEntry{
			Name:     cn.Name,
			Slug:     cn.Slug,
			Summary:  cn.Summary,
			URL:      codenameURL(cn.Slug),
			ThumbURL: firstThumbURL(&cn, viewer),
		}
	}
	response.OK(c, searchResponse{Envelope: response.Success(""), Codenames: entries})
}

// POST /codename/index
func (h *Handler) create(c *gin.Context) {
	var dto CreateCodenameDTO
	if err := c.ShouldBindJSON(&dto); err != nil || strings.TrimSpace(dto.Name) == "" {
		response.BadRequest(c, "Name is a required field.")
		return
	}

	cn, err := h.svc.Create(dto.Name)
	if err != nil {
		switch {
		case err == errSlugReserved:
			response.Conflict(c, fmt.Sprintf("Codename may not override reserved route: %q.", Slugify(dto.Name)))
		case IsDuplicate(err):
			response.Conflict(c, fmt.Sprintf("Codename %q already exists.", dto.Name))
		default:
			response.InternalError(c, err)
		}
		return
	}

	response.OK(c, createdResponse{
		Envelope: response.Success(fmt.Sprintf("Codename %q created.", cn.Name)),
		Slug:     cn.Slug,
		URL:      codenameURL(cn.Slug),
	})
}

// GET /codename/:slug
func (h *Handler) get(c *gin.Context) {
	cn, ok := h.loadCodename(c)
	if !ok {
		return
	}

	viewer := middleware.CurrentUser(c)
	detail := detailResponse{
		Envelope:    response.Success(""),
		Name:        cn.Name,
		Slug:        cn.Slug,
		Summary:     cn.Summary,
		Description: cn.Description,
		Added:       cn.CreatedAt.Unix(),
		Updated:     cn.UpdatedAt.Unix(),
		Images:      []imageJSON{},
		References:  []referenceJSON{},
	}

	for i := range cn.Images {
		img := &cn.Images[i]
		if !img.VisibleTo(viewer) {
			continue
		}
		voted, err := h.hasVoted(img.ID, viewer)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		detail.Images = append(detail.Images, imageJSON{
			ID:       img.ID,
			URL:      imageURL(cn.Slug, img.ID),
			ThumbURL: thumbURL(cn.Slug, img.ID),
			Votes:    img.Votes,
			Voted:    voted,
			Approved: img.Approved,
		})
	}
	if len(detail.Images) == 0 {
		detail.Images = append(detail.Images, imageJSON{
			URL:      DefaultImageURL,
			ThumbURL: DefaultThumbURL,
		})
	}

	for _, ref := range cn.References {
		detail.References = append(detail.References, referenceJSON{
			ID:          ref.ID,
			ExternalURL: ref.URL,
			Annotation:  ref.Annotation,
			URL:         referenceURL(cn.Slug, ref.ID),
		})
	}

	response.OK(c, detail)
}

// PUT /codename/:slug
func (h *Handler) update(c *gin.Context) {
	var dto UpdateCodenameDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Summary and description are required fields.")
		return
	}

	cn, ok := h.loadCodename(c)
	if !ok {
		return
	}
	if err := h.svc.Update(cn, dto.Summary, dto.Description); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, response.Success(fmt.Sprintf("Codename %q updated.", cn.Name)))
}

// DELETE /codename/:slug
func (h *Handler) delete(c *gin.Context) {
	cn, ok := h.loadCodename(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(cn); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, response.Success(fmt.Sprintf("Codename %q deleted.", cn.Name)))
}

// POST /codename/:slug/references
func (h *Handler) createReference(c *gin.Context) {
	var dto ReferenceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "URL and annotation are required fields.")
		return
	}

	cn, ok := h.loadCodename(c)
	if !ok {
		return
	}
	ref, err := h.svc.AddReference(cn, dto.URL, dto.Annotation)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	response.OK(c, referenceCreatedResponse{
		Envelope: response.Success(fmt.Sprintf("Reference added to codename %q.", cn.Name)),
		URL:      referenceURL(cn.Slug, ref.ID),
	})
}

// GET /codename/:slug/references/:id
func (h *Handler) getReference(c *gin.Context) {
	_, ref, ok := h.loadReference(c)
	if !ok {
		return
	}
	response.OK(c, referenceDetailResponse{
		Envelope:   response.Success(""),
		URL:        ref.URL,
		Annotation: ref.Annotation,
	})
}

// PUT /codename/:slug/references/:id
func (h *Handler) updateReference(c *gin.Context) {
	var dto ReferenceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "URL and annotation are required fields.")
		return
	}

	cn, ref, ok := h.loadReference(c)
	if !ok {
		return
	}
	if err := h.svc.UpdateReference(cn, ref, dto.URL, dto.Annotation); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, response.Success(fmt.Sprintf("Reference updated for codename %q.", cn.Name)))
}

// DELETE /codename/:slug/references/:id
func (h *Handler) deleteReference(c *gin.Context) {
	cn, ref, ok := h.loadReference(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteReference(cn, ref); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, response.Success(fmt.Sprintf("Reference %s deleted from codename %q.", ref.ID, cn.Name)))
}

func (h *Handler) loadCodename(c *gin.Context) (*models.CodenameModel, bool) {
	slug := c.Param("slug")
	cn, err := h.svc.GetBySlug(slug)
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

func (h *Handler) loadReference(c *gin.Context) (*models.CodenameModel, *models.ReferenceModel, bool) {
	cn, ok := h.loadCodename(c)
	if !ok {
		return nil, nil, false
	}
	ref, err := h.svc.GetReference(cn, c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return nil, nil, false
	}
	if ref == nil {
		response.NotFound(c, "Reference does not exist for this codename.")
		return nil, nil, false
	}
	return cn, ref, true
}

// firstThumbURL picks the first visible image's thumbnail, falling back to
// the default placeholder.
func firstThumbURL(cn *models.CodenameModel, viewer *models.UserModel) string {
	for i := range cn.Images {
		if cn.Images[i].VisibleTo(viewer) {
			return thumbURL(cn.Slug, cn.Images[i].ID)
		}
	}
	return DefaultThumbURL
}

// hasVoted reports whether the viewer already voted on the image. Anonymous
// viewers always read false.
func (h *Handler) hasVoted(imageID string, viewer *models.UserModel) (bool, error) {
	if viewer == nil {
		return false, nil
	}
	var count int64
	err := h.db.Model(&models.ImageVoteModel{}).
		Where("image_id = ? AND user_id = ?", imageID, viewer.ID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
