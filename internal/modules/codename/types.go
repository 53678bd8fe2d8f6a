package codename

import (
	"errors"
	"fmt"

	"github.com/codename/server/internal/pkg/response"
)

const (
	DefaultImageURL = "/static/img/default-codename.png"
	DefaultThumbURL = "/static/img/default-codename-thumb.png"
)

type CreateCodenameDTO struct {
	Name string `json:"name"`
}

type UpdateCodenameDTO struct {
	Summary     string `json:"summary"     binding:"required"`
	Description string `json:"description" binding:"required"`
}

type ReferenceDTO struct {
	URL        string `json:"url"        binding:"required"`
	Annotation string `json:"annotation" binding:"required"`
}

type indexEntry struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl"`
}

type searchEntry struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl"`
}

type indexResponse struct {
	response.Envelope
	Codenames []indexEntry `json:"codenames"`
}

type searchResponse struct {
	response.Envelope
	Codenames []searchEntry `json:"codenames"`
}

type imageJSON struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl"`
	Votes    int    `json:"votes"`
	Voted    bool   `json:"voted"`
	Approved bool   `json:"approved"`
}

type referenceJSON struct {
	ID          string `json:"id"`
	ExternalURL string `json:"externalUrl"`
	Annotation  string `json:"annotation"`
	URL         string `json:"url"`
}

type detailResponse struct {
	response.Envelope
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Added       int64           `json:"added"`
	Updated     int64           `json:"updated"`
	Images      []imageJSON     `json:"images"`
	References  []referenceJSON `json:"references"`
}

type createdResponse struct {
	response.Envelope
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

type referenceCreatedResponse struct {
	response.Envelope
	URL string `json:"url"`
}

type referenceDetailResponse struct {
	response.Envelope
	URL        string `json:"url"`
	Annotation string `json:"annotation"`
}

var (
	errSlugReserved = errors.New("slug collides with a reserved route")
)

func codenameURL(slug string) string {
	return "/api/codename/" + slug
}

func imageURL(slug, imageID string) string {
	return fmt.Sprintf("/api/codename/%s/images/%s", slug, imageID)
}

func thumbURL(slug, imageID string) string {
	return imageURL(slug, imageID) + "/thumbnail"
}

func referenceURL(slug, referenceID string) string {
	return fmt.Sprintf("/api/codename/%s/references/%s", slug, referenceID)
}
