package image

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codename/server/internal/middleware"
	"github.com/codename/server/internal/models"
	codenamemod "github.com/codename/server/internal/modules/codename"
	"github.com/codename/server/internal/pkg/jwt"
	"github.com/codename/server/internal/pkg/testdb"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type imageTestEnv struct {
	router *gin.Engine
	db     *gorm.DB
	svc    *Service
}

func newImageTestEnv(t *testing.T) *imageTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testdb.Open(t)
	svc := NewService(db, t.TempDir())

	r := gin.New()
	api := r.Group("/api")
	api.Use(middleware.OptionalAuth(db))
	NewHandler(svc, codenamemod.NewService(db)).
		RegisterRoutes(api, middleware.Auth(db), middleware.AdminAuth(db))
	return &imageTestEnv{router: r, db: db, svc: svc}
}

func (e *imageTestEnv) user(t *testing.T, username string, admin bool) (*models.UserModel, string) {
	t.Helper()
	u := models.UserModel{Username: username, IsAdmin: admin, OAuthProvider: "twitter", OAuthUserID: username}
	require.NoError(t, e.db.Create(&u).Error)
	token, err := jwt.Sign(u.ID, time.Hour)
	require.NoError(t, err)
	return &u, token
}

func (e *imageTestEnv) request(method, path, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestUploadRequiresAuth(t *testing.T) {
	env := newImageTestEnv(t)
	cn := models.CodenameModel{Name: "GUARDED", Slug: "guarded"}
	require.NoError(t, env.db.Create(&cn).Error)

	w := env.request(http.MethodPost, "/api/codename/guarded/images", "", validPNG(t, 9), "image/png")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUploadRawBodyRoundTrip(t *testing.T) {
	env := newImageTestEnv(t)
	cn := models.CodenameModel{Name: "UPLOADED", Slug: "uploaded"}
	require.NoError(t, env.db.Create(&cn).Error)
	_, token := env.user(t, "uploader", false)

	w := env.request(http.MethodPost, "/api/codename/uploaded/images", token, validPNG(t, 9), "image/png")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Error    bool   `json:"error"`
		Message  string `json:"message"`
		URL      string `json:"url"`
		ThumbURL string `json:"thumbUrl"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Error)
	assert.Contains(t, resp.Message, "approves")
	require.NotEmpty(t, resp.URL)

	// The contributor can fetch their own unapproved image back.
	w = env.request(http.MethodGet, resp.URL, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = env.request(http.MethodGet, resp.ThumbURL, token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadWrongDimensionsIsBadRequest(t *testing.T) {
	env := newImageTestEnv(t)
	cn := models.CodenameModel{Name: "STRICT", Slug: "strict"}
	require.NoError(t, env.db.Create(&cn).Error)
	_, token := env.user(t, "uploader", false)

	small := smallPNG(t)
	w := env.request(http.MethodPost, "/api/codename/strict/images", token, small, "image/png")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnapprovedVisibilityMatrix(t *testing.T) {
	env := newImageTestEnv(t)
	cn := models.CodenameModel{Name: "MODERATED", Slug: "moderated"}
	require.NoError(t, env.db.Create(&cn).Error)

	contributor, contributorToken := env.user(t, "contributor", false)
	_, strangerToken := env.user(t, "stranger", false)
	_, adminToken := env.user(t, "admin", true)

	img, err := env.svc.Ingest(&cn, contributor, validPNG(t, 11), "image/png")
	require.NoError(t, err)
	url := "/api/codename/moderated/images/" + img.ID

	// Hidden from anonymous viewers and unrelated users while unapproved.
	assert.Equal(t, http.StatusNotFound, env.request(http.MethodGet, url, "", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.request(http.MethodGet, url, strangerToken, nil, "").Code)
	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, url, contributorToken, nil, "").Code)
	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, url, adminToken, nil, "").Code)

	w := env.request(http.MethodPost, url+"/approve", adminToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, url, "", nil, "").Code)
	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, url, strangerToken, nil, "").Code)
}

func TestApproveRequiresAdmin(t *testing.T) {
	env := newImageTestEnv(t)
	cn := models.CodenameModel{Name: "LOCKED", Slug: "locked"}
	require.NoError(t, env.db.Create(&cn).Error)
	contributor, contributorToken := env.user(t, "contributor", false)

	img, err := env.svc.Ingest(&cn, contributor, validPNG(t, 12), "image/png")
	require.NoError(t, err)

	w := env.request(http.MethodPost, "/api/codename/locked/images/"+img.ID+"/approve", contributorToken, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestVoteOverHTTP(t *testing.T) {
	env := newImageTestEnv(t)
	cn := models.CodenameModel{Name: "VOTED", Slug: "voted"}
	require.NoError(t, env.db.Create(&cn).Error)
	contributor, _ := env.user(t, "contributor", false)
	_, voterToken := env.user(t, "voter", false)
	_, adminToken := env.user(t, "admin", true)

	img, err := env.svc.Ingest(&cn, contributor, validPNG(t, 13), "image/png")
	require.NoError(t, err)
	require.NoError(t, env.svc.Approve(img.ID))
	voteURL := "/api/codename/voted/images/" + img.ID + "/vote"

	// Anonymous voting is rejected.
	assert.Equal(t, http.StatusUnauthorized, env.request(http.MethodPut, voteURL, "", nil, "").Code)

	var resp struct {
		Votes int `json:"votes"`
	}
	w := env.request(http.MethodPut, voteURL, voterToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Votes)

	// Repeat votes do not stack.
	w = env.request(http.MethodPut, voteURL, voterToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Votes)

	w = env.request(http.MethodPut, voteURL, adminToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Votes)

	w = env.request(http.MethodDelete, voteURL, voterToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Votes)
}

func TestQueuePagination(t *testing.T) {
	env := newImageTestEnv(t)
	cn := models.CodenameModel{Name: "QUEUED", Slug: "queued"}
	require.NoError(t, env.db.Create(&cn).Error)
	contributor, _ := env.user(t, "contributor", false)
	_, adminToken := env.user(t, "admin", true)

	for seed := uint8(0); seed < 3; seed++ {
		_, err := env.svc.Ingest(&cn, contributor, validPNG(t, seed), "image/png")
		require.NoError(t, err)
	}

	w := env.request(http.MethodGet, "/api/image/queue?page=1&size=2", adminToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []struct {
			Codename    string `json:"codename"`
			Contributor string `json:"contributor"`
			ThumbURL    string `json:"thumbUrl"`
		} `json:"data"`
		Pagination struct {
			Total       int64 `json:"total"`
			HasNextPage bool  `json:"hasNextPage"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "QUEUED", resp.Data[0].Codename)
	assert.Equal(t, "contributor", resp.Data[0].Contributor)
	assert.EqualValues(t, 3, resp.Pagination.Total)
	assert.True(t, resp.Pagination.HasNextPage)
}

func TestQueueSurfacesCodenameLookupFailure(t *testing.T) {
	env := newImageTestEnv(t)
	cn := models.CodenameModel{Name: "ORPHANED", Slug: "orphaned"}
	require.NoError(t, env.db.Create(&cn).Error)
	contributor, _ := env.user(t, "contributor", false)
	_, adminToken := env.user(t, "admin", true)

	_, err := env.svc.Ingest(&cn, contributor, validPNG(t, 14), "image/png")
	require.NoError(t, err)

	// Orphan the image; the queue must report the failed lookup rather than
	// emit entries with empty codename URLs.
	require.NoError(t, env.db.Delete(&cn).Error)

	w := env.request(http.MethodGet, "/api/image/queue", adminToken, nil, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
