package content

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codename/server/internal/middleware"
	"github.com/codename/server/internal/models"
	"github.com/codename/server/internal/pkg/jwt"
	"github.com/codename/server/internal/pkg/testdb"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newContentRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testdb.Open(t)
	r := gin.New()
	api := r.Group("/api")
	api.Use(middleware.OptionalAuth(db))
	NewHandler(db).RegisterRoutes(api, middleware.AdminAuth(db))
	return r, db
}

func contentRequest(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetRendersMarkdown(t *testing.T) {
	r, db := newContentRouter(t)
	require.NoError(t, db.Create(&models.ContentModel{
		Name:     "about",
		Markdown: "## About\n\nSome *emphatic* copy.",
	}).Error)

	w := contentRequest(r, http.MethodGet, "/api/content/about", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Error    bool   `json:"error"`
		Markdown string `json:"markdown"`
		HTML     string `json:"html"`
		Updated  int64  `json:"updated"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Error)
	assert.Contains(t, resp.Markdown, "## About")
	assert.Contains(t, resp.HTML, "<h2")
	assert.Contains(t, resp.HTML, "<em>emphatic</em>")
	assert.NotZero(t, resp.Updated)
}

func TestGetUnknownSlotIs404(t *testing.T) {
	r, _ := newContentRouter(t)

	w := contentRequest(r, http.MethodGet, "/api/content/ghost", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Error)
	assert.Contains(t, resp.Message, `"ghost"`)
}

func TestUpdateRequiresAdmin(t *testing.T) {
	r, db := newContentRouter(t)
	require.NoError(t, db.Create(&models.ContentModel{Name: "home", Markdown: "hi"}).Error)

	w := contentRequest(r, http.MethodPut, "/api/content/home", "", `{"markdown":"new"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateReplacesMarkdown(t *testing.T) {
	r, db := newContentRouter(t)
	require.NoError(t, db.Create(&models.ContentModel{Name: "home", Markdown: "old"}).Error)

	admin := models.UserModel{Username: "admin", IsAdmin: true, OAuthProvider: "twitter", OAuthUserID: "a"}
	require.NoError(t, db.Create(&admin).Error)
	token, err := jwt.Sign(admin.ID, time.Hour)
	require.NoError(t, err)

	w := contentRequest(r, http.MethodPut, "/api/content/home", token, `{"markdown":"# Fresh"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// Missing markdown field is rejected.
	w = contentRequest(r, http.MethodPut, "/api/content/home", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = contentRequest(r, http.MethodGet, "/api/content/home", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Markdown string `json:"markdown"`
		HTML     string `json:"html"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "# Fresh", resp.Markdown)
	assert.Contains(t, resp.HTML, "<h1")
}
