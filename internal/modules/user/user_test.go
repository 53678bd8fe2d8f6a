package user

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

func newUserRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testdb.Open(t)
	r := gin.New()
	api := r.Group("/api")
	NewHandler(db).RegisterRoutes(api, middleware.Auth(db), middleware.AdminAuth(db))
	return r, db
}

func makeUser(t *testing.T, db *gorm.DB, username string, admin bool) (*models.UserModel, string) {
	t.Helper()
	u := models.UserModel{
		Username:      username,
		ImageURL:      models.DefaultUserImageURL,
		IsAdmin:       admin,
		OAuthProvider: "twitter",
		OAuthUserID:   username,
	}
	require.NoError(t, db.Create(&u).Error)
	token, err := jwt.Sign(u.ID, time.Hour)
	require.NoError(t, err)
	return &u, token
}

func userRequest(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
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

func TestWhoami(t *testing.T) {
	r, db := newUserRouter(t)
	u, token := makeUser(t, db, "somebody", false)

	w := userRequest(r, http.MethodGet, "/api/user/whoami", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Error    bool   `json:"error"`
		ID       string `json:"id"`
		Username string `json:"username"`
		ImageURL string `json:"imageUrl"`
		IsAdmin  bool   `json:"isAdmin"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Error)
	assert.Equal(t, u.ID, resp.ID)
	assert.Equal(t, "somebody", resp.Username)
	assert.Equal(t, models.DefaultUserImageURL, resp.ImageURL)
	assert.False(t, resp.IsAdmin)

	w = userRequest(r, http.MethodGet, "/api/user/whoami", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangeUsernameWithinWindow(t *testing.T) {
	r, db := newUserRouter(t)
	u, token := makeUser(t, db, "twitter:12345", false)

	w := userRequest(r, http.MethodPost, "/api/user/whoami", token, `{"username":"picked-name"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var reloaded models.UserModel
	require.NoError(t, db.First(&reloaded, "id = ?", u.ID).Error)
	assert.Equal(t, "picked-name", reloaded.Username)
}

func TestChangeUsernameAfterWindowIsForbidden(t *testing.T) {
	r, db := newUserRouter(t)
	u, token := makeUser(t, db, "twitter:12345", false)

	stale := time.Now().Add(-UsernameChangeWindow - time.Minute)
	require.NoError(t, db.Model(u).UpdateColumn("created_at", stale).Error)

	w := userRequest(r, http.MethodPost, "/api/user/whoami", token, `{"username":"too-late"}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	var resp struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Error)
	assert.Contains(t, resp.Message, "15 minutes")

	var reloaded models.UserModel
	require.NoError(t, db.First(&reloaded, "id = ?", u.ID).Error)
	assert.Equal(t, "twitter:12345", reloaded.Username)
}

func TestChangeUsernameValidation(t *testing.T) {
	r, db := newUserRouter(t)
	_, token := makeUser(t, db, "fresh", false)

	w := userRequest(r, http.MethodPost, "/api/user/whoami", token, `{"username":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = userRequest(r, http.MethodPost, "/api/user/whoami", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangeUsernameToTakenNameConflicts(t *testing.T) {
	r, db := newUserRouter(t)
	makeUser(t, db, "taken", false)
	_, token := makeUser(t, db, "fresh", false)

	w := userRequest(r, http.MethodPost, "/api/user/whoami", token, `{"username":"taken"}`)
	require.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, `"taken"`)
}

func TestSetAdmin(t *testing.T) {
	r, db := newUserRouter(t)
	_, adminToken := makeUser(t, db, "root", true)
	target, targetToken := makeUser(t, db, "target", false)

	// Non-admins may not grant privileges.
	w := userRequest(r, http.MethodPut, "/api/user/target/admin", targetToken, `{"isAdmin":true}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = userRequest(r, http.MethodPut, "/api/user/target/admin", adminToken, `{"isAdmin":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	var reloaded models.UserModel
	require.NoError(t, db.First(&reloaded, "id = ?", target.ID).Error)
	assert.True(t, reloaded.IsAdmin)

	w = userRequest(r, http.MethodPut, "/api/user/target/admin", adminToken, `{"isAdmin":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, db.First(&reloaded, "id = ?", target.ID).Error)
	assert.False(t, reloaded.IsAdmin)

	w = userRequest(r, http.MethodPut, "/api/user/ghost/admin", adminToken, `{"isAdmin":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = userRequest(r, http.MethodPut, "/api/user/target/admin", adminToken, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
