package auth

import (
	"testing"

	"github.com/codename/server/internal/models"
	"github.com/codename/server/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertUserFirstLogin(t *testing.T) {
	svc := NewService(testdb.Open(t), nil, nil)

	profile := &TwitterProfile{ID: "12345", ScreenName: "someone", ImageURL: "https://pbs.example/avatar.png"}
	user, firstLogin, err := svc.upsertUser(profile, "tok", "sec")
	require.NoError(t, err)
	assert.True(t, firstLogin)
	assert.Equal(t, "twitter:12345", user.Username)
	assert.Equal(t, "https://pbs.example/avatar.png", user.ImageURL)
	assert.Equal(t, "twitter", user.OAuthProvider)
	assert.Equal(t, "12345", user.OAuthUserID)
	assert.False(t, user.IsAdmin)
}

func TestUpsertUserFallsBackToDefaultImage(t *testing.T) {
	svc := NewService(testdb.Open(t), nil, nil)

	user, _, err := svc.upsertUser(&TwitterProfile{ID: "99"}, "tok", "sec")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultUserImageURL, user.ImageURL)
}

func TestUpsertUserReturningLoginRefreshesTokens(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db, nil, nil)

	profile := &TwitterProfile{ID: "12345", ImageURL: "https://pbs.example/v1.png"}
	created, firstLogin, err := svc.upsertUser(profile, "tok1", "sec1")
	require.NoError(t, err)
	require.True(t, firstLogin)

	// The user renamed themselves between logins.
	require.NoError(t, db.Model(created).Update("username", "renamed").Error)

	profile.ImageURL = "https://pbs.example/v2.png"
	again, firstLogin, err := svc.upsertUser(profile, "tok2", "sec2")
	require.NoError(t, err)
	assert.False(t, firstLogin)
	assert.Equal(t, created.ID, again.ID)

	var reloaded models.UserModel
	require.NoError(t, db.First(&reloaded, "id = ?", created.ID).Error)
	assert.Equal(t, "renamed", reloaded.Username, "chosen username survives relogin")
	assert.Equal(t, "https://pbs.example/v2.png", reloaded.ImageURL)
	assert.Equal(t, "tok2", reloaded.OAuthToken)
	assert.Equal(t, "sec2", reloaded.OAuthSecret)
}

func TestUpsertUserDistinctIdentities(t *testing.T) {
	svc := NewService(testdb.Open(t), nil, nil)

	a, _, err := svc.upsertUser(&TwitterProfile{ID: "1"}, "t", "s")
	require.NoError(t, err)
	b, _, err := svc.upsertUser(&TwitterProfile{ID: "2"}, "t", "s")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "twitter:1", a.Username)
	assert.Equal(t, "twitter:2", b.Username)
}
