package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codename/server/internal/database"
	"github.com/codename/server/internal/models"
	"github.com/codename/server/internal/pkg/jwt"
	pkgredis "github.com/codename/server/internal/pkg/redis"
	"gorm.io/gorm"
)

// handshakeTTL bounds how long a visitor may sit on the provider's
// authorization page before the stashed request-token secret expires.
const handshakeTTL = 10 * time.Minute

type Service struct {
	db      *gorm.DB
	rc      *pkgredis.Client
	twitter TwitterClient
}

func NewService(db *gorm.DB, rc *pkgredis.Client, twitter TwitterClient) *Service {
	return &Service{db: db, rc: rc, twitter: twitter}
}

// BeginTwitter runs handshake step 1: obtain a request token and stash its
// secret in redis until the visitor comes back with a verifier.
func (s *Service) BeginTwitter(ctx context.Context) (authorizationURL, resourceOwnerKey string, err error) {
	authURL, token, secret, err := s.twitter.RequestToken(ctx)
	if err != nil {
		return "", "", err
	}
	if err := s.rc.Set(ctx, stashKey(token), secret, handshakeTTL); err != nil {
		return "", "", fmt.Errorf("stash request secret: %w", err)
	}
	return authURL, token, nil
}

// FinishTwitter runs handshake step 2: exchange the verifier for an access
// token, load the Twitter profile, and create or refresh the local user.
// firstLogin is true when the user row was created by this call, which tells
// the frontend to offer a one-time username pick.
func (s *Service) FinishTwitter(ctx context.Context, resourceOwnerKey, verifier string) (user *models.UserModel, token string, firstLogin bool, err error) {
	secret, err := s.rc.GetDel(ctx, stashKey(resourceOwnerKey))
	if err != nil {
		return nil, "", false, err
	}
	if secret == "" {
		return nil, "", false, errHandshakeExpired
	}

	accessToken, accessSecret, err := s.twitter.AccessToken(ctx, resourceOwnerKey, secret, verifier)
	if err != nil {
		return nil, "", false, err
	}
	profile, err := s.twitter.VerifyCredentials(ctx, accessToken, accessSecret)
	if err != nil {
		return nil, "", false, err
	}

	user, firstLogin, err = s.upsertUser(profile, accessToken, accessSecret)
	if err != nil {
		return nil, "", false, err
	}

	token, err = jwt.Sign(user.ID, jwt.DefaultTTL)
	if err != nil {
		return nil, "", false, err
	}
	return user, token, firstLogin, nil
}

// upsertUser matches the federated identity to a local user, creating one on
// first login. Stored provider tokens are refreshed on every login.
func (s *Service) upsertUser(profile *TwitterProfile, accessToken, accessSecret string) (*models.UserModel, bool, error) {
	var user models.UserModel
	err := s.db.First(&user,
		"oauth_provider = ? AND oauth_user_id = ?", "twitter", profile.ID).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.UserModel{
			Username:      "twitter:" + profile.ID,
			ImageURL:      models.DefaultUserImageURL,
			OAuthProvider: "twitter",
			OAuthUserID:   profile.ID,
			OAuthToken:    accessToken,
			OAuthSecret:   accessSecret,
		}
		if profile.ImageURL != "" {
			user.ImageURL = profile.ImageURL
		}
		if createErr := s.db.Create(&user).Error; createErr != nil {
			// A concurrent first login for the same identity loses the race
			// on the uk_identity constraint.
			if database.IsDuplicateEntry(createErr) {
				return nil, false, errDuplicateIdentity
			}
			return nil, false, createErr
		}
		return &user, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	updates := map[string]interface{}{
		"oauth_token":  accessToken,
		"oauth_secret": accessSecret,
	}
	if profile.ImageURL != "" {
		updates["image_url"] = profile.ImageURL
	}
	if err := s.db.Model(&user).Updates(updates).Error; err != nil {
		return nil, false, err
	}
	return &user, false, nil
}

func stashKey(requestToken string) string {
	return "codename:oauth:twitter:" + requestToken
}
