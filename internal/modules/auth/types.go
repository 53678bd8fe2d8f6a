package auth

import (
	"context"
	"errors"

	"github.com/codename/server/internal/pkg/response"
)

// TwitterProfile is the subset of verify_credentials the login flow needs.
type TwitterProfile struct {
	ID         string `json:"id_str"`
	ScreenName string `json:"screen_name"`
	ImageURL   string `json:"profile_image_url_https"`
}

// TwitterClient abstracts the three-legged OAuth1 handshake so tests can run
// without the Twitter API.
type TwitterClient interface {
	// RequestToken performs step 1 and returns the authorization URL the
	// visitor should be redirected to, plus the request token pair.
	RequestToken(ctx context.Context) (authorizationURL, token, secret string, err error)
	// AccessToken exchanges the verifier for an access token pair.
	AccessToken(ctx context.Context, token, secret, verifier string) (accessToken, accessSecret string, err error)
	// VerifyCredentials fetches the authenticated user's profile.
	VerifyCredentials(ctx context.Context, accessToken, accessSecret string) (*TwitterProfile, error)
}

type VerifierDTO struct {
	ResourceOwnerKey string `json:"resource_owner_key" binding:"required"`
	Verifier         string `json:"verifier"           binding:"required"`
}

type requestTokenResponse struct {
	response.Envelope
	URL              string `json:"url"`
	ResourceOwnerKey string `json:"resource_owner_key"`
}

type loginResponse struct {
	response.Envelope
	Token        string `json:"token"`
	PickUsername bool   `json:"pickUsername"`
}

var (
	errHandshakeExpired  = errors.New("authorization expired, restart the login flow")
	errDuplicateIdentity = errors.New("identity already registered")
)
