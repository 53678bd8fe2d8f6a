package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dghubble/oauth1"
	"github.com/dghubble/oauth1/twitter"
)

const verifyCredentialsURL = "https://api.twitter.com/1.1/account/verify_credentials.json?skip_status=true"

// twitterClient implements TwitterClient against the real Twitter API using
// dghubble/oauth1.
type twitterClient struct {
	config *oauth1.Config
}

// NewTwitterClient builds the production OAuth1 client from app credentials.
func NewTwitterClient(clientKey, clientSecret, callbackURL string) TwitterClient {
	return &twitterClient{
		config: &oauth1.Config{
			ConsumerKey:    clientKey,
			ConsumerSecret: clientSecret,
			CallbackURL:    callbackURL,
			Endpoint:       twitter.AuthorizeEndpoint,
		},
	}
}

func (t *twitterClient) RequestToken(ctx context.Context) (string, string, string, error) {
	token, secret, err := t.config.RequestToken()
	if err != nil {
		return "", "", "", fmt.Errorf("twitter request token: %w", err)
	}
	authURL, err := t.config.AuthorizationURL(token)
	if err != nil {
		return "", "", "", fmt.Errorf("twitter authorization url: %w", err)
	}
	return authURL.String(), token, secret, nil
}

func (t *twitterClient) AccessToken(ctx context.Context, token, secret, verifier string) (string, string, error) {
	accessToken, accessSecret, err := t.config.AccessToken(token, secret, verifier)
	if err != nil {
		return "", "", fmt.Errorf("twitter access token: %w", err)
	}
	return accessToken, accessSecret, nil
}

func (t *twitterClient) VerifyCredentials(ctx context.Context, accessToken, accessSecret string) (*TwitterProfile, error) {
	httpClient := t.config.Client(ctx, oauth1.NewToken(accessToken, accessSecret))

	resp, err := httpClient.Get(verifyCredentialsURL)
	if err != nil {
		return nil, fmt.Errorf("twitter verify credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twitter verify credentials: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var profile TwitterProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("twitter verify credentials: %w", err)
	}
	return &profile, nil
}
