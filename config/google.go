package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

type GoogleConfig struct {
	Config     *oauth2.Config
	httpClient *http.Client
	tokenInfo  string
}

type GoogleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Audience      string `json:"aud"`
}

func (u *GoogleUserInfo) Verified() bool {
	return u.EmailVerified == "true"
}

// NewGoogleConfig returns nil when Google sign-in is not configured.
func NewGoogleConfig(settings GoogleSettings) *GoogleConfig {
	if !settings.Enabled() {
		return nil
	}
	return &GoogleConfig{
		Config: &oauth2.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			RedirectURL:  settings.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tokenInfo:  googleTokenInfoURL,
	}
}

// VerifyIDToken checks an ID token with Google and that it was issued for this client.
func (g *GoogleConfig) VerifyIDToken(ctx context.Context, idToken string) (*GoogleUserInfo, error) {
	endpoint := g.tokenInfo + "?id_token=" + url.QueryEscape(idToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invalid token")
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if info.Audience != g.Config.ClientID {
		return nil, fmt.Errorf("token issued for another client")
	}
	return &info, nil
}

// AuthCodeURL starts the redirect flow for web clients.
func (g *GoogleConfig) AuthCodeURL(state string) string {
	return g.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (g *GoogleConfig) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.Config.Exchange(ctx, code)
}
