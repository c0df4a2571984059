package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"

	"tjhsst/ion-verifier/internal/constants"
)

// IONProvider implements the OAuth2 flow against the TJHSST ION identity
// provider: authorization redirect, code exchange, and profile fetch.
type IONProvider struct {
	oauth      *oauth2.Config
	ProfileURL string
	Client     *http.Client
}

// IONProfile is the subset of the ION profile endpoint response this
// service cares about.
type IONProfile struct {
	IonUsername string `json:"ion_username"`
}

// NewIONProvider creates a provider for the given OAuth client credentials.
func NewIONProvider(clientID, clientSecret, redirectURI string) *IONProvider {
	baseURL := os.Getenv("ION_BASE_URL")
	if baseURL == "" {
		baseURL = "https://ion.tjhsst.edu" // Default
	}

	return &IONProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			// Read-only profile access is all this flow needs.
			Scopes: []string{"read"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  baseURL + "/oauth/authorize/",
				TokenURL: baseURL + "/oauth/token/",
			},
		},
		ProfileURL: baseURL + "/api/profile",
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// AuthCodeURL builds the ION authorization URL carrying the correlation
// token as the OAuth state parameter.
func (p *IONProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// ExchangeCode exchanges the authorization code for an access token.
func (p *IONProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.Client)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return "", &ProviderError{
			Code:    constants.ErrCodeTokenExchangeFailed,
			Message: constants.GetErrorMessage(constants.ErrCodeTokenExchangeFailed),
			Err:     err,
		}
	}
	return token.AccessToken, nil
}

// FetchProfile calls the ION profile endpoint and returns the canonical
// username. An empty username field is an error.
func (p *IONProvider) FetchProfile(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ProfileURL, nil)
	if err != nil {
		return "", &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: "Failed to create profile request",
			Err:     err,
		}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: constants.GetErrorMessage(constants.ErrCodeNetworkError),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{
			Code:    constants.ErrCodeProfileIncomplete,
			Message: fmt.Sprintf("Profile endpoint returned HTTP %d", resp.StatusCode),
		}
	}

	var profile IONProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", &ProviderError{
			Code:    constants.ErrCodeProfileIncomplete,
			Message: "Failed to parse profile response",
			Err:     err,
		}
	}

	if profile.IonUsername == "" {
		return "", &ProviderError{
			Code:    constants.ErrCodeProfileIncomplete,
			Message: constants.GetErrorMessage(constants.ErrCodeProfileIncomplete),
		}
	}

	return profile.IonUsername, nil
}
