package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProvider fetches profiles from the Google OAuth2 userinfo endpoint.
type GoogleProvider struct {
	userinfoURL string
}

func NewGoogleProvider() *GoogleProvider {
	return &GoogleProvider{userinfoURL: googleUserinfoURL}
}

func (g *GoogleProvider) Name() string { return "google" }

func (g *GoogleProvider) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	// payload per https://www.googleapis.com/oauth2/v2/userinfo
	var payload struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := fetchJSON(ctx, g.userinfoURL, accessToken, &payload); err != nil {
		return nil, err
	}
	return &Profile{Email: payload.Email, Name: payload.Name, PictureURL: payload.Picture}, nil
}

// fetchJSON performs an authenticated GET against a provider profile endpoint
// and decodes the JSON body into out. The oauth2 client injects the bearer
// token and honors the request context.
func fetchJSON(ctx context.Context, url string, accessToken string, out any) error {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed provider payload: %w", err)
	}
	return nil
}
