package federation

import "context"

const facebookProfileURL = "https://graph.facebook.com/v19.0/me?fields=email,name,picture"

// FacebookProvider fetches profiles from the Facebook Graph API.
type FacebookProvider struct {
	profileURL string
}

func NewFacebookProvider() *FacebookProvider {
	return &FacebookProvider{profileURL: facebookProfileURL}
}

func (f *FacebookProvider) Name() string { return "facebook" }

func (f *FacebookProvider) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	// Graph API nests the picture URL one level deeper than Google does.
	var payload struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := fetchJSON(ctx, f.profileURL, accessToken, &payload); err != nil {
		return nil, err
	}
	return &Profile{Email: payload.Email, Name: payload.Name, PictureURL: payload.Picture.Data.URL}, nil
}
