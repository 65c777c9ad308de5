package services

import "github.com/mvrcrypto/customapi/internal/server/models"

// PublicProfile is the projection of an account any caller may see.
type PublicProfile struct {
	Username string `json:"username"`
	Picture  string `json:"picture"`
}

// PrivateProfile is the projection returned to the account owner. Salt and
// password hash never appear here; the structs simply have no field for them.
// AccessToken is present on the flows that issue one (register, login,
// federated auth) and omitted elsewhere. PasswordUpdate is set only on
// update responses.
type PrivateProfile struct {
	Username    string `json:"username"`
	Picture     string `json:"picture"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token,omitempty"`

	PasswordUpdate *bool `json:"passwordUpdate,omitempty"`
}

// PublicView projects a user row to its public shape.
func PublicView(user *models.User) *PublicProfile {
	return &PublicProfile{
		Username: user.Username,
		Picture:  user.PictureURI,
	}
}

// PrivateView projects a user row to its owner-facing shape.
func PrivateView(user *models.User, accessToken string) *PrivateProfile {
	return &PrivateProfile{
		Username:    user.Username,
		Picture:     user.PictureURI,
		Email:       user.Email,
		AccessToken: accessToken,
	}
}
