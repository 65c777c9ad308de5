// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account row. Email is unique case-insensitively and stored
// lowercased. Accounts provisioned through federated login carry no local
// credentials: Salt and PasswordHash are empty and HashVersion is zero.
type User struct {
	ID           string
	Email        string
	Username     string
	PictureURI   string
	Salt         []byte
	PasswordHash []byte
	// HashVersion records which derivation parameters produced PasswordHash,
	// so parameters can be upgraded without invalidating old credentials.
	HashVersion int
	CreatedAt   time.Time
}

// Federated reports whether the account has no local password and therefore
// must not be able to log in through the local credential path.
func (u *User) Federated() bool {
	return len(u.Salt) == 0 && len(u.PasswordHash) == 0
}
