package user

import "time"

// Identity is the authenticated user's public profile as returned by the auth endpoints.
// It is also the shape persisted under the "user" key.
type Identity struct {
	ID           string     `json:"_id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	ProfileImage string     `json:"profileImages,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

// Valid reports whether the identity has the fields a session needs.
func (i *Identity) Valid() bool {
	return i != nil && i.ID != "" && i.Username != ""
}

// MemberSince formats the signup month for the profile header, e.g. "January 2025".
func (i *Identity) MemberSince() string {
	if i == nil || i.CreatedAt == nil || i.CreatedAt.IsZero() {
		return ""
	}
	return i.CreatedAt.Format("January 2006")
}

// Account is the server-side record kept by the dev API.
type Account struct {
	Identity
	PasswordHash []byte
}
