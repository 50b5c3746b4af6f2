package models

// User represents an authenticated identity as reported by the identity provider.
// ID is the provider's opaque subject key; Username falls back to the local part
// of the email address when the provider has no username on record.
type User struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// DisplayName returns the username if set, otherwise the local part of the email.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return EmailLocalPart(u.Email)
}

// EmailLocalPart returns everything before the first '@' of an email address.
func EmailLocalPart(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
