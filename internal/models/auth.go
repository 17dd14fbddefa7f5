package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload of the session token minted by the OAuth
// front end after a successful Microsoft sign-in.
type SessionClaims struct {
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	JobTitle    string `json:"jobTitle,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the identity seen by the session layer.
func (c *SessionClaims) Identity() Identity {
	return Identity{Email: c.Email, DisplayName: c.DisplayName, JobTitle: c.JobTitle}
}

// MeResponse describes the current session to the front end.
type MeResponse struct {
	Principal *Principal      `json:"principal,omitempty"`
	Grant     *TemporaryGrant `json:"temporaryAccess,omitempty"`
}
