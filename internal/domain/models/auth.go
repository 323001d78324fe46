package models

import (
	"slices"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// RoleModerator is the role claim granting moderation rights.
const RoleModerator = "moderator"

// Claims is the JWT payload issued by the authentication service.
// The subject is the numeric id of the user (and of their profile document).
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Actor is the authenticated user performing a request.
type Actor struct {
	UserID    int64
	Username  string
	Moderator bool
}

// ActorFromClaims builds an Actor from verified claims.
func ActorFromClaims(c *Claims) (*Actor, error) {
	id, err := c.UserID()
	if err != nil {
		return nil, err
	}
	return &Actor{
		UserID:    id,
		Username:  c.Username,
		Moderator: slices.Contains(c.Roles, RoleModerator),
	}, nil
}
