// ABOUTME: Claims decoding for forum bearer tokens
// ABOUTME: Extracts subject id, role, and expiry from a JWT without verifying it

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Decode errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("missing required claim")
)

// Role is the forum role carried in a token's "role" claim.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"

	// RoleUnknown marks a role string the client does not recognize.
	// It decodes as its own variant so the policy layer denies it instead
	// of treating it as a plain user.
	RoleUnknown Role = "unknown"
)

// ValidRoles lists the roles the server is known to issue.
var ValidRoles = []Role{RoleUser, RoleModerator, RoleAdmin}

// ParseRole maps a raw role claim to a Role, falling back to RoleUnknown.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser, RoleModerator, RoleAdmin:
		return Role(s)
	default:
		return RoleUnknown
	}
}

// Identity is the decoded view of a bearer token. It is always derived from
// the current token and never constructed by hand outside this package's
// decode path (tests aside).
type Identity struct {
	SubjectID int
	Role      Role
	ExpiresAt time.Time
}

// Expired reports whether the identity's expiry has passed at the given time.
// A zero ExpiresAt (no "exp" claim) never expires.
func (id *Identity) Expired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && now.After(id.ExpiresAt)
}

// DecodeIdentity parses a bearer token into an Identity. The signature is not
// verified: the server holds the secret and rejects forgeries on every
// request; the client only needs to read the claims it was handed. Expiry is
// carried as a field, not checked against the clock here.
func DecodeIdentity(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	subjectID, err := subjectClaim(claims)
	if err != nil {
		return nil, err
	}

	roleRaw, ok := claims["role"].(string)
	if !ok || roleRaw == "" {
		return nil, fmt.Errorf("%w: role", ErrMissingClaim)
	}

	id := &Identity{
		SubjectID: subjectID,
		Role:      ParseRole(roleRaw),
	}

	// "exp" is optional; jwt numeric dates arrive as float64.
	if exp, ok := claims["exp"].(float64); ok {
		id.ExpiresAt = time.Unix(int64(exp), 0)
	}

	return id, nil
}

// subjectClaim extracts the numeric subject id. The server issues "sub" as a
// string; tolerate a bare number too.
func subjectClaim(claims jwt.MapClaims) (int, error) {
	switch sub := claims["sub"].(type) {
	case string:
		if sub == "" {
			return 0, fmt.Errorf("%w: sub", ErrMissingClaim)
		}
		n, err := strconv.Atoi(sub)
		if err != nil {
			return 0, fmt.Errorf("%w: sub is not numeric: %v", ErrInvalidToken, err)
		}
		return n, nil
	case float64:
		return int(sub), nil
	default:
		return 0, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
}
