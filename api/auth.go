package api

import (
	"net/http"
	"strings"
)

// Role is the caller's administrative capability, resolved once per
// request. Dean holds a superset of Commission's privileges.
type Role string

const (
	RoleDean       Role = "dean"
	RoleCommission Role = "commission"
	RoleAnonymous  Role = "anonymous"
)

// AuthContext is the per-request authorization context handed to the
// workflow operations instead of per-endpoint conditionals.
type AuthContext struct {
	Role Role
}

// IsDean reports full administrative capability.
func (a AuthContext) IsDean() bool { return a.Role == RoleDean }

// IsAdmin reports Commission-level capability (Dean included).
func (a AuthContext) IsAdmin() bool { return a.Role == RoleDean || a.Role == RoleCommission }

// Authenticator maps bearer tokens onto roles. How tokens are issued is
// someone else's problem; an unrecognized or missing token is simply
// anonymous.
type Authenticator struct {
	deanToken       string
	commissionToken string
}

func NewAuthenticator(deanToken, commissionToken string) *Authenticator {
	return &Authenticator{deanToken: deanToken, commissionToken: commissionToken}
}

// Resolve extracts the caller's role from the Authorization header.
func (a *Authenticator) Resolve(r *http.Request) AuthContext {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return AuthContext{Role: RoleAnonymous}
	}
	switch {
	case a.deanToken != "" && token == a.deanToken:
		return AuthContext{Role: RoleDean}
	case a.commissionToken != "" && token == a.commissionToken:
		return AuthContext{Role: RoleCommission}
	}
	return AuthContext{Role: RoleAnonymous}
}
