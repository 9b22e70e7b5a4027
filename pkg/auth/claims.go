package auth

import "github.com/golang-jwt/jwt/v5"

// ScopeReconcile grants access to the reconciliation admin endpoints.
const ScopeReconcile = "reconcile:admin"

// AdminTokenPayload captures the data available when minting an operator token.
type AdminTokenPayload struct {
	Subject string
	Scopes  []string
	JTI     string
}

// AdminClaims represents the typed JWT presented to the admin API.
type AdminClaims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token carries the given scope.
func (c *AdminClaims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
