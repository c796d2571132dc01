package auth

import "context"

// Identity is the authenticated caller attached to the request context by
// Middleware, after token validation and session resolution.
type Identity struct {
	UserID        int64
	Username      string // normalized, upper-case
	DisplayName   string
	Role          string
	IsSystemAdmin bool
	SessionID     string
	Permissions   Capabilities
}

// HasCapability reports whether the identity's effective permissions include
// cap. is_system_admin users bypass the role bit vector entirely (spec §4.2).
func (id *Identity) HasCapability(cap Capability) bool {
	if id.IsSystemAdmin {
		return true
	}
	return id.Permissions.Has(cap)
}

type ctxKey int

const identityCtxKey ctxKey = 0

// NewContext returns a context carrying the given Identity.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, id)
}

// FromContext extracts the Identity stored by Middleware, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityCtxKey).(*Identity)
	return id
}
