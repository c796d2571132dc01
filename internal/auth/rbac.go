package auth

import (
	"encoding/json"
	"net/http"
)

// RequireAuth rejects requests that have no authenticated identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			respondErr(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCapability returns middleware that rejects requests whose identity
// does not hold the named capability (spec §4.2 "every mutating call and
// most read calls are gated on one named capability"). is_system_admin
// bypasses this check via Identity.HasCapability.
func RequireCapability(cap Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				respondForbidden(w, "authentication required")
				return
			}
			if !id.HasCapability(cap) {
				respondForbidden(w, "missing required capability: "+string(cap))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyCapability returns middleware that passes if the identity holds
// at least one of the listed capabilities.
func RequireAnyCapability(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				respondForbidden(w, "authentication required")
				return
			}
			for _, cap := range caps {
				if id.HasCapability(cap) {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondForbidden(w, "missing required capability")
		})
	}
}

func respondForbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "forbidden",
		"message": message,
	})
}
