package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_RejectsMissingIdentity(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	RequireAuth(okHandler()).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuth_PassesWithIdentity(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(NewContext(r.Context(), &Identity{Username: "ALICE"}))
	w := httptest.NewRecorder()

	RequireAuth(okHandler()).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRequireCapability_RejectsWithoutCapability(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(NewContext(r.Context(), &Identity{Permissions: capsOf(ViewPlanning)}))
	w := httptest.NewRecorder()

	RequireCapability(ManageRights)(okHandler()).ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRequireCapability_PassesWithCapability(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(NewContext(r.Context(), &Identity{Permissions: capsOf(ManageRights)}))
	w := httptest.NewRecorder()

	RequireCapability(ManageRights)(okHandler()).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRequireCapability_SystemAdminBypasses(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(NewContext(r.Context(), &Identity{IsSystemAdmin: true}))
	w := httptest.NewRecorder()

	RequireCapability(ManageRights)(okHandler()).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRequireAnyCapability_PassesIfOneMatches(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(NewContext(r.Context(), &Identity{Permissions: capsOf(ViewFinance)}))
	w := httptest.NewRecorder()

	RequireAnyCapability(ManageRights, ViewFinance)(okHandler()).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRequireAnyCapability_RejectsIfNoneMatch(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(NewContext(r.Context(), &Identity{Permissions: capsOf(ViewPlanning)}))
	w := httptest.NewRecorder()

	RequireAnyCapability(ManageRights, ViewFinance)(okHandler()).ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
