package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// legacyFieldAliases maps a source-system input field name to exactly one
// canonical spec field name (spec §9 open question: "actif vs is_active,
// country vs pays_destination... the REST adapter at the edge must accept
// both on input for backward compatibility").
var legacyFieldAliases = map[string]string{
	"actif":            "is_active",
	"pays_destination": "country",
}

// LegacyFieldAliases rewrites a JSON request body's legacy field names to
// their canonical equivalents before the handler's strict,
// unknown-field-rejecting decode runs (internal/httpserver.Decode calls
// DisallowUnknownFields, so an unrewritten legacy key would otherwise be
// rejected as unknown rather than silently accepted). A legacy key is only
// applied when the canonical key is absent, so an explicit canonical value
// always wins. Mount on routes whose bodies may carry legacy alternates
// (route/driver/subcontractor create and update).
func LegacyFieldAliases(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rewriteJSONBody(r, applyFieldAliases)
		next.ServeHTTP(w, r)
	})
}

// LegacyMissionKindAlias rewrites a mission body's legacy kind encodings —
// the string field `type_mission` ("LIVRAISON"/"ENLEVEMENT") and the boolean
// field `is_livraison` — into the canonical `kind` field ("delivery" /
// "pickup") the Mission type uses.
func LegacyMissionKindAlias(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rewriteJSONBody(r, applyMissionKindAlias)
		next.ServeHTTP(w, r)
	})
}

func applyFieldAliases(body map[string]any) {
	for legacy, canonical := range legacyFieldAliases {
		v, ok := body[legacy]
		if !ok {
			continue
		}
		if _, exists := body[canonical]; !exists {
			body[canonical] = v
		}
		delete(body, legacy)
	}
}

func applyMissionKindAlias(body map[string]any) {
	if _, hasKind := body["kind"]; hasKind {
		delete(body, "type_mission")
		delete(body, "is_livraison")
		return
	}

	if raw, ok := body["type_mission"]; ok {
		if s, ok := raw.(string); ok {
			switch s {
			case "LIVRAISON":
				body["kind"] = "delivery"
			case "ENLEVEMENT":
				body["kind"] = "pickup"
			}
		}
		delete(body, "type_mission")
	}

	if raw, ok := body["is_livraison"]; ok {
		if b, ok := raw.(bool); ok {
			if b {
				body["kind"] = "delivery"
			} else {
				body["kind"] = "pickup"
			}
		}
		delete(body, "is_livraison")
	}
}

// rewriteJSONBody decodes r.Body as a JSON object, applies rewrite, and
// replaces r.Body with the re-encoded result. Bodies that are absent, not a
// JSON object, or malformed pass through unchanged — the handler's own
// Decode call reports the resulting error.
func rewriteJSONBody(r *http.Request, rewrite func(map[string]any)) {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodDelete {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	r.Body.Close()
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		r.Body = io.NopCloser(bytes.NewReader(raw))
		return
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		r.Body = io.NopCloser(bytes.NewReader(raw))
		return
	}

	rewrite(body)

	rewritten, err := json.Marshal(body)
	if err != nil {
		r.Body = io.NopCloser(bytes.NewReader(raw))
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(rewritten))
	r.ContentLength = int64(len(rewritten))
}
