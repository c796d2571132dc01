package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
)

func TestApplyFieldAliases(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "actif maps to is_active",
			in:   map[string]any{"actif": true, "name": "R1"},
			want: map[string]any{"is_active": true, "name": "R1"},
		},
		{
			name: "pays_destination maps to country",
			in:   map[string]any{"pays_destination": "FR"},
			want: map[string]any{"country": "FR"},
		},
		{
			name: "canonical key wins over legacy alias",
			in:   map[string]any{"actif": false, "is_active": true},
			want: map[string]any{"is_active": true},
		},
		{
			name: "no legacy keys, body unchanged",
			in:   map[string]any{"name": "R1"},
			want: map[string]any{"name": "R1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applyFieldAliases(tt.in)
			if len(tt.in) != len(tt.want) {
				t.Fatalf("got %v, want %v", tt.in, tt.want)
			}
			for k, v := range tt.want {
				if tt.in[k] != v {
					t.Errorf("key %q = %v, want %v", k, tt.in[k], v)
				}
			}
		})
	}
}

func TestApplyMissionKindAlias(t *testing.T) {
	tests := []struct {
		name     string
		in       map[string]any
		wantKind any
	}{
		{name: "type_mission LIVRAISON maps to delivery", in: map[string]any{"type_mission": "LIVRAISON"}, wantKind: "delivery"},
		{name: "type_mission ENLEVEMENT maps to pickup", in: map[string]any{"type_mission": "ENLEVEMENT"}, wantKind: "pickup"},
		{name: "is_livraison true maps to delivery", in: map[string]any{"is_livraison": true}, wantKind: "delivery"},
		{name: "is_livraison false maps to pickup", in: map[string]any{"is_livraison": false}, wantKind: "pickup"},
		{name: "explicit kind wins, legacy keys dropped", in: map[string]any{"kind": "pickup", "type_mission": "LIVRAISON"}, wantKind: "pickup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applyMissionKindAlias(tt.in)
			if tt.in["kind"] != tt.wantKind {
				t.Errorf("kind = %v, want %v", tt.in["kind"], tt.wantKind)
			}
			if _, ok := tt.in["type_mission"]; ok {
				t.Errorf("type_mission should be removed, got %v", tt.in)
			}
			if _, ok := tt.in["is_livraison"]; ok {
				t.Errorf("is_livraison should be removed, got %v", tt.in)
			}
		})
	}
}

func TestRewriteJSONBody_ReplacesBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"actif":true,"name":"R1"}`))

	rewriteJSONBody(r, applyFieldAliases)

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("reading rewritten body: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshaling rewritten body: %v", err)
	}
	if got["is_active"] != true {
		t.Errorf("is_active = %v, want true", got["is_active"])
	}
	if _, ok := got["actif"]; ok {
		t.Errorf("actif should have been removed, got %v", got)
	}
}

func TestRewriteJSONBody_LeavesMalformedBodyUntouched(t *testing.T) {
	r := httptest.NewRequest("POST", "/", bytes.NewBufferString(`not json`))

	rewriteJSONBody(r, applyFieldAliases)

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(raw) != "not json" {
		t.Errorf("body = %q, want unchanged %q", raw, "not json")
	}
}

func TestRewriteJSONBody_SkipsGetAndDelete(t *testing.T) {
	r := httptest.NewRequest("GET", "/", bytes.NewBufferString(`{"actif":true}`))

	rewriteJSONBody(r, applyFieldAliases)

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(raw) != `{"actif":true}` {
		t.Errorf("GET body should be untouched, got %q", raw)
	}
}
