package livesync

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestHandleStatus_ReportsConnectedClientCount(t *testing.T) {
	hub := NewHub(discardLogger())
	h := &Handler{hub: hub}

	alice := hub.Attach("alice")
	drain(t, alice)

	r := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	h.handleStatus(w, r)

	var got map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshaling response: %v", err)
	}
	if got["connected_clients"] != 1 {
		t.Errorf("connected_clients = %d, want 1", got["connected_clients"])
	}
}
