package livesync

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func drain(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case env := <-c.send:
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
		return Envelope{}
	}
}

func TestAttach_SendsWelcomeWithExistingConnectedUsers(t *testing.T) {
	h := NewHub(discardLogger())

	alice := h.Attach("alice")
	drain(t, alice) // alice's own welcome

	bob := h.Attach("bob")
	welcome := drain(t, bob)

	if welcome.Type != EnvelopeWelcome {
		t.Fatalf("type = %v, want %v", welcome.Type, EnvelopeWelcome)
	}
	data, ok := welcome.Data.(WelcomeData)
	if !ok {
		t.Fatalf("data = %T, want WelcomeData", welcome.Data)
	}
	if len(data.ConnectedUsers) != 1 || data.ConnectedUsers[0] != "alice" {
		t.Errorf("connected users = %v, want [alice]", data.ConnectedUsers)
	}

	// alice should have received a user_connected broadcast about bob.
	notice := drain(t, alice)
	if notice.Type != EnvelopeUserConnected {
		t.Fatalf("type = %v, want %v", notice.Type, EnvelopeUserConnected)
	}
}

func TestAttach_DoesNotNotifySelf(t *testing.T) {
	h := NewHub(discardLogger())
	alice := h.Attach("alice")

	welcome := drain(t, alice)
	if welcome.Type != EnvelopeWelcome {
		t.Fatalf("type = %v, want %v", welcome.Type, EnvelopeWelcome)
	}

	select {
	case env := <-alice.send:
		t.Fatalf("alice received unexpected envelope %v after her own welcome", env)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDetach_BroadcastsUserDisconnected(t *testing.T) {
	h := NewHub(discardLogger())
	alice := h.Attach("alice")
	drain(t, alice)
	bob := h.Attach("bob")
	drain(t, bob)
	drain(t, alice) // user_connected for bob

	h.Detach(bob.ID)

	notice := drain(t, alice)
	if notice.Type != EnvelopeUserDisconnected {
		t.Fatalf("type = %v, want %v", notice.Type, EnvelopeUserDisconnected)
	}
	data := notice.Data.(PresenceData)
	if data.Username != "bob" {
		t.Errorf("username = %q, want bob", data.Username)
	}

	if h.Size() != 1 {
		t.Errorf("Size() = %d, want 1", h.Size())
	}
}

func TestDetachUser_EvictsEveryClientForThatUsername(t *testing.T) {
	h := NewHub(discardLogger())
	a1 := h.Attach("alice")
	drain(t, a1)
	a2 := h.Attach("alice")
	drain(t, a2)
	drain(t, a1) // user_connected for a2

	h.DetachUser("alice")

	if h.Size() != 0 {
		t.Errorf("Size() = %d, want 0 after DetachUser", h.Size())
	}
}

func TestBroadcast_ReachesAllClientsIncludingOriginator(t *testing.T) {
	h := NewHub(discardLogger())
	alice := h.Attach("alice")
	drain(t, alice)
	bob := h.Attach("bob")
	drain(t, bob)
	drain(t, alice) // user_connected for bob

	entityID := int64(42)
	h.PublishDataChanged("missions", ChangeUpdated, &entityID, "alice")

	for _, c := range []*Client{alice, bob} {
		env := drain(t, c)
		if env.Type != EnvelopeDataChanged {
			t.Fatalf("type = %v, want %v", env.Type, EnvelopeDataChanged)
		}
		data := env.Data.(DataChangedData)
		if data.ChangedBy != "alice" || data.Action != ChangeUpdated {
			t.Errorf("data = %+v, unexpected", data)
		}
	}
}

func TestPublish_FullChannelEvictsClientInsteadOfBlocking(t *testing.T) {
	h := NewHub(discardLogger())
	c := h.Attach("alice")
	drain(t, c) // welcome

	// Fill the send buffer past capacity so the next publish hits the
	// non-blocking default branch and evicts the client.
	for i := 0; i < 40; i++ {
		h.Broadcast(Envelope{Type: EnvelopeRefreshRequired})
	}

	deadline := time.Now().Add(time.Second)
	for h.Size() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.Size() != 0 {
		t.Errorf("Size() = %d, want 0 once the overfull client is evicted", h.Size())
	}
}

func TestConnectedUsers_ReflectsAttachedClients(t *testing.T) {
	h := NewHub(discardLogger())
	if got := h.ConnectedUsers(); len(got) != 0 {
		t.Fatalf("ConnectedUsers() = %v, want empty", got)
	}

	alice := h.Attach("alice")
	drain(t, alice)

	got := h.ConnectedUsers()
	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("ConnectedUsers() = %v, want [alice]", got)
	}
}
