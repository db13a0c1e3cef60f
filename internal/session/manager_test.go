package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(time.Minute)

	a := m.Register("Firefox", "10.0.0.1")
	b := m.Register("Safari", "10.0.0.2")

	if _, err := uuid.Parse(a.ID); err != nil {
		t.Errorf("Expected UUID client ID, got %q", a.ID)
	}
	if a.ID == b.ID {
		t.Error("Expected distinct client IDs")
	}
	if m.Count() != 2 {
		t.Errorf("Expected 2 clients, got %d", m.Count())
	}

	m.Touch(a.ID, false)
	if m.Controller() != "" {
		t.Error("Expected plain activity not to take control")
	}
	m.Touch(b.ID, true)
	if m.Controller() != b.ID {
		t.Errorf("Expected %s to control, got %s", b.ID, m.Controller())
	}

	m.Remove(b.ID)
	if m.Controller() != "" || m.Count() != 1 {
		t.Errorf("Expected controller cleared and 1 client, got %q/%d", m.Controller(), m.Count())
	}

	m.Touch("unknown", true)
	if m.Controller() != "" {
		t.Error("Expected unknown client to be ignored")
	}
}

func TestManagerExpiresIdleClients(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	c := m.Register("Chrome", "127.0.0.1")
	m.Touch(c.ID, true)

	time.Sleep(40 * time.Millisecond)

	if m.Count() != 0 {
		t.Errorf("Expected idle client to expire, got %d", m.Count())
	}
	if m.Controller() != "" {
		t.Error("Expected expired controller to be cleared")
	}
}
