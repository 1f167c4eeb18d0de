package presence

import (
	"testing"

	"orchestrator-service/src/schemas"

	"github.com/stretchr/testify/require"
)

type stubSender struct {
	name string
}

func (s *stubSender) Send(event schemas.Event) error { return nil }

func TestRegisterAndLookup(t *testing.T) {
	registry := NewRegistry()
	handle := &stubSender{name: "a"}

	registry.Register("party-1", handle)

	got, ok := registry.Lookup("party-1")
	require.True(t, ok)
	require.Same(t, handle, got)

	_, ok = registry.Lookup("party-2")
	require.False(t, ok)
}

func TestRegisterOverwritesPriorHandle(t *testing.T) {
	registry := NewRegistry()
	old := &stubSender{name: "old"}
	fresh := &stubSender{name: "fresh"}

	registry.Register("party-1", old)
	registry.Register("party-1", fresh)

	got, ok := registry.Lookup("party-1")
	require.True(t, ok)
	require.Same(t, fresh, got)
}

func TestUnregisterRemovesOwnHandle(t *testing.T) {
	registry := NewRegistry()
	handle := &stubSender{name: "a"}

	registry.Register("party-1", handle)
	registry.Unregister("party-1", handle)

	_, ok := registry.Lookup("party-1")
	require.False(t, ok)
}

func TestUnregisterIgnoresStaleHandle(t *testing.T) {
	registry := NewRegistry()
	old := &stubSender{name: "old"}
	fresh := &stubSender{name: "fresh"}

	registry.Register("party-1", old)
	// Reconnect replaces the handle before the old connection finishes
	// closing.
	registry.Register("party-1", fresh)
	registry.Unregister("party-1", old)

	got, ok := registry.Lookup("party-1")
	require.True(t, ok)
	require.Same(t, fresh, got)
}
