package timers

import (
	"sync"
	"time"
)

// Kind names the two deadline timers a session may own. They are mutually
// exclusive over a session's lifetime: response while REQUESTED, exhaustion
// while ACTIVE.
type Kind string

const (
	KindResponse   Kind = "RESPONSE"
	KindExhaustion Kind = "EXHAUSTION"
)

type key struct {
	sessionID string
	kind      Kind
}

type deadlineTimer struct {
	timer    *time.Timer
	deadline time.Time
}

// Manager owns every per-session deadline timer. Timers are addressed by
// session ID and kind, never by capturing live session objects; when a timer
// fires, the callback re-resolves the session through the orchestrator.
type Manager struct {
	mu     sync.Mutex
	timers map[key]*deadlineTimer
}

// NewManager creates an empty timer manager.
func NewManager() *Manager {
	return &Manager{
		timers: make(map[key]*deadlineTimer),
	}
}

// ArmResponse arms the response timer for a session, replacing any existing
// one. onTimeout runs on the timer goroutine after the timer is unlinked
// from the table.
func (m *Manager) ArmResponse(sessionID string, d time.Duration, onTimeout func()) {
	m.arm(key{sessionID, KindResponse}, d, onTimeout)
}

// ArmExhaustion arms the balance-exhaustion timer for a session, replacing
// any existing one.
func (m *Manager) ArmExhaustion(sessionID string, d time.Duration, onTimeout func()) {
	m.arm(key{sessionID, KindExhaustion}, d, onTimeout)
}

func (m *Manager) arm(k key, d time.Duration, onTimeout func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.timers[k]; ok {
		existing.timer.Stop()
	}

	dt := &deadlineTimer{deadline: time.Now().Add(d)}
	dt.timer = time.AfterFunc(d, func() {
		m.mu.Lock()
		current, ok := m.timers[k]
		if ok && current == dt {
			delete(m.timers, k)
		}
		m.mu.Unlock()
		if !ok || current != dt {
			// Replaced or cancelled after firing was already scheduled.
			return
		}
		onTimeout()
	})
	m.timers[k] = dt
}

// Cancel stops and discards the named timer if present; safe when absent.
func (m *Manager) Cancel(sessionID string, kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{sessionID, kind}
	if dt, ok := m.timers[k]; ok {
		dt.timer.Stop()
		delete(m.timers, k)
	}
}

// CancelAll cancels both timer kinds for a session. Invoked unconditionally
// on every terminal transition before the session is removed, so a timer can
// never fire against an already-removed session.
func (m *Manager) CancelAll(sessionID string) {
	m.Cancel(sessionID, KindResponse)
	m.Cancel(sessionID, KindExhaustion)
}

// Stop cancels every armed timer. Used during shutdown so no callback fires
// into a half-closed service.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, dt := range m.timers {
		dt.timer.Stop()
		delete(m.timers, k)
	}
}

// Armed reports whether the named timer is currently armed.
func (m *Manager) Armed(sessionID string, kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[key{sessionID, kind}]
	return ok
}

// Deadline returns when the named timer will fire, if armed.
func (m *Manager) Deadline(sessionID string, kind Kind) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dt, ok := m.timers[key{sessionID, kind}]
	if !ok {
		return time.Time{}, false
	}
	return dt.deadline, true
}
