package timers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestArmAndFire(t *testing.T) {
	m := NewManager()
	fired := make(chan struct{})

	m.ArmResponse("s1", 10*time.Millisecond, func() { close(fired) })
	require.True(t, m.Armed("s1", KindResponse))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("response timer never fired")
	}

	// The timer unlinks itself before invoking the callback.
	require.Eventually(t, func() bool {
		return !m.Armed("s1", KindResponse)
	}, time.Second, 5*time.Millisecond)
}

func TestCancelPreventsFiring(t *testing.T) {
	m := NewManager()
	fired := make(chan struct{}, 1)

	m.ArmResponse("s1", 30*time.Millisecond, func() { fired <- struct{}{} })
	m.Cancel("s1", KindResponse)
	require.False(t, m.Armed("s1", KindResponse))

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRearmReplacesTimer(t *testing.T) {
	m := NewManager()
	firstFired := make(chan struct{}, 1)
	secondFired := make(chan struct{}, 1)

	m.ArmExhaustion("s1", 30*time.Millisecond, func() { firstFired <- struct{}{} })
	m.ArmExhaustion("s1", 60*time.Millisecond, func() { secondFired <- struct{}{} })

	select {
	case <-secondFired:
	case <-time.After(time.Second):
		t.Fatal("replacement timer never fired")
	}

	select {
	case <-firstFired:
		t.Fatal("replaced timer fired")
	default:
	}
}

func TestTimerKindsAreIndependent(t *testing.T) {
	m := NewManager()

	m.ArmResponse("s1", time.Hour, func() {})
	m.ArmExhaustion("s1", time.Hour, func() {})

	m.Cancel("s1", KindResponse)
	require.False(t, m.Armed("s1", KindResponse))
	require.True(t, m.Armed("s1", KindExhaustion))

	m.CancelAll("s1")
	require.False(t, m.Armed("s1", KindExhaustion))
}

func TestDeadline(t *testing.T) {
	m := NewManager()
	before := time.Now()

	m.ArmExhaustion("s1", 5*time.Minute, func() {})

	deadline, ok := m.Deadline("s1", KindExhaustion)
	require.True(t, ok)
	require.WithinDuration(t, before.Add(5*time.Minute), deadline, time.Second)

	_, ok = m.Deadline("s1", KindResponse)
	require.False(t, ok)
}

func TestStopCancelsEverything(t *testing.T) {
	m := NewManager()
	fired := make(chan struct{}, 2)

	m.ArmResponse("s1", 30*time.Millisecond, func() { fired <- struct{}{} })
	m.ArmExhaustion("s2", 30*time.Millisecond, func() { fired <- struct{}{} })

	m.Stop()

	select {
	case <-fired:
		t.Fatal("timer fired after Stop")
	case <-time.After(100 * time.Millisecond):
	}
	require.False(t, m.Armed("s1", KindResponse))
	require.False(t, m.Armed("s2", KindExhaustion))
}
