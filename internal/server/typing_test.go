package server

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypingTracker_StartAndExpire(t *testing.T) {
	tt := NewTypingTracker(50 * time.Millisecond)

	var expirations atomic.Int32
	created := tt.Start("general", "alice", func() {
		expirations.Add(1)
	})
	assert.True(t, created, "expected first start to create a session")
	assert.Equal(t, []string{"alice"}, tt.Typists("general"), "expected alice to be typing")

	assert.Eventually(t, func() bool {
		return expirations.Load() == 1
	}, time.Second, 10*time.Millisecond, "expected exactly one expiry")
	assert.Empty(t, tt.Typists("general"), "expected session to be gone after expiry")
	assert.Equal(t, 0, tt.Len(), "expected no sessions")
}

func TestTypingTracker_Debounce(t *testing.T) {
	// two starts within the window produce exactly one stop, timed from the
	// second start
	window := 100 * time.Millisecond
	tt := NewTypingTracker(window)

	var expirations atomic.Int32
	start := time.Now()
	var expiredAt atomic.Int64

	created := tt.Start("general", "alice", func() {
		expirations.Add(1)
		expiredAt.Store(int64(time.Since(start)))
	})
	assert.True(t, created, "expected first start to create a session")

	time.Sleep(window / 2)
	created = tt.Start("general", "alice", nil)
	assert.False(t, created, "expected repeat start to re-arm, not create")

	assert.Eventually(t, func() bool {
		return expirations.Load() == 1
	}, time.Second, 5*time.Millisecond, "expected exactly one expiry")

	elapsed := time.Duration(expiredAt.Load())
	assert.GreaterOrEqual(t, elapsed, window+window/2-10*time.Millisecond,
		"expected expiry to be timed from the second start, not the first")

	time.Sleep(window)
	assert.Equal(t, int32(1), expirations.Load(), "expected no further expirations")
}

func TestTypingTracker_Stop(t *testing.T) {
	tt := NewTypingTracker(50 * time.Millisecond)

	var expirations atomic.Int32
	tt.Start("general", "alice", func() {
		expirations.Add(1)
	})

	assert.True(t, tt.Stop("general", "alice"), "expected stop to cancel the session")
	assert.False(t, tt.Stop("general", "alice"), "expected repeat stop to be a no-op")

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, expirations.Load(), "expected no expiry after explicit stop")
}

func TestTypingTracker_StopAll(t *testing.T) {
	tt := NewTypingTracker(time.Minute)

	tt.Start("general", "alice", nil)
	tt.Start("random", "alice", nil)
	tt.Start("general", "bob", nil)

	rooms := tt.StopAll("alice")
	assert.Len(t, rooms, 2, "expected alice's 2 sessions to be cancelled")
	assert.Contains(t, rooms, "general")
	assert.Contains(t, rooms, "random")

	assert.Equal(t, []string{"bob"}, tt.Typists("general"), "expected bob's session to survive")
	assert.Equal(t, 1, tt.Len(), "expected 1 session to remain")

	assert.Empty(t, tt.StopAll("alice"), "expected repeat stopAll to be a no-op")
}

func TestTypingTracker_PerRoomSessions(t *testing.T) {
	tt := NewTypingTracker(time.Minute)

	assert.True(t, tt.Start("general", "alice", nil), "expected new session in general")
	assert.True(t, tt.Start("random", "alice", nil), "expected separate session in random")
	assert.False(t, tt.Start("general", "alice", nil), "expected at most one session per room")
}
