package server

import (
	"sync"
	"time"
)

const defaultTypingTimeout = 3 * time.Second

type typingKey struct {
	roomId string
	userId string
}

type typingSession struct {
	timer     *time.Timer
	expiresAt time.Time
}

// TypingTracker holds the per (room, user) typing state machine. A session
// exists while the user is typing; absence of an entry is the idle state.
// Each session owns a single-shot debounce timer which is re-armed on
// repeated typing_start events and cancelled on typing_stop or disconnect.
type TypingTracker struct {
	mu       sync.Mutex
	timeout  time.Duration
	sessions map[typingKey]*typingSession
}

func NewTypingTracker(timeout time.Duration) *TypingTracker {
	if timeout <= 0 {
		timeout = defaultTypingTimeout
	}

	return &TypingTracker{
		timeout:  timeout,
		sessions: make(map[typingKey]*typingSession),
	}
}

// Start transitions (roomId, userId) to typing and reports whether a new
// session was created. An existing session has its timer re-armed instead.
// onExpire runs once if the debounce window elapses without renewal; it is
// never invoked after an explicit Stop.
func (tt *TypingTracker) Start(roomId, userId string, onExpire func()) bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	key := typingKey{roomId: roomId, userId: userId}
	if s, ok := tt.sessions[key]; ok {
		s.timer.Stop()
		s.timer.Reset(tt.timeout)
		s.expiresAt = time.Now().Add(tt.timeout)
		return false
	}

	s := &typingSession{expiresAt: time.Now().Add(tt.timeout)}
	s.timer = time.AfterFunc(tt.timeout, func() {
		if tt.expire(key, s) && onExpire != nil {
			onExpire()
		}
	})
	tt.sessions[key] = s

	return true
}

// expire removes the session when the timer fires. The identity check guards
// against a timer that fires concurrently with a Stop/Start pair replacing
// the session.
func (tt *TypingTracker) expire(key typingKey, s *typingSession) bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	cur, ok := tt.sessions[key]
	if !ok || cur != s {
		return false
	}

	delete(tt.sessions, key)
	return true
}

// Stop cancels the session for (roomId, userId) and reports whether one was
// active.
func (tt *TypingTracker) Stop(roomId, userId string) bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	key := typingKey{roomId: roomId, userId: userId}
	s, ok := tt.sessions[key]
	if !ok {
		return false
	}

	s.timer.Stop()
	delete(tt.sessions, key)
	return true
}

// StopAll cancels every session for userId, used on disconnect. It returns
// the rooms in which the user was typing.
func (tt *TypingTracker) StopAll(userId string) []string {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	var rooms []string
	for key, s := range tt.sessions {
		if key.userId != userId {
			continue
		}

		s.timer.Stop()
		delete(tt.sessions, key)
		rooms = append(rooms, key.roomId)
	}

	return rooms
}

func (tt *TypingTracker) Typists(roomId string) []string {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	var users []string
	for key := range tt.sessions {
		if key.roomId == roomId {
			users = append(users, key.userId)
		}
	}

	return users
}

func (tt *TypingTracker) Len() int {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	return len(tt.sessions)
}
