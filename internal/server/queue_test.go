package server

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newMessageEvent(roomId, messageId string) *ServerEvent {
	return newEvent(EventNewMessage, &MessagePayload{
		RoomId:    roomId,
		MessageId: messageId,
		SenderId:  "alice",
		Message:   "hello",
	})
}

func TestOfflineQueue_EnqueueDrainRoundTrip(t *testing.T) {
	oq := NewOfflineQueue(defaultQueueCapacity)

	for i := range 5 {
		evicted := oq.Enqueue("bob", newMessageEvent("general", strconv.Itoa(i)))
		assert.False(t, evicted, "expected no eviction below capacity")
	}
	assert.Equal(t, 5, oq.SizeOf("bob"), "expected 5 queued messages")

	drained := oq.Drain("bob")
	assert.Len(t, drained, 5, "expected all messages returned")
	for i, qm := range drained {
		mp := qm.Event.Data.(*MessagePayload)
		assert.Equalf(t, strconv.Itoa(i), mp.MessageId, "expected message %d in enqueue order", i)
		assert.False(t, qm.QueuedAt.IsZero(), "expected queuedAt to be recorded")
	}

	assert.Equal(t, 0, oq.SizeOf("bob"), "expected queue to be empty after drain")
	assert.Empty(t, oq.Drain("bob"), "expected repeat drain to return nothing")
}

func TestOfflineQueue_CapacityEvictsOldest(t *testing.T) {
	oq := NewOfflineQueue(defaultQueueCapacity)

	for i := range defaultQueueCapacity {
		evicted := oq.Enqueue("bob", newMessageEvent("general", strconv.Itoa(i)))
		assert.False(t, evicted, "expected no eviction up to capacity")
	}

	evicted := oq.Enqueue("bob", newMessageEvent("general", strconv.Itoa(defaultQueueCapacity)))
	assert.True(t, evicted, "expected the 101st enqueue to evict")
	assert.Equal(t, defaultQueueCapacity, oq.SizeOf("bob"), "expected queue to hold exactly capacity")

	drained := oq.Drain("bob")
	assert.Len(t, drained, defaultQueueCapacity)

	first := drained[0].Event.Data.(*MessagePayload)
	assert.Equal(t, "1", first.MessageId, "expected the oldest message to be gone")

	last := drained[len(drained)-1].Event.Data.(*MessagePayload)
	assert.Equal(t, strconv.Itoa(defaultQueueCapacity), last.MessageId, "expected the newest message at the tail")
}

func TestOfflineQueue_PerUserIsolation(t *testing.T) {
	oq := NewOfflineQueue(defaultQueueCapacity)

	oq.Enqueue("bob", newMessageEvent("general", "m1"))
	oq.Enqueue("carol", newMessageEvent("general", "m2"))

	assert.Equal(t, 1, oq.SizeOf("bob"))
	assert.Equal(t, 1, oq.SizeOf("carol"))
	assert.Equal(t, 2, oq.TotalQueued())

	drained := oq.Drain("bob")
	assert.Len(t, drained, 1, "expected only bob's message")
	assert.Equal(t, 1, oq.SizeOf("carol"), "expected carol's queue to be untouched")
}

func TestOfflineQueue_SizeOfUnknownUser(t *testing.T) {
	oq := NewOfflineQueue(defaultQueueCapacity)
	assert.Equal(t, 0, oq.SizeOf("ghost"), "expected zero for unknown user")
}
