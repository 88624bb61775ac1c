package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryLedger_MarkDelivered(t *testing.T) {
	dl := NewDeliveryLedger()

	created := dl.MarkDelivered("m1", "bob")
	assert.True(t, created, "expected a new record")
	assert.Equal(t, 1, dl.Len())

	records := dl.StatusesFor("m1")
	assert.Len(t, records, 1, "expected 1 record for m1")
	assert.Equal(t, StatusDelivered, records[0].Status)
	assert.Equal(t, "bob", records[0].RecipientId)
	assert.False(t, records[0].StatusAt.IsZero(), "expected statusAt to be set")

	// re-delivery overwrites in place
	created = dl.MarkDelivered("m1", "bob")
	assert.False(t, created, "expected overwrite, not a new record")
	assert.Equal(t, 1, dl.Len())
}

func TestDeliveryLedger_PerRecipientRecords(t *testing.T) {
	dl := NewDeliveryLedger()

	dl.MarkDelivered("m1", "bob")
	dl.MarkDelivered("m1", "carol")
	dl.MarkDelivered("m2", "bob")

	records := dl.StatusesFor("m1")
	assert.Len(t, records, 2, "expected independent records per recipient")
	assert.Equal(t, 3, dl.Len())
}

func TestDeliveryLedger_MarkRead(t *testing.T) {
	t.Run("transitions delivered to read", func(t *testing.T) {
		dl := NewDeliveryLedger()
		dl.MarkDelivered("m1", "bob")

		assert.True(t, dl.MarkRead("m1", "bob"), "expected markRead to update the record")

		records := dl.StatusesFor("m1")
		assert.Len(t, records, 1)
		assert.Equal(t, StatusRead, records[0].Status)
	})

	t.Run("no-op without prior record", func(t *testing.T) {
		dl := NewDeliveryLedger()

		assert.False(t, dl.MarkRead("m1", "bob"), "expected markRead without a record to be a no-op")
		assert.Equal(t, 0, dl.Len(), "expected no record to be created")
		assert.Empty(t, dl.StatusesFor("m1"))
	})
}

func TestDeliveryLedger_PruneOlderThan(t *testing.T) {
	dl := NewDeliveryLedger()

	dl.MarkDelivered("old", "bob")
	dl.MarkDelivered("fresh", "bob")

	// age the first record past the retention window
	dl.records[ledgerKey{messageId: "old", recipientId: "bob"}].StatusAt = time.Now().Add(-2 * time.Hour)

	pruned := dl.PruneOlderThan(time.Hour)
	assert.Equal(t, 1, pruned, "expected 1 record pruned")
	assert.Empty(t, dl.StatusesFor("old"), "expected expired record to be removed")
	assert.Len(t, dl.StatusesFor("fresh"), 1, "expected fresh record to be retained")

	// read records expire on the same clock
	dl.MarkRead("fresh", "bob")
	dl.records[ledgerKey{messageId: "fresh", recipientId: "bob"}].StatusAt = time.Now().Add(-2 * time.Hour)

	pruned = dl.PruneOlderThan(time.Hour)
	assert.Equal(t, 1, pruned, "expected read record to be pruned too")
	assert.Equal(t, 0, dl.Len())
}
