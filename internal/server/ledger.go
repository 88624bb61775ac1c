package server

import (
	"sync"
	"time"
)

const defaultLedgerMaxAge = time.Hour

type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

// DeliveryRecord tracks whether a specific message reached, and was read by,
// a specific recipient. One message to many recipients yields many records.
type DeliveryRecord struct {
	MessageId   string         `json:"message_id"`
	RecipientId string         `json:"recipient_id"`
	Status      DeliveryStatus `json:"status"`
	StatusAt    time.Time      `json:"status_at"`
}

type ledgerKey struct {
	messageId   string
	recipientId string
}

// DeliveryLedger records per (message, recipient) delivery state. Records are
// created only for live-path deliveries and pruned by the health monitor
// after the retention window regardless of read state.
type DeliveryLedger struct {
	mu      sync.RWMutex
	records map[ledgerKey]*DeliveryRecord
}

func NewDeliveryLedger() *DeliveryLedger {
	return &DeliveryLedger{
		records: make(map[ledgerKey]*DeliveryRecord),
	}
}

// MarkDelivered creates or overwrites the record for (messageId, recipientId)
// with status delivered. It reports whether a new record was created.
func (dl *DeliveryLedger) MarkDelivered(messageId, recipientId string) bool {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	key := ledgerKey{messageId: messageId, recipientId: recipientId}
	_, existed := dl.records[key]
	dl.records[key] = &DeliveryRecord{
		MessageId:   messageId,
		RecipientId: recipientId,
		Status:      StatusDelivered,
		StatusAt:    time.Now(),
	}

	return !existed
}

// MarkRead transitions an existing record to read. Without a prior delivered
// record the call is a no-op, not an error: the record may have been pruned
// or the process restarted.
func (dl *DeliveryLedger) MarkRead(messageId, recipientId string) bool {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	key := ledgerKey{messageId: messageId, recipientId: recipientId}
	rec, ok := dl.records[key]
	if !ok {
		return false
	}

	rec.Status = StatusRead
	rec.StatusAt = time.Now()
	return true
}

func (dl *DeliveryLedger) StatusesFor(messageId string) []DeliveryRecord {
	dl.mu.RLock()
	defer dl.mu.RUnlock()

	var records []DeliveryRecord
	for key, rec := range dl.records {
		if key.messageId == messageId {
			records = append(records, *rec)
		}
	}

	return records
}

// PruneOlderThan removes records whose statusAt predates now-maxAge and
// returns how many were removed. Invoked only by the health monitor.
func (dl *DeliveryLedger) PruneOlderThan(maxAge time.Duration) int {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for key, rec := range dl.records {
		if rec.StatusAt.Before(cutoff) {
			delete(dl.records, key)
			pruned++
		}
	}

	return pruned
}

func (dl *DeliveryLedger) Len() int {
	dl.mu.RLock()
	defer dl.mu.RUnlock()

	return len(dl.records)
}
