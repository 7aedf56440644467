// Package store provides Repository implementations.
package store

import (
	"context"
	"sync"

	"github.com/driveline/trip-ledger/ledger"
)

// =============================================================================
// MEMORY REPOSITORY - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps each user's entry log and batch records in process memory,
// preserving append order. Reads return copies so callers cannot reach
// into the stored log.
type Memory struct {
	mu      sync.RWMutex
	entries map[ledger.UserID][]ledger.Entry
	batches map[ledger.UserID][]ledger.Batch
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[ledger.UserID][]ledger.Entry),
		batches: make(map[ledger.UserID][]ledger.Batch),
	}
}

func (m *Memory) GetEntries(_ context.Context, userID ledger.UserID) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Entry, len(m.entries[userID]))
	copy(result, m.entries[userID])
	return result, nil
}

func (m *Memory) AppendEntry(_ context.Context, userID ledger.UserID, entry ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[userID] = append(m.entries[userID], entry)
	return nil
}

// AppendEntries appends all entries in caller order. Atomic by construction:
// the slice is extended under one lock hold.
func (m *Memory) AppendEntries(_ context.Context, userID ledger.UserID, entries []ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[userID] = append(m.entries[userID], entries...)
	return nil
}

func (m *Memory) CreateBatchRecord(_ context.Context, userID ledger.UserID, batch ledger.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batches[userID] = append(m.batches[userID], batch)
	return nil
}

func (m *Memory) GetEntriesByBatch(_ context.Context, userID ledger.UserID, batchID ledger.BatchID) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Entry
	for _, e := range m.entries[userID] {
		if e.BatchID == batchID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) GetBatches(_ context.Context, userID ledger.UserID) ([]ledger.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Batch, len(m.batches[userID]))
	copy(result, m.batches[userID])
	return result, nil
}

// ReplaceAllEntries overwrites the user's log. Migration/reset flows only.
func (m *Memory) ReplaceAllEntries(_ context.Context, userID ledger.UserID, entries []ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	replacement := make([]ledger.Entry, len(entries))
	copy(replacement, entries)
	m.entries[userID] = replacement
	return nil
}
