/*
repository.go - Durable storage contract for ledger entries

PURPOSE:
  Defines the interface between the ledger engine and whatever moves
  entries to and from durable storage. The engine treats persistence as a
  pluggable collaborator: SQLite in production, in-memory for tests, a
  hosted backend behind an API client - all equivalent here.

APPEND-ONLY CONTRACT:
  - AppendEntry / AppendEntries are the only normal write paths.
  - NO update or per-entry delete methods exist. Ever.
  - ReplaceAllEntries exists solely for one-shot migration/reset flows and
    is never part of normal operation.

ORDERING:
  GetEntries must return entries in append order, and AppendEntries must
  preserve the caller-specified order when read back. The chain's meaning
  depends on it.

CONCURRENCY:
  The engine assumes a single logical writer per user. If two writers race
  on one chain, the second append's PreviousHash may no longer match the
  actual tail; that produces a detectable chain break (caught by
  VerifyLedger), not silent corruption. Implementations targeting
  multi-device use should add a compare-and-swap or serializable
  transaction at this layer.

IMPLEMENTATIONS:
  - store/memory.go: in-memory, for tests and development
  - store/sqlite:    production SQLite store
*/
package ledger

import "context"

// Repository handles persistence of ledger entries and batch records,
// keyed per user. Chains of different users are fully independent.
type Repository interface {
	// GetEntries returns all entries for a user in append order.
	GetEntries(ctx context.Context, userID UserID) ([]Entry, error)

	// AppendEntry durably appends a single entry to the user's log.
	AppendEntry(ctx context.Context, userID UserID, entry Entry) error

	// AppendEntries durably appends multiple entries in the given order,
	// atomically where the backend allows it.
	AppendEntries(ctx context.Context, userID UserID, entries []Entry) error

	// CreateBatchRecord stores the summary record of one bulk import.
	CreateBatchRecord(ctx context.Context, userID UserID, batch Batch) error

	// GetEntriesByBatch returns the entries of one batch in append order.
	GetEntriesByBatch(ctx context.Context, userID UserID, batchID BatchID) ([]Entry, error)

	// GetBatches returns all batch records for a user.
	GetBatches(ctx context.Context, userID UserID) ([]Batch, error)

	// ReplaceAllEntries overwrites the user's entire log. Migration and
	// reset flows only - never called during normal operation.
	ReplaceAllEntries(ctx context.Context, userID UserID, entries []Entry) error
}

// LegacySource yields entries from a pre-ledger storage location during a
// one-shot migration. The orchestration layer calls Service.Migrate with
// one of these deliberately at startup; migration is never a hidden side
// effect of constructing a service.
type LegacySource interface {
	Entries(ctx context.Context, userID UserID) ([]Entry, error)
}
