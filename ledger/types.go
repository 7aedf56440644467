/*
Package ledger provides the append-only, hash-chained trip ledger engine.

PURPOSE:
  This package contains the core types and algorithms for recording trip
  mutations as an immutable, verifiable log. Trips are never updated or
  deleted in place: every change is a new ledger entry, and the current
  trip list is always reconstructed by replaying the log.

KEY CONCEPTS IN THIS FILE (types.go):
  - Trip: a single driving event (date, route, distance, project, reason)
  - Entry: an immutable ledger record (one CREATE/AMEND/VOID/IMPORT fact)
  - Batch: grouping metadata for multi-trip imports
  - TripData/TripUpdate: typed inputs for create and amend operations

DESIGN PRINCIPLES:
  1. Immutability: Entries are never modified, only followed by new ones
  2. Precision: Uses decimal.Decimal for distances to avoid float drift
  3. Type Safety: Strong typing for IDs prevents mixing trip/user/project IDs
  4. Auditability: Every amend carries a justification and a field diff

SEE ALSO:
  - hash.go: Canonical serialization and SHA-256 chaining
  - service.go: The single writer/reader of a user's chain
  - repository.go: Durable storage contract
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TripID string
type UserID string
type ProjectID string
type EntryID string
type BatchID string

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Operation identifies what a ledger entry did to its trip.
type Operation string

const (
	OpCreate      Operation = "CREATE"       // Trip born via single create
	OpAmend       Operation = "AMEND"        // Field correction with justification
	OpVoid        Operation = "VOID"         // Soft delete; trip leaves the projection
	OpImportBatch Operation = "IMPORT_BATCH" // Trip born as part of a bulk import
)

// Source identifies where a mutation originated.
type Source string

const (
	SourceManual     Source = "MANUAL"
	SourceAIAgent    Source = "AI_AGENT"
	SourceCSVImport  Source = "CSV_IMPORT"
	SourceBulkUpload Source = "BULK_UPLOAD"
)

// SpecialOrigin marks trips that do not start at the driver's home address.
type SpecialOrigin string

const (
	OriginHome              SpecialOrigin = "HOME"
	OriginContinuation      SpecialOrigin = "CONTINUATION"
	OriginEndOfContinuation SpecialOrigin = "END_OF_CONTINUATION"
)

// =============================================================================
// TRIP - A single driving event
// =============================================================================

// Trip is the projected state of one driving event.
//
// Hash and PreviousHash are content-address fields maintained exclusively by
// the Service; they are never authored by callers. Locations is an ordered
// route (first and last are typically the same home address) and its order
// is semantically meaningful.
type Trip struct {
	ID            TripID          `json:"id"`
	Date          Date            `json:"date"`
	Locations     []string        `json:"locations"`
	Distance      decimal.Decimal `json:"distance"` // kilometers, non-negative
	ProjectID     ProjectID       `json:"projectId"`
	Reason        string          `json:"reason"`
	SpecialOrigin SpecialOrigin   `json:"specialOrigin"`
	Passengers    *int            `json:"passengers,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
	Hash          string          `json:"hash"`
	PreviousHash  string          `json:"previousHash"`
}

// TripData is the caller-supplied portion of a trip: everything except the
// identity and hash fields, which only the Service assigns.
type TripData struct {
	Date          Date
	Locations     []string
	Distance      decimal.Decimal
	ProjectID     ProjectID
	Reason        string
	SpecialOrigin SpecialOrigin
	Passengers    *int
	Warnings      []string
}

// TripUpdate is a typed partial update for AmendTrip. A nil field means
// "leave unchanged". Slice fields replace the existing value wholesale;
// they are never merged element-wise.
type TripUpdate struct {
	Date          *Date
	Locations     []string
	Distance      *decimal.Decimal
	ProjectID     *ProjectID
	Reason        *string
	SpecialOrigin *SpecialOrigin
	Passengers    *int
	Warnings      []string
}

// =============================================================================
// ENTRY - One immutable fact in the chain
// =============================================================================

// Entry is one record in a user's hash chain.
//
// INVARIANTS:
//   - Entries form a strictly ordered singly-linked chain: each entry's
//     PreviousHash equals the prior entry's Hash, and exactly one entry
//     (the first) carries the genesis sentinel.
//   - Hash is computed over the entry content including TripSnapshot;
//     recomputing it from stored fields must reproduce the stored value.
//   - Entries are append-only. Corrections are new AMEND entries and
//     deletions are new VOID entries; nothing is ever rewritten.
type Entry struct {
	ID           EntryID   `json:"id"`
	Hash         string    `json:"hash"`
	PreviousHash string    `json:"previousHash"`
	Timestamp    time.Time `json:"timestamp"`
	Operation    Operation `json:"operation"`
	Source       Source    `json:"source"`
	UserID       UserID    `json:"userId"`
	TripID       TripID    `json:"tripId"`

	// TripSnapshot is the full trip state after this operation. A VOID
	// entry retains the last-known state so the audit trail stays complete.
	TripSnapshot Trip `json:"tripSnapshot"`

	// BatchID groups sibling entries of one bulk import.
	BatchID BatchID `json:"batchId,omitempty"`

	// AMEND bookkeeping.
	CorrectionReason string   `json:"correctionReason,omitempty"`
	ChangedFields    []string `json:"changedFields,omitempty"`

	// VOID bookkeeping.
	VoidReason       string `json:"voidReason,omitempty"`
	PreviousSnapshot *Trip  `json:"previousSnapshot,omitempty"`
}

// =============================================================================
// BATCH - Grouping metadata for bulk imports
// =============================================================================

// Batch summarizes one ImportTripsBatch call. Written once, never mutated.
type Batch struct {
	ID              BatchID   `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Source          Source    `json:"source"`
	UserID          UserID    `json:"userId"`
	EntryCount      int       `json:"entryCount"`
	FirstEntryHash  string    `json:"firstEntryHash"`
	LastEntryHash   string    `json:"lastEntryHash"`
	SourceDocuments []string  `json:"sourceDocuments,omitempty"`
}

// ImportResult is the outcome of a batch import: the ordered entries that
// were appended plus the batch summary record.
type ImportResult struct {
	Entries []Entry
	Batch   Batch
}

// =============================================================================
// VERIFICATION - Chain integrity report
// =============================================================================

// Verification is the read-only result of walking the full chain. A broken
// chain is reported here as data, never as an error: detecting tampering is
// a legitimate, expected outcome of verification.
type Verification struct {
	IsValid      bool      `json:"isValid"`
	TotalEntries int       `json:"totalEntries"`
	RootHash     string    `json:"rootHash"`
	FirstEntry   *Entry    `json:"firstEntry,omitempty"`
	LastEntry    *Entry    `json:"lastEntry,omitempty"`
	// BrokenChainAt is the stored hash of the entry where divergence was
	// first detected. Empty when the chain is intact.
	BrokenChainAt string    `json:"brokenChainAt,omitempty"`
	VerifiedAt    time.Time `json:"verificationTimestamp"`
}

// MigrationResult reports a one-shot legacy migration.
type MigrationResult struct {
	Migrated bool `json:"migrated"`
	Count    int  `json:"count"`
}
