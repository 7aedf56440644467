/*
service.go - The single writer and reader of a user's chain

PURPOSE:
  The Service encapsulates all chain-linkage bookkeeping: it is the only
  code that assigns trip and entry hashes, and the only code that appends
  to a user's log. Everything above it (orchestration, HTTP) speaks in
  trips; everything below it (Repository) speaks in opaque entries.

CHAIN LINKAGE:
  Each append's PreviousHash is the hash of the entry currently at the
  tail of the user's chain (or the genesis sentinel for the first entry).
  A trip's own content hash is seeded with the same tail value, so the
  entry chain and the trip content chain share one anchor point. That
  coupling is deliberate and load-bearing: both lineages must be kept in
  step or stored chains stop verifying.

STATE MACHINE (per trip):
  nonexistent --CREATE/IMPORT_BATCH--> live --AMEND--> live --VOID--> voided

  Voided is terminal. A voided trip is absent from the projection, so a
  further amend or void fails with NotFoundError. There is no un-void.

CONCURRENCY:
  One Service instance is bound to one user and assumes a single logical
  writer for that user's chain. The projection cache is guarded for safe
  concurrent reads, but racing writers are not coordinated here; a race
  produces a detectable chain break, not corruption (see repository.go).

SEE ALSO:
  - projection.go: replay semantics
  - verify.go: integrity checking
  - hash.go: canonical forms
*/
package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultProjectionTTL bounds how stale a cached projection may get before
// Trips re-reads the repository. Every write invalidates the cache before
// returning, so the TTL only matters for out-of-band repository changes.
const DefaultProjectionTTL = 5 * time.Second

// Service is the sole writer and reader of one user's ledger.
type Service struct {
	userID UserID
	repo   Repository

	now   func() time.Time
	newID func() string
	ttl   time.Duration

	mu       sync.Mutex
	projLive map[TripID]Trip
	projAt   time.Time
	projOK   bool
}

// NewService binds a ledger service to exactly one user's chain.
func NewService(repo Repository, userID UserID) *Service {
	return &Service{
		userID: userID,
		repo:   repo,
		now:    time.Now,
		newID:  uuid.NewString,
		ttl:    DefaultProjectionTTL,
	}
}

// UserID returns the user this service is bound to.
func (s *Service) UserID() UserID { return s.userID }

// =============================================================================
// MUTATIONS
// =============================================================================

// CreateTrip records a new trip as a CREATE entry at the chain tail and
// returns the entry. The trip's identity and both hash fields are assigned
// here; callers never author them.
func (s *Service) CreateTrip(ctx context.Context, data TripData, source Source) (*Entry, error) {
	if err := validateTripData(data); err != nil {
		return nil, err
	}

	entries, err := s.repo.GetEntries(ctx, s.userID)
	if err != nil {
		return nil, repoErr("get entries", err)
	}
	prev := chainTail(entries)

	trip := s.newTrip(data, prev)
	entry := Entry{
		ID:           EntryID(s.newID()),
		PreviousHash: prev,
		Timestamp:    s.now().UTC(),
		Operation:    OpCreate,
		Source:       source,
		UserID:       s.userID,
		TripID:       trip.ID,
		TripSnapshot: trip,
	}
	entry.Hash = EntryHash(entry)

	if err := s.repo.AppendEntry(ctx, s.userID, entry); err != nil {
		return nil, repoErr("append entry", err)
	}
	s.invalidateProjection()
	return &entry, nil
}

// AmendTrip merges a typed partial update onto the projected trip and
// records the result as an AMEND entry carrying the justification and the
// set of fields that actually changed.
//
// When no compared field differs from the current snapshot the amend is a
// no-op: nothing is appended and (nil, nil) is returned.
func (s *Service) AmendTrip(ctx context.Context, tripID TripID, update TripUpdate, correctionReason string, source Source) (*Entry, error) {
	if strings.TrimSpace(correctionReason) == "" {
		return nil, &ValidationError{Field: "correctionReason", Message: "a non-empty justification is required to amend a trip"}
	}

	entries, err := s.repo.GetEntries(ctx, s.userID)
	if err != nil {
		return nil, repoErr("get entries", err)
	}
	current, ok := Replay(entries)[tripID]
	if !ok {
		return nil, &NotFoundError{TripID: tripID}
	}

	merged := applyUpdate(current, update)
	if err := validateTripData(tripData(merged)); err != nil {
		return nil, err
	}

	changed := changedFields(current, merged)
	if len(changed) == 0 {
		return nil, nil
	}

	prev := chainTail(entries)
	merged.PreviousHash = prev
	merged.Hash = TripHash(merged)

	entry := Entry{
		ID:               EntryID(s.newID()),
		PreviousHash:     prev,
		Timestamp:        s.now().UTC(),
		Operation:        OpAmend,
		Source:           source,
		UserID:           s.userID,
		TripID:           tripID,
		TripSnapshot:     merged,
		CorrectionReason: correctionReason,
		ChangedFields:    changed,
	}
	entry.Hash = EntryHash(entry)

	if err := s.repo.AppendEntry(ctx, s.userID, entry); err != nil {
		return nil, repoErr("append entry", err)
	}
	s.invalidateProjection()
	return &entry, nil
}

// VoidTrip retires a trip with a VOID entry. The entry keeps the trip's
// last-known snapshot for audit; the trip itself disappears from every
// future projection. Nothing is physically removed from the log.
func (s *Service) VoidTrip(ctx context.Context, tripID TripID, voidReason string, source Source) (*Entry, error) {
	if strings.TrimSpace(voidReason) == "" {
		return nil, &ValidationError{Field: "voidReason", Message: "a non-empty justification is required to void a trip"}
	}

	entries, err := s.repo.GetEntries(ctx, s.userID)
	if err != nil {
		return nil, repoErr("get entries", err)
	}
	current, ok := Replay(entries)[tripID]
	if !ok {
		return nil, &NotFoundError{TripID: tripID}
	}

	previous := current
	entry := Entry{
		ID:               EntryID(s.newID()),
		PreviousHash:     chainTail(entries),
		Timestamp:        s.now().UTC(),
		Operation:        OpVoid,
		Source:           source,
		UserID:           s.userID,
		TripID:           tripID,
		TripSnapshot:     current,
		VoidReason:       voidReason,
		PreviousSnapshot: &previous,
	}
	entry.Hash = EntryHash(entry)

	if err := s.repo.AppendEntry(ctx, s.userID, entry); err != nil {
		return nil, repoErr("append entry", err)
	}
	s.invalidateProjection()
	return &entry, nil
}

// ImportTripsBatch records multiple trips in one call. The trips are
// processed strictly in input order and form consecutive links in the
// chain (entry N+1's PreviousHash is entry N's hash), all sharing one
// batch ID and timestamp. All entries go to the repository in a single
// append; a batch summary record is stored alongside.
//
// An empty input is rejected with a validation error rather than creating
// a meaningless zero-entry batch record.
func (s *Service) ImportTripsBatch(ctx context.Context, data []TripData, source Source, sourceDocuments []string) (*ImportResult, error) {
	if len(data) == 0 {
		return nil, &ValidationError{Field: "trips", Message: "batch import requires at least one trip"}
	}
	for _, d := range data {
		if err := validateTripData(d); err != nil {
			return nil, err
		}
	}

	entries, err := s.repo.GetEntries(ctx, s.userID)
	if err != nil {
		return nil, repoErr("get entries", err)
	}
	prev := chainTail(entries)

	batchID := BatchID(s.newID())
	ts := s.now().UTC()

	newEntries := make([]Entry, 0, len(data))
	for _, d := range data {
		trip := s.newTrip(d, prev)
		entry := Entry{
			ID:           EntryID(s.newID()),
			PreviousHash: prev,
			Timestamp:    ts,
			Operation:    OpImportBatch,
			Source:       source,
			UserID:       s.userID,
			TripID:       trip.ID,
			TripSnapshot: trip,
			BatchID:      batchID,
		}
		entry.Hash = EntryHash(entry)
		newEntries = append(newEntries, entry)
		prev = entry.Hash
	}

	if err := s.repo.AppendEntries(ctx, s.userID, newEntries); err != nil {
		return nil, repoErr("append entries", err)
	}

	batch := Batch{
		ID:              batchID,
		Timestamp:       ts,
		Source:          source,
		UserID:          s.userID,
		EntryCount:      len(newEntries),
		FirstEntryHash:  newEntries[0].Hash,
		LastEntryHash:   newEntries[len(newEntries)-1].Hash,
		SourceDocuments: sourceDocuments,
	}
	if err := s.repo.CreateBatchRecord(ctx, s.userID, batch); err != nil {
		return nil, repoErr("create batch record", err)
	}

	s.invalidateProjection()
	return &ImportResult{Entries: newEntries, Batch: batch}, nil
}

// Migrate performs the one-shot import of a user's pre-ledger entries.
// It is deliberately explicit: the orchestration layer calls it once at
// startup, and it refuses to touch a chain that already has entries.
func (s *Service) Migrate(ctx context.Context, legacy LegacySource) (*MigrationResult, error) {
	existing, err := s.repo.GetEntries(ctx, s.userID)
	if err != nil {
		return nil, repoErr("get entries", err)
	}
	if len(existing) > 0 {
		return &MigrationResult{Migrated: false, Count: len(existing)}, nil
	}

	legacyEntries, err := legacy.Entries(ctx, s.userID)
	if err != nil {
		return nil, repoErr("read legacy entries", err)
	}
	if len(legacyEntries) == 0 {
		return &MigrationResult{Migrated: false, Count: 0}, nil
	}

	if err := s.repo.ReplaceAllEntries(ctx, s.userID, legacyEntries); err != nil {
		return nil, repoErr("replace entries", err)
	}
	s.invalidateProjection()
	return &MigrationResult{Migrated: true, Count: len(legacyEntries)}, nil
}

// =============================================================================
// READS
// =============================================================================

// Trips returns the live trip set: the projection of the full entry
// history with voided trips excluded. The order of the returned slice is
// unspecified; callers sort as needed.
func (s *Service) Trips(ctx context.Context) ([]Trip, error) {
	s.mu.Lock()
	if s.projOK && s.now().Sub(s.projAt) < s.ttl {
		trips := collectTrips(s.projLive)
		s.mu.Unlock()
		return trips, nil
	}
	s.mu.Unlock()

	entries, err := s.repo.GetEntries(ctx, s.userID)
	if err != nil {
		return nil, repoErr("get entries", err)
	}
	live := Replay(entries)

	s.mu.Lock()
	s.projLive = live
	s.projAt = s.now()
	s.projOK = true
	s.mu.Unlock()

	return collectTrips(live), nil
}

// Entries returns the full entry history in append order.
func (s *Service) Entries(ctx context.Context) ([]Entry, error) {
	entries, err := s.repo.GetEntries(ctx, s.userID)
	if err != nil {
		return nil, repoErr("get entries", err)
	}
	return entries, nil
}

// Batches returns all batch summary records for the user.
func (s *Service) Batches(ctx context.Context) ([]Batch, error) {
	batches, err := s.repo.GetBatches(ctx, s.userID)
	if err != nil {
		return nil, repoErr("get batches", err)
	}
	return batches, nil
}

// BatchEntries returns the entries of one batch in append order.
func (s *Service) BatchEntries(ctx context.Context, batchID BatchID) ([]Entry, error) {
	entries, err := s.repo.GetEntriesByBatch(ctx, s.userID, batchID)
	if err != nil {
		return nil, repoErr("get entries by batch", err)
	}
	return entries, nil
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

// chainTail returns the hash the next append must link to.
func chainTail(entries []Entry) string {
	if len(entries) == 0 {
		return GenesisHash
	}
	return entries[len(entries)-1].Hash
}

// newTrip materializes caller data into a hashed trip anchored at prev.
func (s *Service) newTrip(data TripData, prev string) Trip {
	origin := data.SpecialOrigin
	if origin == "" {
		origin = OriginHome
	}
	trip := Trip{
		ID:            TripID(s.newID()),
		Date:          data.Date,
		Locations:     cloneStrings(data.Locations),
		Distance:      data.Distance,
		ProjectID:     data.ProjectID,
		Reason:        data.Reason,
		SpecialOrigin: origin,
		Passengers:    cloneInt(data.Passengers),
		Warnings:      cloneStrings(data.Warnings),
		PreviousHash:  prev,
	}
	trip.Hash = TripHash(trip)
	return trip
}

func (s *Service) invalidateProjection() {
	s.mu.Lock()
	s.projOK = false
	s.projLive = nil
	s.mu.Unlock()
}

func validateTripData(data TripData) error {
	if data.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "date is required"}
	}
	if len(data.Locations) < 2 {
		return &ValidationError{Field: "locations", Message: "a trip needs at least a start and an end address"}
	}
	for _, loc := range data.Locations {
		if strings.TrimSpace(loc) == "" {
			return &ValidationError{Field: "locations", Message: "addresses must be non-empty"}
		}
	}
	if data.Distance.IsNegative() {
		return &ValidationError{Field: "distance", Message: "distance cannot be negative"}
	}
	if data.Passengers != nil && *data.Passengers < 0 {
		return &ValidationError{Field: "passengers", Message: "passenger count cannot be negative"}
	}
	switch data.SpecialOrigin {
	case "", OriginHome, OriginContinuation, OriginEndOfContinuation:
	default:
		return &ValidationError{Field: "specialOrigin", Message: "unknown special origin"}
	}
	return nil
}

// applyUpdate merges a partial update onto a projected trip. Scalar fields
// overwrite when set; slice fields replace wholesale when non-nil.
func applyUpdate(current Trip, update TripUpdate) Trip {
	merged := current
	merged.Locations = cloneStrings(current.Locations)
	merged.Warnings = cloneStrings(current.Warnings)
	merged.Passengers = cloneInt(current.Passengers)

	if update.Date != nil {
		merged.Date = *update.Date
	}
	if update.Locations != nil {
		merged.Locations = cloneStrings(update.Locations)
	}
	if update.Distance != nil {
		merged.Distance = *update.Distance
	}
	if update.ProjectID != nil {
		merged.ProjectID = *update.ProjectID
	}
	if update.Reason != nil {
		merged.Reason = *update.Reason
	}
	if update.SpecialOrigin != nil {
		merged.SpecialOrigin = *update.SpecialOrigin
	}
	if update.Passengers != nil {
		merged.Passengers = cloneInt(update.Passengers)
	}
	if update.Warnings != nil {
		merged.Warnings = cloneStrings(update.Warnings)
	}
	return merged
}

// changedFields lists the top-level fields where merged differs from base.
// Ledger bookkeeping fields (id, hash, previousHash) are never compared.
// Primitives compare by strict inequality; slices differ on length or any
// element.
func changedFields(base, merged Trip) []string {
	var changed []string
	if !base.Date.Equal(merged.Date) {
		changed = append(changed, "date")
	}
	if !stringsEqual(base.Locations, merged.Locations) {
		changed = append(changed, "locations")
	}
	if !base.Distance.Equal(merged.Distance) {
		changed = append(changed, "distance")
	}
	if base.ProjectID != merged.ProjectID {
		changed = append(changed, "projectId")
	}
	if base.Reason != merged.Reason {
		changed = append(changed, "reason")
	}
	if base.SpecialOrigin != merged.SpecialOrigin {
		changed = append(changed, "specialOrigin")
	}
	if !intsEqual(base.Passengers, merged.Passengers) {
		changed = append(changed, "passengers")
	}
	if !stringsEqual(base.Warnings, merged.Warnings) {
		changed = append(changed, "warnings")
	}
	return changed
}

func tripData(t Trip) TripData {
	return TripData{
		Date:          t.Date,
		Locations:     t.Locations,
		Distance:      t.Distance,
		ProjectID:     t.ProjectID,
		Reason:        t.Reason,
		SpecialOrigin: t.SpecialOrigin,
		Passengers:    t.Passengers,
		Warnings:      t.Warnings,
	}
}

func collectTrips(live map[TripID]Trip) []Trip {
	trips := make([]Trip, 0, len(live))
	for _, t := range live {
		trips = append(trips, t)
	}
	return trips
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func intsEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
