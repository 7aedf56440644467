/*
hash.go - Canonical serialization and SHA-256 chaining

PURPOSE:
  Produces a stable, order-sensitive textual form of trips and entries and
  hashes it. Every hash in the chain is derived from these canonical forms,
  so the rules here are load-bearing: change them and every stored chain
  verifies as broken.

CANONICALIZATION RULES:
  - Field order is fixed in code, never derived from map iteration.
  - Every value is quoted (strconv.Quote) so separators inside user text
    cannot collide with the frame.
  - Locations keep their given order: the sequence is a route, not a set.
  - Absent optional fields render as one fixed empty form, never omitted.
  - Distances render with three decimal places so equal quantities at
    different scales ("25" vs "25.000") hash identically.
  - Timestamps render as UTC RFC3339Nano.

FAIL FAST:
  Canonicalizing a trip that is missing a required field (zero date, fewer
  than two locations) is a programming error and panics. The hash layer
  never silently coerces bad input; validation happens in the Service
  before anything reaches this file.
*/
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// GenesisHash is the PreviousHash sentinel for the first entry in a chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// HashContent returns the SHA-256 digest of content as 64 lowercase hex chars.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// =============================================================================
// TRIP CANONICALIZATION
// =============================================================================

// CanonicalTrip returns the canonical serialization of a trip, excluding its
// own Hash but including PreviousHash. TripHash is computed over this form.
//
// Panics if the trip is structurally invalid (zero date or fewer than two
// locations) - see FAIL FAST above.
func CanonicalTrip(t Trip) string {
	if !canonicalizable(t) {
		panic("ledger: cannot canonicalize trip missing required fields")
	}

	var b strings.Builder
	writeField(&b, "id", string(t.ID))
	writeField(&b, "date", t.Date.String())
	writeListField(&b, "locations", t.Locations)
	writeField(&b, "distance", t.Distance.StringFixed(3))
	writeField(&b, "projectId", string(t.ProjectID))
	writeField(&b, "reason", t.Reason)
	writeField(&b, "specialOrigin", string(t.SpecialOrigin))
	if t.Passengers != nil {
		writeField(&b, "passengers", strconv.Itoa(*t.Passengers))
	} else {
		writeField(&b, "passengers", "")
	}
	writeListField(&b, "warnings", t.Warnings)
	writeField(&b, "previousHash", t.PreviousHash)
	return b.String()
}

// TripHash computes the content hash of a trip. The trip's PreviousHash must
// already be set; the resulting value belongs in the trip's Hash field.
func TripHash(t Trip) string {
	return HashContent(CanonicalTrip(t))
}

// canonicalizable reports whether a trip carries the minimum structure the
// canonical form requires. Exposed to verification so tampered snapshots
// are reported as chain breaks instead of panicking mid-walk.
func canonicalizable(t Trip) bool {
	return !t.Date.IsZero() && len(t.Locations) >= 2
}

// =============================================================================
// ENTRY CANONICALIZATION
// =============================================================================

// CanonicalEntry returns the canonical serialization of an entry, excluding
// the entry's own Hash. The snapshot is embedded via CanonicalTrip plus its
// stored hash, so mutating any snapshot field invalidates the entry hash.
func CanonicalEntry(e Entry) string {
	var b strings.Builder
	writeField(&b, "id", string(e.ID))
	writeField(&b, "previousHash", e.PreviousHash)
	writeField(&b, "timestamp", e.Timestamp.UTC().Format(time.RFC3339Nano))
	writeField(&b, "operation", string(e.Operation))
	writeField(&b, "source", string(e.Source))
	writeField(&b, "userId", string(e.UserID))
	writeField(&b, "tripId", string(e.TripID))
	writeField(&b, "tripSnapshot", CanonicalTrip(e.TripSnapshot))
	writeField(&b, "tripSnapshotHash", e.TripSnapshot.Hash)
	writeField(&b, "batchId", string(e.BatchID))
	writeField(&b, "correctionReason", e.CorrectionReason)
	writeListField(&b, "changedFields", e.ChangedFields)
	writeField(&b, "voidReason", e.VoidReason)
	if e.PreviousSnapshot != nil {
		writeField(&b, "previousSnapshot", CanonicalTrip(*e.PreviousSnapshot))
		writeField(&b, "previousSnapshotHash", e.PreviousSnapshot.Hash)
	} else {
		writeField(&b, "previousSnapshot", "")
		writeField(&b, "previousSnapshotHash", "")
	}
	return b.String()
}

// EntryHash computes the content hash of an entry. The entry's PreviousHash
// and snapshot must be final; the result belongs in the entry's Hash field.
func EntryHash(e Entry) string {
	return HashContent(CanonicalEntry(e))
}

// =============================================================================
// FRAMING HELPERS
// =============================================================================

func writeField(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(strconv.Quote(value))
	b.WriteByte(';')
}

func writeListField(b *strings.Builder, name string, values []string) {
	b.WriteString(name)
	b.WriteString("=[")
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(v))
	}
	b.WriteString("];")
}
