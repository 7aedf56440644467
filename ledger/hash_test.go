package ledger_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/trip-ledger/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var hexHash = regexp.MustCompile(`^[0-9a-f]{64}$`)

func validTrip() ledger.Trip {
	return ledger.Trip{
		ID:            "trip-1",
		Date:          ledger.NewDate(2026, time.March, 10),
		Locations:     []string{"Hamburg, Hauptbahnhof", "Berlin, Studio B"},
		Distance:      decimal.NewFromFloat(289.5),
		ProjectID:     "proj-1",
		Reason:        "shoot day 3",
		SpecialOrigin: ledger.OriginHome,
		PreviousHash:  ledger.GenesisHash,
	}
}

// =============================================================================
// TRIP HASH TESTS
// =============================================================================

func TestTripHash_DeterministicAndWellFormed(t *testing.T) {
	// GIVEN: The same trip hashed twice
	// THEN: Both digests agree and look like lowercase SHA-256 hex

	trip := validTrip()
	h1 := ledger.TripHash(trip)
	h2 := ledger.TripHash(trip)

	assert.Equal(t, h1, h2)
	assert.Regexp(t, hexHash, h1)
}

func TestTripHash_EveryFieldContributes(t *testing.T) {
	// GIVEN: A base trip
	// WHEN: Any single content field is changed
	// THEN: The hash changes

	base := validTrip()
	baseHash := ledger.TripHash(base)

	mutations := map[string]func(*ledger.Trip){
		"id":           func(tr *ledger.Trip) { tr.ID = "trip-2" },
		"date":         func(tr *ledger.Trip) { tr.Date = ledger.NewDate(2026, time.March, 11) },
		"locations":    func(tr *ledger.Trip) { tr.Locations = []string{"Berlin, Studio B", "Hamburg, Hauptbahnhof"} },
		"distance":     func(tr *ledger.Trip) { tr.Distance = decimal.NewFromFloat(289.501) },
		"projectId":    func(tr *ledger.Trip) { tr.ProjectID = "proj-2" },
		"reason":       func(tr *ledger.Trip) { tr.Reason = "shoot day 4" },
		"origin":       func(tr *ledger.Trip) { tr.SpecialOrigin = ledger.OriginContinuation },
		"passengers":   func(tr *ledger.Trip) { n := 2; tr.Passengers = &n },
		"warnings":     func(tr *ledger.Trip) { tr.Warnings = []string{"distance estimated"} },
		"previousHash": func(tr *ledger.Trip) { tr.PreviousHash = ledger.HashContent("other tail") },
	}

	for name, mutate := range mutations {
		trip := validTrip()
		mutate(&trip)
		assert.NotEqual(t, baseHash, ledger.TripHash(trip), "mutating %s should change the hash", name)
	}
}

func TestTripHash_DistanceScaleNormalized(t *testing.T) {
	// GIVEN: Two trips whose distances are equal quantities at different scales
	// THEN: They hash identically

	a := validTrip()
	a.Distance = decimal.RequireFromString("25")
	b := validTrip()
	b.Distance = decimal.RequireFromString("25.000")

	assert.Equal(t, ledger.TripHash(a), ledger.TripHash(b))
}

func TestTripHash_SeparatorInUserTextCannotCollide(t *testing.T) {
	// GIVEN: Trips where user text contains the canonical frame characters
	// THEN: The canonical forms stay distinct

	a := validTrip()
	a.Reason = `x";date="2026-01-01`
	b := validTrip()
	b.Reason = `x`

	assert.NotEqual(t, ledger.CanonicalTrip(a), ledger.CanonicalTrip(b))
	assert.NotEqual(t, ledger.TripHash(a), ledger.TripHash(b))
}

func TestCanonicalTrip_PanicsOnStructurallyInvalidTrip(t *testing.T) {
	// GIVEN: Trips missing required structure
	// THEN: Canonicalization panics rather than producing a bogus hash

	noDate := validTrip()
	noDate.Date = ledger.Date{}
	assert.Panics(t, func() { ledger.CanonicalTrip(noDate) })

	oneLocation := validTrip()
	oneLocation.Locations = []string{"Hamburg"}
	assert.Panics(t, func() { ledger.TripHash(oneLocation) })
}

// =============================================================================
// ENTRY HASH TESTS
// =============================================================================

func TestEntryHash_CoversSnapshot(t *testing.T) {
	// GIVEN: An entry whose snapshot is later edited
	// THEN: The recomputed entry hash no longer matches

	trip := validTrip()
	trip.Hash = ledger.TripHash(trip)

	entry := ledger.Entry{
		ID:           "entry-1",
		PreviousHash: ledger.GenesisHash,
		Timestamp:    time.Date(2026, time.March, 10, 8, 30, 0, 0, time.UTC),
		Operation:    ledger.OpCreate,
		Source:       ledger.SourceManual,
		UserID:       "user-1",
		TripID:       trip.ID,
		TripSnapshot: trip,
	}
	entry.Hash = ledger.EntryHash(entry)
	require.Regexp(t, hexHash, entry.Hash)

	tampered := entry
	tampered.TripSnapshot.Distance = decimal.NewFromInt(5)
	assert.NotEqual(t, entry.Hash, ledger.EntryHash(tampered))
}

func TestEntryHash_TimestampZoneIrrelevant(t *testing.T) {
	// GIVEN: The same instant expressed in two zones
	// THEN: The entry hashes identically (canonical form is UTC)

	trip := validTrip()
	trip.Hash = ledger.TripHash(trip)

	utc := time.Date(2026, time.March, 10, 8, 30, 0, 0, time.UTC)
	entry := ledger.Entry{
		ID:           "entry-1",
		PreviousHash: ledger.GenesisHash,
		Timestamp:    utc,
		Operation:    ledger.OpCreate,
		Source:       ledger.SourceManual,
		UserID:       "user-1",
		TripID:       trip.ID,
		TripSnapshot: trip,
	}
	shifted := entry
	shifted.Timestamp = utc.In(time.FixedZone("CET", 3600))

	assert.Equal(t, ledger.EntryHash(entry), ledger.EntryHash(shifted))
}

func TestGenesisHash_Shape(t *testing.T) {
	assert.Len(t, ledger.GenesisHash, 64)
	assert.Regexp(t, `^0{64}$`, ledger.GenesisHash)
}
