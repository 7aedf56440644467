/*
verify.go - Chain integrity verification

PURPOSE:
  Walks the full entry list in stored order and proves, or disproves, that
  nothing was altered or deleted outside the log:

  1. Linkage: entry[0].PreviousHash must be the genesis sentinel and every
     later entry must link to its predecessor's hash.
  2. Content: each entry's hash is recomputed from its stored fields and
     compared to the stored hash. This catches edits that left the linkage
     superficially intact.
  3. Root hash: one aggregate digest over the ordered concatenation of all
     entry hashes. Two verifications of an unchanged log always agree.

  Verification is read-only and side-effect free. A broken chain is
  reported in the result, never repaired and never raised as an error.
*/
package ledger

import (
	"context"
	"strings"
	"time"
)

// VerifyLedger checks the user's full chain and returns a report. The only
// error it can return is a repository read failure; integrity findings are
// data, not errors.
func (s *Service) VerifyLedger(ctx context.Context) (*Verification, error) {
	entries, err := s.repo.GetEntries(ctx, s.userID)
	if err != nil {
		return nil, repoErr("get entries", err)
	}
	return verifyEntries(entries, s.now().UTC()), nil
}

func verifyEntries(entries []Entry, at time.Time) *Verification {
	v := &Verification{
		IsValid:      true,
		TotalEntries: len(entries),
		VerifiedAt:   at,
	}

	var hashes strings.Builder
	for i := range entries {
		e := entries[i]

		expectedPrev := GenesisHash
		if i > 0 {
			expectedPrev = entries[i-1].Hash
		}

		broken := e.PreviousHash != expectedPrev
		if !broken {
			// A snapshot stripped below the canonical minimum is tampering
			// too; report it instead of letting canonicalization panic.
			if !canonicalizable(e.TripSnapshot) ||
				(e.PreviousSnapshot != nil && !canonicalizable(*e.PreviousSnapshot)) {
				broken = true
			} else if EntryHash(e) != e.Hash {
				broken = true
			}
		}

		if broken && v.IsValid {
			v.IsValid = false
			v.BrokenChainAt = e.Hash
		}
		hashes.WriteString(e.Hash)
	}

	v.RootHash = HashContent(hashes.String())
	if len(entries) > 0 {
		first, last := entries[0], entries[len(entries)-1]
		v.FirstEntry = &first
		v.LastEntry = &last
	}
	return v
}
