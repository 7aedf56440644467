/*
projection.go - Replaying the entry log into current trip state

PURPOSE:
  The entry log is the ground truth; the "current trips" view is always
  derived from it. Replay applies the full history in append order:

    CREATE / IMPORT_BATCH  set   tripId -> snapshot
    AMEND                  overwrite the snapshot of an existing tripId
    VOID                   remove tripId from the view

  The projection is never persisted as ground truth. It may be cached
  (service.go holds a short-TTL cache), but any cached copy is disposable
  and is invalidated by every write.

EDGE CASES:
  - AMEND for a tripId absent from the view is a no-op. That can only
    appear in a log written by a different (or broken) writer; replay
    tolerates it rather than failing the whole projection.
  - VOID for an absent tripId is likewise a no-op.
*/
package ledger

// Replay folds the entry history into the live trip set. Entries must be
// in append order; voided trips are absent from the result.
func Replay(entries []Entry) map[TripID]Trip {
	live := make(map[TripID]Trip)
	for _, e := range entries {
		switch e.Operation {
		case OpCreate, OpImportBatch:
			live[e.TripID] = e.TripSnapshot
		case OpAmend:
			if _, ok := live[e.TripID]; ok {
				live[e.TripID] = e.TripSnapshot
			}
		case OpVoid:
			delete(live, e.TripID)
		}
	}
	return live
}
