// Punishment ledger: the in-memory, append-only history of sanctions per member.
//
// The ledger is the authority for "is this member currently sanctioned, and until when". Records are never removed; the only mutable field is Active. Nothing here survives a process restart.
package ledger

import (
	"time"
)

// One punitive action against a member.
type Record struct {
	// ledger-wide generation number, strictly increasing in append order
	Seq       uint64
	SubjectID string
	// empty for sanctions issued automatically by the system
	IssuerID string
	Reason   string
	StartAt  time.Time
	// nil for an indefinite sanction
	EndAt  *time.Time
	Active bool
}

func (r Record) Timed() bool {
	return r.EndAt != nil
}

// True if the record has a scheduled end which is at or before now.
func (r Record) Expired(now time.Time) bool {
	return r.EndAt != nil && !r.EndAt.After(now)
}

type Ledger interface {
	// Appends a new active record. A positive duration sets EndAt; zero or negative means indefinite.
	Record(subjectID, issuerID, reason string, duration time.Duration) Record
	// Subject history in insertion order. Returns an empty slice for unknown subjects.
	History(subjectID string) []Record
	// Marks every record of the subject inactive. Returns the number of records changed.
	DeactivateAll(subjectID string) int
	// Marks records of the subject whose EndAt has passed inactive. Idempotent.
	SweepExpired(subjectID string) int
	// Marks every active record of the subject inactive except the one with sequence number keep.
	Retire(subjectID string, keep uint64) int
	// Reports whether the record with the given sequence number exists and is still active.
	IsActive(subjectID string, seq uint64) bool
}
