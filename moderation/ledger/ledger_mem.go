package ledger

import (
	"time"

	"github.com/avengersguard/guard/moderation/clock"
)

// Not safe for concurrent use; callers serialize access on the control thread.
type MemLedger struct {
	Clock   clock.Clock
	seq     uint64
	records map[string][]*Record
}

var _ Ledger = (*MemLedger)(nil)

func NewMemLedger(c clock.Clock) *MemLedger {
	if c == nil {
		c = clock.Real()
	}
	return &MemLedger{
		Clock:   c,
		records: make(map[string][]*Record),
	}
}

func (l *MemLedger) Record(subjectID, issuerID, reason string, duration time.Duration) Record {
	l.seq++
	now := l.Clock.Now()
	rec := &Record{
		Seq:       l.seq,
		SubjectID: subjectID,
		IssuerID:  issuerID,
		Reason:    reason,
		StartAt:   now,
		Active:    true,
	}
	if duration > 0 {
		end := now.Add(duration)
		rec.EndAt = &end
	}
	l.records[subjectID] = append(l.records[subjectID], rec)
	return *rec
}

func (l *MemLedger) History(subjectID string) []Record {
	recs := l.records[subjectID]
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, *r)
	}
	return out
}

func (l *MemLedger) DeactivateAll(subjectID string) int {
	n := 0
	for _, r := range l.records[subjectID] {
		if r.Active {
			r.Active = false
			n++
		}
	}
	return n
}

func (l *MemLedger) SweepExpired(subjectID string) int {
	now := l.Clock.Now()
	n := 0
	for _, r := range l.records[subjectID] {
		if r.Active && r.Expired(now) {
			r.Active = false
			n++
		}
	}
	return n
}

func (l *MemLedger) Retire(subjectID string, keep uint64) int {
	n := 0
	for _, r := range l.records[subjectID] {
		if r.Active && r.Seq != keep {
			r.Active = false
			n++
		}
	}
	return n
}

func (l *MemLedger) IsActive(subjectID string, seq uint64) bool {
	for _, r := range l.records[subjectID] {
		if r.Seq == seq {
			return r.Active
		}
	}
	return false
}
