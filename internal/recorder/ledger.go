package recorder

import "sync"

// Ledger stores records in memory for the dashboard and tests.
type Ledger struct {
	mu      sync.Mutex
	records []TradeRecord
	limit   int
}

// NewLedger creates an empty ledger keeping at most limit records (0 = unbounded).
func NewLedger(limit int) *Ledger {
	if limit < 0 {
		limit = 0
	}
	return &Ledger{records: make([]TradeRecord, 0, min(limit, 256)), limit: limit}
}

// Record appends a record, dropping the oldest past the limit.
func (l *Ledger) Record(rec TradeRecord) error {
	l.mu.Lock()
	l.records = append(l.records, rec)
	if l.limit > 0 && len(l.records) > l.limit {
		l.records = append(l.records[:0], l.records[len(l.records)-l.limit:]...)
	}
	l.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the stored records.
func (l *Ledger) Snapshot() []TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TradeRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Reset clears all stored records.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.records = l.records[:0]
	l.mu.Unlock()
}
