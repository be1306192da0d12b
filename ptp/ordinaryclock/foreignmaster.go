package ordinaryclock

import (
	"time"

	"github.com/soundondigital/aes67rx/ptp/protocol"
)

// foreignMasterRecord tracks the Announce history of one candidate
// grandmaster, keyed by its source port identity (spec §4.4, "Announce").
type foreignMasterRecord struct {
	sourcePortIdentity protocol.PortIdentity
	latest             protocol.Announce
	receiptTimes       []time.Time // sliding window of receipt times, oldest first
}

// qualified reports whether at least two Announces have arrived within
// the given receipt-timeout window.
func (r *foreignMasterRecord) qualified(now time.Time, timeout time.Duration) bool {
	count := 0
	for _, t := range r.receiptTimes {
		if now.Sub(t) <= timeout {
			count++
		}
	}
	return count >= 2
}

func (r *foreignMasterRecord) stale(now time.Time, timeout time.Duration) bool {
	if len(r.receiptTimes) == 0 {
		return true
	}
	return now.Sub(r.receiptTimes[len(r.receiptTimes)-1]) > timeout
}

// ForeignMasterTable is the per-port set of candidate grandmasters
// currently being heard from. BMCA runs over its qualified entries.
type ForeignMasterTable struct {
	records map[protocol.PortIdentity]*foreignMasterRecord
}

func NewForeignMasterTable() *ForeignMasterTable {
	return &ForeignMasterTable{records: make(map[protocol.PortIdentity]*foreignMasterRecord)}
}

// Register records a received Announce, creating or updating the
// candidate's history.
func (t *ForeignMasterTable) Register(a protocol.Announce, now time.Time) {
	id := a.Header.SourcePortIdentity
	r, ok := t.records[id]
	if !ok {
		r = &foreignMasterRecord{sourcePortIdentity: id}
		t.records[id] = r
	}
	r.latest = a
	r.receiptTimes = append(r.receiptTimes, now)
	// keep the receipt-time window bounded; only the last few matter for
	// qualification.
	if len(r.receiptTimes) > 8 {
		r.receiptTimes = r.receiptTimes[len(r.receiptTimes)-8:]
	}
}

// EvictStale drops any candidate whose most recent Announce is older than
// announceReceiptTimeout·announceInterval (spec §4.4).
func (t *ForeignMasterTable) EvictStale(now time.Time, timeout time.Duration) {
	for id, r := range t.records {
		if r.stale(now, timeout) {
			delete(t.records, id)
		}
	}
}

// Qualified returns the latest Announce of every candidate that has
// received at least two Announces within the receipt timeout.
func (t *ForeignMasterTable) Qualified(now time.Time, timeout time.Duration) []protocol.Announce {
	var out []protocol.Announce
	for _, r := range t.records {
		if r.qualified(now, timeout) {
			out = append(out, r.latest)
		}
	}
	return out
}

// Empty reports whether the table has no candidates at all.
func (t *ForeignMasterTable) Empty() bool { return len(t.records) == 0 }
