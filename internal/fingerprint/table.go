package fingerprint

import "sync"

// EntryStatus is the per-fingerprint cache entry state (spec §3, §4.G).
type EntryStatus int

const (
	// None: nothing known; enter the write path.
	None EntryStatus = iota
	// Processed: a complete file exists on disk.
	Processed
	// TooLarge: the last attempt exceeded the size cap; bypass the cache.
	TooLarge
)

// entry is the per-fingerprint single-flight cell: a mutex guarding the
// current producer, plus the EntryStatus it leaves behind once released.
type entry struct {
	mu     sync.Mutex
	status EntryStatus
}

// Table is the fingerprint -> mutex table (spec §4.F, §5): get-or-insert
// is guarded by one table-level lock held only long enough to find or
// create the per-fingerprint entry; the per-fingerprint mutex itself is
// held for the duration of that fingerprint's work, outside the table
// lock.
type Table struct {
	mu      sync.Mutex
	entries map[Fingerprint]*entry
}

// NewTable builds an empty fingerprint table.
func NewTable() *Table {
	return &Table{entries: make(map[Fingerprint]*entry)}
}

func (t *Table) getOrInsert(fp Fingerprint) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fp]
	if !ok {
		e = &entry{}
		t.entries[fp] = e
	}
	return e
}

// Lease is a held per-fingerprint lock, released via Release. It reports
// the status that was current when it was acquired (None/Processed/
// TooLarge), and lets the holder set a new status before releasing.
type Lease struct {
	e      *entry
	Status EntryStatus
}

// Acquire blocks until the per-fingerprint mutex for fp is held by this
// goroutine (at most one producer at a time per fingerprint, per spec
// §4.F invariant 5), and returns a Lease reporting the entry's current
// status.
func (t *Table) Acquire(fp Fingerprint) *Lease {
	e := t.getOrInsert(fp)
	e.mu.Lock()
	return &Lease{e: e, Status: e.status}
}

// Release sets the entry's status to status and releases the
// per-fingerprint mutex. The status write happens-before the unlock, so
// subsequent acquirers of this fingerprint observe it immediately (spec
// §5 ordering guarantee iii).
func (l *Lease) Release(status EntryStatus) {
	l.e.status = status
	l.e.mu.Unlock()
}
