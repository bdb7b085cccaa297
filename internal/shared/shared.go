// Package shared holds the process-wide mutable state the archive reading
// engine needs to share across every open context: the "no values" pmid
// stub cache, a best-effort diagnostic read counter, and a lock that
// serializes the open path against a concurrent uncompressor. The stub
// cache and the counter share one mutex held only across the critical
// section that mutates them; the open-path lock is a separate mutex, per
// the concurrency model's "shared global state" note.
package shared

import (
	"sync"

	"github.com/kvarch/palog/extern"
)

var (
	mu sync.Mutex

	noValueStubs = make(map[uint32]extern.ValueSet)

	// reads is the process-wide diagnostic read counter. Missed updates
	// under contention are acceptable; it exists for observability, not
	// correctness.
	reads uint64

	// openMu is held for the duration of a volume or label open so a
	// concurrent uncompressor working against the same path cannot race
	// the open.
	openMu sync.Mutex
)

// NoValueStub returns the shared "no values" stub ValueSet for pmid,
// creating and caching one on first use. The returned value is shared
// across every caller for the process lifetime and must not be mutated.
func NoValueStub(pmid uint32) extern.ValueSet {
	mu.Lock()
	defer mu.Unlock()

	if vs, ok := noValueStubs[pmid]; ok {
		return vs
	}

	vs := extern.ValueSet{PMID: pmid, Values: nil}
	noValueStubs[pmid] = vs

	return vs
}

// RecordRead increments the diagnostic read counter by one.
func RecordRead() {
	mu.Lock()
	reads++
	mu.Unlock()
}

// ReadCount returns the current value of the diagnostic read counter.
func ReadCount() uint64 {
	mu.Lock()
	defer mu.Unlock()

	return reads
}

// LockOpenPath serializes a volume/label open against any other open in
// the process, returning the unlock function to call on the way out.
func LockOpenPath() (unlock func()) {
	openMu.Lock()
	return openMu.Unlock
}

// ResetForTest clears all shared state. It exists for test isolation only
// and must not be called outside package tests.
func ResetForTest() {
	mu.Lock()
	defer mu.Unlock()

	noValueStubs = make(map[uint32]extern.ValueSet)
	reads = 0
}
