// Package tindex implements the temporal index: an in-memory, ordered
// sequence of entries mapping a timestamp to the (volume, metadata-offset,
// data-offset) triple a coarse seek should land on.
package tindex

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kvarch/palog/errs"
	"github.com/kvarch/palog/format"
	"github.com/kvarch/palog/section"
)

// Entry is the version-independent in-memory form of a temporal index
// entry: a 64-bit timestamp and 64-bit offsets regardless of wire version.
type Entry struct {
	Sec     int64
	Nsec    int32
	Volume  int32
	MetaOff int64
	DataOff int64
}

func (e Entry) less(sec int64, nsec int32) bool {
	if e.Sec != sec {
		return e.Sec < sec
	}

	return e.Nsec < nsec
}

func (e Entry) equal(sec int64, nsec int32) bool {
	return e.Sec == sec && e.Nsec == nsec
}

func (e Entry) deltaNanos(sec int64, nsec int32) int64 {
	d := (e.Sec-sec)*1_000_000_000 + int64(e.Nsec-nsec)
	if d < 0 {
		return -d
	}

	return d
}

// Index is the ordered in-memory sequence of Entry loaded from an
// archive's .index file.
type Index struct {
	Version format.LabelVersion
	Entries []Entry
}

// Load reads the label from r (the .index file) and then scans the
// remaining entries sequentially until a clean EOF. A short read that
// yields less than one full record within the file is fatal
// (errs.ErrBadIndex); a short read that lands cleanly on EOF simply
// terminates loading.
func Load(r io.ReadSeeker) (*Index, error) {
	label, err := section.ReadLabel(r, -1)
	if err != nil {
		return nil, err
	}

	idx := &Index{Version: label.Version}

	for {
		e, err := section.ReadTemporalIndexEntry(r, label.Version)
		if err != nil {
			if err == io.EOF {
				break
			}

			return nil, err
		}

		idx.Entries = append(idx.Entries, Entry{
			Sec:     e.Sec,
			Nsec:    e.Nsec,
			Volume:  e.Volume,
			MetaOff: e.MetaOff,
			DataOff: e.DataOff,
		})
	}

	return idx, nil
}

// SeekResult is the outcome of a Search: the entry to seek to (if Found),
// and whether the caller should instead position before the first entry
// or after the last.
type SeekResult struct {
	Entry        Entry
	Found        bool
	BeforeFirst  bool
	AfterLast    bool
}

// Search finds the position to coarse-seek to for target timestamp
// (sec, nsec), per the nearest-absolute-delta tie-break documented for
// the temporal index: an exact match returns its own entry; j==0 seeks
// before the first entry; j==n seeks after the last; otherwise the
// nearer of index[j-1] and index[j] wins, unless that choice lies in a
// truncated last volume, in which case the lower neighbour is used.
//
// lastVolumeSize, when > 0, is the on-disk size of the highest-numbered
// volume; it drives the truncated-last-volume fallback. Pass 0 to skip
// that check (e.g. when the caller already knows the archive is intact).
func (idx *Index) Search(sec int64, nsec int32, lastVolume int32, lastVolumeSize int64) SeekResult {
	n := len(idx.Entries)
	if n == 0 {
		return SeekResult{AfterLast: true}
	}

	j := 0
	for j < n && idx.Entries[j].less(sec, nsec) {
		j++
	}

	if j < n && idx.Entries[j].equal(sec, nsec) {
		return SeekResult{Entry: idx.Entries[j], Found: true}
	}

	if j == 0 {
		return SeekResult{BeforeFirst: true}
	}
	if j == n {
		return SeekResult{AfterLast: true}
	}

	lower := idx.Entries[j-1]
	upper := idx.Entries[j]

	chosen := lower
	if upper.deltaNanos(sec, nsec) < lower.deltaNanos(sec, nsec) {
		chosen = upper
	}

	if lastVolumeSize > 0 && chosen.Volume == lastVolume && chosen.DataOff > lastVolumeSize {
		chosen = lower
	}

	return SeekResult{Entry: chosen, Found: true}
}

// Put appends one entry mapping ts to the current metaOff/dataOff,
// writing it to w (the open .index file handle). It does not flush w;
// callers that need the flush-data-then-metadata ordering described for
// put_index perform that sequencing themselves before calling Put, and
// flush the index handle afterwards (see archive.Archive's putIndex).
//
// If either offset is zero, Put logs a warning — this has been observed
// in practice when a logger aborts during an early flush, per the source
// archive writer's put_index diagnostic.
func (idx *Index) Put(w io.Writer, version format.LabelVersion, e Entry) error {
	if e.MetaOff == 0 || e.DataOff == 0 {
		slog.Warn("tindex: zero offset in index entry", "sec", e.Sec, "nsec", e.Nsec, "meta_off", e.MetaOff, "data_off", e.DataOff)
	}

	wireEntry := section.TemporalIndexEntry{
		Sec:     e.Sec,
		Nsec:    e.Nsec,
		Volume:  e.Volume,
		MetaOff: e.MetaOff,
		DataOff: e.DataOff,
	}

	if err := section.WriteTemporalIndexEntry(w, version, wireEntry); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrBadIndex, err)
	}

	idx.Entries = append(idx.Entries, e)

	return nil
}

// Flush calls Sync on f if f is backed by a real file, matching the
// source's "flush the index handle" step of put_index.
func Flush(f *os.File) error {
	if f == nil {
		return nil
	}

	return f.Sync()
}
