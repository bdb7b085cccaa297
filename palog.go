// Package palog reads (and writes) PCP-style performance-metric
// archives: a time-ordered, multi-volume on-disk record of sampled
// metric values. A Reader composes one or more archives into a single
// chronological stream, letting a caller iterate records forward or
// backward in time, position itself by timestamp, and fetch specific
// metrics by pmid without knowing how many archives or volumes the data
// actually spans.
//
// palog implements the container format only: framed records, versioned
// labels, the temporal index, and multi-volume/multi-archive traversal.
// Decoding a record's payload into metric values is delegated to an
// extern.PayloadCodec supplied by the caller; palog ships extern.SimpleCodec
// as a reference implementation so the package is self-testing without a
// production metadata subsystem wired in.
package palog

import (
	"github.com/kvarch/palog/archive"
	"github.com/kvarch/palog/extern"
	"github.com/kvarch/palog/multilog"
	"github.com/kvarch/palog/section"
)

// Option configures a Reader's underlying archives at Open time.
type Option = archive.Option

// WithParanoidReads makes every read validate payload structure instead
// of trusting the codec. See archive.WithParanoidReads.
func WithParanoidReads() Option {
	return archive.WithParanoidReads()
}

// Direction is the traversal direction passed to ReadNext and Fetch.
type Direction = archive.Direction

const (
	Forward  = archive.Forward
	Backward = archive.Backward
)

// Mode is the traversal intent latched by SetTime, independent of the
// direction passed to any individual ReadNext/Fetch call — mirroring
// pmSetMode's mode argument, it governs archive selection and the
// landed-after-origin correction for as long as it's in effect.
type Mode = multilog.Mode

const (
	ModeForward     = multilog.ModeForward
	ModeBackward    = multilog.ModeBackward
	ModeInterpolate = multilog.ModeInterpolate
)

// Record is one record returned by ReadNext or Fetch: a timestamp and
// its decoded payload. A Record with zero PMIDs (Record.Payload.IsMark())
// is a synthesized gap marker, not a record that was ever written to
// disk.
type Record = multilog.Record

// Reader opens one or more archives and exposes them as a single
// chronologically ordered stream.
type Reader struct {
	ctx *multilog.Context
}

// Open opens the archive(s) named by paths, in any order — Open sorts
// them by label start time internally and rejects a set whose archives
// disagree on hostname. A single path is the common case.
//
// payloadCodec decodes each record's opaque value payload; pass nil to
// use extern.SimpleCodec, the bundled reference codec. detector chooses a
// decompression codec per volume file from its path; pass nil to use
// extern.NoopDetector (no compression). resolver answers whether a pmid
// is a derived constant for Fetch's skip rule; pass nil to treat no pmid
// as a derived constant. profile filters which instances Fetch retains
// per pmid; pass nil to retain every instance.
//
// Example:
//
//	reader, err := palog.Open([]string{"/var/log/pcp/host/20260101.0"}, nil, nil, nil, nil)
//	if err != nil {
//	    return err
//	}
//	defer reader.Close()
func Open(paths []string, payloadCodec extern.PayloadCodec, detector extern.CompressionDetector, resolver extern.MetadataResolver, profile extern.InstanceProfile, opts ...Option) (*Reader, error) {
	if payloadCodec == nil {
		payloadCodec = extern.SimpleCodec{}
	}
	if detector == nil {
		detector = extern.NoopDetector{}
	}

	ctx, err := multilog.Open(paths, payloadCodec, detector, resolver, profile, opts...)
	if err != nil {
		return nil, err
	}

	return &Reader{ctx: ctx}, nil
}

// Close releases every file handle held by the reader.
func (r *Reader) Close() error {
	return r.ctx.Close()
}

// ReadNext returns the next record in dir relative to the reader's
// current cursor. At an archive boundary it synthesizes a gap-marker
// record once, then transitions to the neighbouring archive on the next
// call in the same direction. It returns errs.ErrEndOfLog once no
// further archive exists in that direction.
func (r *Reader) ReadNext(dir Direction) (Record, error) {
	return r.ctx.ReadNext(dir)
}

// Fetch reads the next record in dir from the reader's current cursor
// (it does no origin comparison of its own and discards no record for
// lying on the wrong side of a SetTime target), then projects it onto
// pmids:
//
//   - an empty pmids returns the record unprojected, mark records included.
//   - otherwise, every requested pmid absent from the record is filled
//     with a shared "no values" stub; the record is skipped (and the next
//     one tried) only when none of the requested pmids is present AND at
//     least one of them is not a derived constant per the resolver passed
//     to Open.
//
// Example:
//
//	rec, err := reader.Fetch(palog.Forward, []uint32{pmidLoad1, pmidMemFree})
func (r *Reader) Fetch(dir Direction, pmids []uint32) (Record, error) {
	return r.ctx.Fetch(dir, pmids)
}

// SetTime repositions the cursor to the coarse seek target for timestamp
// (sec, nsec) under mode: selects the archive covering that timestamp,
// consults its temporal index for the nearest entry, and leaves the
// cursor such that the next ReadNext(dir matching mode) returns the
// first record on the correct side of (sec, nsec). That holds when the
// index has an entry for every record, as this package's writer produces;
// with a sparser index the next read starts at the record after the
// chosen entry, which can lie on the wrong side. mode persists until the
// next SetTime call.
func (r *Reader) SetTime(mode Mode, sec int64, nsec int32) error {
	return r.ctx.SetTime(mode, sec, nsec)
}

// GetStart returns the earliest archive's label start timestamp.
func (r *Reader) GetStart() (sec int64, nsec int32, err error) {
	return r.ctx.GetStart()
}

// GetEnd returns the latest archive's last successfully decodable record
// timestamp, tolerating a truncated trailing record.
func (r *Reader) GetEnd() (sec int64, nsec int32, err error) {
	return r.ctx.GetEnd()
}

// GetLabel returns a deep copy of archiveIndex's label (0 = earliest
// archive by start time).
func (r *Reader) GetLabel(archiveIndex int) (section.Label, error) {
	return r.ctx.Label(archiveIndex)
}

// Writer creates a brand-new archive and appends data records to it —
// the write-side counterpart to Reader, sharing the same on-disk format.
type Writer struct {
	ar *archive.Archive
}

// Create constructs a Writer for an archive that does not yet exist on
// disk at dir/base. No file is created until the first PutResult call,
// which performs the label-write transition described for put_result.
func Create(dir, base string, label section.Label, payloadCodec extern.PayloadCodec) *Writer {
	return &Writer{ar: archive.NewForWrite(dir, base, label, payloadCodec)}
}

// PutResult encodes rs via the Writer's PayloadCodec and appends it as
// the next data record, using the single-write (version-2) strategy.
func (w *Writer) PutResult(sec int64, nsec int32, rs extern.ResultSet) error {
	return w.ar.PutResult(sec, nsec, rs)
}

// PutResultV1 is PutResult's predecessor: a two-write strategy with no
// trailer slack carried in the payload buffer.
func (w *Writer) PutResultV1(sec int64, nsec int32, rs extern.ResultSet) error {
	return w.ar.PutResultV1(sec, nsec, rs)
}

// Close releases the writer's file handles.
func (w *Writer) Close() error {
	return w.ar.Close()
}
