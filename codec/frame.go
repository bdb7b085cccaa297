// Package codec implements palog's wire-level byte codec and record
// framing. Every integer on the wire is big-endian; records are framed as
// [length][payload][length] so they can be walked forward or backward
// without a separate index.
package codec

import (
	"fmt"
	"io"

	"github.com/kvarch/palog/endian"
	"github.com/kvarch/palog/errs"
	"github.com/kvarch/palog/internal/pool"
)

// Engine is the byte-order engine used for every on-disk integer. The wire
// format is always big-endian; palog never reads or writes a little-endian
// archive.
var Engine = endian.GetBigEndianEngine()

// FrameOverhead is the combined size, in bytes, of a record's leading and
// trailing length words.
const FrameOverhead = 8

// ReadFrame reads one length-prefixed record from r starting at the
// current position, leaving the cursor just past the trailing length
// word. headerLen is the value of the leading length word (the total
// framed size, including both length words); payload is the
// headerLen-8 bytes between them.
func ReadFrame(r io.Reader) (headerLen uint32, payload []byte, err error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return 0, nil, err
	}
	headerLen = Engine.Uint32(lenBuf)

	if headerLen < FrameOverhead {
		return 0, nil, fmt.Errorf("%w: header length %d below minimum frame size", errs.ErrBadRecord, headerLen)
	}

	payload = make([]byte, headerLen-FrameOverhead)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("%w: short payload read: %v", errs.ErrBadRecord, err)
	}

	trailer := make([]byte, 4)
	if _, err := io.ReadFull(r, trailer); err != nil {
		return 0, nil, fmt.Errorf("%w: short trailer read: %v", errs.ErrBadRecord, err)
	}

	trailerLen := Engine.Uint32(trailer)
	if trailerLen != headerLen {
		return 0, nil, fmt.Errorf("%w: header %d != trailer %d", errs.ErrBadRecord, headerLen, trailerLen)
	}

	return headerLen, payload, nil
}

// WriteFrame writes payload framed with matching leading and trailing
// length words and returns the total number of bytes written.
func WriteFrame(w io.Writer, payload []byte) (int, error) {
	total := uint32(len(payload) + FrameOverhead)

	lenBuf := make([]byte, 4)
	Engine.PutUint32(lenBuf, total)

	n, err := w.Write(lenBuf)
	if err != nil {
		return n, fmt.Errorf("codec: write frame header: %w", err)
	}

	m, err := w.Write(payload)
	n += m
	if err != nil {
		return n, fmt.Errorf("codec: write frame payload: %w", err)
	}

	k, err := w.Write(lenBuf)
	n += k
	if err != nil {
		return n, fmt.Errorf("codec: write frame trailer: %w", err)
	}

	return n, nil
}

// WriteFrameV1 writes payload using the version-1 writer strategy: a
// buffer holding only the leading length word and payload (no trailer
// slack), followed by a second write for the trailing length word.
func WriteFrameV1(w io.Writer, payload []byte) (int, error) {
	total := uint32(len(payload) + FrameOverhead)

	buf := make([]byte, 4+len(payload))
	Engine.PutUint32(buf[0:4], total)
	copy(buf[4:], payload)

	n, err := w.Write(buf)
	if err != nil {
		return n, fmt.Errorf("codec: write frame header+payload: %w", err)
	}

	trailer := make([]byte, 4)
	Engine.PutUint32(trailer, total)

	k, err := w.Write(trailer)
	n += k
	if err != nil {
		return n, fmt.Errorf("codec: write frame trailer: %w", err)
	}

	return n, nil
}

// WriteFrameV2 writes payload using the version-2 writer strategy: one
// buffer sized to include the trailer slack up front, issued as a single
// write.
func WriteFrameV2(w io.Writer, payload []byte) (int, error) {
	total := uint32(len(payload) + FrameOverhead)

	bb := pool.GetBlobBuffer()
	defer pool.PutBlobBuffer(bb)
	bb.ExtendOrGrow(len(payload) + FrameOverhead)
	buf := bb.Bytes()

	Engine.PutUint32(buf[0:4], total)
	copy(buf[4:4+len(payload)], payload)
	Engine.PutUint32(buf[4+len(payload):], total)

	n, err := w.Write(buf)
	if err != nil {
		return n, fmt.Errorf("codec: write frame: %w", err)
	}

	return n, nil
}

// StepBackward assumes r is positioned just past a record's trailing
// length word (i.e. at the END of a record, as temporal index entries and
// backward reads leave it) and repositions r to just before that record's
// header, returning the record's total framed length. It does not read
// the record's payload.
func StepBackward(r io.ReadSeeker) (recordLen uint32, err error) {
	if _, err := r.Seek(-4, io.SeekCurrent); err != nil {
		return 0, fmt.Errorf("codec: seek to trailer: %w", err)
	}

	trailer := make([]byte, 4)
	if _, err := io.ReadFull(r, trailer); err != nil {
		return 0, fmt.Errorf("%w: short trailer read: %v", errs.ErrBadRecord, err)
	}
	recordLen = Engine.Uint32(trailer)

	if recordLen < FrameOverhead {
		return 0, fmt.Errorf("%w: record length %d below minimum frame size", errs.ErrBadRecord, recordLen)
	}

	if _, err := r.Seek(-int64(recordLen), io.SeekCurrent); err != nil {
		return 0, fmt.Errorf("codec: seek back over record: %w", err)
	}

	return recordLen, nil
}

// PeekRecordLen reads the 4-byte length word at the current position of r
// without otherwise advancing past the record, restoring the original
// position before returning. It is used when the caller needs to decide
// whether a record fits before committing to ReadFrame.
func PeekRecordLen(r io.ReadSeeker) (uint32, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	lenBuf := make([]byte, 4)
	_, err = io.ReadFull(r, lenBuf)

	if _, seekErr := r.Seek(start, io.SeekStart); seekErr != nil {
		return 0, seekErr
	}
	if err != nil {
		return 0, err
	}

	return Engine.Uint32(lenBuf), nil
}
