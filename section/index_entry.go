package section

import (
	"fmt"
	"io"

	"github.com/kvarch/palog/codec"
	"github.com/kvarch/palog/errs"
	"github.com/kvarch/palog/format"
)

// TemporalIndexEntry maps a timestamp to the (volume, metadata-offset,
// data-offset) triple a coarse seek should land on. The in-memory form is
// version-independent: 64-bit offsets and a nanosecond-resolution
// timestamp regardless of the archive's wire version.
type TemporalIndexEntry struct {
	Sec      int64
	Nsec     int32
	Volume   int32
	MetaOff  int64
	DataOff  int64
}

// IndexEntrySize returns the fixed on-disk size of an index entry for the
// given label version.
func IndexEntrySize(v format.LabelVersion) int {
	if v == format.V2 {
		return V2IndexEntrySize
	}

	return V3IndexEntrySize
}

// ReadTemporalIndexEntry reads one fixed-size entry from r according to
// version. io.EOF with zero bytes read is returned verbatim so callers can
// distinguish a clean end-of-index from a truncated one.
func ReadTemporalIndexEntry(r io.Reader, version format.LabelVersion) (TemporalIndexEntry, error) {
	size := IndexEntrySize(version)
	buf := make([]byte, size)

	n, err := io.ReadFull(r, buf)
	if err != nil {
		if n == 0 && err == io.EOF {
			return TemporalIndexEntry{}, io.EOF
		}

		return TemporalIndexEntry{}, fmt.Errorf("%w: short index entry read: %v", errs.ErrBadIndex, err)
	}

	if version == format.V2 {
		sec := codec.Engine.Uint32(buf[0:4])
		usec := codec.Engine.Uint32(buf[4:8])
		vol := int32(codec.Engine.Uint32(buf[8:12]))
		metaOff := codec.Engine.Uint32(buf[12:16])
		dataOff := codec.Engine.Uint32(buf[16:20])

		return TemporalIndexEntry{
			Sec:     int64(sec),
			Nsec:    int32(usec) * 1000,
			Volume:  vol,
			MetaOff: int64(metaOff),
			DataOff: int64(dataOff),
		}, nil
	}

	sec := codec.Engine.Uint64(buf[0:8])
	nsec := codec.Engine.Uint32(buf[8:12])
	vol := int32(codec.Engine.Uint32(buf[12:16]))
	metaOff := codec.Engine.Uint64(buf[16:24])
	dataOff := codec.Engine.Uint64(buf[24:32])

	return TemporalIndexEntry{
		Sec:     int64(sec),
		Nsec:    int32(nsec),
		Volume:  vol,
		MetaOff: int64(metaOff),
		DataOff: int64(dataOff),
	}, nil
}

// WriteTemporalIndexEntry writes one fixed-size entry to w according to
// version, downsizing 64-bit offsets to v2's 32-bit fields and returning
// errs.ErrOffsetTooWide if they do not fit.
func WriteTemporalIndexEntry(w io.Writer, version format.LabelVersion, e TemporalIndexEntry) error {
	if version == format.V2 {
		if e.MetaOff > 0xFFFFFFFF || e.DataOff > 0xFFFFFFFF {
			return errs.ErrOffsetTooWide
		}

		buf := make([]byte, V2IndexEntrySize)
		codec.Engine.PutUint32(buf[0:4], uint32(e.Sec))
		codec.Engine.PutUint32(buf[4:8], uint32(e.Nsec/1000))
		codec.Engine.PutUint32(buf[8:12], uint32(e.Volume))
		codec.Engine.PutUint32(buf[12:16], uint32(e.MetaOff))
		codec.Engine.PutUint32(buf[16:20], uint32(e.DataOff))

		_, err := w.Write(buf)
		return err
	}

	buf := make([]byte, V3IndexEntrySize)
	codec.Engine.PutUint64(buf[0:8], uint64(e.Sec))
	codec.Engine.PutUint32(buf[8:12], uint32(e.Nsec))
	codec.Engine.PutUint32(buf[12:16], uint32(e.Volume))
	codec.Engine.PutUint64(buf[16:24], uint64(e.MetaOff))
	codec.Engine.PutUint64(buf[24:32], uint64(e.DataOff))

	_, err := w.Write(buf)
	return err
}
