package section

import (
	"fmt"
	"io"
	"time"

	"github.com/kvarch/palog/codec"
	"github.com/kvarch/palog/errs"
	"github.com/kvarch/palog/format"
)

// Label is the archive label record carried at the front of the index,
// metadata and every data-volume file. Its in-memory form is
// version-independent: timestamps are always a (seconds, nanoseconds)
// pair and the hostname/timezone/zoneinfo fields are plain Go strings,
// truncated to their fixed maxima on a v2 write.
type Label struct {
	Version     format.LabelVersion
	PID         uint32
	StartSec    int64
	StartNsec   int32
	Volume      int32
	FeatureBits uint16 // v3 only
	Hostname    string
	Timezone    string
	Zoneinfo    string // v3 only

	// Size is the on-disk size of this label record, including its
	// framing length words, as it was read from (or will be written to)
	// disk.
	Size int64
}

// StartTime returns the label's start timestamp as a time.Time in UTC.
func (l Label) StartTime() time.Time {
	return time.Unix(l.StartSec, int64(l.StartNsec)).UTC()
}

// Clone returns a deep copy of l, independent of its backing strings.
// Callers that export a label out of an Archive (get_label) receive a
// Clone so mutation of the caller's copy never aliases archive state.
func (l Label) Clone() Label {
	out := l
	out.Hostname = string([]byte(l.Hostname))
	out.Timezone = string([]byte(l.Timezone))
	out.Zoneinfo = string([]byte(l.Zoneinfo))

	return out
}

// ReadLabel reads and validates the label record at the current position
// of r (always offset 0 in practice), checking the embedded volume id
// against expectedVolume when expectedVolume >= 0.
//
// ReadLabel distinguishes two kinds of failure:
//   - errs.ErrEmptyFile: EOF was hit reading the very first bytes.
//   - errs.ErrBadMagic / errs.ErrUnsupportedVersion / errs.ErrVolumeMismatch /
//     errs.ErrBadLabel: the label bytes are present but malformed.
func ReadLabel(r io.ReadSeeker, expectedVolume int32) (Label, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Label{}, fmt.Errorf("section: seek to label start: %w", err)
	}

	preamble := make([]byte, 8)
	n, err := io.ReadFull(r, preamble)
	if err != nil {
		if n == 0 {
			return Label{}, errs.ErrEmptyFile
		}

		return Label{}, fmt.Errorf("section: read label preamble: %w", err)
	}

	headerLen := codec.Engine.Uint32(preamble[0:4])
	magic := codec.Engine.Uint32(preamble[4:8])

	if magic&MagicMask != MagicBase {
		return Label{}, errs.ErrBadMagic
	}

	version := format.LabelVersion(magic & MagicVersionMask)
	if !version.Valid() {
		return Label{}, errs.ErrUnsupportedVersion
	}

	var label Label
	switch version {
	case format.V2:
		label, err = readLabelV2(r, headerLen)
	case format.V3:
		label, err = readLabelV3(r, headerLen)
	}
	if err != nil {
		return Label{}, err
	}

	label.Version = version
	label.Size = int64(headerLen) + 4

	if expectedVolume >= 0 && label.Volume != expectedVolume {
		return Label{}, fmt.Errorf("%w: label volume %d, expected %d", errs.ErrVolumeMismatch, label.Volume, expectedVolume)
	}

	trailer := make([]byte, 4)
	if _, err := io.ReadFull(r, trailer); err != nil {
		return Label{}, fmt.Errorf("%w: short trailer: %v", errs.ErrBadLabel, err)
	}
	if codec.Engine.Uint32(trailer) != headerLen {
		return Label{}, fmt.Errorf("%w: header/trailer length mismatch", errs.ErrBadLabel)
	}

	return label, nil
}

func readLabelV2(r io.ReadSeeker, headerLen uint32) (Label, error) {
	if headerLen != V2LabelBodySize+4 {
		return Label{}, fmt.Errorf("%w: v2 header length %d", errs.ErrBadLabel, headerLen)
	}

	body := make([]byte, V2LabelBodySize-4) // magic already consumed
	if _, err := io.ReadFull(r, body); err != nil {
		return Label{}, fmt.Errorf("%w: short v2 body: %v", errs.ErrBadLabel, err)
	}

	pid := codec.Engine.Uint32(body[0:4])
	sec := codec.Engine.Uint32(body[4:8])
	usec := codec.Engine.Uint32(body[8:12])
	vol := int32(codec.Engine.Uint32(body[12:16]))
	hostname := body[16 : 16+V2HostnameSize]
	timezone := body[16+V2HostnameSize : 16+V2HostnameSize+V2TimezoneSize]

	return Label{
		PID:       pid,
		StartSec:  int64(sec),
		StartNsec: int32(usec) * 1000,
		Volume:    vol,
		Hostname:  trimNull(hostname),
		Timezone:  trimNull(timezone),
	}, nil
}

func readLabelV3(r io.ReadSeeker, headerLen uint32) (Label, error) {
	fixed := make([]byte, V3FixedBodySize-4) // magic already consumed
	if _, err := io.ReadFull(r, fixed); err != nil {
		return Label{}, fmt.Errorf("%w: short v3 fixed body: %v", errs.ErrBadLabel, err)
	}

	pid := codec.Engine.Uint32(fixed[0:4])
	sec := codec.Engine.Uint64(fixed[4:12])
	nsec := codec.Engine.Uint32(fixed[12:16])
	vol := int32(codec.Engine.Uint32(fixed[16:20]))
	feature := codec.Engine.Uint16(fixed[20:22])
	hostLen := codec.Engine.Uint16(fixed[22:24])
	tzLen := codec.Engine.Uint16(fixed[24:26])
	zoneLen := codec.Engine.Uint16(fixed[26:28])

	varLen := int(hostLen) + int(tzLen) + int(zoneLen)
	padded := align8(V3FixedBodySize + varLen)
	if int(headerLen) != padded+4 {
		return Label{}, fmt.Errorf("%w: v3 header length %d disagrees with field lengths", errs.ErrBadLabel, headerLen)
	}

	rest := make([]byte, padded-V3FixedBodySize)
	if _, err := io.ReadFull(r, rest); err != nil {
		return Label{}, fmt.Errorf("%w: short v3 variable body: %v", errs.ErrBadLabel, err)
	}

	hostname := rest[0:hostLen]
	timezone := rest[hostLen : hostLen+tzLen]
	zoneinfo := rest[hostLen+tzLen : hostLen+tzLen+zoneLen]

	return Label{
		PID:         pid,
		StartSec:    int64(sec),
		StartNsec:   int32(nsec),
		Volume:      vol,
		FeatureBits: feature,
		Hostname:    string(hostname),
		Timezone:    string(timezone),
		Zoneinfo:    string(zoneinfo),
	}, nil
}

// WriteLabel serializes label and writes it at the current position of w.
func WriteLabel(w io.Writer, label Label) (int64, error) {
	switch label.Version {
	case format.V2:
		return writeLabelV2(w, label)
	case format.V3:
		return writeLabelV3(w, label)
	default:
		return 0, fmt.Errorf("%w: version %v", errs.ErrUnsupportedVersion, label.Version)
	}
}

func writeLabelV2(w io.Writer, label Label) (int64, error) {
	body := make([]byte, V2LabelBodySize)
	codec.Engine.PutUint32(body[0:4], MagicBase|uint32(format.V2))
	codec.Engine.PutUint32(body[4:8], label.PID)
	codec.Engine.PutUint32(body[8:12], uint32(label.StartSec))
	codec.Engine.PutUint32(body[12:16], uint32(label.StartNsec/1000))
	codec.Engine.PutUint32(body[16:20], uint32(label.Volume))
	copyPadded(body[20:20+V2HostnameSize], label.Hostname)
	copyPadded(body[20+V2HostnameSize:20+V2HostnameSize+V2TimezoneSize], label.Timezone)

	return writeFramedBody(w, body)
}

func writeLabelV3(w io.Writer, label Label) (int64, error) {
	hostLen := len(label.Hostname)
	tzLen := len(label.Timezone)
	zoneLen := len(label.Zoneinfo)

	total := align8(V3FixedBodySize + hostLen + tzLen + zoneLen)
	body := make([]byte, total)

	codec.Engine.PutUint32(body[0:4], MagicBase|uint32(format.V3))
	codec.Engine.PutUint32(body[4:8], label.PID)
	codec.Engine.PutUint64(body[8:16], uint64(label.StartSec))
	codec.Engine.PutUint32(body[16:20], uint32(label.StartNsec))
	codec.Engine.PutUint32(body[20:24], uint32(label.Volume))
	codec.Engine.PutUint16(body[24:26], label.FeatureBits)
	codec.Engine.PutUint16(body[26:28], uint16(hostLen))
	codec.Engine.PutUint16(body[28:30], uint16(tzLen))
	codec.Engine.PutUint16(body[30:32], uint16(zoneLen))

	off := V3FixedBodySize
	off += copy(body[off:], label.Hostname)
	off += copy(body[off:], label.Timezone)
	copy(body[off:], label.Zoneinfo)

	return writeFramedBody(w, body)
}

func writeFramedBody(w io.Writer, body []byte) (int64, error) {
	lenWord := make([]byte, 4)
	codec.Engine.PutUint32(lenWord, uint32(len(body)+4))

	n, err := w.Write(lenWord)
	if err != nil {
		return int64(n), fmt.Errorf("section: write label header length: %w", err)
	}
	m, err := w.Write(body)
	n += m
	if err != nil {
		return int64(n), fmt.Errorf("section: write label body: %w", err)
	}
	k, err := w.Write(lenWord)
	n += k
	if err != nil {
		return int64(n), fmt.Errorf("section: write label trailer length: %w", err)
	}

	return int64(n), nil
}

func trimNull(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}

	return string(b)
}

func copyPadded(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func align8(n int) int {
	return (n + 7) &^ 7
}
