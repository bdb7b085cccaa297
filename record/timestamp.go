package record

import (
	"fmt"

	"github.com/kvarch/palog/codec"
	"github.com/kvarch/palog/format"
)

// TimestampSize returns the number of leading payload bytes a data
// record's timestamp occupies for the given label version: 8 for v2
// (4-byte sec + 4-byte usec), 12 for v3 (8-byte sec + 4-byte nsec).
func TimestampSize(v format.LabelVersion) int {
	if v == format.V2 {
		return 8
	}

	return 12
}

// SplitTimestamp decodes the leading timestamp from a data record's
// payload and returns it alongside the remaining (opaque) tail.
func SplitTimestamp(payload []byte, v format.LabelVersion) (sec int64, nsec int32, tail []byte, err error) {
	hdrsz := TimestampSize(v)
	if len(payload) < hdrsz {
		return 0, 0, nil, fmt.Errorf("record: payload shorter than %d-byte timestamp header", hdrsz)
	}

	if v == format.V2 {
		s := codec.Engine.Uint32(payload[0:4])
		usec := codec.Engine.Uint32(payload[4:8])
		return int64(s), int32(usec) * 1000, payload[8:], nil
	}

	s := codec.Engine.Uint64(payload[0:8])
	ns := codec.Engine.Uint32(payload[8:12])

	return int64(s), int32(ns), payload[12:], nil
}

// JoinTimestamp prepends sec/nsec encoded per v onto tail, producing a
// complete data record payload.
func JoinTimestamp(sec int64, nsec int32, tail []byte, v format.LabelVersion) []byte {
	hdrsz := TimestampSize(v)
	out := make([]byte, hdrsz+len(tail))

	if v == format.V2 {
		codec.Engine.PutUint32(out[0:4], uint32(sec))
		codec.Engine.PutUint32(out[4:8], uint32(nsec/1000))
	} else {
		codec.Engine.PutUint64(out[0:8], uint64(sec))
		codec.Engine.PutUint32(out[8:12], uint32(nsec))
	}

	copy(out[hdrsz:], tail)

	return out
}

// Compare orders two (sec, nsec) timestamps lexicographically, as the
// data model requires.
func Compare(secA int64, nsecA int32, secB int64, nsecB int32) int {
	switch {
	case secA < secB:
		return -1
	case secA > secB:
		return 1
	case nsecA < nsecB:
		return -1
	case nsecA > nsecB:
		return 1
	default:
		return 0
	}
}

// AddMillis adds ms milliseconds to a (sec, nsec) timestamp, carrying
// into seconds as needed, and handles a negative ms with borrow
// propagation on the nanosecond field (the mark-generation primitive
// described for archive boundary transitions).
func AddMillis(sec int64, nsec int32, ms int64) (int64, int32) {
	deltaNanos := ms * 1_000_000
	totalNanos := int64(nsec) + deltaNanos

	for totalNanos < 0 {
		sec--
		totalNanos += 1_000_000_000
	}
	for totalNanos >= 1_000_000_000 {
		sec++
		totalNanos -= 1_000_000_000
	}

	return sec, int32(totalNanos)
}
