// Package record validates the numeric sanity of a decoded data-record
// payload beyond what the external extern.PayloadCodec itself checks. It
// backs the "paranoid" read mode: always used while probing for an
// archive's true end (the last successfully decodable record), and on
// every traversal read of an archive opened with WithParanoidReads.
package record

import (
	"fmt"

	"github.com/kvarch/palog/errs"
	"github.com/kvarch/palog/extern"
)

// PDUUnit is the minimum addressable unit of a value block on the wire,
// matching the source archive format's word size.
const PDUUnit = 4

// ParanoidCheck decodes payload[hdrsz:] via codec and additionally validates:
//   - the decoded pmid count is non-negative (guaranteed by []uint32, kept
//     as an explicit check against a negative count smuggled through a
//     custom PayloadCodec),
//   - numpmid > 0 is never paired with a payload exactly hdrsz bytes long
//     (a value-less header with no room for value sets),
//   - every value's format tag is one of {Inline, DirectPointer,
//     SharedPointer},
//   - every DirectPointer/SharedPointer value's indirect offset/length
//     lies within payload,
//   - the value block (payload beyond hdrsz) is at least one PDUUnit when
//     any value set is non-empty.
//
// hdrsz is the number of leading payload bytes the caller considers fixed
// header (the timestamp, in palog's framing); everything from hdrsz
// onward is the value-bearing region ParanoidCheck inspects.
func ParanoidCheck(payload []byte, hdrsz int, codec extern.PayloadCodec) (extern.ResultSet, error) {
	if len(payload) < hdrsz {
		return extern.ResultSet{}, fmt.Errorf("%w: payload shorter than %d-byte header", errs.ErrBadRecord, hdrsz)
	}

	rs, err := codec.Decode(payload[hdrsz:])
	if err != nil {
		return extern.ResultSet{}, fmt.Errorf("%w: payload decode: %v", errs.ErrBadRecord, err)
	}

	numPMIDs := len(rs.PMIDs)
	if numPMIDs < 0 { // unreachable via []uint32 len, kept for defensive symmetry with the source check
		return extern.ResultSet{}, fmt.Errorf("%w: negative pmid count", errs.ErrBadRecord)
	}

	if numPMIDs > 0 && len(payload) <= hdrsz {
		return extern.ResultSet{}, fmt.Errorf("%w: numpmid %d but payload has no value region", errs.ErrBadRecord, numPMIDs)
	}

	valueRegionLen := len(payload) - hdrsz
	anyValues := false

	for _, vs := range rs.ValueSets {
		for _, v := range vs.Values {
			anyValues = true

			switch v.Format {
			case extern.ValueFormatInline:
				// nothing further to validate; the value is carried inline.
			case extern.ValueFormatDirectPointer, extern.ValueFormatSharedPointer:
				if v.Indirect.Offset < 0 || v.Indirect.Length < 0 ||
					v.Indirect.Offset+v.Indirect.Length > len(payload) {
					return extern.ResultSet{}, fmt.Errorf(
						"%w: indirect value offset %d length %d outside %d-byte buffer",
						errs.ErrBadRecord, v.Indirect.Offset, v.Indirect.Length, len(payload))
				}
			default:
				return extern.ResultSet{}, fmt.Errorf("%w: value-format tag %d", errs.ErrBadRecord, v.Format)
			}
		}
	}

	if anyValues && valueRegionLen < PDUUnit {
		return extern.ResultSet{}, fmt.Errorf("%w: value block length %d below one PDU unit", errs.ErrBadRecord, valueRegionLen)
	}

	return rs, nil
}
