package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvarch/palog/extern"
	"github.com/kvarch/palog/record"
)

const hdrsz = 8 // 4-byte sec + 4-byte usec, matching a v2 timestamp

func encodeWithHeader(t *testing.T, rs extern.ResultSet) []byte {
	t.Helper()
	body, err := extern.SimpleCodec{}.Encode(rs)
	require.NoError(t, err)

	return append(make([]byte, hdrsz), body...)
}

// resultCodec decodes every payload to a fixed ResultSet, for checks on
// fields SimpleCodec does not carry on the wire (IndirectRef).
type resultCodec struct{ rs extern.ResultSet }

func (c resultCodec) Decode([]byte) (extern.ResultSet, error) { return c.rs, nil }

func (c resultCodec) Encode(extern.ResultSet) ([]byte, error) { return nil, nil }

func TestParanoidCheckAcceptsWellFormedRecord(t *testing.T) {
	rs := extern.ResultSet{
		PMIDs: []uint32{7},
		ValueSets: []extern.ValueSet{
			{PMID: 7, Values: []extern.Value{{Instance: -1, Format: extern.ValueFormatInline, Inline: 3.14}}},
		},
	}
	payload := encodeWithHeader(t, rs)

	got, err := record.ParanoidCheck(payload, hdrsz, extern.SimpleCodec{})
	require.NoError(t, err)
	assert.Equal(t, []uint32{7}, got.PMIDs)
}

func TestParanoidCheckRejectsBadValueFormat(t *testing.T) {
	rs := extern.ResultSet{
		PMIDs:     []uint32{7},
		ValueSets: []extern.ValueSet{{PMID: 7, Values: []extern.Value{{Format: 99}}}},
	}
	payload := encodeWithHeader(t, rs)

	_, err := record.ParanoidCheck(payload, hdrsz, extern.SimpleCodec{})
	require.Error(t, err)
}

func TestParanoidCheckRejectsIndirectOffsetOutsideBuffer(t *testing.T) {
	rs := extern.ResultSet{
		PMIDs: []uint32{7},
		ValueSets: []extern.ValueSet{{
			PMID:   7,
			Values: []extern.Value{{Format: extern.ValueFormatDirectPointer, Indirect: extern.IndirectRef{Offset: 1 << 20, Length: 4}}},
		}},
	}
	payload := encodeWithHeader(t, rs)

	_, err := record.ParanoidCheck(payload, hdrsz, resultCodec{rs: rs})
	require.Error(t, err)
}

func TestParanoidCheckRejectsNumPMIDWithNoValueRegion(t *testing.T) {
	rs := extern.ResultSet{PMIDs: []uint32{7}}
	payload, err := extern.SimpleCodec{}.Encode(rs)
	require.NoError(t, err)
	// Truncate so the payload is no longer than hdrsz.
	payload = payload[:hdrsz]

	_, err = record.ParanoidCheck(payload, hdrsz, extern.SimpleCodec{})
	require.Error(t, err)
}

func TestParanoidCheckAcceptsMarkRecord(t *testing.T) {
	payload := encodeWithHeader(t, extern.ResultSet{})

	got, err := record.ParanoidCheck(payload, hdrsz, extern.SimpleCodec{})
	require.NoError(t, err)
	assert.True(t, got.IsMark())
}
