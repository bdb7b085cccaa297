package section_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvarch/palog/format"
	"github.com/kvarch/palog/section"
)

func TestTemporalIndexEntryRoundTripV2(t *testing.T) {
	e := section.TemporalIndexEntry{Sec: 100, Nsec: 500_000_000, Volume: 3, MetaOff: 1024, DataOff: 2048}

	var buf bytes.Buffer
	require.NoError(t, section.WriteTemporalIndexEntry(&buf, format.V2, e))
	assert.Equal(t, section.V2IndexEntrySize, buf.Len())

	got, err := section.ReadTemporalIndexEntry(&buf, format.V2)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestTemporalIndexEntryRoundTripV3(t *testing.T) {
	e := section.TemporalIndexEntry{Sec: 100, Nsec: 123456789, Volume: 3, MetaOff: 1 << 40, DataOff: 2 << 40}

	var buf bytes.Buffer
	require.NoError(t, section.WriteTemporalIndexEntry(&buf, format.V3, e))
	assert.Equal(t, section.V3IndexEntrySize, buf.Len())

	got, err := section.ReadTemporalIndexEntry(&buf, format.V3)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestTemporalIndexEntryV2RejectsWideOffset(t *testing.T) {
	e := section.TemporalIndexEntry{MetaOff: 1 << 40}

	var buf bytes.Buffer
	err := section.WriteTemporalIndexEntry(&buf, format.V2, e)
	require.Error(t, err)
}

func TestReadTemporalIndexEntryCleanEOF(t *testing.T) {
	_, err := section.ReadTemporalIndexEntry(bytes.NewReader(nil), format.V2)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadTemporalIndexEntryTruncated(t *testing.T) {
	_, err := section.ReadTemporalIndexEntry(bytes.NewReader([]byte{1, 2, 3}), format.V2)
	require.Error(t, err)
	require.NotErrorIs(t, err, io.EOF)
}
