package archive_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvarch/palog/archive"
	"github.com/kvarch/palog/errs"
	"github.com/kvarch/palog/extern"
	"github.com/kvarch/palog/format"
	"github.com/kvarch/palog/section"
	"github.com/kvarch/palog/volume"
)

func testLabel(version format.LabelVersion) section.Label {
	return section.Label{
		Version:   version,
		PID:       4242,
		StartSec:  1_700_000_000,
		StartNsec: 0,
		Hostname:  "testhost",
		Timezone:  "UTC",
	}
}

func resultSet(pmid uint32, v float64) extern.ResultSet {
	return extern.ResultSet{
		PMIDs: []uint32{pmid},
		ValueSets: []extern.ValueSet{
			{PMID: pmid, Values: []extern.Value{{Instance: -1, Format: extern.ValueFormatInline, Inline: v}}},
		},
	}
}

func TestPutResultThenOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	base := "archtest"

	w := archive.NewForWrite(dir, base, testLabel(format.V3), extern.SimpleCodec{})
	require.NoError(t, w.PutResultV2(1_700_000_001, 0, resultSet(100, 1.5)))
	require.NoError(t, w.PutResultV1(1_700_000_002, 0, resultSet(100, 2.5)))
	require.NoError(t, w.Close())

	r, err := archive.Open(filepath.Join(dir, base+".0"), extern.SimpleCodec{}, extern.NoopDetector{})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SeekToStart())

	rec, err := r.ReadNext(archive.Forward, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_001), rec.Sec)
	require.Len(t, rec.Payload.ValueSets, 1)
	assert.Equal(t, 1.5, rec.Payload.ValueSets[0].Values[0].Inline)

	rec, err = r.ReadNext(archive.Forward, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_002), rec.Sec)
	assert.Equal(t, 2.5, rec.Payload.ValueSets[0].Values[0].Inline)

	_, err = r.ReadNext(archive.Forward, false)
	assert.ErrorIs(t, err, errs.ErrEndOfLog)
}

func TestReadNextBackwardMatchesForward(t *testing.T) {
	dir := t.TempDir()
	base := "archback"

	w := archive.NewForWrite(dir, base, testLabel(format.V2), extern.SimpleCodec{})
	require.NoError(t, w.PutResult(10, 0, resultSet(1, 1)))
	require.NoError(t, w.PutResult(20, 0, resultSet(1, 2)))
	require.NoError(t, w.PutResult(30, 0, resultSet(1, 3)))
	require.NoError(t, w.Close())

	r, err := archive.Open(filepath.Join(dir, base+".0"), extern.SimpleCodec{}, nil)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SeekToEnd())

	rec, err := r.ReadNext(archive.Backward, false)
	require.NoError(t, err)
	assert.Equal(t, int64(30), rec.Sec)

	rec, err = r.ReadNext(archive.Backward, false)
	require.NoError(t, err)
	assert.Equal(t, int64(20), rec.Sec)

	rec, err = r.ReadNext(archive.Backward, false)
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.Sec)

	_, err = r.ReadNext(archive.Backward, false)
	assert.ErrorIs(t, err, errs.ErrEndOfLog)
}

func TestOpenAcceptsDotZeroSuffixOrBarePath(t *testing.T) {
	dir := t.TempDir()
	base := "archsuffix"

	w := archive.NewForWrite(dir, base, testLabel(format.V3), extern.SimpleCodec{})
	require.NoError(t, w.PutResult(1, 0, resultSet(1, 1)))
	require.NoError(t, w.Close())

	a1, err := archive.Open(filepath.Join(dir, base+".0"), extern.SimpleCodec{}, nil)
	require.NoError(t, err)
	a1.Close()

	a2, err := archive.Open(filepath.Join(dir, base), extern.SimpleCodec{}, nil)
	require.NoError(t, err)
	a2.Close()

	a3, err := archive.Open(filepath.Join(dir, base+".index"), extern.SimpleCodec{}, nil)
	require.NoError(t, err)
	a3.Close()
}

func TestOpenEmptyArchiveYieldsNoData(t *testing.T) {
	dir := t.TempDir()
	base := "archempty"
	label := testLabel(format.V2)

	v, err := volume.Create(filepath.Join(dir, base+".0"), 0, label)
	require.NoError(t, err)
	require.NoError(t, v.Close())

	_, err = archive.Open(filepath.Join(dir, base+".0"), extern.SimpleCodec{}, nil)
	require.True(t, errors.Is(err, errs.ErrNoData))
}

func TestOpenRejectsMissingVolumes(t *testing.T) {
	dir := t.TempDir()

	_, err := archive.Open(filepath.Join(dir, "nope"), extern.SimpleCodec{}, nil)
	require.Error(t, err)
}

func TestOpenWithParanoidReadsOption(t *testing.T) {
	dir := t.TempDir()
	base := "archparanoid"

	w := archive.NewForWrite(dir, base, testLabel(format.V3), extern.SimpleCodec{})
	require.NoError(t, w.PutResult(1, 0, resultSet(1, 1)))
	require.NoError(t, w.Close())

	a, err := archive.Open(filepath.Join(dir, base+".0"), extern.SimpleCodec{}, nil)
	require.NoError(t, err)
	assert.False(t, a.Paranoid())
	a.Close()

	p, err := archive.Open(filepath.Join(dir, base+".0"), extern.SimpleCodec{}, nil, archive.WithParanoidReads())
	require.NoError(t, err)
	defer p.Close()
	assert.True(t, p.Paranoid())
	assert.NotZero(t, p.Fingerprint())
}

func TestArchiveEndTracksLastRecord(t *testing.T) {
	dir := t.TempDir()
	base := "archend"

	w := archive.NewForWrite(dir, base, testLabel(format.V3), extern.SimpleCodec{})
	require.NoError(t, w.PutResult(100, 0, resultSet(1, 1)))
	require.NoError(t, w.PutResult(200, 0, resultSet(1, 2)))
	require.NoError(t, w.Close())

	r, err := archive.Open(filepath.Join(dir, base+".0"), extern.SimpleCodec{}, nil)
	require.NoError(t, err)
	defer r.Close()

	sec, _, err := r.End()
	require.NoError(t, err)
	assert.Equal(t, int64(200), sec)
}
