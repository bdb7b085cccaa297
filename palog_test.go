package palog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	palog "github.com/kvarch/palog"
	"github.com/kvarch/palog/extern"
	"github.com/kvarch/palog/format"
	"github.com/kvarch/palog/section"
)

func label(version format.LabelVersion, startSec int64) section.Label {
	return section.Label{
		Version:   version,
		PID:       1,
		StartSec:  startSec,
		Hostname:  "host-a",
		Timezone:  "UTC",
	}
}

func rs(pmid uint32, v float64) extern.ResultSet {
	return extern.ResultSet{
		PMIDs: []uint32{pmid},
		ValueSets: []extern.ValueSet{
			{PMID: pmid, Values: []extern.Value{{Instance: -1, Format: extern.ValueFormatInline, Inline: v}}},
		},
	}
}

func TestIndexSeekScenario(t *testing.T) {
	dir := t.TempDir()

	w := palog.Create(dir, "seek", label(format.V3, 10), nil)
	require.NoError(t, w.PutResult(10, 0, rs(1, 1)))
	require.NoError(t, w.PutResult(20, 0, rs(1, 2)))
	require.NoError(t, w.PutResult(30, 0, rs(1, 3)))
	require.NoError(t, w.Close())

	r, err := palog.Open([]string{filepath.Join(dir, "seek.0")}, nil, nil, nil, nil)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SetTime(palog.ModeForward, 25, 0))
	rec, err := r.ReadNext(palog.Forward)
	require.NoError(t, err)
	assert.Equal(t, int64(30), rec.Sec)

	require.NoError(t, r.SetTime(palog.ModeBackward, 25, 0))
	rec, err = r.ReadNext(palog.Backward)
	require.NoError(t, err)
	assert.Equal(t, int64(20), rec.Sec)
}

func TestDotZeroSuffixDiscovery(t *testing.T) {
	dir := t.TempDir()

	w := palog.Create(dir, "disc", label(format.V2, 1), nil)
	require.NoError(t, w.PutResult(1, 0, rs(1, 1)))
	require.NoError(t, w.Close())

	r, err := palog.Open([]string{filepath.Join(dir, "disc.0")}, nil, nil, nil, nil)
	require.NoError(t, err)
	defer r.Close()

	lbl, err := r.GetLabel(0)
	require.NoError(t, err)
	assert.Equal(t, "host-a", lbl.Hostname)
}

func TestWriteProducesExpectedOnDiskSize(t *testing.T) {
	dir := t.TempDir()
	lbl := label(format.V2, 1)

	w := palog.Create(dir, "bytes", lbl, nil)
	record := rs(1, 1)
	require.NoError(t, w.PutResult(1, 0, record))
	require.NoError(t, w.Close())

	encoded, err := extern.SimpleCodec{}.Encode(record)
	require.NoError(t, err)

	path := filepath.Join(dir, "bytes.0")
	fi, err := os.Stat(path)
	require.NoError(t, err)

	timestampSize := int64(8)
	wantSize := int64(section.V2LabelSize) + 4 + timestampSize + int64(len(encoded)) + 4
	assert.Equal(t, wantSize, fi.Size())
}

func TestForwardReadAcrossArchiveBoundaryEmitsMark(t *testing.T) {
	dir := t.TempDir()

	w1 := palog.Create(dir, "a1", label(format.V3, 100), nil)
	require.NoError(t, w1.PutResult(100, 0, rs(1, 1)))
	require.NoError(t, w1.Close())

	w2 := palog.Create(dir, "a2", label(format.V3, 100), nil)
	require.NoError(t, w2.PutResult(100, 500_000_000, rs(1, 2)))
	require.NoError(t, w2.Close())

	r, err := palog.Open([]string{
		filepath.Join(dir, "a1.0"),
		filepath.Join(dir, "a2.0"),
	}, nil, nil, nil, nil)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SetTime(palog.ModeForward, 0, 0))

	rec, err := r.ReadNext(palog.Forward)
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.Sec)
	assert.False(t, rec.Payload.IsMark())

	mark, err := r.ReadNext(palog.Forward)
	require.NoError(t, err)
	assert.True(t, mark.Payload.IsMark())
	assert.Equal(t, int64(100), mark.Sec)
	assert.Equal(t, int32(1_000_000), mark.Nsec)

	rec, err = r.ReadNext(palog.Forward)
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.Sec)
	assert.Equal(t, int32(500_000_000), rec.Nsec)
	assert.False(t, rec.Payload.IsMark())

	_, err = r.ReadNext(palog.Forward)
	assert.Error(t, err)
}

func TestFetchSkipsUntilMatchingPMID(t *testing.T) {
	dir := t.TempDir()

	w := palog.Create(dir, "fetch", label(format.V3, 1), nil)
	require.NoError(t, w.PutResult(1, 0, rs(10, 1)))
	require.NoError(t, w.PutResult(2, 0, rs(10, 2)))
	require.NoError(t, w.PutResult(3, 0, rs(20, 3)))
	require.NoError(t, w.Close())

	r, err := palog.Open([]string{filepath.Join(dir, "fetch.0")}, nil, nil, nil, nil)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SetTime(palog.ModeForward, 0, 0))

	rec, err := r.Fetch(palog.Forward, []uint32{20})
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Sec)

	_, err = r.Fetch(palog.Forward, []uint32{20})
	assert.Error(t, err)
}
