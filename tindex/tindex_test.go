package tindex_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvarch/palog/format"
	"github.com/kvarch/palog/section"
	"github.com/kvarch/palog/tindex"
)

func writeIndexFile(t *testing.T, label section.Label, entries []tindex.Entry) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	_, err := section.WriteLabel(&buf, label)
	require.NoError(t, err)

	idx := &tindex.Index{Version: label.Version}
	for _, e := range entries {
		require.NoError(t, idx.Put(&buf, label.Version, e))
	}

	return &buf
}

func TestLoadTolerateCleanEOF(t *testing.T) {
	label := section.Label{Version: format.V2, Hostname: "h", Timezone: "z"}
	entries := []tindex.Entry{
		{Sec: 10, Volume: 0, MetaOff: 100, DataOff: 200},
		{Sec: 20, Volume: 0, MetaOff: 300, DataOff: 400},
		{Sec: 30, Volume: 0, MetaOff: 500, DataOff: 600},
	}
	buf := writeIndexFile(t, label, entries)

	idx, err := tindex.Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Len(t, idx.Entries, 3)
}

func TestLoadRejectsTruncatedEntry(t *testing.T) {
	label := section.Label{Version: format.V2, Hostname: "h", Timezone: "z"}
	buf := writeIndexFile(t, label, []tindex.Entry{{Sec: 10, Volume: 0, MetaOff: 1, DataOff: 1}})

	truncated := buf.Bytes()[:len(buf.Bytes())-3] // chop mid-entry
	_, err := tindex.Load(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestSearchExactMatch(t *testing.T) {
	idx := &tindex.Index{Entries: []tindex.Entry{{Sec: 10}, {Sec: 20}, {Sec: 30}}}

	r := idx.Search(20, 0, 0, 0)
	assert.True(t, r.Found)
	assert.Equal(t, int64(20), r.Entry.Sec)
}

func TestSearchNearestNeighbour(t *testing.T) {
	idx := &tindex.Index{Entries: []tindex.Entry{{Sec: 10}, {Sec: 20}, {Sec: 30}}}

	r := idx.Search(25, 0, 0, 0) // equidistant from 20 and 30: the lower neighbour wins ties
	assert.True(t, r.Found)
	assert.Equal(t, int64(20), r.Entry.Sec)

	r = idx.Search(29, 0, 0, 0) // strictly nearer 30
	assert.True(t, r.Found)
	assert.Equal(t, int64(30), r.Entry.Sec)

	r = idx.Search(24, 0, 0, 0) // nearer 20
	assert.True(t, r.Found)
	assert.Equal(t, int64(20), r.Entry.Sec)
}

func TestSearchBeforeFirstAndAfterLast(t *testing.T) {
	idx := &tindex.Index{Entries: []tindex.Entry{{Sec: 10}, {Sec: 20}}}

	assert.True(t, idx.Search(5, 0, 0, 0).BeforeFirst)
	assert.True(t, idx.Search(25, 0, 0, 0).AfterLast)
}

func TestSearchFallsBackOnTruncatedLastVolume(t *testing.T) {
	idx := &tindex.Index{Entries: []tindex.Entry{
		{Sec: 10, Volume: 1, DataOff: 100},
		{Sec: 20, Volume: 1, DataOff: 900}, // beyond the truncated size below
	}}

	r := idx.Search(19, 0, 1, 500)
	assert.True(t, r.Found)
	assert.Equal(t, int64(10), r.Entry.Sec)
}

func TestEmptyIndexSearch(t *testing.T) {
	idx := &tindex.Index{}
	assert.True(t, idx.Search(1, 0, 0, 0).AfterLast)
}
