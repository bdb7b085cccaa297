package volume_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvarch/palog/format"
	"github.com/kvarch/palog/section"
	"github.com/kvarch/palog/volume"
)

func testLabel() section.Label {
	return section.Label{Version: format.V2, PID: 123, Hostname: "host", Timezone: "UTC", Volume: 0}
}

func TestCreateRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arch.0")

	v, err := volume.Create(path, 0, testLabel())
	require.NoError(t, err)
	defer v.Close()

	_, err = volume.Create(path, 0, testLabel())
	require.Error(t, err)
}

func TestOpenValidatesLabelAgainstArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arch.0")

	label := testLabel()
	v, err := volume.Create(path, 0, label)
	require.NoError(t, err)
	v.Close()

	opened, err := volume.Open(path, 0, label, nil)
	require.NoError(t, err)
	defer opened.Close()
	assert.True(t, opened.Seen())

	mismatched := label
	mismatched.PID = 999
	_, err = volume.Open(path, 0, mismatched, nil)
	require.Error(t, err)
}

func TestReopenSkipsLabelRevalidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arch.0")

	label := testLabel()
	created, err := volume.Create(path, 0, label)
	require.NoError(t, err)

	payload := []byte("hello")
	_, err = created.File.Write(append(append([]byte{0, 0, 0, 13}, payload...), 0, 0, 0, 13))
	require.NoError(t, err)
	created.Close()

	v, err := volume.Reopen(path, 0, created.Label, nil)
	require.NoError(t, err)
	defer v.Close()

	off, err := v.File.Seek(0, os.SEEK_CUR)
	require.NoError(t, err)
	assert.Equal(t, created.Label.Size, off)
	assert.Greater(t, off, int64(0))

	buf := make([]byte, 13)
	_, err = v.File.Read(buf)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(buf, payload))
}
