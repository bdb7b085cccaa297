package section_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvarch/palog/format"
	"github.com/kvarch/palog/section"
)

func TestLabelRoundTripV2(t *testing.T) {
	label := section.Label{
		Version:   format.V2,
		PID:       4242,
		StartSec:  1700000000,
		StartNsec: 500_000_000, // truncates to usec precision on v2
		Volume:    0,
		Hostname:  "db-host-01",
		Timezone:  "UTC",
	}

	var buf bytes.Buffer
	_, err := section.WriteLabel(&buf, label)
	require.NoError(t, err)

	got, err := section.ReadLabel(bytes.NewReader(buf.Bytes()), 0)
	require.NoError(t, err)

	assert.Equal(t, label.PID, got.PID)
	assert.Equal(t, label.StartSec, got.StartSec)
	assert.Equal(t, label.Hostname, got.Hostname)
	assert.Equal(t, label.Timezone, got.Timezone)
	assert.Equal(t, int64(section.V2LabelSize), got.Size)
}

func TestLabelRoundTripV3(t *testing.T) {
	label := section.Label{
		Version:   format.V3,
		PID:       99,
		StartSec:  1700000000,
		StartNsec: 123456789,
		Volume:    2,
		Hostname:  "a-very-long-hostname.example.internal",
		Timezone:  "America/Los_Angeles",
		Zoneinfo:  "PST8PDT,M3.2.0,M11.1.0",
	}

	var buf bytes.Buffer
	_, err := section.WriteLabel(&buf, label)
	require.NoError(t, err)

	got, err := section.ReadLabel(bytes.NewReader(buf.Bytes()), 2)
	require.NoError(t, err)

	assert.Equal(t, label, Label2(got))
}

// Label2 strips the Size field so direct struct comparison ignores it.
func Label2(l section.Label) section.Label {
	l.Size = 0
	return l
}

func TestLabelVolumeMismatch(t *testing.T) {
	label := section.Label{Version: format.V2, Hostname: "h", Timezone: "z"}

	var buf bytes.Buffer
	_, err := section.WriteLabel(&buf, label)
	require.NoError(t, err)

	_, err = section.ReadLabel(bytes.NewReader(buf.Bytes()), 7)
	require.Error(t, err)
}

func TestLabelEmptyFile(t *testing.T) {
	_, err := section.ReadLabel(bytes.NewReader(nil), -1)
	require.Error(t, err)
}

func TestLabelBadMagic(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xFF}, 32)
	_, err := section.ReadLabel(bytes.NewReader(garbage), -1)
	require.Error(t, err)
}
