package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvarch/palog/format"
	"github.com/kvarch/palog/record"
)

func TestTimestampRoundTripV2(t *testing.T) {
	payload := record.JoinTimestamp(1700000000, 500_000_000, []byte("tail"), format.V2)

	sec, nsec, tail, err := record.SplitTimestamp(payload, format.V2)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), sec)
	assert.Equal(t, int32(500_000_000), nsec) // usec precision preserved within a single encode cycle
	assert.Equal(t, []byte("tail"), tail)
}

func TestTimestampRoundTripV3(t *testing.T) {
	payload := record.JoinTimestamp(1700000000, 123456789, []byte("tail"), format.V3)

	sec, nsec, tail, err := record.SplitTimestamp(payload, format.V3)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), sec)
	assert.Equal(t, int32(123456789), nsec)
	assert.Equal(t, []byte("tail"), tail)
}

func TestAddMillisCarriesSeconds(t *testing.T) {
	sec, nsec := record.AddMillis(100, 999_500_000, 1)
	assert.Equal(t, int64(101), sec)
	assert.Equal(t, int32(500_000), nsec)
}

func TestAddMillisBorrowsOnNegative(t *testing.T) {
	sec, nsec := record.AddMillis(100, 200_000, -1)
	assert.Equal(t, int64(99), sec)
	assert.Equal(t, int32(999_200_000), nsec)
}

func TestCompareLexicographic(t *testing.T) {
	assert.Equal(t, -1, record.Compare(1, 0, 2, 0))
	assert.Equal(t, 1, record.Compare(1, 5, 1, 2))
	assert.Equal(t, 0, record.Compare(1, 5, 1, 5))
}
