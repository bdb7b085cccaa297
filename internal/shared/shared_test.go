package shared_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kvarch/palog/internal/shared"
)

func TestNoValueStubIsCachedByPMID(t *testing.T) {
	shared.ResetForTest()

	a := shared.NoValueStub(42)
	b := shared.NoValueStub(42)
	c := shared.NoValueStub(43)

	assert.Equal(t, uint32(42), a.PMID)
	assert.Empty(t, a.Values)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a.PMID, c.PMID)
}

func TestReadCounter(t *testing.T) {
	shared.ResetForTest()

	for i := 0; i < 5; i++ {
		shared.RecordRead()
	}

	assert.Equal(t, uint64(5), shared.ReadCount())
}

func TestOpenPathLockRoundTrips(t *testing.T) {
	unlock := shared.LockOpenPath()
	unlock()
}
