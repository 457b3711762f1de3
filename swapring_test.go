package mlbench

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapRingPostThenClaim(t *testing.T) {
	ring := newSwapRing(4)
	tl := newThreadLog(nil, "test/1")

	ring.post(tl)

	claimed, pending, violated := ring.claim(0, uint64(len(ring.slots)))
	require.False(t, violated)
	require.False(t, pending)
	assert.Same(t, tl, claimed)

	// the slot must now hold a fresh writable marker for the next id.
	v := ring.slots[0].Load()
	assert.True(t, isWritable(v))
}

func TestSwapRingClaimBeforePostIsPending(t *testing.T) {
	ring := newSwapRing(4)

	// id 0 hasn't been posted to yet: claim must report pending, not violated.
	_, pending, violated := ring.claim(0, 4)
	assert.True(t, pending)
	assert.False(t, violated)
}

func TestSwapRingWrapsAroundSlots(t *testing.T) {
	ring := newSwapRing(2)
	tl1 := newThreadLog(nil, "a")
	tl2 := newThreadLog(nil, "b")
	tl3 := newThreadLog(nil, "c")

	ring.post(tl1) // id 0 -> slot 0
	ring.post(tl2) // id 1 -> slot 1

	got1, _, _ := ring.claim(0, 2)
	assert.Same(t, tl1, got1)
	got2, _, _ := ring.claim(1, 3)
	assert.Same(t, tl2, got2)

	ring.post(tl3) // id 2 -> slot 0, now vacated and re-marked writable(2)
	got3, _, _ := ring.claim(0, 4)
	assert.Same(t, tl3, got3)
}
