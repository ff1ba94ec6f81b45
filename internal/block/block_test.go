package block

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lnrc/internal/lcg"
)

func TestCountFromRateIsAlwaysOdd(t *testing.T) {
	for _, rate := range []uint64{1, 7, 10000, 999999} {
		c := CountFromRate(rate)
		require.Greater(t, c, uint64(3))
		require.Equal(t, uint64(1), c&1)
	}
}

func TestNextPullsFreshSeedsWhenRingEmpty(t *testing.T) {
	r := NewRing(8, lcg.New(1, 1, 0))
	now := time.Now()

	slot1, b1 := r.Next(10000, now)
	slot2, b2 := r.Next(10000, now)

	require.NotEqual(t, slot1, slot2)
	require.Less(t, b1.Seed, b2.Seed)
}

func TestDeadBlockIsReusedBeforePullingFresh(t *testing.T) {
	r := NewRing(8, lcg.New(1, 1, 0))
	now := time.Now()

	slot, b := r.Next(10000, now)
	r.Assign(slot, 1, now)
	r.MarkDead(slot)

	reuseSlot, reused := r.Next(10000, now)
	require.Equal(t, slot, reuseSlot)
	require.Equal(t, b.Seed, reused.Seed)
}

func TestMarkDoneAdvancesTailAndAccumulatesCount(t *testing.T) {
	r := NewRing(8, lcg.New(1, 1, 0))
	now := time.Now()

	slot, _ := r.Next(10000, now)
	r.Assign(slot, 1, now)
	require.Zero(t, r.DoneCount())
	count, elapsed := r.MarkDone(slot, now.Add(5*time.Millisecond))
	require.Equal(t, CountFromRate(10000), r.DoneCount())
	require.Equal(t, CountFromRate(10000), count)
	require.Equal(t, 5*time.Millisecond, elapsed)
}

func TestScanTimeoutsMarksExpiredRunningBlocksDead(t *testing.T) {
	r := NewRing(8, lcg.New(1, 1, 0))
	now := time.Now()

	slot, _ := r.Next(10000, now)
	r.Assign(slot, 1, now.Add(-Timeout-time.Second))

	dead := r.ScanTimeouts(now)
	require.Contains(t, dead, slot)
	require.Equal(t, Dead, r.blocks[slot].State)
}
