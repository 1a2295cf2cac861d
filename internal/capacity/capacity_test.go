package capacity

import "testing"

func TestLoadClampedAndZeroAtStart(t *testing.T) {
	tr := New(10, 1000)
	if got := tr.Load(); got != 0 {
		t.Errorf("Load() = %v, want 0", got)
	}
	if tr.ClaimDelayMS() != 0 {
		t.Errorf("ClaimDelayMS() = %d, want 0 when idle", tr.ClaimDelayMS())
	}
}

func TestClaimDelayScalesWithLoad(t *testing.T) {
	tr := New(10, 1000)
	for i := 0; i < 5; i++ {
		tr.IncrementMatches()
	}
	if got := tr.ClaimDelayMS(); got != 500 {
		t.Errorf("ClaimDelayMS() at 50%% load = %d, want 500", got)
	}
}

func TestClaimDelayCapsAtMaxWhenOverCapacity(t *testing.T) {
	tr := New(2, 1000)
	for i := 0; i < 5; i++ {
		tr.IncrementMatches()
	}
	if got := tr.ClaimDelayMS(); got != 1000 {
		t.Errorf("ClaimDelayMS() over capacity = %d, want capped at 1000", got)
	}
}

func TestCanAcceptWorkFalseAtCapacity(t *testing.T) {
	tr := New(2, 1000)
	tr.IncrementMatches()
	tr.IncrementRooms()
	if tr.CanAcceptWork() {
		t.Fatal("expected CanAcceptWork false at capacity")
	}
}

func TestDecrementSaturatesAtZero(t *testing.T) {
	tr := New(10, 1000)
	tr.DecrementMatches()
	tr.DecrementRooms()
	snap := tr.Snapshot()
	if snap.ActiveMatches != 0 || snap.ActiveRooms != 0 {
		t.Errorf("expected counters to saturate at zero, got %+v", snap)
	}
}

func TestSnapshotFields(t *testing.T) {
	tr := New(4, 1000)
	tr.IncrementMatches()
	tr.IncrementRooms()
	snap := tr.Snapshot()

	if snap.TotalActive != 2 {
		t.Errorf("TotalActive = %d, want 2", snap.TotalActive)
	}
	if snap.MaxCapacity != 4 {
		t.Errorf("MaxCapacity = %d, want 4", snap.MaxCapacity)
	}
	if snap.LoadPercentage != 50 {
		t.Errorf("LoadPercentage = %v, want 50", snap.LoadPercentage)
	}
}

func TestZeroMaxCapacityTreatedAsFull(t *testing.T) {
	tr := New(0, 1000)
	if tr.Load() != 1 {
		t.Errorf("Load() with zero capacity = %v, want 1 (always full)", tr.Load())
	}
	if tr.CanAcceptWork() {
		t.Fatal("expected CanAcceptWork false when max capacity is zero")
	}
}
