package desktop

import "testing"

func TestQoS_RTTCalculatorNeedsMinSamples(t *testing.T) {
	var r rttCalculator
	for i := 0; i < 9; i++ {
		r.add(100)
	}
	if _, ok := r.smoothedMin(); ok {
		t.Fatalf("expected no RTT estimate before 10 samples")
	}
	r.add(100)
	if _, ok := r.smoothedMin(); !ok {
		t.Fatalf("expected RTT estimate once 10 samples are present")
	}
}

func TestQoS_RTTCalculatorFullWindowBlends(t *testing.T) {
	var r rttCalculator
	for i := 0; i < rttWindowSize; i++ {
		r.add(50)
	}
	got, ok := r.smoothedMin()
	if !ok || got != 50 {
		t.Fatalf("expected smoothed value 50 for uniform samples, got %d ok=%v", got, ok)
	}
}

func TestQoS_ConnectSeedsCandidateAtMinFPS(t *testing.T) {
	q := NewQoSController(nil, 1920, 1080)
	q.Connect("u1", ProfileBalanced)
	q.mu.Lock()
	fps := q.users["u1"].candidateFPS
	q.mu.Unlock()
	if fps != 10 {
		t.Fatalf("expected initial candidate FPS 10 for Balanced, got %d", fps)
	}
}

func TestQoS_LowDelayIncrementsFPSTowardNormal(t *testing.T) {
	q := NewQoSController(nil, 1920, 1080)
	q.Connect("u1", ProfileBalanced)

	// Push past the 1s new-connection cap by backdating connectedAt.
	q.mu.Lock()
	q.users["u1"].connectedAt = q.users["u1"].connectedAt.Add(-2 * 1e9)
	q.mu.Unlock()

	for i := 0; i < 2; i++ {
		q.ReportDelay("u1", 10)
	}
	q.mu.Lock()
	fps := q.users["u1"].candidateFPS
	q.mu.Unlock()
	if fps <= 10 {
		t.Fatalf("expected FPS to climb above initial 10 on low delay, got %d", fps)
	}
}

func TestQoS_UnknownUserIsIgnored(t *testing.T) {
	q := NewQoSController(nil, 1920, 1080)
	// Should not panic on an unregistered user.
	q.ReportDelay("ghost", 10)
}

func TestQoS_FinalFPSIsMinimumAcrossUsers(t *testing.T) {
	q := NewQoSController(nil, 1920, 1080)
	q.Connect("fast", ProfileBest)
	q.Connect("slow", ProfileBest)
	q.mu.Lock()
	q.users["fast"].candidateFPS = 16
	q.users["slow"].candidateFPS = 9
	q.mu.Unlock()
	q.mu.Lock()
	q.recomputeFinalFPSLocked()
	final := q.currentFPS
	q.mu.Unlock()
	if final != 9 {
		t.Fatalf("expected final FPS to track the slowest user (9), got %d", final)
	}
}

func TestQoS_BitrateRatioLoopHoldsWhenNotVBR(t *testing.T) {
	q := NewQoSController(nil, 1920, 1080)
	q.Connect("u1", ProfileBest)
	q.AdjustBitrateRatio(300, true, false)
	if got := q.CurrentRatio(); got != ProfileBest.targetRatio() {
		t.Fatalf("expected ratio pinned to target when not VBR, got %v", got)
	}
}

func TestQoS_BitrateRatioLoopRampsUpOnLowDelayWhenDynamic(t *testing.T) {
	q := NewQoSController(nil, 1920, 1080)
	q.Connect("u1", ProfileBalanced)
	q.mu.Lock()
	q.currentRatio = 0.5
	q.mu.Unlock()

	q.AdjustBitrateRatio(30, true, true)
	if got := q.CurrentRatio(); got <= 0.5 {
		t.Fatalf("expected ratio to increase on low delay + dynamic, got %v", got)
	}
}

func TestQoS_BitrateRatioLoopDegradesOnHighDelay(t *testing.T) {
	q := NewQoSController(nil, 1920, 1080)
	q.Connect("u1", ProfileBalanced)
	q.mu.Lock()
	q.currentRatio = 0.6
	q.mu.Unlock()

	q.AdjustBitrateRatio(800, false, true)
	if got := q.CurrentRatio(); got >= 0.6 {
		t.Fatalf("expected ratio to decrease on high delay, got %v", got)
	}
}

// TestQoS_SustainedHighDelayRampsDownFPSAndRatio is the §8 ramp-down
// scenario: a user stuck at a high, unchanging network delay should see
// both feedback loops settle at their degraded floor rather than oscillate
// or recover, after enough samples/adjust calls to flush the 1s
// new-connection cap and the low-delay streak counters.
func TestQoS_SustainedHighDelayRampsDownFPSAndRatio(t *testing.T) {
	q := NewQoSController(nil, 1920, 1080)
	q.Connect("u1", ProfileBest)
	q.mu.Lock()
	q.users["u1"].connectedAt = q.users["u1"].connectedAt.Add(-2 * 1e9)
	q.mu.Unlock()

	const highDelayMs = 250
	for i := 0; i < 15; i++ {
		// Stay under the RTT calculator's 10-sample warmup: once its floor
		// tracks a constant delay, the FPS loop would see zero *relative*
		// delay and climb back up, masking the degradation this test wants.
		if i < 9 {
			q.ReportDelay("u1", highDelayMs)
		}
		q.AdjustBitrateRatio(highDelayMs, false, true)
	}

	minFPS, _ := ProfileBest.fpsBand()
	if got := q.CurrentFPS(); got > minFPS+1 {
		t.Fatalf("expected FPS to settle near the profile floor (%d), got %d", minFPS+1, got)
	}
	if got := q.CurrentRatio(); got >= ProfileBest.targetRatio() {
		t.Fatalf("expected ratio to degrade below the profile target (%v), got %v", ProfileBest.targetRatio(), got)
	}
}

func TestQoS_BitrateRatioClampsToBand(t *testing.T) {
	q := NewQoSController(nil, 1920, 1080)
	q.Connect("u1", ProfileLow)
	q.mu.Lock()
	q.currentRatio = 0.05
	q.mu.Unlock()

	q.AdjustBitrateRatio(10, true, true)
	if got := q.CurrentRatio(); got < 0.1 {
		t.Fatalf("expected ratio floor of 0.1 for Low profile, got %v", got)
	}
}
