package desktop

import (
	"math"
	"sync"
	"time"
)

// QualityProfile selects the FPS/bitrate bands a connected viewer operates
// under. Custom behaves identically to Low for banding purposes.
type QualityProfile int

const (
	ProfileBest QualityProfile = iota
	ProfileBalanced
	ProfileLow
	ProfileCustom
)

func (p QualityProfile) fpsBand() (min, normal int) {
	switch p {
	case ProfileBest:
		return 8, 16
	case ProfileBalanced:
		return 10, 20
	default:
		return 12, 24
	}
}

// targetRatio is the baseline bitrate-ratio ceiling multiplier for a
// profile; the bitrate-ratio loop's "1.0 x target" max bound is relative to
// this.
func (p QualityProfile) targetRatio() float64 {
	switch p {
	case ProfileBest:
		return 1.0
	case ProfileBalanced:
		return 0.75
	default:
		return 0.5
	}
}

func (p QualityProfile) rank() int {
	switch p {
	case ProfileBest:
		return 3
	case ProfileBalanced:
		return 2
	default:
		return 1
	}
}

const rttWindowSize = 60
const rttMinSamples = 10

// rttCalculator is a per-user ring buffer of delay samples (§4.4): reports
// 0.5*global_min + 0.5*window_min once full, the global min once at least
// 10 samples are present, and nothing before that.
type rttCalculator struct {
	window    [rttWindowSize]int
	count     int
	next      int
	globalMin int
	haveAny   bool
}

func (r *rttCalculator) add(delayMs int) {
	r.window[r.next] = delayMs
	r.next = (r.next + 1) % rttWindowSize
	if r.count < rttWindowSize {
		r.count++
	}
	if !r.haveAny || delayMs < r.globalMin {
		r.globalMin = delayMs
		r.haveAny = true
	}
}

func (r *rttCalculator) smoothedMin() (int, bool) {
	if r.count == 0 {
		return 0, false
	}
	windowMin := r.window[0]
	for i := 1; i < r.count; i++ {
		if r.window[i] < windowMin {
			windowMin = r.window[i]
		}
	}
	if r.count >= rttWindowSize {
		return int(0.5*float64(r.globalMin) + 0.5*float64(windowMin)), true
	}
	if r.count >= rttMinSamples {
		return r.globalMin, true
	}
	return 0, false
}

const delayEWMAAlpha = 0.3

// userQoSState tracks one connected viewer's adaptive FPS state.
type userQoSState struct {
	profile       QualityProfile
	rtt           rttCalculator
	avgDelay      float64
	haveAvgDelay  bool
	prevDelay     float64
	candidateFPS  int
	lowStreak     int
	connectedAt   time.Time
}

// QoSController implements §4.4's two feedback loops: a per-sample FPS loop
// and a 3-second bitrate-ratio loop, both driven by delay samples named
// user_network_delay(user_id, delay_ms) in the original spec.
type QoSController struct {
	mu          sync.Mutex
	encoder     *FrameEncoder
	width       int
	height      int
	users       map[string]*userQoSState
	currentFPS  int
	currentRatio float64
	vbrReady    bool
}

func NewQoSController(encoder *FrameEncoder, width, height int) *QoSController {
	return &QoSController{
		encoder:      encoder,
		width:        width,
		height:       height,
		users:        make(map[string]*userQoSState),
		currentFPS:   16,
		currentRatio: 1.0,
	}
}

// Connect registers a new viewer under the given profile.
func (q *QoSController) Connect(userID string, profile QualityProfile) {
	q.mu.Lock()
	defer q.mu.Unlock()
	minFPS, normalFPS := profile.fpsBand()
	q.users[userID] = &userQoSState{
		profile:      profile,
		candidateFPS: minFPS,
		connectedAt:  time.Now(),
	}
	_ = normalFPS
}

// Disconnect removes a viewer from consideration.
func (q *QoSController) Disconnect(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.users, userID)
}

// ReportDelay feeds one user_network_delay sample and runs the per-sample
// FPS loop (§4.4).
func (q *QoSController) ReportDelay(userID string, delayMs int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	u, ok := q.users[userID]
	if !ok {
		return
	}
	u.rtt.add(delayMs)

	prevAvg := u.avgDelay
	if !u.haveAvgDelay {
		u.avgDelay = float64(delayMs)
		u.haveAvgDelay = true
	} else {
		u.avgDelay = delayEWMAAlpha*float64(delayMs) + (1-delayEWMAAlpha)*u.avgDelay
	}
	decreasing := u.haveAvgDelay && u.avgDelay < prevAvg

	adjusted := u.avgDelay
	if floor, ok := u.rtt.smoothedMin(); ok {
		adjusted -= float64(floor)
		if adjusted < 0 {
			adjusted = 0
		}
	}

	minFPS, normalFPS := u.profile.fpsBand()
	fps := u.candidateFPS

	switch {
	case adjusted < 50:
		u.lowStreak++
		if fps < normalFPS {
			fps++
		}
		if u.lowStreak >= 3 {
			fps += 5
			u.lowStreak = 0
		}
	case adjusted < 100:
		u.lowStreak = 0
		if decreasing && fps < normalFPS {
			fps++
		}
	case adjusted < 150:
		u.lowStreak = 0
		// hold
	case adjusted < 200:
		u.lowStreak = 0
		calc := int(math.Ceil(float64(fps) / (adjusted / 150)))
		if calc < minFPS {
			calc = minFPS
		}
		fps = calc
	case adjusted < 300:
		u.lowStreak = 0
		calc := int(math.Ceil(float64(fps) / (adjusted / 150)))
		if calc > minFPS {
			calc = minFPS
		}
		fps = calc
	case adjusted < 600:
		u.lowStreak = 0
		fps = int(150 * float64(minFPS) / adjusted)
	default:
		u.lowStreak = 0
		a := int(math.Ceil(float64(fps) / (adjusted / 150)))
		if a < minFPS {
			a = minFPS
		}
		b := int(150 * float64(minFPS) / adjusted)
		fps = a
		if b < fps {
			fps = b
		}
	}

	// A reported delay sample was just processed: clamp to the floor above
	// minFPS+1 so a single bad tick can't zero out the stream.
	if fps < minFPS+1 {
		fps = minFPS + 1
	}
	if time.Since(u.connectedAt) < time.Second && fps > 15 {
		fps = 15
	}
	if fps > normalFPS {
		fps = normalFPS
	}
	u.candidateFPS = fps
	u.prevDelay = u.avgDelay

	q.recomputeFinalFPSLocked()
}

func (q *QoSController) recomputeFinalFPSLocked() {
	if len(q.users) == 0 {
		return
	}
	final := math.MaxInt32
	var best QualityProfile = ProfileCustom
	haveBest := false
	for _, u := range q.users {
		if u.candidateFPS < final {
			final = u.candidateFPS
		}
		if !haveBest || u.profile.rank() > best.rank() {
			best = u.profile
			haveBest = true
		}
	}
	minFPS, normalFPS := best.fpsBand()
	final = clampInt(final, minFPS, normalFPS)
	q.currentFPS = final
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CurrentFPS returns the final FPS computed from the most recent sample.
func (q *QoSController) CurrentFPS() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentFPS
}

// highestProfileLocked returns the highest quality profile among connected
// users, defaulting to ProfileLow if none are connected.
func (q *QoSController) highestProfileLocked() QualityProfile {
	best := ProfileLow
	haveAny := false
	for _, u := range q.users {
		if !haveAny || u.profile.rank() > best.rank() {
			best = u.profile
			haveAny = true
		}
	}
	return best
}

// ratioEquivalent converts a target bitrate in kbps into the ratio that
// would produce it at the controller's resolution, inverting
// bitrateForQuality.
func (q *QoSController) ratioEquivalent(kbps int) float64 {
	pixels := float64(q.width * q.height)
	base := pixels / (1920 * 1080) * 2500
	if base <= 0 {
		return 0
	}
	return float64(kbps) / base
}

// AdjustBitrateRatio runs the §4.4 bitrate-ratio loop. maxDelayMs is the
// maximum across users of their windowed average delay; dynamic is true iff
// any display's interval send-counter has reached 6 (activity detected);
// vbrMode is true iff every display's encoder currently advertises mutable
// quality. Callers should invoke this roughly every 3 seconds.
func (q *QoSController) AdjustBitrateRatio(maxDelayMs float64, dynamic bool, vbrMode bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	profile := q.highestProfileLocked()
	target := profile.targetRatio()

	if !vbrMode {
		q.currentRatio = target
		if q.encoder != nil {
			_ = q.encoder.SetQuality(q.currentRatio)
		}
		return
	}

	var bandMin, bandMax float64
	switch profile {
	case ProfileBest:
		bandMin = math.Max(target/2.5, q.ratioEquivalent(1000))
		if bandMin < 0.2 {
			bandMin = 0.2
		}
		bandMax = 1.0 * target
	case ProfileBalanced:
		bandMin = math.Min(target/2, 0.4)
		if bandMin < 0.1 {
			bandMin = 0.1
		}
		bandMax = 1.0 * target
	default:
		bandMin = 0.1
		bandMax = 1.0 * target
	}

	var multiple float64
	switch {
	case maxDelayMs < 50:
		if dynamic {
			multiple = 1.15
		} else {
			multiple = 1.0
		}
	case maxDelayMs < 100:
		if dynamic {
			multiple = 1.10
		} else {
			multiple = 1.0
		}
	case maxDelayMs < 150:
		if dynamic {
			multiple = 1.05
		} else {
			multiple = 1.0
		}
	case maxDelayMs < 200:
		multiple = 0.95
	case maxDelayMs < 300:
		multiple = 0.90
	case maxDelayMs < 500:
		multiple = 0.85
	default:
		multiple = 0.80
	}

	proposed := q.currentRatio * multiple

	currentBitrateKbps := q.currentRatio * (float64(q.width*q.height) / (1920 * 1080) * 2500)
	ceilingRatio := q.ratioEquivalent(int(currentBitrateKbps) + 150)
	speedFloor := bandMin
	if proposed > ceilingRatio && ceilingRatio > q.currentRatio && q.currentRatio >= speedFloor {
		proposed = ceilingRatio
	}

	if proposed < bandMin {
		proposed = bandMin
	}
	if proposed > bandMax {
		proposed = bandMax
	}

	q.currentRatio = proposed
	if q.encoder != nil {
		_ = q.encoder.SetQuality(q.currentRatio)
	}
}

// CurrentRatio returns the most recently applied bitrate ratio.
func (q *QoSController) CurrentRatio() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentRatio
}
