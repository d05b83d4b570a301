package desktop

import "testing"

func newDummyFrameEncoder() *FrameEncoder {
	return &FrameEncoder{dummy: true, codec: CodecVP8, quality: 1.0, width: 1920, height: 1080}
}

func TestFrameEncoder_DummyModeEmitsFixedMarker(t *testing.T) {
	fe := newDummyFrameEncoder()
	payload, err := fe.Encode(nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payload) != 100 {
		t.Fatalf("expected 100-byte dummy marker, got %d bytes", len(payload))
	}
	if fe.FrameCount() != 1 {
		t.Fatalf("expected frame count to increment in dummy mode, got %d", fe.FrameCount())
	}
}

func TestFrameEncoder_IsKeyframeVP8LowBitClear(t *testing.T) {
	keyframe := []byte{0x10, 0x00, 0x00}
	interframe := []byte{0x11, 0x00, 0x00}
	if !isKeyframeFromPayload(CodecVP8, keyframe) {
		t.Fatalf("expected low-bit-clear payload to be detected as keyframe")
	}
	if isKeyframeFromPayload(CodecVP8, interframe) {
		t.Fatalf("expected low-bit-set payload to not be detected as keyframe")
	}
}

func TestFrameEncoder_IsKeyframeVP8ShortPayloadIsFalse(t *testing.T) {
	if isKeyframeFromPayload(CodecVP8, []byte{0x10}) {
		t.Fatalf("expected short payload to not be treated as keyframe")
	}
}

func TestFrameEncoder_IsKeyframeH264NALType5(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0x00, 0x00, 0x00, 0x01, 0x65, 0xCC}
	if !isKeyframeFromPayload(CodecH264, data) {
		t.Fatalf("expected NAL type 5 to be detected as keyframe")
	}
}

func TestFrameEncoder_IsKeyframeH264NoStartCode(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	if isKeyframeFromPayload(CodecH264, data) {
		t.Fatalf("expected no start code to mean no keyframe")
	}
}

func TestFrameEncoder_YUVTargetHalvedBelow1080P(t *testing.T) {
	fe := &FrameEncoder{width: 1280, height: 720}
	if got := fe.yuvTargetForResolution(); got != maxFrameSize1080P/2 {
		t.Fatalf("expected halved target for sub-1080p, got %d", got)
	}
	fe.width, fe.height = 1920, 1080
	if got := fe.yuvTargetForResolution(); got != maxFrameSize1080P {
		t.Fatalf("expected full target at 1080p, got %d", got)
	}
}

func TestFrameEncoder_ShouldAdjustQualityRequiresFullHistory(t *testing.T) {
	fe := &FrameEncoder{width: 1920, height: 1080}
	fe.recordFrameSize(maxFrameSize1080P * 4)
	if _, ok := fe.shouldAdjustQuality(maxFrameSize1080P); ok {
		t.Fatalf("expected no adjustment before history fills")
	}
}

func TestFrameEncoder_ShouldAdjustQualityLargeAverageDegrades(t *testing.T) {
	fe := &FrameEncoder{width: 1920, height: 1080}
	target := maxFrameSize1080P
	for i := 0; i < frameSizeHistoryLen; i++ {
		fe.recordFrameSize(target * 4)
	}
	delta, ok := fe.shouldAdjustQuality(target)
	if !ok || delta != -0.3 {
		t.Fatalf("expected -0.3 adjustment for avg > 3x target, got delta=%v ok=%v", delta, ok)
	}
}

func TestFrameEncoder_ShouldAdjustQualitySmallAverageUpgrades(t *testing.T) {
	fe := &FrameEncoder{width: 1920, height: 1080}
	target := maxFrameSize1080P
	for i := 0; i < frameSizeHistoryLen; i++ {
		fe.recordFrameSize(target / 10)
	}
	delta, ok := fe.shouldAdjustQuality(target)
	if !ok || delta != 0.1 {
		t.Fatalf("expected +0.1 adjustment for small average, got delta=%v ok=%v", delta, ok)
	}
}

func TestFrameEncoder_ShouldAdjustQualityMidRangeHolds(t *testing.T) {
	fe := &FrameEncoder{width: 1920, height: 1080}
	target := maxFrameSize1080P
	for i := 0; i < frameSizeHistoryLen; i++ {
		fe.recordFrameSize(target)
	}
	if _, ok := fe.shouldAdjustQuality(target); ok {
		t.Fatalf("expected no adjustment when average tracks target")
	}
}

func TestFrameEncoder_ClampQuality(t *testing.T) {
	if got := clampQuality(0.0); got != 0.1 {
		t.Fatalf("expected floor 0.1, got %v", got)
	}
	if got := clampQuality(10.0); got != 4.0 {
		t.Fatalf("expected ceiling 4.0, got %v", got)
	}
}

func TestFrameEncoder_ForceKeyframeSetsFlag(t *testing.T) {
	fe := newDummyFrameEncoder()
	fe.ForceKeyframe()
	if !fe.forceNextKeyframe {
		t.Fatalf("expected forceNextKeyframe to be set")
	}
}
