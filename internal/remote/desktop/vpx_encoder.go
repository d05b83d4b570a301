package desktop

import (
	"fmt"
	"sync"

	"github.com/xlab/libvpx-go/vpx"
)

// maxFrameSize1080P is the per-frame byte budget the quality regulator
// targets at 1080p and above; sub-1080p resolutions use half of it. It is
// not a hard cap on its own — oversizeDropMultiple below is.
const maxFrameSize1080P = 200 * 1024

// oversizeDropMultiple: a frame larger than this multiple of the target is
// dropped outright instead of being delivered, to keep the downstream
// bridger from building an unbounded backlog.
const oversizeDropMultiple = 2

const frameSizeHistoryLen = 20

// PlaneLayout describes strides and plane offsets for the raw input a
// FrameEncoder expects, per §4.3's yuv_format().
type PlaneLayout struct {
	Width, Height int
	YStride       int
	UStride       int
	VStride       int
}

// FrameEncoder is the §4.3 codec wrapper: cascading construction fallback,
// dummy mode, panic-boundary encode, keyframe byte-parsing, and 20-entry
// frame-size-history quality self-regulation.
type FrameEncoder struct {
	mu sync.Mutex

	codec   Codec
	width   int
	height  int
	quality float64 // current target ratio, [0.1, 4.0]
	fps     int

	dummy bool
	ctx   *vpxEncodeContext

	forceNextKeyframe bool
	lastWasKeyframe   bool
	frameCount        int
	skippedFrames     int

	history      [frameSizeHistoryLen]int
	historyLen   int
	historyNext  int
}

// vpxEncodeContext wraps the native libvpx-go encoder handle for one of the
// codec/quality combinations tried during construction.
type vpxEncodeContext struct {
	iface    *vpx.CodecIface
	rawImage *vpx.Image
	codecCtx vpx.CodecCtx
	codec    Codec
	quality  float64
	fps      int
}

// NewFrameEncoder tries, in order: the requested codec at the requested
// quality; VP8 at 0.8x quality; VP9 at default quality; VP8 at minimum
// quality and 15fps; and finally dummy mode, which never fails.
func NewFrameEncoder(codec Codec, width, height int, quality float64, fps int) *FrameEncoder {
	fe := &FrameEncoder{width: width, height: height, fps: fps}

	attempts := []struct {
		codec   Codec
		quality float64
		fps     int
	}{
		{codec, quality, fps},
		{CodecVP8, clampQuality(quality * 0.8), fps},
		{CodecVP9, 1.0, fps},
		{CodecVP8, 0.1, 15},
	}

	for _, a := range attempts {
		ctx, err := newVpxEncodeContext(a.codec, width, height, a.quality, a.fps)
		if err == nil {
			fe.ctx = ctx
			fe.codec = ctx.codec
			fe.quality = a.quality
			fe.fps = a.fps
			return fe
		}
	}

	fe.dummy = true
	fe.codec = codec
	fe.quality = quality
	return fe
}

func newVpxEncodeContext(codec Codec, width, height int, quality float64, fps int) (ctx *vpxEncodeContext, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx, err = nil, fmt.Errorf("vpx init panic: %v", r)
		}
	}()

	var iface *vpx.CodecIface
	switch codec {
	case CodecVP9:
		iface = vpx.EncoderIfaceVP9()
	case CodecVP8:
		iface = vpx.EncoderIfaceVP8()
	default:
		iface = vpx.EncoderIfaceVP8()
		codec = CodecVP8
	}
	if width <= 0 || height <= 0 || width > 4096 || height > 4096 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}

	var cfg vpx.CodecEncCfg
	if rc := vpx.CodecEncConfigDefault(iface, &cfg, 0); rc != vpx.CodecOk {
		return nil, fmt.Errorf("vpx default config: %v", rc)
	}
	cfg.GW = uint32(width)
	cfg.GH = uint32(height)
	cfg.RcTargetBitrate = uint32(bitrateForQuality(width, height, quality))
	cfg.GTimebase.Num = 1
	cfg.GTimebase.Den = uint32(fps)

	var codecCtx vpx.CodecCtx
	if rc := vpx.CodecEncInit(&codecCtx, iface, &cfg, 0); rc != vpx.CodecOk {
		return nil, fmt.Errorf("vpx enc init: %v", rc)
	}

	img := vpx.ImageAlloc(nil, vpx.ImgFmtI420, uint32(width), uint32(height), 1)
	if img == nil {
		return nil, fmt.Errorf("vpx image alloc failed")
	}

	return &vpxEncodeContext{iface: iface, rawImage: img, codecCtx: codecCtx, codec: codec, quality: quality, fps: fps}, nil
}

// bitrateForQuality derives a VBR target bitrate in kbps from a quality
// ratio, scaled by pixel count; quality 1.0 targets roughly 2.5Mbps at 1080p.
func bitrateForQuality(width, height int, quality float64) int {
	pixels := float64(width * height)
	base := pixels / (1920 * 1080) * 2500
	bitrateKbps := int(base * quality)
	if bitrateKbps < 64 {
		bitrateKbps = 64
	}
	return bitrateKbps
}

func clampQuality(q float64) float64 {
	if q < 0.1 {
		return 0.1
	}
	if q > 4.0 {
		return 4.0
	}
	return q
}

// IsDummy reports whether the encoder is in dummy mode (all construction
// attempts failed).
func (fe *FrameEncoder) IsDummy() bool {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.dummy
}

// Codec returns the active codec (the requested codec in dummy mode, since
// no real encoding takes place).
func (fe *FrameEncoder) Codec() Codec {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.codec
}

// FrameCount returns how many encode calls have succeeded in producing an
// output payload (dummy-mode markers count).
func (fe *FrameEncoder) FrameCount() int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.frameCount
}

// SkippedFrames returns the count of frames dropped for being oversize.
func (fe *FrameEncoder) SkippedFrames() int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.skippedFrames
}

// WasLastFrameKeyframe reports the byte-level parse result of the most
// recently emitted payload.
func (fe *FrameEncoder) WasLastFrameKeyframe() bool {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastWasKeyframe
}

// ForceKeyframe requests the next encode call produce a keyframe. Whether
// it actually does is only known by parsing the emitted payload.
func (fe *FrameEncoder) ForceKeyframe() {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.forceNextKeyframe = true
}

// SetQuality forwards a new target ratio to the native encoder and tracks
// it as the current quality.
func (fe *FrameEncoder) SetQuality(ratio float64) error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.quality = clampQuality(ratio)
	if fe.dummy || fe.ctx == nil {
		return nil
	}
	return fe.applyQualityLocked()
}

func (fe *FrameEncoder) applyQualityLocked() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vpx set quality panic: %v", r)
		}
	}()
	var cfg vpx.CodecEncCfg
	vpx.CodecEncConfigDefault(fe.ctx.iface, &cfg, 0)
	cfg.GW = uint32(fe.width)
	cfg.GH = uint32(fe.height)
	cfg.RcTargetBitrate = uint32(bitrateForQuality(fe.width, fe.height, fe.quality))
	if rc := vpx.CodecEncConfigSet(&fe.ctx.codecCtx, &cfg); rc != vpx.CodecOk {
		return fmt.Errorf("vpx config set: %v", rc)
	}
	return nil
}

// yuvTargetForResolution returns the per-frame size target (§4.3): 200KB at
// 1080p and above, halved below.
func (fe *FrameEncoder) yuvTargetForResolution() int {
	if fe.width >= 1920 || fe.height >= 1080 {
		return maxFrameSize1080P
	}
	return maxFrameSize1080P / 2
}

// Encode feeds one I420 frame to the encoder and returns zero or one output
// payload. A nil payload with a nil error means the codec produced no data
// this tick — normal for static screens. Every underlying call runs under a
// panic boundary so a native crash degrades to "skip this frame".
func (fe *FrameEncoder) Encode(i420 []byte, timestampMs int64) (payload []byte, err error) {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.dummy || fe.ctx == nil {
		fe.frameCount++
		return make([]byte, 100), nil
	}

	defer func() {
		if r := recover(); r != nil {
			payload, err = nil, nil
		}
	}()

	forceKF := fe.forceNextKeyframe || fe.frameCount == 0
	var flags vpx.CodecEncFrameFlagsT
	if forceKF {
		flags = vpx.CodecFrameForceKf
	}

	pts := vpx.CodecPtsT(timestampMs)
	if rc := vpx.CodecEncode(&fe.ctx.codecCtx, fe.ctx.rawImage, pts, vpx.CodecPtsT(1), flags, uint(vpx.DlRealtime)); rc != vpx.CodecOk {
		return nil, nil
	}

	var iter vpx.CodecIter
	pkt := vpx.CodecGetCxData(&fe.ctx.codecCtx, &iter)
	if pkt == nil || pkt.Kind != vpx.CodecCxFramePkt {
		return nil, nil
	}

	data := pkt.Data.Frame.Buf
	if len(data) == 0 {
		return nil, nil
	}

	out := make([]byte, len(data))
	copy(out, data)

	fe.lastWasKeyframe = isKeyframeFromPayload(fe.codec, out)
	if fe.lastWasKeyframe {
		fe.forceNextKeyframe = false
	}
	fe.frameCount++

	target := fe.yuvTargetForResolution()
	frameSize := len(out)

	if frameSize > target*oversizeDropMultiple {
		fe.skippedFrames++
		return nil, nil
	}
	if frameSize > target {
		newQuality := fe.quality - 0.1
		if newQuality < 0.1+0.1 {
			newQuality = 0.1 + 0.1
		}
		fe.quality = newQuality
		_ = fe.applyQualityLocked()
	}

	fe.recordFrameSize(frameSize)
	if delta, ok := fe.shouldAdjustQuality(target); ok {
		newQuality := clampQuality(fe.quality + delta)
		if abs64(newQuality-fe.quality) > 0.05 {
			fe.quality = newQuality
			_ = fe.applyQualityLocked()
		}
	}

	return out, nil
}

func (fe *FrameEncoder) recordFrameSize(size int) {
	fe.history[fe.historyNext] = size
	fe.historyNext = (fe.historyNext + 1) % frameSizeHistoryLen
	if fe.historyLen < frameSizeHistoryLen {
		fe.historyLen++
	}
}

// shouldAdjustQuality implements §4.3's quality self-regulation: examine
// average size and the fraction of "large" frames (> 2x target) across the
// 20-entry history, returning a delta to apply.
func (fe *FrameEncoder) shouldAdjustQuality(target int) (float64, bool) {
	if fe.historyLen < frameSizeHistoryLen {
		return 0, false
	}
	var sum int
	var large int
	for i := 0; i < frameSizeHistoryLen; i++ {
		sum += fe.history[i]
		if fe.history[i] > 2*target {
			large++
		}
	}
	avg := float64(sum) / float64(frameSizeHistoryLen)
	largeFrac := float64(large) / float64(frameSizeHistoryLen)
	t := float64(target)

	switch {
	case avg > 3*t || largeFrac > 0.30:
		return -0.3, true
	case avg > 2*t || largeFrac > 0.20:
		return -0.2, true
	case avg > 1.5*t:
		return -0.1, true
	case avg < 0.5*t && largeFrac < 0.05:
		return 0.1, true
	default:
		return 0, false
	}
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Close releases the native encoder context, if one was ever created.
func (fe *FrameEncoder) Close() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	if fe.ctx == nil {
		return nil
	}
	vpx.CodecDestroy(&fe.ctx.codecCtx)
	fe.ctx = nil
	return nil
}

// isKeyframeFromPayload implements §4.3's was_last_frame_keyframe byte
// parse: VP8/VP9 check the low bit of the first byte; H264 scans for a
// 4-byte start code and checks NAL type 5. AV1 and any other codec always
// report false. The package defines no H265 codec, so there is no H265
// NAL check.
func isKeyframeFromPayload(codec Codec, data []byte) bool {
	switch codec {
	case CodecVP8, CodecVP9:
		if len(data) < 3 {
			return false
		}
		return data[0]&0x01 == 0
	case CodecH264:
		return scanForNALType(data, 5)
	case CodecAV1:
		return false
	default:
		return false
	}
}

func scanForNALType(data []byte, targetH264Type byte) bool {
	for i := 0; i+4 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 1 {
			nalType := data[i+4] & 0x1F
			if nalType == targetH264Type {
				return true
			}
		}
	}
	return false
}
