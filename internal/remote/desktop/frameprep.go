package desktop

import (
	"errors"
	"sync"
)

// ErrInvalidFrame is returned by PrepareFrame when the captured buffer's
// stated dimensions don't fit the pixel data it was handed — a short row, a
// truncated buffer, or a zero-sized capture. The capture thread (§4.6) treats
// this the same as a would-block: skip the frame, keep the loop running.
var ErrInvalidFrame = errors.New("desktop: invalid captured frame")

// PreparedFrame is the BGRA buffer the encoder pipeline consumes: tightly
// packed (stride == width*4) and cropped to even width/height, since VP8/VP9
// require even chroma-subsampled dimensions.
type PreparedFrame struct {
	Pix    []byte
	Width  int
	Height int
}

var preparedBufPool = sync.Pool{
	New: func() any { return new([]byte) },
}

// PrepareFrame crops a CapturedFrame to even dimensions and repacks its rows
// into a tightly-packed buffer, matching the original capture thread's
// `adjusted_width = width & !1` / `adjusted_height = height & !1` policy:
// screen dimensions are occasionally odd (e.g. after a DPI-scaled crop), and
// the VP8/VP9 4:2:0 chroma planes require even width and height.
func PrepareFrame(frame *CapturedFrame) (*PreparedFrame, error) {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, ErrInvalidFrame
	}

	adjustedWidth := frame.Width &^ 1
	adjustedHeight := frame.Height &^ 1
	if adjustedWidth == 0 || adjustedHeight == 0 {
		return nil, ErrInvalidFrame
	}

	rowBytes := adjustedWidth * 4
	if frame.Stride < rowBytes {
		return nil, ErrInvalidFrame
	}
	if len(frame.Pix) < frame.Stride*(adjustedHeight-1)+rowBytes {
		return nil, ErrInvalidFrame
	}

	bufPtr := preparedBufPool.Get().(*[]byte)
	buf := *bufPtr
	need := rowBytes * adjustedHeight
	if cap(buf) < need {
		buf = make([]byte, need)
	} else {
		buf = buf[:need]
	}

	if frame.Stride == rowBytes {
		copy(buf, frame.Pix[:need])
	} else {
		for y := 0; y < adjustedHeight; y++ {
			srcStart := y * frame.Stride
			dstStart := y * rowBytes
			copy(buf[dstStart:dstStart+rowBytes], frame.Pix[srcStart:srcStart+rowBytes])
		}
	}

	return &PreparedFrame{Pix: buf, Width: adjustedWidth, Height: adjustedHeight}, nil
}

// ReleasePreparedFrame returns the frame's buffer to the pool. Callers must
// not use pf after calling this.
func ReleasePreparedFrame(pf *PreparedFrame) {
	if pf == nil {
		return
	}
	buf := pf.Pix
	preparedBufPool.Put(&buf)
}
