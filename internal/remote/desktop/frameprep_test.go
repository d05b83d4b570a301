package desktop

import "testing"

func makeCapturedFrame(width, height, stride int) *CapturedFrame {
	pix := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pix[y*stride+x*4] = byte(x % 256)
		}
	}
	return &CapturedFrame{Pix: pix, Stride: stride, Width: width, Height: height}
}

func TestPrepareFrame_EvenDimensionsPassThroughUnchanged(t *testing.T) {
	frame := makeCapturedFrame(64, 48, 64*4)
	pf, err := PrepareFrame(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pf.Width != 64 || pf.Height != 48 {
		t.Fatalf("expected 64x48, got %dx%d", pf.Width, pf.Height)
	}
}

func TestPrepareFrame_OddWidthAndHeightAreCropped(t *testing.T) {
	frame := makeCapturedFrame(65, 49, 65*4)
	pf, err := PrepareFrame(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pf.Width != 64 || pf.Height != 48 {
		t.Fatalf("expected crop to 64x48, got %dx%d", pf.Width, pf.Height)
	}
}

func TestPrepareFrame_RepacksNonTightStride(t *testing.T) {
	frame := makeCapturedFrame(64, 48, 320) // padded stride
	pf, err := PrepareFrame(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pf.Pix) != 64*48*4 {
		t.Fatalf("expected tightly packed buffer, got %d bytes", len(pf.Pix))
	}
	// Second row should start immediately after the first in the output,
	// even though the source stride has padding.
	if pf.Pix[64*4] != 0 {
		t.Fatalf("expected row 1 x=0 pixel to be 0, got %d", pf.Pix[64*4])
	}
}

func TestPrepareFrame_RejectsNilAndEmpty(t *testing.T) {
	if _, err := PrepareFrame(nil); err != ErrInvalidFrame {
		t.Fatalf("expected ErrInvalidFrame for nil, got %v", err)
	}
	if _, err := PrepareFrame(&CapturedFrame{Width: 0, Height: 10}); err != ErrInvalidFrame {
		t.Fatalf("expected ErrInvalidFrame for zero width, got %v", err)
	}
}

func TestPrepareFrame_RejectsShortBuffer(t *testing.T) {
	frame := &CapturedFrame{Pix: make([]byte, 10), Stride: 256, Width: 64, Height: 48}
	if _, err := PrepareFrame(frame); err != ErrInvalidFrame {
		t.Fatalf("expected ErrInvalidFrame for truncated buffer, got %v", err)
	}
}

func TestPrepareFrame_SingleRowOddDimensionIsRejected(t *testing.T) {
	// 1x1 crops to 0x0 — must be rejected, not silently produce an empty frame.
	frame := makeCapturedFrame(1, 1, 4)
	if _, err := PrepareFrame(frame); err != ErrInvalidFrame {
		t.Fatalf("expected ErrInvalidFrame for degenerate crop, got %v", err)
	}
}
