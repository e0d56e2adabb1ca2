package convert

import (
	"testing"

	"github.com/waypaperd/waypaperd/internal/pipeline"
)

func solidFrame(w, h int, b, g, r, a byte) []byte {
	buf := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		buf[i*4+0] = b
		buf[i*4+1] = g
		buf[i*4+2] = r
		buf[i*4+3] = a
	}
	return buf
}

func TestNearestNeighborOutputSize(t *testing.T) {
	src := solidFrame(4, 4, 1, 2, 3, 4)
	for _, mode := range []pipeline.ScaleMode{pipeline.ScaleCrop, pipeline.ScaleFit, pipeline.ScaleNone} {
		out := NearestNeighbor(src, 4, 4, 8, 6, mode)
		if len(out) != 8*6*4 {
			t.Fatalf("mode %v: got %d bytes, want %d", mode, len(out), 8*6*4)
		}
	}
}

func TestNearestNeighborCropFillsEveryPixel(t *testing.T) {
	src := solidFrame(10, 10, 9, 8, 7, 6)
	out := NearestNeighbor(src, 10, 10, 20, 5, pipeline.ScaleCrop)
	for i := 0; i < len(out); i += 4 {
		if out[i] != 9 || out[i+1] != 8 || out[i+2] != 7 || out[i+3] != 6 {
			t.Fatalf("crop mode left an unfilled pixel at offset %d: %v", i, out[i:i+4])
		}
	}
}

func TestNearestNeighborNoneCentersWithoutScaling(t *testing.T) {
	src := solidFrame(2, 2, 1, 1, 1, 1)
	out := NearestNeighbor(src, 2, 2, 6, 6, pipeline.ScaleNone)
	// center 2x2 block should be at (2,2)-(3,3)
	centerOff := (2*6 + 2) * 4
	if out[centerOff] != 1 {
		t.Fatalf("expected source pixel centered at (2,2), got %v", out[centerOff:centerOff+4])
	}
	// corner should remain black (zero)
	if out[0] != 0 {
		t.Fatalf("expected letterboxed corner to be black, got %v", out[0:4])
	}
}

func TestNearestNeighborFitLetterboxes(t *testing.T) {
	src := solidFrame(4, 2, 5, 5, 5, 5)
	out := NearestNeighbor(src, 4, 2, 4, 4, pipeline.ScaleFit)
	// top row should be letterboxed black; middle rows should contain source color.
	if out[0] != 0 {
		t.Fatalf("expected top row letterboxed black, got %v", out[0:4])
	}
}
