/* SPDX-License-Identifier: GPL-3.0-or-later
 *
 * waypaperd
 * Copyright (C) 2026 waypaperd contributors
 *
 * This file is part of waypaperd.
 *
 * waypaperd is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * waypaperd is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with waypaperd.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package convert implements the Converter (C3): it turns whatever the
// Decoder hands it — a hardware surface or a software planar frame —
// into a tightly packed BGRA buffer sized to the Presenter's output.
//
// The core of this is grounded on the teacher's bgraScaler in
// video.go: a lazily-created astiav.SoftwareScaleContext keyed off the
// first-observed input format, generalized here to also target an
// output size distinct from the input (the teacher always scaled to
// source size; we additionally scale to the compositor's chosen size).
package convert

import (
	"fmt"
	"log"

	astiav "github.com/asticode/go-astiav"

	"github.com/waypaperd/waypaperd/internal/pipeline"
)

// Converter holds the lazily-built scaler and cached dimensions. It is
// stateless between frames otherwise, and is owned exclusively by the
// Decoder task that drives it (no locking).
type Converter struct {
	ssc    *astiav.SoftwareScaleContext
	dst    *astiav.Frame
	srcW   int
	srcH   int
	srcPix astiav.PixelFormat
	outW   int
	outH   int

	mode pipeline.ScaleMode
}

// New creates a Converter targeting outW x outH with the given CPU
// scale-fallback mode.
func New(outW, outH int, mode pipeline.ScaleMode) *Converter {
	return &Converter{outW: outW, outH: outH, mode: mode}
}

// SetOutputSize updates the target dimensions (e.g. on a compositor
// output resize); the scaler is rebuilt lazily on the next frame.
func (c *Converter) SetOutputSize(w, h int) {
	if w == c.outW && h == c.outH {
		return
	}
	c.outW, c.outH = w, h
	c.closeScaler()
}

func (c *Converter) closeScaler() {
	if c.dst != nil {
		c.dst.Free()
		c.dst = nil
	}
	if c.ssc != nil {
		c.ssc.Free()
		c.ssc = nil
	}
}

// Close releases the scaler. Safe to call multiple times.
func (c *Converter) Close() { c.closeScaler() }

// isFastPath reports whether src is already BGRA at exactly the
// output size, letting the Converter skip the scaler entirely.
func (c *Converter) isFastPath(src *astiav.Frame) bool {
	return src.PixelFormat() == astiav.PixelFormatBgra &&
		src.Width() == c.outW && src.Height() == c.outH
}

func (c *Converter) ensureScaler(src *astiav.Frame) error {
	sw, sh := src.Width(), src.Height()
	sp := src.PixelFormat()

	if c.ssc != nil && sw == c.srcW && sh == c.srcH && sp == c.srcPix {
		return nil
	}
	c.closeScaler()

	flags := astiav.NewSoftwareScaleContextFlags()
	ssc, err := astiav.CreateSoftwareScaleContext(
		sw, sh, sp,
		c.outW, c.outH, astiav.PixelFormatBgra,
		flags,
	)
	if err != nil {
		return fmt.Errorf("CreateSoftwareScaleContext(%dx%d %v -> %dx%d BGRA): %w", sw, sh, sp, c.outW, c.outH, err)
	}

	dst := astiav.AllocFrame()
	dst.SetWidth(c.outW)
	dst.SetHeight(c.outH)
	dst.SetPixelFormat(astiav.PixelFormatBgra)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		ssc.Free()
		return fmt.Errorf("dst.AllocBuffer: %w", err)
	}

	c.ssc = ssc
	c.dst = dst
	c.srcW, c.srcH, c.srcPix = sw, sh, sp
	return nil
}

// ToBGRA converts src (already in system memory — hardware transfer is
// the caller's job, see Decoder) into a tightly packed BGRA slice sized
// outW x outH, taking the fast path when possible and otherwise
// row-repacking whenever the scaler's own stride exceeds width*4.
func (c *Converter) ToBGRA(src *astiav.Frame) (w, h int, stride int, data []byte, err error) {
	if c.isFastPath(src) {
		return fastCopy(src)
	}

	if err := c.ensureScaler(src); err != nil {
		if w, h, stride, data, ok := c.cpuFallback(src); ok {
			log.Printf("convert: scaler unavailable (%v), using CPU %s fallback", err, c.mode)
			return w, h, stride, data, nil
		}
		return 0, 0, 0, nil, err
	}
	if err := c.ssc.ScaleFrame(src, c.dst); err != nil {
		if w, h, stride, data, ok := c.cpuFallback(src); ok {
			log.Printf("convert: ScaleFrame failed (%v), using CPU %s fallback", err, c.mode)
			return w, h, stride, data, nil
		}
		return 0, 0, 0, nil, fmt.Errorf("ScaleFrame: %w", err)
	}

	ls := c.dst.Linesize()
	wantStride := c.outW * 4
	if len(ls) > 0 && ls[0] == wantStride {
		n, err := c.dst.ImageBufferSize(1)
		if err != nil {
			return 0, 0, 0, nil, fmt.Errorf("ImageBufferSize: %w", err)
		}
		out := make([]byte, n)
		if _, err := c.dst.ImageCopyToBuffer(out, 1); err != nil {
			return 0, 0, 0, nil, fmt.Errorf("ImageCopyToBuffer: %w", err)
		}
		return c.outW, c.outH, wantStride, out, nil
	}

	// Scaler's line stride is wider than width*4 (alignment padding):
	// repack row by row into a tight buffer. Never per-pixel.
	rowBytes, err := c.dst.Data().Bytes(0)
	if err != nil {
		return 0, 0, 0, nil, fmt.Errorf("Data().Bytes(0): %w", err)
	}
	srcStride := ls[0]
	out := make([]byte, wantStride*c.outH)
	for row := 0; row < c.outH; row++ {
		srcOff := row * srcStride
		dstOff := row * wantStride
		copy(out[dstOff:dstOff+wantStride], rowBytes[srcOff:srcOff+wantStride])
	}
	return c.outW, c.outH, wantStride, out, nil
}

// cpuFallback uses the NearestNeighbor scaler (scale.go) when the
// astiav software scaler itself is unavailable or fails. It only
// applies when src is already BGRA (no colorspace conversion needed,
// only resampling) — a non-BGRA source with no working scaler has no
// path to BGRA and still returns the original error to the caller.
func (c *Converter) cpuFallback(src *astiav.Frame) (w, h, stride int, data []byte, ok bool) {
	if src.PixelFormat() != astiav.PixelFormatBgra {
		return 0, 0, 0, nil, false
	}
	srcW, srcH, _, srcData, err := fastCopy(src)
	if err != nil {
		return 0, 0, 0, nil, false
	}
	out := NearestNeighbor(srcData, srcW, srcH, c.outW, c.outH, c.mode)
	return c.outW, c.outH, c.outW * 4, out, true
}

func fastCopy(src *astiav.Frame) (w, h, stride int, data []byte, err error) {
	w, h = src.Width(), src.Height()
	stride = w * 4
	n, err := src.ImageBufferSize(1)
	if err != nil {
		return 0, 0, 0, nil, fmt.Errorf("ImageBufferSize: %w", err)
	}
	out := make([]byte, n)
	if _, err := src.ImageCopyToBuffer(out, 1); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("ImageCopyToBuffer: %w", err)
	}
	return w, h, stride, out, nil
}
