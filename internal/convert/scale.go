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

package convert

import "github.com/waypaperd/waypaperd/internal/pipeline"

// NearestNeighbor implements the optional CPU scale fallback used when
// no astiav scaler is available (e.g. unit tests, or a degraded path).
// src is tightly packed BGRA (srcStride == srcW*4); the result is
// tightly packed BGRA sized dstW x dstH.
func NearestNeighbor(src []byte, srcW, srcH int, dstW, dstH int, mode pipeline.ScaleMode) []byte {
	out := make([]byte, dstW*dstH*4)

	switch mode {
	case ScaleModeFit:
		nearestFit(src, srcW, srcH, out, dstW, dstH)
	case ScaleModeNone:
		nearestNone(src, srcW, srcH, out, dstW, dstH)
	default:
		nearestCrop(src, srcW, srcH, out, dstW, dstH)
	}
	return out
}

// package-local aliases of pipeline.ScaleCrop, pipeline.ScaleFit and
// pipeline.ScaleNone
const (
	ScaleModeCrop = pipeline.ScaleCrop
	ScaleModeFit  = pipeline.ScaleFit
	ScaleModeNone = pipeline.ScaleNone
)

// nearestCrop covers the destination, cropping overflow: with sx, sy as
// source pixels per destination pixel, it selects scale = min(sx, sy)
// (the larger magnification) and centers the source window.
func nearestCrop(src []byte, srcW, srcH int, dst []byte, dstW, dstH int) {
	sx := float64(srcW) / float64(dstW)
	sy := float64(srcH) / float64(dstH)
	scale := sx
	if sy < scale {
		scale = sy
	}
	// the visible source window is scale*dstW x scale*dstH, centered
	winW := scale * float64(dstW)
	winH := scale * float64(dstH)
	offX := (float64(srcW) - winW) / 2
	offY := (float64(srcH) - winH) / 2

	for y := 0; y < dstH; y++ {
		sy := int(offY + float64(y)*scale)
		sy = clampInt(sy, 0, srcH-1)
		for x := 0; x < dstW; x++ {
			sx := int(offX + float64(x)*scale)
			sx = clampInt(sx, 0, srcW-1)
			copyPixel(src, srcW, sx, sy, dst, dstW, x, y)
		}
	}
}

// nearestFit fits the whole source inside the destination: with sx, sy
// as source pixels per destination pixel, it selects scale = max(sx, sy)
// (the smaller magnification) and letterboxes with black.
func nearestFit(src []byte, srcW, srcH int, dst []byte, dstW, dstH int) {
	sx := float64(srcW) / float64(dstW)
	sy := float64(srcH) / float64(dstH)
	scale := sx
	if sy > scale {
		scale = sy
	}
	scaledW := float64(srcW) / scale
	scaledH := float64(srcH) / scale
	padX := (float64(dstW) - scaledW) / 2
	padY := (float64(dstH) - scaledH) / 2

	for y := 0; y < dstH; y++ {
		srcY := (float64(y) - padY) * scale
		if srcY < 0 || srcY >= float64(srcH) {
			continue // left as black (zero-valued)
		}
		sy := int(srcY)
		for x := 0; x < dstW; x++ {
			srcX := (float64(x) - padX) * scale
			if srcX < 0 || srcX >= float64(srcW) {
				continue
			}
			sx := int(srcX)
			copyPixel(src, srcW, sx, sy, dst, dstW, x, y)
		}
	}
}

// nearestNone centers the source at native size without scaling.
func nearestNone(src []byte, srcW, srcH int, dst []byte, dstW, dstH int) {
	offX := (dstW - srcW) / 2
	offY := (dstH - srcH) / 2
	for sy := 0; sy < srcH; sy++ {
		y := sy + offY
		if y < 0 || y >= dstH {
			continue
		}
		for sx := 0; sx < srcW; sx++ {
			x := sx + offX
			if x < 0 || x >= dstW {
				continue
			}
			copyPixel(src, srcW, sx, sy, dst, dstW, x, y)
		}
	}
}

func copyPixel(src []byte, srcW, sx, sy int, dst []byte, dstW, x, y int) {
	srcOff := (sy*srcW + sx) * 4
	dstOff := (y*dstW + x) * 4
	copy(dst[dstOff:dstOff+4], src[srcOff:srcOff+4])
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
