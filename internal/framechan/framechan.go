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

// Package framechan implements the bounded single-producer/single-consumer
// queue of presentable frames between the Converter and the Presenter (C4).
package framechan

// DefaultCapacity is K from spec §4.4.
const DefaultCapacity = 60

// DefaultDurationMS is the duration substituted whenever no prior PTS
// exists or the clamped delta falls outside [1, 999] (spec §3).
const DefaultDurationMS = 33

const (
	minDurationMS = 1
	maxDurationMS = 999
)

// Frame is a PresentableFrame: a tightly packed BGRA buffer plus the
// pacing and loop-detection metadata the Presenter needs.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	Stride     int
	DurationMS int
	Index      uint64
	Epoch      uint64
}

// ClampDuration derives an inter-frame duration in milliseconds from a
// PTS delta expressed in seconds, applying the [1, 999] clamp and the
// 33ms default of spec §3's invariants.
func ClampDuration(deltaSeconds float64, hadPrior bool) int {
	if !hadPrior {
		return DefaultDurationMS
	}
	ms := int(deltaSeconds*1000 + 0.5)
	if ms < minDurationMS || ms > maxDurationMS {
		return DefaultDurationMS
	}
	return ms
}

// Valid reports whether f satisfies the PresentableFrame invariants:
// stride == width*4 and len(data) == stride*height.
func (f Frame) Valid() bool {
	if f.Stride != f.Width*4 {
		return false
	}
	return len(f.Data) == f.Stride*f.Height
}

// Channel is a thin wrapper around a Go channel that documents the
// single-producer/single-consumer contract and gives the producer a
// single place to observe cancellation without losing backpressure
// semantics (closing Go channels from the consumer side is not safe,
// so Close is the producer's job exclusively).
type Channel struct {
	ch chan Frame
}

// New creates a Channel with the given capacity, or DefaultCapacity
// when cap is <= 0.
func New(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{ch: make(chan Frame, capacity)}
}

// Send blocks until there is room or cancel fires, whichever happens
// first. It returns false if cancel fired before the frame could be
// queued. It must not be called after Close (a send on a closed Go
// channel panics).
func (c *Channel) Send(f Frame, cancel <-chan struct{}) bool {
	select {
	case c.ch <- f:
		return true
	case <-cancel:
		return false
	}
}

// Recv returns the next frame in FIFO order, or ok=false once the
// channel is closed and drained (end-of-stream).
func (c *Channel) Recv() (f Frame, ok bool) {
	f, ok = <-c.ch
	return f, ok
}

// Close closes the send side. Only the producer may call this.
func (c *Channel) Close() { close(c.ch) }

// Len reports the number of frames currently buffered (best-effort;
// for metrics/tests only, not for synchronization decisions).
func (c *Channel) Len() int { return len(c.ch) }
