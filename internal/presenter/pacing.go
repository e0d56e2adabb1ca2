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

// Package presenter implements the Presenter (C5): Wayland session,
// layer surface, SHM buffer rotation, and frame pacing. This file
// holds the pure scheduling logic (no cgo, no Wayland state) so it can
// be unit tested directly; presenter_linux.go wires it to the actual
// Wayland session.
package presenter

import (
	"time"

	"github.com/waypaperd/waypaperd/internal/framechan"
)

// epochResetThreshold is the number of Presenter-side frames since the
// last reset that must elapse before a 33ms-duration frame is treated
// as a genuine loop seam rather than ordinary jitter (spec §4.5.5).
const epochResetThreshold = 100

// stallBudgetFactor bounds how far wall time may run ahead of the
// pacing clock before a stall is declared and the clock resnapped
// (spec §4.5.3 step 6, and the "2 x duration" late-arrival rule of
// §4.5.2).
const stallBudgetFactor = 2

// Clock tracks the pacing state machine described in spec §4.5.3 and
// §4.5.5: a running "next_frame_time" target, advanced by each frame's
// duration, with loop-seam and large-stall detection.
type Clock struct {
	nextFrameTime     time.Time
	framesSinceReset  int
	started           bool
}

// NewClock creates a Clock with no frames presented yet.
func NewClock() *Clock { return &Clock{} }

// Started reports whether Advance has been called at least once. The
// late-arrival check (ShouldDropLate) only makes sense once
// nextFrameTime has a real target to compare against.
func (c *Clock) Started() bool { return c.started }

// NextFrameTime returns the pacing target set by the most recent
// Advance call, for the Presenter to compare against wall clock time
// before deciding whether to wait for a free buffer or drop outright
// (spec §4.5.2).
func (c *Clock) NextFrameTime() time.Time { return c.nextFrameTime }

// Advance is called once per committed frame, with now sampled right
// after the commit. It reports how long the Presenter should sleep
// before the next frame (may be <= 0, meaning already late), and
// whether this frame was detected as a loop-seam epoch reset per spec
// §4.5.5. now is injected so this is deterministically testable.
func (c *Clock) Advance(f framechan.Frame, now time.Time) (sleep time.Duration, epochReset bool) {
	if !c.started {
		c.started = true
		c.nextFrameTime = now
		c.framesSinceReset = 0
	}

	c.framesSinceReset++
	if f.DurationMS == framechan.DefaultDurationMS && c.framesSinceReset > epochResetThreshold {
		c.nextFrameTime = now
		c.framesSinceReset = 0
		epochReset = true
	}

	duration := time.Duration(f.DurationMS) * time.Millisecond
	c.nextFrameTime = c.nextFrameTime.Add(duration)

	if now.Sub(c.nextFrameTime) > stallBudgetFactor*duration {
		// A large stall occurred: resnap rather than let sleep go deeply negative.
		c.nextFrameTime = now
	}

	sleep = c.nextFrameTime.Sub(now)
	return sleep, epochReset
}

// ShouldDropLate reports whether a just-arrived frame is late enough
// (spec §4.5.2: "wall_clock > next_frame_time + 2 x duration") that
// the Presenter should drop it rather than wait for a free buffer.
func ShouldDropLate(now, nextFrameTime time.Time, durationMS int) bool {
	duration := time.Duration(durationMS) * time.Millisecond
	return now.After(nextFrameTime.Add(stallBudgetFactor * duration))
}
