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

// Package control implements the Control Surface (C1): the single
// entry point the daemon (and, through it, the IPC server) uses to
// start, pause, resume, stop, and swap the render pipeline. It owns
// the Decoder and Presenter goroutines' lifecycle but never touches
// the hot path itself — every interaction is through the atomics in
// decode.Flags or a oneshot channel, exactly as spec §4.1 requires.
package control

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/waypaperd/waypaperd/internal/decode"
	"github.com/waypaperd/waypaperd/internal/framechan"
	"github.com/waypaperd/waypaperd/internal/pipeline"
	"github.com/waypaperd/waypaperd/internal/presenter"
)

// stopTimeout bounds how long stop() waits for both tasks to exit
// before forcing teardown (spec §4.1, §5, §7 StopTimeout).
const stopTimeout = 2 * time.Second

// defaultOutputWidth/Height seed the Converter's target size before the
// Presenter's first configure event is known; in practice New blocks
// until configure arrives, so these are only a fallback for hints that
// omit max_width/max_height and a Presenter that reports a zero size.
const (
	defaultOutputWidth  = 1920
	defaultOutputHeight = 1080
)

// Surface is the Control Surface. One per daemon process; the daemon's
// IPC server calls its methods directly from request-handling
// goroutines, so every method is safe for concurrent use.
type Surface struct {
	mu    sync.Mutex
	state pipeline.State
	epoch uint64

	flags *decode.Flags
	out   *framechan.Channel
	dec   *decode.Decoder
	pres  *presenter.Presenter

	decDone  chan struct{}
	presDone chan struct{}
}

// New creates an idle Control Surface.
func New() *Surface {
	return &Surface{state: pipeline.StateIdle}
}

// State reports the current PipelineState (spec §3).
func (s *Surface) State() pipeline.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// currentCancelled is the cancel predicate handed to the Presenter: it
// reads whichever Flags belong to the Decoder currently driving the
// pipeline, since a reused Presenter outlives any single Flags
// instance across a swap().
func (s *Surface) currentCancelled() bool {
	s.mu.Lock()
	f := s.flags
	s.mu.Unlock()
	return f != nil && f.Cancelled()
}

// Start implements spec §4.1's start(source). It blocks until the
// Decoder has opened the file and the Presenter has completed its
// initial compositor roundtrip, or either fails.
func (s *Surface) Start(source string, hints pipeline.Hints) error {
	s.mu.Lock()
	if s.state != pipeline.StateIdle {
		s.mu.Unlock()
		return pipeline.NewFatal(pipeline.FailureAlreadyRunning, nil)
	}
	s.state = pipeline.StateStarting
	s.mu.Unlock()

	pres, err := presenter.New(s.currentCancelled)
	if err != nil {
		s.mu.Lock()
		s.state = pipeline.StateIdle
		s.mu.Unlock()
		return err
	}

	if err := s.launch(source, hints, pres); err != nil {
		s.mu.Lock()
		s.state = pipeline.StateIdle
		s.mu.Unlock()
		pres.Close()
		return err
	}

	s.mu.Lock()
	s.state = pipeline.StateRunning
	s.epoch = 0
	s.mu.Unlock()
	return nil
}

// launch starts a Decoder against pres (a freshly created or reused
// Presenter) and waits for the Decoder to report ready or fatal. On
// success it installs the new task set as the Surface's active
// pipeline; on failure the caller owns closing pres.
func (s *Surface) launch(source string, hints pipeline.Hints, pres *presenter.Presenter) error {
	flags := decode.NewFlags()
	pres.OnSurfaceClosed(func() {
		log.Printf("control: layer surface closed by compositor")
		go s.Stop()
	})

	outW, outH := pres.OutputSize()
	if outW <= 0 || outH <= 0 {
		outW, outH = defaultOutputWidth, defaultOutputHeight
	}
	if hints.MaxWidth > 0 && hints.MaxWidth < outW {
		outW = hints.MaxWidth
	}
	if hints.MaxHeight > 0 && hints.MaxHeight < outH {
		outH = hints.MaxHeight
	}

	out := framechan.New(hints.ChannelCap)
	dec := decode.New(source, hints, flags, out, outW, outH)

	decDone := make(chan struct{})
	presDone := make(chan struct{})

	go func() {
		defer close(decDone)
		dec.Run()
	}()
	go func() {
		defer close(presDone)
		pres.Run(out)
	}()

	select {
	case <-dec.Ready():
	case err := <-dec.Fatal():
		flags.Cancel()
		<-decDone
		pres.Close()
		<-presDone
		return err
	}

	s.flags = flags
	s.out = out
	s.dec = dec
	s.pres = pres
	s.decDone = decDone
	s.presDone = presDone
	return nil
}

// Pause toggles Running to Paused (spec §4.1). The Decoder stops
// feeding the Frame Channel (it sleeps between pause-flag polls); the
// Presenter simply runs dry and the compositor keeps showing the last
// committed buffer.
func (s *Surface) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != pipeline.StateRunning {
		return fmt.Errorf("pause: pipeline is %s, not running", s.state)
	}
	s.flags.SetPaused(true)
	s.state = pipeline.StatePaused
	return nil
}

// Resume toggles Paused back to Running; the pause poll interval in
// the Decoder bounds the ≤200ms resume latency required by spec §8.
func (s *Surface) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != pipeline.StatePaused {
		return fmt.Errorf("resume: pipeline is %s, not paused", s.state)
	}
	s.flags.SetPaused(false)
	s.state = pipeline.StateRunning
	return nil
}

// Stop implements spec §4.1's stop(): cancel, wait bounded for both
// tasks, tear down the surface. A stop() from Idle is a no-op.
func (s *Surface) Stop() error {
	pres, timedOut, err := s.haltTasks()
	if pres == nil {
		return err
	}
	pres.Close()

	s.mu.Lock()
	s.state = pipeline.StateStopped
	s.pres = nil
	s.mu.Unlock()

	if timedOut {
		return pipeline.NewFatal(pipeline.FailureStopTimeout, nil)
	}
	return nil
}

// haltTasks is the shared cancel/wait core of Stop and Swap: it
// signals cancellation, waits up to stopTimeout for the Decoder and
// Presenter tasks to exit, and clears the Surface's active-task
// fields. It returns the now-idle Presenter (nil if there was nothing
// running) so the caller decides whether to close it or reuse it.
func (s *Surface) haltTasks() (pres *presenter.Presenter, timedOut bool, err error) {
	s.mu.Lock()
	if s.state == pipeline.StateIdle || s.state == pipeline.StateStopped {
		s.mu.Unlock()
		return nil, false, nil
	}
	s.state = pipeline.StateDraining
	flags, pres, decDone, presDone := s.flags, s.pres, s.decDone, s.presDone
	s.mu.Unlock()

	flags.Cancel()

	timedOut = !waitBoth(decDone, presDone, stopTimeout)
	if timedOut {
		log.Printf("control: stop timed out after %s, forcing teardown", stopTimeout)
	}

	s.mu.Lock()
	s.flags, s.out, s.dec, s.decDone, s.presDone = nil, nil, nil, nil, nil
	s.mu.Unlock()

	if timedOut {
		return pres, true, pipeline.NewFatal(pipeline.FailureStopTimeout, nil)
	}
	return pres, false, nil
}

// Swap implements spec §4.1's swap(source): equivalent to stop()
// followed by start(source), except the existing Presenter's Wayland
// surface is reused when it is still configured (no new connection,
// no new layer surface, no new SHM pool) rather than torn down and
// recreated. It is closed and replaced only if the compositor already
// closed it or the stop path timed out.
func (s *Surface) Swap(source string, hints pipeline.Hints) error {
	pres, timedOut, err := s.haltTasks()
	if pres == nil && err != nil {
		return err
	}

	reuse := pres != nil && !timedOut && pres.Configured()
	if reuse {
		select {
		case <-pres.Closed():
			reuse = false // the compositor closed the layer surface
		default:
		}
	}
	if !reuse {
		if pres != nil {
			pres.Close()
		}
		var err error
		pres, err = presenter.New(s.currentCancelled)
		if err != nil {
			s.mu.Lock()
			s.state = pipeline.StateIdle
			s.mu.Unlock()
			return err
		}
	}

	s.mu.Lock()
	s.state = pipeline.StateStarting
	s.mu.Unlock()

	if err := s.launch(source, hints, pres); err != nil {
		s.mu.Lock()
		s.state = pipeline.StateIdle
		s.mu.Unlock()
		pres.Close()
		return err
	}

	s.mu.Lock()
	s.state = pipeline.StateRunning
	s.epoch++
	s.mu.Unlock()
	return nil
}

// waitBoth blocks until both channels close or timeout elapses,
// returning false on timeout.
func waitBoth(a, b <-chan struct{}, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for a != nil || b != nil {
		select {
		case <-a:
			a = nil
		case <-b:
			b = nil
		case <-deadline:
			return false
		}
	}
	return true
}
