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

package control

import (
	"testing"
	"time"

	"github.com/waypaperd/waypaperd/internal/pipeline"
)

// Start/Stop/Swap's happy paths need a live Wayland compositor (presenter.New
// dials wl_display_connect) and so aren't exercised here; these tests cover
// the state-machine boundaries and the cancellation timeout that don't
// require one.

func TestStartWhileNotIdleFails(t *testing.T) {
	s := New()
	s.state = pipeline.StateRunning

	err := s.Start("video.mp4", pipeline.Hints{})
	if err == nil {
		t.Fatal("expected an error starting a non-idle Surface")
	}
	var fatal *pipeline.Fatal
	if !errorsAs(err, &fatal) {
		t.Fatalf("expected a pipeline.Fatal, got %T: %v", err, err)
	}
	if fatal.Kind != pipeline.FailureAlreadyRunning {
		t.Fatalf("Kind = %v, want FailureAlreadyRunning", fatal.Kind)
	}
	if s.State() != pipeline.StateRunning {
		t.Fatalf("State = %v, want unchanged StateRunning", s.State())
	}
}

func TestStopFromIdleIsNoop(t *testing.T) {
	s := New()
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() from idle: %v", err)
	}
	if s.State() != pipeline.StateIdle {
		t.Fatalf("State = %v, want StateIdle", s.State())
	}
}

func TestPauseRequiresRunning(t *testing.T) {
	s := New()
	if err := s.Pause(); err == nil {
		t.Fatal("expected Pause to fail from StateIdle")
	}
}

func TestResumeRequiresPaused(t *testing.T) {
	s := New()
	if err := s.Resume(); err == nil {
		t.Fatal("expected Resume to fail from StateIdle")
	}
}

func TestWaitBothReturnsOnceBothClose(t *testing.T) {
	a := make(chan struct{})
	b := make(chan struct{})
	go func() {
		close(a)
		time.Sleep(5 * time.Millisecond)
		close(b)
	}()
	if !waitBoth(a, b, time.Second) {
		t.Fatal("expected waitBoth to report success")
	}
}

func TestWaitBothTimesOutUnderBackpressure(t *testing.T) {
	a := make(chan struct{})
	close(a)
	b := make(chan struct{}) // never closes, simulating a wedged task

	start := time.Now()
	ok := waitBoth(a, b, 20*time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("expected waitBoth to time out")
	}
	if elapsed > 200*time.Millisecond {
		t.Fatalf("waitBoth took %s, want bounded near the 20ms timeout", elapsed)
	}
}

// errorsAs avoids importing the "errors" package solely for As in this file.
func errorsAs(err error, target **pipeline.Fatal) bool {
	f, ok := err.(*pipeline.Fatal)
	if !ok {
		return false
	}
	*target = f
	return true
}
