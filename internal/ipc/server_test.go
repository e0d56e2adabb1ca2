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

package ipc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/waypaperd/waypaperd/internal/pipeline"
)

// fakeController is an in-memory stand-in for control.Surface so the
// wire protocol can be exercised without spinning up FFmpeg/Wayland.
type fakeController struct {
	state       pipeline.State
	startErr    error
	lastSource  string
	lastHints   pipeline.Hints
	pauseCalls  int
	resumeCalls int
	stopCalls   int
	swapCalls   int
}

func (f *fakeController) Start(source string, hints pipeline.Hints) error {
	f.lastSource, f.lastHints = source, hints
	if f.startErr != nil {
		return f.startErr
	}
	f.state = pipeline.StateRunning
	return nil
}
func (f *fakeController) Pause() error {
	f.pauseCalls++
	f.state = pipeline.StatePaused
	return nil
}
func (f *fakeController) Resume() error {
	f.resumeCalls++
	f.state = pipeline.StateRunning
	return nil
}
func (f *fakeController) Stop() error {
	f.stopCalls++
	f.state = pipeline.StateStopped
	return nil
}
func (f *fakeController) Swap(source string, hints pipeline.Hints) error {
	f.swapCalls++
	f.lastSource, f.lastHints = source, hints
	f.state = pipeline.StateRunning
	return nil
}
func (f *fakeController) State() pipeline.State { return f.state }

func writeManifest(t *testing.T, dir string) {
	t.Helper()
	content := `{"name":"t","video":"t.mp4","scale_mode":"crop"}`
	if err := os.WriteFile(filepath.Join(dir, "project.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func startServer(t *testing.T, ctl Controller) (*Server, string) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "control.sock")
	srv, err := Listen(sockPath, ctl)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv, sockPath
}

func TestServerStartRoundTrip(t *testing.T) {
	projectDir := t.TempDir()
	writeManifest(t, projectDir)

	ctl := &fakeController{}
	_, sockPath := startServer(t, ctl)

	cli, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer cli.Close()

	resp, err := cli.Call(Request{Op: OpStart, ProjectDir: projectDir})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !resp.OK {
		t.Fatalf("expected OK response, got %+v", resp)
	}
	if resp.State != "running" {
		t.Fatalf("State = %q, want running", resp.State)
	}
	if ctl.lastSource == "" {
		t.Fatal("expected Start to be invoked with a resolved video path")
	}
}

func TestServerUnknownOpReturnsError(t *testing.T) {
	ctl := &fakeController{}
	_, sockPath := startServer(t, ctl)

	cli, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer cli.Close()

	resp, err := cli.Call(Request{Op: Op("bogus")})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.OK {
		t.Fatal("expected an error response for an unknown op")
	}
}

func TestServerPauseResumeStop(t *testing.T) {
	ctl := &fakeController{}
	_, sockPath := startServer(t, ctl)

	cli, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer cli.Close()

	for _, op := range []Op{OpPause, OpResume, OpStop} {
		resp, err := cli.Call(Request{Op: op})
		if err != nil {
			t.Fatalf("Call(%s): %v", op, err)
		}
		if !resp.OK {
			t.Fatalf("Call(%s): expected OK, got %+v", op, resp)
		}
	}
	if ctl.pauseCalls != 1 || ctl.resumeCalls != 1 || ctl.stopCalls != 1 {
		t.Fatalf("unexpected call counts: %+v", ctl)
	}
}

func TestServerStartMissingManifestFails(t *testing.T) {
	ctl := &fakeController{}
	_, sockPath := startServer(t, ctl)

	cli, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer cli.Close()

	resp, err := cli.Call(Request{Op: OpStart, ProjectDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.OK {
		t.Fatal("expected failure for a project dir with no manifest")
	}
}
