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
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"

	"github.com/waypaperd/waypaperd/internal/pipeline"
	"github.com/waypaperd/waypaperd/internal/project"
)

// Controller is the subset of control.Surface the server drives. A
// narrow interface here keeps this package free of a dependency on
// the control package's goroutine/Wayland machinery, which matters
// for plain unit testing of the wire protocol.
type Controller interface {
	Start(source string, hints pipeline.Hints) error
	Pause() error
	Resume() error
	Stop() error
	Swap(source string, hints pipeline.Hints) error
	State() pipeline.State
}

// Server accepts one connection at a time on a Unix domain socket and
// decodes newline-delimited JSON Requests, dispatching each to a
// Controller (spec SPEC_FULL.md §6 addition).
type Server struct {
	ln   net.Listener
	path string
	ctl  Controller
}

// SocketPath resolves $XDG_RUNTIME_DIR/waypaperd/control.sock, falling
// back to /tmp/waypaperd/control.sock when the environment variable is
// unset (spec SPEC_FULL.md §6).
func SocketPath() string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = "/tmp"
	}
	return filepath.Join(base, "waypaperd", "control.sock")
}

// Listen creates the socket directory if needed, removes any stale
// socket file, and starts listening.
func Listen(path string, ctl Controller) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ipc: mkdir %s: %w", filepath.Dir(path), err)
	}
	if _, err := os.Stat(path); err == nil {
		os.Remove(path)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}
	return &Server{ln: ln, path: path, ctl: ctl}, nil
}

// Serve accepts connections until the listener is closed, handling
// one connection at a time (spec: "accepts one connection at a time").
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		s.handle(conn)
	}
}

func (s *Server) Close() error {
	err := s.ln.Close()
	os.Remove(s.path)
	return err
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			enc.Encode(Response{OK: false, Error: fmt.Sprintf("malformed request: %v", err)})
			continue
		}
		resp := s.dispatch(req)
		if err := enc.Encode(resp); err != nil {
			log.Printf("ipc: write response: %v", err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{RequestID: req.RequestID}

	var source string
	var hints pipeline.Hints
	if req.Op == OpStart || req.Op == OpSwap {
		m, err := project.Load(req.ProjectDir)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		source = m.VideoPath()
		hints = m.Hints()
		if req.Hints.FPSCap != 0 {
			hints.FPSCap = req.Hints.FPSCap
		}
		if req.Hints.MaxWidth != 0 {
			hints.MaxWidth = req.Hints.MaxWidth
		}
		if req.Hints.MaxHeight != 0 {
			hints.MaxHeight = req.Hints.MaxHeight
		}
	}

	var err error
	switch req.Op {
	case OpStart:
		err = s.ctl.Start(source, hints)
	case OpPause:
		err = s.ctl.Pause()
	case OpResume:
		err = s.ctl.Resume()
	case OpStop:
		err = s.ctl.Stop()
	case OpSwap:
		err = s.ctl.Swap(source, hints)
	default:
		err = fmt.Errorf("unknown op %q", req.Op)
	}

	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.OK = true
	resp.State = s.ctl.State().String()
	return resp
}
