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
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	astiav "github.com/asticode/go-astiav"

	"github.com/waypaperd/waypaperd/internal/control"
	"github.com/waypaperd/waypaperd/internal/ipc"
)

var version string
var build string

func main() {
	debug := flag.Bool("debug", false, "General debugging override")
	debugFF := flag.Bool("debugstreams", false, "Debug FFmpeg internals")
	sockPath := flag.String("socket", ipc.SocketPath(), "Path to the control socket")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("Running waypaperd v%s (build: %s)", version, build)

	if *debug {
		log.Printf("debug logging enabled")
	}
	if *debugFF {
		astiav.SetLogLevel(astiav.LogLevelDebug)
		astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, fmt, msg string) {
			var cs string
			if c != nil {
				if cl := c.Class(); cl != nil {
					cs = " - class: " + cl.String()
				}
			}
			log.Printf("ffmpeg log: %s%s - level: %d\n", strings.TrimSpace(msg), cs, l)
		})
	}

	surf := control.New()
	srv, err := ipc.Listen(*sockPath, surf)
	if err != nil {
		log.Fatalf("ipc: %v", err)
	}
	defer srv.Close()
	log.Printf("listening on %s", *sockPath)

	go func() {
		if err := srv.Serve(); err != nil {
			log.Printf("ipc: serve exited: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Printf("shutting down")
	if err := surf.Stop(); err != nil {
		log.Printf("stop: %v", err)
	}
}
