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
	"fmt"
	"os"

	"github.com/waypaperd/waypaperd/internal/ipc"
	"github.com/waypaperd/waypaperd/internal/pipeline"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-socket path] <start|pause|resume|stop|swap> [project-dir]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	sockPath := flag.String("socket", ipc.SocketPath(), "Path to the daemon's control socket")
	fpsCap := flag.Int("fps-cap", 0, "Override the project's fps_cap hint")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	op := ipc.Op(args[0])
	var projectDir string
	if len(args) > 1 {
		projectDir = args[1]
	}

	if (op == ipc.OpStart || op == ipc.OpSwap) && projectDir == "" {
		fmt.Fprintln(os.Stderr, "error: start/swap require a project directory argument")
		os.Exit(2)
	}

	cli, err := ipc.Dial(*sockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer cli.Close()

	req := ipc.Request{Op: op, ProjectDir: projectDir}
	if *fpsCap > 0 {
		req.Hints = pipeline.Hints{FPSCap: *fpsCap}
	}

	resp, err := cli.Call(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !resp.OK {
		fmt.Fprintf(os.Stderr, "error: %s\n", resp.Error)
		os.Exit(1)
	}
	fmt.Printf("ok, state=%s\n", resp.State)
}
