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

package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/waypaperd/waypaperd/internal/pipeline"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadJSONManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "project.json", `{
		"name": "red_square",
		"video": "red_square.mp4",
		"scale_mode": "fit",
		"fps_cap": 30,
		"hw_accel": "vaapi"
	}`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Name != "red_square" {
		t.Fatalf("Name = %q, want red_square", m.Name)
	}
	want := filepath.Join(dir, "red_square.mp4")
	if got := m.VideoPath(); got != want {
		t.Fatalf("VideoPath() = %q, want %q", got, want)
	}
	h := m.Hints()
	if h.ScaleMode != pipeline.ScaleFit || h.HWAccel != pipeline.HWAccelVAAPI || h.FPSCap != 30 {
		t.Fatalf("unexpected hints: %+v", h)
	}
}

func TestLoadYAMLFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "project.yaml", "name: y\nvideo: y.mp4\nscale_mode: none\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Hints().ScaleMode != pipeline.ScaleNone {
		t.Fatalf("expected ScaleNone, got %v", m.Hints().ScaleMode)
	}
}

func TestLoadAbsoluteVideoPathPassesThrough(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "project.json", `{"name":"abs","video":"/opt/videos/bg.mp4"}`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.VideoPath(); got != "/opt/videos/bg.mp4" {
		t.Fatalf("VideoPath() = %q, want absolute passthrough", got)
	}
}

func TestLoadMissingManifestFails(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatal("expected an error for a directory with no manifest")
	}
}

func TestLoadRejectsEmptyVideoPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "project.json", `{"name":"broken"}`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected validation error for missing video field")
	}
}
