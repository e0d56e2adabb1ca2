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

// Package project implements the Project Loader (C6): reads the small
// JSON (or YAML) manifest that bundles a video file with its playback
// hints, resolving the video path relative to the manifest's own
// directory so a project bundle can be moved around as a unit.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/waypaperd/waypaperd/internal/pipeline"
)

// Manifest is the on-disk project description (spec SPEC_FULL.md §3
// addition), the Go analogue of the original project.rs struct.
type Manifest struct {
	Name      string `json:"name" yaml:"name"`
	Video     string `json:"video" yaml:"video"`
	ScaleMode string `json:"scale_mode" yaml:"scale_mode"`
	FpsCap    int    `json:"fps_cap" yaml:"fps_cap"`
	HWAccel   string `json:"hw_accel" yaml:"hw_accel"`

	dir string // directory the manifest was loaded from, for path resolution
}

// Load reads project.json from dir, falling back to project.yaml if
// the JSON form is absent.
func Load(dir string) (*Manifest, error) {
	jsonPath := filepath.Join(dir, "project.json")
	if _, err := os.Stat(jsonPath); err == nil {
		return loadJSON(jsonPath)
	}

	yamlPath := filepath.Join(dir, "project.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return loadYAML(yamlPath)
	}

	return nil, fmt.Errorf("project: no project.json or project.yaml in %s", dir)
}

func loadJSON(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("project: read %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("project: parse %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return &m, m.validate()
}

func loadYAML(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("project: read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("project: parse %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return &m, m.validate()
}

func (m *Manifest) validate() error {
	if m.Video == "" {
		return fmt.Errorf("project: manifest %q has no video path", m.Name)
	}
	return nil
}

// VideoPath resolves Video relative to the manifest's own directory,
// so a moved project bundle keeps working without editing the
// manifest (absolute paths pass through unchanged).
func (m *Manifest) VideoPath() string {
	if filepath.IsAbs(m.Video) {
		return m.Video
	}
	return filepath.Join(m.dir, m.Video)
}

// Hints converts the manifest's string-typed fields into the
// pipeline.Hints the Control Surface's start()/swap() expect.
func (m *Manifest) Hints() pipeline.Hints {
	return pipeline.Hints{
		FPSCap:    m.FpsCap,
		HWAccel:   pipeline.ParseHWAccel(m.HWAccel),
		ScaleMode: pipeline.ParseScaleMode(m.ScaleMode),
	}
}
