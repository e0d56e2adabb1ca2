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

//go:build linux

// Package waylandshell is a narrow cgo binding to libwayland-client plus
// the wlr-layer-shell-unstable-v1 and viewporter protocol extensions —
// only the subset the Presenter needs. No thought has been given to
// supporting arbitrary protocol extensions.
//
// layer-shell-client-protocol.{h,c} and viewporter-client-protocol.{h,c}
// are wayland-scanner output, not checked in; run `go generate` (or
// generate_wayland.sh directly) before building this package, same as
// other_examples/dominikh-go-libwayland's own //go:generate step.
//
// Grounded on other_examples/dominikh-go-libwayland, simplified from
// its generic reflection-based demux: a Display keeps a map from C
// proxy pointer to the Go object it backs, each listener is registered
// with its Go wrapper as user data, and one exported callback per event
// casts that data back to the wrapper. The set of listener shapes is
// small and fixed, since this package only binds five globals
// (compositor, shm, layer shell, output, viewporter) rather than
// supporting arbitrary ones.
package waylandshell

//go:generate ./generate_wayland.sh

// #cgo pkg-config: wayland-client
// #include <stdlib.h>
// #include <wayland-client.h>
// #include "layer-shell-client-protocol.h"
// #include "viewporter-client-protocol.h"
//
// extern void goRegistryGlobal(void *data, struct wl_registry *reg, uint32_t name, char *iface, uint32_t version);
// extern void goRegistryGlobalRemove(void *data, struct wl_registry *reg, uint32_t name);
// extern void goLayerSurfaceConfigure(void *data, struct zwlr_layer_surface_v1 *surf, uint32_t serial, uint32_t w, uint32_t h);
// extern void goLayerSurfaceClosed(void *data, struct zwlr_layer_surface_v1 *surf);
// extern void goBufferRelease(void *data, struct wl_buffer *buf);
// extern void goOutputMode(void *data, struct wl_output *out, uint32_t flags, int32_t w, int32_t h, int32_t refresh);
//
// static const struct wl_registry_listener go_registry_listener = {
//   .global = goRegistryGlobal,
//   .global_remove = goRegistryGlobalRemove,
// };
// static const struct zwlr_layer_surface_v1_listener go_layer_surface_listener = {
//   .configure = goLayerSurfaceConfigure,
//   .closed = goLayerSurfaceClosed,
// };
// static const struct wl_buffer_listener go_buffer_listener = {
//   .release = goBufferRelease,
// };
// static const struct wl_output_listener go_output_listener = {
//   .mode = goOutputMode,
// };
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"honnef.co/go/safeish"
)

// Anchor bits, matching zwlr_layer_surface_v1's anchor enum.
const (
	AnchorTop    = 1
	AnchorBottom = 2
	AnchorLeft   = 4
	AnchorRight  = 8
	AnchorAll    = AnchorTop | AnchorBottom | AnchorLeft | AnchorRight
)

// LayerBackground matches zwlr_layer_shell_v1's "background" layer.
const LayerBackground = 0

// KeyboardInteractivityNone matches zwlr_layer_surface_v1's "none" mode.
const KeyboardInteractivityNone = 0

// Display owns the connection and the proxy bookkeeping every bound
// object needs to find its way back to a Go callback. Exclusively
// owned by the Presenter goroutine — nothing else may touch it.
type Display struct {
	hnd     *C.struct_wl_display
	mu      sync.Mutex
	proxies map[unsafe.Pointer]any
}

var liveDisplays sync.Map // *C.struct_wl_display -> *Display; Connect adds an entry, Disconnect removes it

// Connect opens a connection to the Wayland server named by the
// WAYLAND_DISPLAY environment variable (empty name means "default").
func Connect() (*Display, error) {
	hnd := C.wl_display_connect(nil)
	if hnd == nil {
		return nil, fmt.Errorf("wl_display_connect failed")
	}
	d := &Display{hnd: hnd, proxies: make(map[unsafe.Pointer]any)}
	liveDisplays.Store(hnd, d)
	return d, nil
}

func (d *Display) Disconnect() {
	liveDisplays.Delete(d.hnd)
	C.wl_display_disconnect(d.hnd)
	d.hnd = nil
}

func (d *Display) track(proxy unsafe.Pointer, obj any) {
	d.mu.Lock()
	d.proxies[proxy] = obj
	d.mu.Unlock()
}

func (d *Display) forget(proxy unsafe.Pointer) {
	d.mu.Lock()
	delete(d.proxies, proxy)
	d.mu.Unlock()
}

// Roundtrip blocks until all requests sent so far have been processed
// by the server and their resulting events have been handled.
func (d *Display) Roundtrip() error {
	if C.wl_display_roundtrip(d.hnd) < 0 {
		return fmt.Errorf("wl_display_roundtrip failed")
	}
	return nil
}

// Dispatch processes one batch of pending events without blocking for
// new ones beyond what is already queued.
func (d *Display) Dispatch() error {
	if C.wl_display_dispatch_pending(d.hnd) < 0 {
		return fmt.Errorf("wl_display_dispatch_pending failed")
	}
	return nil
}

// Registry is the wl_registry used to discover and bind globals.
type Registry struct {
	dsp *Display
	hnd *C.struct_wl_registry

	OnGlobal       func(name uint32, iface string, version uint32)
	OnGlobalRemove func(name uint32)
}

func (d *Display) GetRegistry() *Registry {
	reg := &Registry{dsp: d, hnd: C.wl_display_get_registry(d.hnd)}
	C.wl_registry_add_listener(reg.hnd, &C.go_registry_listener, unsafe.Pointer(reg))
	d.track(unsafe.Pointer(reg.hnd), reg)
	return reg
}

//export goRegistryGlobal
func goRegistryGlobal(data unsafe.Pointer, _ *C.struct_wl_registry, name C.uint32_t, iface *C.char, version C.uint32_t) {
	reg := safeish.Cast[*Registry](data)
	if reg.OnGlobal != nil {
		reg.OnGlobal(uint32(name), C.GoString(iface), uint32(version))
	}
}

//export goRegistryGlobalRemove
func goRegistryGlobalRemove(data unsafe.Pointer, _ *C.struct_wl_registry, name C.uint32_t) {
	reg := safeish.Cast[*Registry](data)
	if reg.OnGlobalRemove != nil {
		reg.OnGlobalRemove(uint32(name))
	}
}

// Compositor wraps wl_compositor (min version 4, for damage_buffer).
type Compositor struct {
	dsp *Display
	hnd *C.struct_wl_compositor
}

func (r *Registry) BindCompositor(name, version uint32) *Compositor {
	hnd := (*C.struct_wl_compositor)(C.wl_registry_bind(r.hnd, C.uint32_t(name), &C.wl_compositor_interface, C.uint32_t(version)))
	return &Compositor{dsp: r.dsp, hnd: hnd}
}

func (c *Compositor) CreateSurface() *Surface {
	hnd := C.wl_compositor_create_surface(c.hnd)
	s := &Surface{dsp: c.dsp, hnd: hnd}
	c.dsp.track(unsafe.Pointer(hnd), s)
	return s
}

// Surface wraps wl_surface.
type Surface struct {
	dsp *Display
	hnd *C.struct_wl_surface
}

func (s *Surface) Attach(buf *Buffer, x, y int32) {
	C.wl_surface_attach(s.hnd, buf.hnd, C.int32_t(x), C.int32_t(y))
}

func (s *Surface) DamageBuffer(x, y, w, h int32) {
	C.wl_surface_damage_buffer(s.hnd, C.int32_t(x), C.int32_t(y), C.int32_t(w), C.int32_t(h))
}

func (s *Surface) Commit() { C.wl_surface_commit(s.hnd) }

func (s *Surface) Destroy() {
	s.dsp.forget(unsafe.Pointer(s.hnd))
	C.wl_surface_destroy(s.hnd)
}

// Shm wraps wl_shm (min version 1, format Argb8888 required).
type Shm struct {
	dsp *Display
	hnd *C.struct_wl_shm
}

func (r *Registry) BindShm(name, version uint32) *Shm {
	hnd := (*C.struct_wl_shm)(C.wl_registry_bind(r.hnd, C.uint32_t(name), &C.wl_shm_interface, C.uint32_t(version)))
	return &Shm{dsp: r.dsp, hnd: hnd}
}

// CreatePool wraps the fd (an anonymous memfd with no directory entry,
// see PoolBacking in memfd.go) into a reusable wl_shm_pool sized for
// size bytes. The fd is never re-sent after this call (spec §4.5.1).
func (s *Shm) CreatePool(fd uintptr, size int32) *ShmPool {
	hnd := C.wl_shm_create_pool(s.hnd, C.int32_t(fd), C.int32_t(size))
	return &ShmPool{dsp: s.dsp, hnd: hnd}
}

// ShmPool wraps wl_shm_pool.
type ShmPool struct {
	dsp *Display
	hnd *C.struct_wl_shm_pool
}

// CreateBuffer slices the pool at byteOffset, length stride*height.
func (p *ShmPool) CreateBuffer(byteOffset, width, height, stride int32) *Buffer {
	hnd := C.wl_shm_pool_create_buffer(p.hnd, C.int32_t(byteOffset), C.int32_t(width), C.int32_t(height), C.int32_t(stride), C.WL_SHM_FORMAT_ARGB8888)
	b := &Buffer{dsp: p.dsp, hnd: hnd}
	C.wl_buffer_add_listener(hnd, &C.go_buffer_listener, unsafe.Pointer(b))
	p.dsp.track(unsafe.Pointer(hnd), b)
	return b
}

func (p *ShmPool) Destroy() { C.wl_shm_pool_destroy(p.hnd) }

// Buffer wraps wl_buffer. OnRelease is called on the compositor's
// release event; the busy flag it clears lives in the Presenter's
// rotatingBuffer (presenter_linux.go, spec §4.5.2).
type Buffer struct {
	dsp     *Display
	hnd     *C.struct_wl_buffer
	OnRelease func()
}

//export goBufferRelease
func goBufferRelease(data unsafe.Pointer, _ *C.struct_wl_buffer) {
	b := safeish.Cast[*Buffer](data)
	if b.OnRelease != nil {
		b.OnRelease()
	}
}

func (b *Buffer) Destroy() {
	b.dsp.forget(unsafe.Pointer(b.hnd))
	C.wl_buffer_destroy(b.hnd)
}

// Output wraps wl_output (min version 4, for mode.Current).
type Output struct {
	dsp *Display
	hnd *C.struct_wl_output

	OnMode func(flags uint32, w, h, refresh int32)
}

func (r *Registry) BindOutput(name, version uint32) *Output {
	hnd := (*C.struct_wl_output)(C.wl_registry_bind(r.hnd, C.uint32_t(name), &C.wl_output_interface, C.uint32_t(version)))
	o := &Output{dsp: r.dsp, hnd: hnd}
	C.wl_output_add_listener(hnd, &C.go_output_listener, unsafe.Pointer(o))
	r.dsp.track(unsafe.Pointer(hnd), o)
	return o
}

//export goOutputMode
func goOutputMode(data unsafe.Pointer, _ *C.struct_wl_output, flags C.uint32_t, w, h, refresh C.int32_t) {
	o := safeish.Cast[*Output](data)
	if o.OnMode != nil {
		o.OnMode(uint32(flags), int32(w), int32(h), int32(refresh))
	}
}

// LayerShell wraps zwlr_layer_shell_v1.
type LayerShell struct {
	dsp *Display
	hnd *C.struct_zwlr_layer_shell_v1
}

func (r *Registry) BindLayerShell(name, version uint32) *LayerShell {
	hnd := (*C.struct_zwlr_layer_shell_v1)(C.wl_registry_bind(r.hnd, C.uint32_t(name), &C.zwlr_layer_shell_v1_interface, C.uint32_t(version)))
	return &LayerShell{dsp: r.dsp, hnd: hnd}
}

// GetLayerSurface creates a layer surface at the given layer with a
// fixed namespace, anchored per spec §4.5.1.
func (ls *LayerShell) GetLayerSurface(surface *Surface, output *Output, layer uint32, namespace string) *LayerSurface {
	cns := C.CString(namespace)
	defer C.free(unsafe.Pointer(cns))

	var outHnd *C.struct_wl_output
	if output != nil {
		outHnd = output.hnd
	}

	hnd := C.zwlr_layer_shell_v1_get_layer_surface(ls.hnd, surface.hnd, outHnd, C.uint32_t(layer), cns)
	lsurf := &LayerSurface{dsp: ls.dsp, hnd: hnd}
	C.zwlr_layer_surface_v1_add_listener(hnd, &C.go_layer_surface_listener, unsafe.Pointer(lsurf))
	ls.dsp.track(unsafe.Pointer(hnd), lsurf)
	return lsurf
}

// LayerSurface wraps zwlr_layer_surface_v1.
type LayerSurface struct {
	dsp *Display
	hnd *C.struct_zwlr_layer_surface_v1

	OnConfigure func(serial uint32, w, h uint32)
	OnClosed    func()
}

func (s *LayerSurface) SetAnchor(anchor uint32) {
	C.zwlr_layer_surface_v1_set_anchor(s.hnd, C.uint32_t(anchor))
}

func (s *LayerSurface) SetExclusiveZone(zone int32) {
	C.zwlr_layer_surface_v1_set_exclusive_zone(s.hnd, C.int32_t(zone))
}

func (s *LayerSurface) SetKeyboardInteractivity(mode uint32) {
	C.zwlr_layer_surface_v1_set_keyboard_interactivity(s.hnd, C.uint32_t(mode))
}

func (s *LayerSurface) SetSize(w, h uint32) {
	C.zwlr_layer_surface_v1_set_size(s.hnd, C.uint32_t(w), C.uint32_t(h))
}

func (s *LayerSurface) AckConfigure(serial uint32) {
	C.zwlr_layer_surface_v1_ack_configure(s.hnd, C.uint32_t(serial))
}

func (s *LayerSurface) Destroy() {
	s.dsp.forget(unsafe.Pointer(s.hnd))
	C.zwlr_layer_surface_v1_destroy(s.hnd)
}

//export goLayerSurfaceConfigure
func goLayerSurfaceConfigure(data unsafe.Pointer, _ *C.struct_zwlr_layer_surface_v1, serial, w, h C.uint32_t) {
	s := safeish.Cast[*LayerSurface](data)
	if s.OnConfigure != nil {
		s.OnConfigure(uint32(serial), uint32(w), uint32(h))
	}
}

//export goLayerSurfaceClosed
func goLayerSurfaceClosed(data unsafe.Pointer, _ *C.struct_zwlr_layer_surface_v1) {
	s := safeish.Cast[*LayerSurface](data)
	if s.OnClosed != nil {
		s.OnClosed()
	}
}

// Viewporter wraps wp_viewporter, optional (spec §6).
type Viewporter struct {
	dsp *Display
	hnd *C.struct_wp_viewporter
}

func (r *Registry) BindViewporter(name, version uint32) *Viewporter {
	hnd := (*C.struct_wp_viewporter)(C.wl_registry_bind(r.hnd, C.uint32_t(name), &C.wp_viewporter_interface, C.uint32_t(version)))
	return &Viewporter{dsp: r.dsp, hnd: hnd}
}

func (v *Viewporter) GetViewport(surface *Surface) *Viewport {
	hnd := C.wp_viewporter_get_viewport(v.hnd, surface.hnd)
	return &Viewport{dsp: v.dsp, hnd: hnd}
}

// Viewport wraps wp_viewport.
type Viewport struct {
	dsp *Display
	hnd *C.struct_wp_viewport
}

func (vp *Viewport) SetSource(x, y, w, h float64) {
	C.wp_viewport_set_source(vp.hnd, C.wl_fixed_from_double(C.double(x)), C.wl_fixed_from_double(C.double(y)), C.wl_fixed_from_double(C.double(w)), C.wl_fixed_from_double(C.double(h)))
}

func (vp *Viewport) SetDestination(w, h int32) {
	C.wp_viewport_set_destination(vp.hnd, C.int32_t(w), C.int32_t(h))
}

func (vp *Viewport) Destroy() { C.wp_viewport_destroy(vp.hnd) }
