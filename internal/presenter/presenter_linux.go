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

package presenter

import (
	"fmt"
	"log"
	"time"

	"github.com/waypaperd/waypaperd/internal/framechan"
	"github.com/waypaperd/waypaperd/internal/pipeline"
	"github.com/waypaperd/waypaperd/internal/waylandshell"
)

// namespace is the fixed short string identifying our layer surface to
// the compositor (spec §4.5.1 step 2).
const namespace = "waypaperd"

// maxPoolWidth/Height bound the worst-case SHM pool size (spec §3,
// SurfaceState: "sized for worst-case 3840x2160x4").
const (
	maxPoolWidth  = 3840
	maxPoolHeight = 2160
	bytesPerPixel = 4
	poolSize      = maxPoolWidth * maxPoolHeight * bytesPerPixel
)

// bufferCount is the number of wl_buffer proxies cycled round-robin
// (spec §4.5.2: "2 or 3").
const bufferCount = 3

type rotatingBuffer struct {
	buf    *waylandshell.Buffer
	offset int32
	busy   bool
}

// Presenter owns the Wayland session exclusively; no other goroutine
// touches dsp, registry, surface, pool, or buffers (spec §5).
type Presenter struct {
	dsp        *waylandshell.Display
	registry   *waylandshell.Registry
	compositor *waylandshell.Compositor
	shm        *waylandshell.Shm
	layerShell *waylandshell.LayerShell
	output     *waylandshell.Output
	viewporter *waylandshell.Viewporter

	surface      *waylandshell.Surface
	layerSurface *waylandshell.LayerSurface
	viewport     *waylandshell.Viewport

	backing *waylandshell.PoolBacking
	pool    *waylandshell.ShmPool
	buffers [bufferCount]rotatingBuffer
	current int

	configured    bool
	ackedSerial   uint32
	outputW       int
	outputH       int
	frameWidth    int
	frameHeight   int

	flags  *presenterFlags
	ready  chan struct{}
	closed chan struct{}

	onSurfaceClosed func()
	onResize        func(w, h int)
}

// presenterFlags holds the single cooperative signal the Presenter
// consults: cancel. Pause is handled upstream (the Decoder stops
// producing frames; the Presenter simply has nothing new to attach and
// the compositor keeps showing the last committed buffer, spec §4.1).
type presenterFlags struct {
	cancel func() bool
}

// New connects to the compositor, binds globals, creates the layer
// surface and the SHM pool (spec §4.5.1 steps 1-4). After the surface
// commit it roundtrips at most twice waiting for a configure event and
// fails with SurfaceUnavailable if none arrives, so a Presenter
// returned by New is already configured and Ready() is closed.
func New(cancel func() bool) (*Presenter, error) {
	dsp, err := waylandshell.Connect()
	if err != nil {
		return nil, pipeline.NewFatal(pipeline.FailureSurfaceUnavailable, err)
	}

	p := &Presenter{
		dsp:    dsp,
		flags:  &presenterFlags{cancel: cancel},
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
	}

	p.registry = dsp.GetRegistry()
	p.registry.OnGlobal = p.handleGlobal
	if err := dsp.Roundtrip(); err != nil {
		dsp.Disconnect()
		return nil, pipeline.NewFatal(pipeline.FailureSurfaceUnavailable, err)
	}

	if p.compositor == nil || p.shm == nil || p.layerShell == nil {
		dsp.Disconnect()
		return nil, pipeline.NewFatal(pipeline.FailureSurfaceUnavailable, fmt.Errorf("required Wayland global missing (compositor=%v shm=%v layer_shell=%v)", p.compositor != nil, p.shm != nil, p.layerShell != nil))
	}

	if err := p.setupSurface(); err != nil {
		dsp.Disconnect()
		return nil, err
	}

	return p, nil
}

func (p *Presenter) handleGlobal(name uint32, iface string, version uint32) {
	switch iface {
	case "wl_compositor":
		p.compositor = p.registry.BindCompositor(name, min32(version, 4))
	case "wl_shm":
		p.shm = p.registry.BindShm(name, 1)
	case "zwlr_layer_shell_v1":
		p.layerShell = p.registry.BindLayerShell(name, 1)
	case "wl_output":
		p.output = p.registry.BindOutput(name, min32(version, 4))
		p.output.OnMode = func(flags uint32, w, h, refresh int32) {
			p.outputW, p.outputH = int(w), int(h)
			if p.onResize != nil {
				p.onResize(int(w), int(h))
			}
		}
	case "wp_viewporter":
		p.viewporter = p.registry.BindViewporter(name, 1)
	}
}

// min32 caps a compositor-advertised global version at the highest
// version this package knows how to speak.
func min32(advertised, maxSupported uint32) uint32 {
	if advertised < maxSupported {
		return advertised
	}
	return maxSupported
}

func (p *Presenter) setupSurface() error {
	p.surface = p.compositor.CreateSurface()
	p.layerSurface = p.layerShell.GetLayerSurface(p.surface, p.output, waylandshell.LayerBackground, namespace)
	p.layerSurface.SetAnchor(waylandshell.AnchorAll)
	p.layerSurface.SetExclusiveZone(-1)
	p.layerSurface.SetKeyboardInteractivity(waylandshell.KeyboardInteractivityNone)
	p.layerSurface.SetSize(0, 0) // compositor-chosen, spec §4.5.1 step 2

	p.layerSurface.OnConfigure = func(serial, w, h uint32) {
		p.layerSurface.AckConfigure(serial)
		p.ackedSerial = serial
		p.outputW, p.outputH = int(w), int(h)
		p.configured = true
		if p.onResize != nil {
			p.onResize(int(w), int(h))
		}
		select {
		case <-p.ready:
		default:
			close(p.ready)
		}
	}
	p.layerSurface.OnClosed = func() {
		if p.onSurfaceClosed != nil {
			p.onSurfaceClosed()
		}
		close(p.closed)
	}

	p.surface.Commit()
	if err := p.dsp.Roundtrip(); err != nil {
		return pipeline.NewFatal(pipeline.FailureSurfaceUnavailable, err)
	}
	// One more roundtrip in case the compositor's configure arrives on
	// the second dispatch (some compositors batch it after the commit ack).
	if !p.configured {
		if err := p.dsp.Roundtrip(); err != nil {
			return pipeline.NewFatal(pipeline.FailureSurfaceUnavailable, err)
		}
	}
	if !p.configured {
		return pipeline.NewFatal(pipeline.FailureSurfaceUnavailable, fmt.Errorf("no configure event received"))
	}

	if p.viewporter != nil {
		p.viewport = p.viewporter.GetViewport(p.surface)
	}

	backing, err := waylandshell.NewPoolBacking(poolSize)
	if err != nil {
		return pipeline.NewFatal(pipeline.FailureSurfaceUnavailable, err)
	}
	p.backing = backing
	p.pool = p.shm.CreatePool(backing.Fd(), poolSize)

	return nil
}

// Ready reports once the first configure has been acked.
func (p *Presenter) Ready() <-chan struct{} { return p.ready }

// OutputSize returns the compositor-chosen output dimensions recorded
// by the last configure/mode event.
func (p *Presenter) OutputSize() (int, int) { return p.outputW, p.outputH }

// Configured reports whether a configure event has been acked, so
// swap() can decide whether an existing Presenter may be reused
// (spec §4.1: "reused only if it is still configured").
func (p *Presenter) Configured() bool { return p.configured }

// Closed reports once the compositor has closed the layer surface
// (spec §4.5.4: "closed" -> trigger Control Surface stop).
func (p *Presenter) Closed() <-chan struct{} { return p.closed }

// OnSurfaceClosed registers the Control Surface stop callback.
func (p *Presenter) OnSurfaceClosed(fn func()) { p.onSurfaceClosed = fn }

// allocateBuffers (re)builds the buffer array for the current stride
// and height, once dimensions are known (spec §4.5.2).
func (p *Presenter) allocateBuffers(stride, height int32) error {
	need := int64(stride) * int64(height) * bufferCount
	if need > poolSize {
		return pipeline.NewFatal(pipeline.FailureFrameTooLarge, fmt.Errorf("buffers need %d bytes, pool holds %d", need, poolSize))
	}
	for i := range p.buffers {
		if p.buffers[i].buf != nil {
			p.buffers[i].buf.Destroy()
		}
		offset := int32(i) * stride * height
		buf := p.pool.CreateBuffer(offset, int32(p.frameWidth), height, stride)
		idx := i
		buf.OnRelease = func() { p.buffers[idx].busy = false }
		p.buffers[i] = rotatingBuffer{buf: buf, offset: offset, busy: false}
	}
	return nil
}

// Present implements the per-frame loop of spec §4.5.3. clock supplies
// pacing; onEpochReset is called whenever this frame was detected as a
// loop seam, so callers can log epoch transitions (§4.5.5).
func (p *Presenter) Present(f framechan.Frame, clock *Clock, onEpochReset func()) error {
	if !p.configured {
		return nil // step 1: not yet configured, return silently
	}

	stride := int32(f.Stride)
	if stride != int32(f.Width)*bytesPerPixel || len(f.Data) != int(stride)*f.Height {
		return fmt.Errorf("malformed frame: stride=%d width=%d height=%d len=%d", stride, f.Width, f.Height, len(f.Data))
	}

	if p.frameWidth != f.Width || p.frameHeight != f.Height {
		p.frameWidth, p.frameHeight = f.Width, f.Height
		if err := p.allocateBuffers(stride, int32(f.Height)); err != nil {
			log.Printf("presenter: %v", err)
			return nil // FrameTooLarge: drop, don't terminate (spec §7)
		}
	}

	if clock.Started() && ShouldDropLate(time.Now(), clock.NextFrameTime(), f.DurationMS) {
		return nil // arrival already late by more than 2x duration (spec §4.5.2)
	}

	rb, _, dropped := p.acquireBuffer(f)
	if dropped {
		return nil
	}

	offset := rb.offset
	copy(p.backing.Bytes()[offset:int64(offset)+int64(len(f.Data))], f.Data)
	rb.busy = true

	if p.viewport != nil {
		p.viewport.SetSource(0, 0, float64(f.Width), float64(f.Height))
		p.viewport.SetDestination(int32(p.outputW), int32(p.outputH))
	}

	p.surface.Attach(rb.buf, 0, 0)
	p.surface.DamageBuffer(0, 0, int32(f.Width), int32(f.Height))
	p.surface.Commit()

	if err := p.dsp.Roundtrip(); err != nil {
		return err
	}

	now := time.Now()
	sleep, reset := clock.Advance(f, now)
	if reset && onEpochReset != nil {
		onEpochReset()
	}
	if sleep > 0 {
		time.Sleep(sleep)
	}

	p.current = (p.current + 1) % bufferCount
	return nil
}

// acquireBuffer implements the busy-buffer wait of spec §4.5.2: if the
// current round-robin buffer is still busy, it roundtrips to the
// compositor until that buffer is released, for at most one frame
// duration, and reports a drop if it is still busy then, on cancel, or
// on a connection error. The late-arrival drop is made by Present
// before this is called. It returns the buffer, whether it had to
// wait, and whether the frame is dropped.
func (p *Presenter) acquireBuffer(f framechan.Frame) (*rotatingBuffer, bool, bool) {
	rb := &p.buffers[p.current]
	if !rb.busy {
		return rb, false, false
	}

	duration := time.Duration(f.DurationMS) * time.Millisecond
	deadline := time.Now().Add(duration)
	for rb.busy {
		if p.flags.cancel() {
			return rb, true, true
		}
		if time.Now().After(deadline) {
			return rb, true, true // still busy after one frame duration: caller drops
		}
		if err := p.dsp.Roundtrip(); err != nil {
			return rb, true, true
		}
		time.Sleep(time.Millisecond)
	}
	return rb, true, false
}

// Run is the Presenter task's entry point: it owns the Wayland session
// for the lifetime of the pipeline, pulling frames off out until the
// Decoder closes it (end of stream / cancelled) and presenting each in
// turn. Exclusively owned by its own goroutine (spec §5).
func (p *Presenter) Run(out *framechan.Channel) {
	clock := NewClock()
	for {
		f, ok := out.Recv()
		if !ok {
			return
		}
		if err := p.Present(f, clock, p.logEpochReset); err != nil {
			log.Printf("presenter: %v", err)
		}
	}
}

func (p *Presenter) logEpochReset() {
	log.Printf("presenter: loop seam detected, resetting pacing clock")
}

// Close tears down the Wayland surface and releases the SHM pool
// (spec §5: "the mapping is released on Presenter drop").
func (p *Presenter) Close() {
	for i := range p.buffers {
		if p.buffers[i].buf != nil {
			p.buffers[i].buf.Destroy()
		}
	}
	if p.pool != nil {
		p.pool.Destroy()
	}
	if p.backing != nil {
		p.backing.Close()
	}
	if p.viewport != nil {
		p.viewport.Destroy()
	}
	if p.layerSurface != nil {
		p.layerSurface.Destroy()
	}
	if p.surface != nil {
		p.surface.Destroy()
	}
	p.dsp.Disconnect()
}
