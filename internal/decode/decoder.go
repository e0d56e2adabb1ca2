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

// Package decode implements the Decoder (C2): it owns the FFmpeg
// FormatContext/CodecContext pair, drives the packet/frame loop,
// handles seamless looping at EOF, and runs the Converter inline on
// every decoded frame before handing the result to the Frame Channel.
//
// Grounded on the teacher's openAndDecode (video.go): same
// AllocFormatContext/OpenInput/FindStreamInfo/SendPacket/ReceiveFrame
// idiom, same style of building an options astiav.Dictionary before
// opening. Generalized from "one camera stream that never loops" to
// "loop at EOF via seek(0), with epoch tracking", and "software decode
// only" to "policy-selected hardware backend with fallback" (spec §4.6).
package decode

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	astiav "github.com/asticode/go-astiav"

	"github.com/waypaperd/waypaperd/internal/convert"
	"github.com/waypaperd/waypaperd/internal/framechan"
	"github.com/waypaperd/waypaperd/internal/pipeline"
)

// maxTransientErrors is the number of consecutive non-EOF/non-EAGAIN
// decode errors that escalate a TransientDecodeError to fatal (spec §7).
const maxTransientErrors = 3

// pauseCheckEveryNFrames limits pause-flag mutex/atomic contention,
// per spec §4.2 step 4 ("checked every N (default 10) frames").
const pauseCheckEveryNFrames = 10

// pausePollInterval is how long the Decoder sleeps between pause checks.
const pausePollInterval = 100 * time.Millisecond

// Decoder drives one VideoSource's packet/frame loop. It is created
// fresh for every start()/swap() and is exclusively owned by its own
// goroutine; Control Surface communicates with it only through the
// atomics in Flags and the Ready/Fatal channels.
type Decoder struct {
	path  string
	hints pipeline.Hints

	flags *Flags

	ready chan pipeline.VideoSource
	fatal chan error

	out *framechan.Channel
	cnv *convert.Converter

	hwAccel pipeline.HWAccel // backend actually selected, logged once
}

// Flags are the cooperative cancellation/pause signals shared with the
// Control Surface: an atomic boolean plus a closed-channel sentinel
// (spec §9), so cancellation is observable both by a cheap polled
// check and by a select-able channel at any suspension point — never a
// lock the hot path and the Control Surface would contend on.
type Flags struct {
	cancel   atomic.Bool
	cancelCh chan struct{}
	once     sync.Once
	pause    atomic.Bool
}

func NewFlags() *Flags { return &Flags{cancelCh: make(chan struct{})} }

func (f *Flags) Cancel() {
	f.cancel.Store(true)
	f.once.Do(func() { close(f.cancelCh) })
}
func (f *Flags) Cancelled() bool          { return f.cancel.Load() }
func (f *Flags) Done() <-chan struct{}    { return f.cancelCh }
func (f *Flags) SetPaused(p bool)         { f.pause.Store(p) }
func (f *Flags) Paused() bool             { return f.pause.Load() }

// New creates a Decoder that will push PresentableFrames onto out,
// converting to outW x outH BGRA along the way.
func New(path string, hints pipeline.Hints, flags *Flags, out *framechan.Channel, outW, outH int) *Decoder {
	return &Decoder{
		path:  path,
		hints: hints,
		flags: flags,
		ready: make(chan pipeline.VideoSource, 1),
		fatal: make(chan error, 1),
		out:   out,
		cnv:   convert.New(outW, outH, hints.ScaleMode),
	}
}

// Ready signals once Open succeeds, carrying the resolved VideoSource.
func (d *Decoder) Ready() <-chan pipeline.VideoSource { return d.ready }

// Fatal signals a terminal error that ends the pipeline (spec §7).
func (d *Decoder) Fatal() <-chan error { return d.fatal }

// SetOutputSize retargets the Converter's output dimensions without
// tearing down the Decoder. No other package in this module calls it,
// so the output size stays the one passed to New.
func (d *Decoder) SetOutputSize(w, h int) { d.cnv.SetOutputSize(w, h) }

// Run is the Decoder task's entry point. It must run on a goroutine
// dedicated to this blocking FFI region: runtime.LockOSThread pins it
// to one OS thread for its lifetime, exactly like the teacher's
// decodeLoop, so FFmpeg's blocking calls never stall other goroutines'
// underlying M.
func (d *Decoder) Run() {
	defer d.out.Close()
	defer d.cnv.Close()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := d.openAndDecode(); err != nil {
		if d.flags.Cancelled() {
			return // Cancelled is a termination cause, not an error (spec §7)
		}
		d.fatal <- err
	}
}

func (d *Decoder) openAndDecode() error {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return pipeline.NewFatal(pipeline.FailureSourceOpenFailed, errors.New("AllocFormatContext"))
	}
	defer fc.Free()

	opts := astiav.NewDictionary()
	defer opts.Free()

	if err := fc.OpenInput(d.path, nil, opts); err != nil {
		return pipeline.NewFatal(pipeline.FailureSourceOpenFailed, fmt.Errorf("OpenInput: %w", err))
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		return pipeline.NewFatal(pipeline.FailureSourceOpenFailed, fmt.Errorf("FindStreamInfo: %w", err))
	}

	vIdx := -1
	for i, s := range fc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			vIdx = i
			break
		}
	}
	if vIdx < 0 {
		return pipeline.NewFatal(pipeline.FailureSourceOpenFailed, errors.New("no video stream"))
	}
	vst := fc.Streams()[vIdx]
	vpar := vst.CodecParameters()

	vdec := astiav.FindDecoder(vpar.CodecID())
	if vdec == nil {
		return pipeline.NewFatal(pipeline.FailureSourceOpenFailed, errors.New("FindDecoder: unsupported codec"))
	}
	vctx := astiav.AllocCodecContext(vdec)
	if vctx == nil {
		return pipeline.NewFatal(pipeline.FailureSourceOpenFailed, errors.New("AllocCodecContext nil"))
	}
	defer vctx.Free()
	if err := vpar.ToCodecContext(vctx); err != nil {
		return pipeline.NewFatal(pipeline.FailureSourceOpenFailed, fmt.Errorf("ToCodecContext: %w", err))
	}

	hwCtx, hwType, err := d.attachHardware(vctx)
	if err != nil {
		log.Printf("hardware init failed, falling back to software: %v", err)
	}
	if hwCtx != nil {
		defer hwCtx.Free()
	}
	d.hwAccel = hwType
	log.Printf("decoder: selected backend %s for %s", d.hwAccel, d.path)

	if err := vctx.Open(vdec, nil); err != nil {
		if hwCtx != nil {
			// HardwareInitFailed: retry once in pure software (spec §4.6).
			log.Printf("hardware decoder open failed, retrying in software: %v", err)
			vctx.Free()
			vctx = astiav.AllocCodecContext(vdec)
			if vctx == nil {
				return pipeline.NewFatal(pipeline.FailureSourceOpenFailed, errors.New("AllocCodecContext nil (sw retry)"))
			}
			if err := vpar.ToCodecContext(vctx); err != nil {
				return pipeline.NewFatal(pipeline.FailureSourceOpenFailed, fmt.Errorf("ToCodecContext (sw retry): %w", err))
			}
			d.hwAccel = pipeline.HWAccelNone
			if err := vctx.Open(vdec, nil); err != nil {
				return pipeline.NewFatal(pipeline.FailureSourceOpenFailed, fmt.Errorf("Open (sw retry): %w", err))
			}
		} else {
			return pipeline.NewFatal(pipeline.FailureSourceOpenFailed, fmt.Errorf("Open: %w", err))
		}
	}

	tb := vst.TimeBase()
	src := pipeline.VideoSource{
		Path:        d.path,
		StreamIndex: vIdx,
		TimeBaseNum: tb.Num(),
		TimeBaseDen: tb.Den(),
		CodecID:     vdec.Name(),
	}
	d.ready <- src

	pkt := astiav.AllocPacket()
	defer pkt.Free()
	frame := astiav.AllocFrame()
	defer frame.Free()
	var swFrame *astiav.Frame
	if hwCtx != nil {
		swFrame = astiav.AllocFrame()
		defer swFrame.Free()
	}

	var (
		epoch         uint64
		frameIdx      uint64
		lastPTS       int64
		havePriorPTS  bool
		framesSinceCk int
		transientErrs int
	)

	for {
		if d.flags.Cancelled() {
			return nil
		}

		framesSinceCk++
		if framesSinceCk >= pauseCheckEveryNFrames {
			framesSinceCk = 0
			for d.flags.Paused() {
				if d.flags.Cancelled() {
					return nil
				}
				time.Sleep(pausePollInterval)
			}
		}

		if err := fc.ReadFrame(pkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				if err := fc.SeekFrame(vIdx, 0, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
					return pipeline.NewFatal(pipeline.FailureSourceOpenFailed, fmt.Errorf("loop seek failed: %w", err))
				}
				epoch++
				frameIdx = 0
				havePriorPTS = false
				vctx.FlushBuffers()
				continue
			}
			return fmt.Errorf("ReadFrame: %w", err)
		}

		if pkt.StreamIndex() != vIdx {
			pkt.Unref()
			continue
		}

		if err := vctx.SendPacket(pkt); err != nil {
			pkt.Unref()
			transientErrs++
			if transientErrs >= maxTransientErrors {
				return fmt.Errorf("decode stalled after %d consecutive errors: %w", transientErrs, err)
			}
			continue
		}
		pkt.Unref()

		for {
			err := vctx.ReceiveFrame(frame)
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				break
			}
			if err != nil {
				transientErrs++
				if transientErrs >= maxTransientErrors {
					return fmt.Errorf("decode stalled after %d consecutive errors: %w", transientErrs, err)
				}
				break
			}
			transientErrs = 0

			decoded := frame
			if hwCtx != nil && d.hwAccel != pipeline.HWAccelNone {
				if err := frame.TransferHardwareData(swFrame); err != nil {
					log.Printf("hardware frame transfer failed: %v", err)
					frame.Unref()
					continue
				}
				decoded = swFrame
			}

			pts := frame.Pts()
			deltaSec := 0.0
			if havePriorPTS && tb.Den() > 0 {
				deltaSec = float64(pts-lastPTS) * float64(tb.Num()) / float64(tb.Den())
			}
			durMS := framechan.ClampDuration(deltaSec, havePriorPTS)
			lastPTS = pts
			havePriorPTS = true

			w, h, stride, data, err := d.cnv.ToBGRA(decoded)
			if decoded == swFrame {
				swFrame.Unref()
			}
			frame.Unref()
			if err != nil {
				log.Printf("convert: %v", err)
				continue
			}

			pf := framechan.Frame{
				Data:       data,
				Width:      w,
				Height:     h,
				Stride:     stride,
				DurationMS: durMS,
				Index:      frameIdx,
				Epoch:      epoch,
			}
			frameIdx++

			if !d.out.Send(pf, d.flags.Done()) {
				return nil
			}
		}
	}
}
