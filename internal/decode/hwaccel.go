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

package decode

import (
	"fmt"

	astiav "github.com/asticode/go-astiav"

	"github.com/waypaperd/waypaperd/internal/pipeline"
)

// probeOrder is the fixed hardware backend preference order of spec §4.6.
var probeOrder = []pipeline.HWAccel{
	pipeline.HWAccelVAAPI,
	pipeline.HWAccelCUDA,
	pipeline.HWAccelVDPAU,
	pipeline.HWAccelQSV,
	pipeline.HWAccelVideoToolbox,
	pipeline.HWAccelD3D11VA,
}

func astiavHWType(h pipeline.HWAccel) astiav.HardwareDeviceType {
	switch h {
	case pipeline.HWAccelVAAPI:
		return astiav.HardwareDeviceTypeVaapi
	case pipeline.HWAccelCUDA:
		return astiav.HardwareDeviceTypeCuda
	case pipeline.HWAccelVDPAU:
		return astiav.HardwareDeviceTypeVdpau
	case pipeline.HWAccelQSV:
		return astiav.HardwareDeviceTypeQsv
	case pipeline.HWAccelVideoToolbox:
		return astiav.HardwareDeviceTypeVideotoolbox
	case pipeline.HWAccelD3D11VA:
		return astiav.HardwareDeviceTypeD3D11Va
	default:
		return astiav.HardwareDeviceTypeNone
	}
}

// candidates returns the backends to attempt, in order, for a given
// hint. "auto"/None with ForceHW=false means "try the full probe
// order, software is always an acceptable fallback"; None with
// ForceHW=true means software only. A specific backend hint tries only
// that backend, whatever ForceHW says; if it fails the Decoder falls
// back to software.
func candidates(hints pipeline.Hints) []pipeline.HWAccel {
	if hints.HWAccel == pipeline.HWAccelNone {
		if hints.ForceHW {
			return nil // forced "none" means software only, trivially satisfied
		}
		return probeOrder
	}
	return []pipeline.HWAccel{hints.HWAccel}
}

// attachHardware implements the probe-and-attempt policy of spec §4.6:
// try each candidate backend in order, creating a device context and
// binding it to vctx; the first one that succeeds wins. If none
// succeed (or hints request software only), it returns a nil context
// and HWAccelNone — never an error the caller must treat as fatal,
// since falling back to software is always acceptable (spec §7,
// HardwareInitFailed is "recovered locally").
func (d *Decoder) attachHardware(vctx *astiav.CodecContext) (*astiav.HardwareDeviceContext, pipeline.HWAccel, error) {
	cands := candidates(d.hints)
	var lastErr error
	for _, cand := range cands {
		hwType := astiavHWType(cand)
		hwCtx, err := astiav.CreateHardwareDeviceContext(hwType, "", nil, 0)
		if err != nil {
			lastErr = fmt.Errorf("%s: CreateHardwareDeviceContext: %w", cand, err)
			continue
		}
		vctx.SetHardwareDeviceContext(hwCtx)
		return hwCtx, cand, nil
	}
	if len(cands) == 0 {
		return nil, pipeline.HWAccelNone, nil
	}
	return nil, pipeline.HWAccelNone, lastErr
}
