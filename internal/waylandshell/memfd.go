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

package waylandshell

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// PoolBacking is the anonymous file backing the reusable SHM pool
// (spec §6 "Temporary file"): created via memfd_create, sized once,
// and mapped MAP_SHARED for the Presenter's lifetime. The underlying
// memfd has no directory entry to unlink — memfd_create never creates
// one — so there is nothing to remove after creation, satisfying "one
// anonymous file ... lives for the Presenter's lifetime".
type PoolBacking struct {
	fd   int
	data []byte
}

// NewPoolBacking creates and maps a memfd of exactly size bytes.
func NewPoolBacking(size int32) (*PoolBacking, error) {
	fd, err := unix.MemfdCreate("waypaperd-shm-pool", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate: %w", err)
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return &PoolBacking{fd: fd, data: data}, nil
}

// Fd is the descriptor handed to wl_shm.CreatePool. It must not be
// closed or re-sent after that call.
func (p *PoolBacking) Fd() uintptr { return uintptr(p.fd) }

// Bytes returns the mapped region for in-place frame writes.
func (p *PoolBacking) Bytes() []byte { return p.data }

// Close unmaps and closes the backing file.
func (p *PoolBacking) Close() error {
	if p.data != nil {
		if err := unix.Munmap(p.data); err != nil {
			return fmt.Errorf("munmap: %w", err)
		}
		p.data = nil
	}
	return syscall.Close(p.fd)
}
