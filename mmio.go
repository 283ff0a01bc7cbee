/* SPDX-License-Identifier: ISC
 *
 * Copyright (c) 2019-2024 Stanford University
 * Copyright (c) 2024 Damian Peckett <damian@pecke.tt>
 *
 * Permission to use, copy, modify, and/or distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package axisdma

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MappedRegisters is a register window mapped into the process, typically
// from a UIO device or /dev/mem.
type MappedRegisters struct {
	mem []byte
}

// MapRegisters maps size bytes of the register window found at offset in
// the file at path.
func MapRegisters(path string, offset int64, size int) (*MappedRegisters, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open register window: %w", err)
	}
	// The mapping stays valid after the descriptor is closed.
	defer unix.Close(fd)

	mem, err := unix.Mmap(fd, offset, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("could not map register window: %w", err)
	}

	return &MappedRegisters{mem: mem}, nil
}

// Close unmaps the register window.
func (m *MappedRegisters) Close() error {
	return unix.Munmap(m.mem)
}

// Read32 performs a single 32-bit load from the window.
func (m *MappedRegisters) Read32(offset uint32) uint32 {
	return atomic.LoadUint32(m.word(offset))
}

// Write32 performs a single 32-bit store to the window.
func (m *MappedRegisters) Write32(offset uint32, value uint32) {
	atomic.StoreUint32(m.word(offset), value)
}

func (m *MappedRegisters) word(offset uint32) *uint32 {
	if offset&3 != 0 || int(offset)+4 > len(m.mem) {
		panic(fmt.Sprintf("register offset 0x%x outside window of %d bytes", offset, len(m.mem)))
	}
	return (*uint32)(unsafe.Pointer(&m.mem[offset]))
}
