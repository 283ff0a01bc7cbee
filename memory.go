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
	"io"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Memory is a region of memory the DMA core can write to.
type Memory interface {
	io.Closer
	// Buf returns the region as mapped into the process.
	Buf() []byte
	// PhysAddr is the device-visible address of the first byte of Buf.
	PhysAddr() uint64
}

type mappedMemory struct {
	buf  []byte
	phys uint64
}

func (m *mappedMemory) Buf() []byte      { return m.buf }
func (m *mappedMemory) PhysAddr() uint64 { return m.phys }

// Close unmaps the region.
func (m *mappedMemory) Close() error {
	return unix.Munmap(m.buf)
}

// AllocMemory allocates an anonymous region that claims to live at phys.
// It is only useful with a simulated core.
func AllocMemory(size int, phys uint64) (Memory, error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("could not allocate dma memory: %w", err)
	}

	return &mappedMemory{buf: buf, phys: phys}, nil
}

// MapMemory maps size bytes at offset of the device at path, whose first
// byte is seen by the DMA core at phys.
func MapMemory(path string, offset int64, size int, phys uint64) (Memory, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open dma memory: %w", err)
	}
	defer unix.Close(fd)

	buf, err := unix.Mmap(fd, offset, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("could not map dma memory: %w", err)
	}

	return &mappedMemory{buf: buf, phys: phys}, nil
}

// Where the u-dma-buf driver publishes its buffers.
var (
	udmabufClassDir = "/sys/class/u-dma-buf"
	udmabufDevDir   = "/dev"
)

// OpenUDMABuf maps the u-dma-buf buffer with the given name, e.g. "udmabuf0".
// Opening with O_SYNC makes the mapping uncached.
func OpenUDMABuf(name string) (Memory, error) {
	size, err := readSysfsUint(filepath.Join(udmabufClassDir, name, "size"))
	if err != nil {
		return nil, fmt.Errorf("could not read udmabuf size: %w", err)
	}

	phys, err := readSysfsUint(filepath.Join(udmabufClassDir, name, "phys_addr"))
	if err != nil {
		return nil, fmt.Errorf("could not read udmabuf address: %w", err)
	}

	return MapMemory(filepath.Join(udmabufDevDir, name), 0, int(size), phys)
}
