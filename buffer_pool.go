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
)

// bufferAlign is the alignment of every transfer buffer within the pool.
const bufferAlign = 64

// BufferPool carves a DMA memory region into a fixed set of transfers.
type BufferPool struct {
	mem       Memory
	transfers []Transfer
	stride    int
}

// NewBufferPool splits mem into count transfers holding size bytes each.
func NewBufferPool(mem Memory, count int, size uint32) (*BufferPool, error) {
	if count <= 0 || size == 0 {
		return nil, fmt.Errorf("could not create buffer pool of %d x %d bytes", count, size)
	}

	stride := (int(size) + bufferAlign - 1) &^ (bufferAlign - 1)
	buf := mem.Buf()
	if need := stride*(count-1) + int(size); len(buf) < need {
		return nil, fmt.Errorf("dma memory of %d bytes is too small for %d x %d bytes", len(buf), count, size)
	}

	bp := &BufferPool{
		mem:       mem,
		transfers: make([]Transfer, count),
		stride:    stride,
	}

	for i := range bp.transfers {
		off := i * stride
		bp.transfers[i] = Transfer{
			index:  i,
			buf:    buf[off : off+int(size) : off+int(size)],
			addr:   mem.PhysAddr() + uint64(off),
			length: size,
		}
	}

	return bp, nil
}

// Close frees the pool's memory.
func (bp *BufferPool) Close() error {
	return bp.mem.Close()
}

// Len returns the number of transfers in the pool.
func (bp *BufferPool) Len() int {
	return len(bp.transfers)
}

// Transfer returns the transfer at index i.
func (bp *BufferPool) Transfer(i int) *Transfer {
	return &bp.transfers[i]
}

// Base returns the device address of the pool's memory.
func (bp *BufferPool) Base() uint64 {
	return bp.mem.PhysAddr()
}

// Size returns the size of the pool's memory (in bytes).
func (bp *BufferPool) Size() int {
	return len(bp.mem.Buf())
}
