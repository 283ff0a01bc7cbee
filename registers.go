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
	"github.com/dpeckett/go-axisdma/internal/regs"
)

// Registers provides 32-bit access to the DMA core's register window.
// Offsets are relative to the start of the window.
type Registers interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// Direction is the transfer direction of a channel.
type Direction int

const (
	// DevToMem moves data from the AXI4-Stream into memory (S2MM).
	DevToMem Direction = iota
	// MemToDev moves data from memory onto the AXI4-Stream (MM2S).
	MemToDev
)

func (d Direction) String() string {
	switch d {
	case DevToMem:
		return "s2mm"
	case MemToDev:
		return "mm2s"
	default:
		return "unknown"
	}
}

// blockOffset returns the offset of the direction's control block.
func (d Direction) blockOffset() uint32 {
	if d == MemToDev {
		return regs.MM2SBlock
	}
	return regs.S2MMBlock
}

// regBlock is a view of one direction's control registers.
type regBlock struct {
	regs Registers
	base uint32
}

func (b regBlock) read(reg uint32) uint32 {
	return b.regs.Read32(b.base + reg)
}

func (b regBlock) write(reg uint32, value uint32) {
	b.regs.Write32(b.base+reg, value)
}

func (b regBlock) set(reg uint32, mask uint32) {
	b.write(reg, b.read(reg)|mask)
}

func (b regBlock) clear(reg uint32, mask uint32) {
	b.write(reg, b.read(reg)&^mask)
}

// writeAddr programs a 64-bit device address, low word first.
func (b regBlock) writeAddr(addr uint64) {
	b.write(regs.Address, uint32(addr))
	b.write(regs.AddressMSB, uint32(addr>>32))
}
