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

// Package regs holds the register map of the AXI DMA core in direct-register
// mode. It is shared by the driver and the simulator.
package regs

// Offsets of the per-direction control blocks within the core's register
// window.
const (
	MM2SBlock = 0x00
	S2MMBlock = 0x30
	// BlockSize is the span of a single direction's registers.
	BlockSize = 0x30
	// WindowSize is the smallest mapping that covers both directions.
	WindowSize = 0x1000
)

// Offsets relative to a direction's control block.
const (
	Control    = 0x00
	Status     = 0x04
	Address    = 0x18
	AddressMSB = 0x1C
	Length     = 0x28
)

// Control register bits.
const (
	CRRunStop  = 1 << 0
	CRReset    = 1 << 2
	CRIOCIRQEn = 1 << 12
	CRErrIRQEn = 1 << 14
	CRIRQAll   = CRIOCIRQEn | CRErrIRQEn
)

// Status register bits. The IRQ bits are write-1-to-clear.
const (
	SRHalted = 1 << 0
	SRIdle   = 1 << 1
	SRIOCIRQ = 1 << 12
	SRErrIRQ = 1 << 14
	SRIRQAll = SRIOCIRQ | SRErrIRQ
)

// LengthMask is the widest length register the core can be built with.
const LengthMask = 1<<26 - 1
