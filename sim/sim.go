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

// Package sim is an in-process model of an AXI DMA core in direct-register
// mode, receiving a stream into host memory.
package sim

import (
	"context"
	"sync"

	"github.com/dpeckett/go-axisdma/internal/regs"
)

// DefaultLengthWidth is the width, in bits, of the simulated length
// register.
const DefaultLengthWidth = 23

// Memory is the region the simulated core writes packets into.
type Memory interface {
	Buf() []byte
	PhysAddr() uint64
}

type block struct {
	cr, sr    uint32
	addr      uint64
	length    uint32
	armed     bool
	requested uint32
	// faulted is set by an error and holds the block halted until a reset.
	faulted bool
}

// Core is a simulated DMA core. It implements the register window and the
// interrupt line of the hardware.
type Core struct {
	mem        Memory
	lengthMask uint32
	irq        chan struct{}

	mu          sync.Mutex
	blocks      [2]block // MM2S, S2MM
	stickHalted bool
	stickReset  bool
	resets      int
	starts      int
	lost        int
}

// New creates a core writing into mem. It starts out reset and halted.
func New(mem Memory) *Core {
	c := &Core{
		mem:        mem,
		lengthMask: 1<<DefaultLengthWidth - 1,
		irq:        make(chan struct{}, 1),
	}
	c.resetLocked()

	return c
}

func (c *Core) resetLocked() {
	for i := range c.blocks {
		c.blocks[i] = block{sr: regs.SRHalted}
	}
}

func (c *Core) decode(offset uint32) (*block, uint32) {
	if offset >= regs.S2MMBlock && offset < regs.S2MMBlock+regs.BlockSize {
		return &c.blocks[1], offset - regs.S2MMBlock
	}
	if offset < regs.MM2SBlock+regs.BlockSize {
		return &c.blocks[0], offset - regs.MM2SBlock
	}
	return nil, 0
}

// Read32 reads a register. Unmapped offsets read as zero.
func (c *Core) Read32(offset uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, reg := c.decode(offset)
	if b == nil {
		return 0
	}

	switch reg {
	case regs.Control:
		return b.cr
	case regs.Status:
		return b.sr
	case regs.Address:
		return uint32(b.addr)
	case regs.AddressMSB:
		return uint32(b.addr >> 32)
	case regs.Length:
		return b.length
	default:
		return 0
	}
}

// Write32 writes a register.
func (c *Core) Write32(offset uint32, value uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, reg := c.decode(offset)
	if b == nil {
		return
	}

	switch reg {
	case regs.Control:
		c.writeControlLocked(b, value)
	case regs.Status:
		b.sr &^= value & regs.SRIRQAll
	case regs.Address:
		b.addr = b.addr&^0xFFFFFFFF | uint64(value)
	case regs.AddressMSB:
		b.addr = b.addr&0xFFFFFFFF | uint64(value)<<32
	case regs.Length:
		b.length = value & c.lengthMask
		if b.cr&regs.CRRunStop != 0 && b.sr&regs.SRHalted == 0 {
			b.armed = true
			b.requested = b.length
			b.sr &^= regs.SRIdle
		}
	}
}

func (c *Core) writeControlLocked(b *block, value uint32) {
	if value&regs.CRReset != 0 {
		c.resets++
		if c.stickReset {
			b.cr = value
			return
		}
		c.resetLocked()
		return
	}

	wasRunning := b.cr&regs.CRRunStop != 0
	b.cr = value

	switch running := value&regs.CRRunStop != 0; {
	case running && !wasRunning:
		c.starts++
		if !c.stickHalted && !b.faulted {
			b.sr &^= regs.SRHalted
			b.sr |= regs.SRIdle
		}
	case !running && wasRunning:
		b.sr |= regs.SRHalted
		b.armed = false
	}
}

// Wait blocks until the core raises an interrupt or ctx is done.
func (c *Core) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.irq:
		return nil
	}
}

func (c *Core) raiseLocked(b *block, bits uint32) {
	b.sr |= bits

	enabled := (bits&regs.SRIOCIRQ != 0 && b.cr&regs.CRIOCIRQEn != 0) ||
		(bits&regs.SRErrIRQ != 0 && b.cr&regs.CRErrIRQEn != 0)
	if !enabled {
		return
	}

	select {
	case c.irq <- struct{}{}:
	default:
	}
}

// Inject delivers a packet from the stream to the S2MM direction. The packet
// is truncated to the armed transfer's length. It reports whether the packet
// was received; without an armed transfer the packet is lost.
func (c *Core) Inject(packet []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := &c.blocks[1]
	if !b.armed {
		c.lost++
		return false
	}

	n := uint32(len(packet))
	if n > b.requested {
		n = b.requested
	}

	buf := c.mem.Buf()
	base := c.mem.PhysAddr()
	if b.addr < base || b.addr-base+uint64(n) > uint64(len(buf)) {
		// Decode error, the address is outside the memory.
		c.faultLocked(b)

		return false
	}

	copy(buf[b.addr-base:], packet[:n])

	b.armed = false
	b.length = b.requested - n
	b.sr |= regs.SRIdle
	c.raiseLocked(b, regs.SRIOCIRQ)

	return true
}

// InjectOverrun completes the armed transfer with more bytes outstanding
// than were requested, as a core does after an internal error.
func (c *Core) InjectOverrun() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := &c.blocks[1]
	if !b.armed {
		return false
	}

	b.armed = false
	b.length = b.requested + 1
	b.sr |= regs.SRIdle
	c.raiseLocked(b, regs.SRIOCIRQ)

	return true
}

// InjectError raises the S2MM error interrupt and drops the armed transfer.
// The direction stays halted until the core is reset.
func (c *Core) InjectError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.faultLocked(&c.blocks[1])
}

func (c *Core) faultLocked(b *block) {
	b.armed = false
	b.faulted = true
	b.sr |= regs.SRHalted
	c.raiseLocked(b, regs.SRErrIRQ)
}

// SetStickHalted makes the core ignore the run bit, so that starting times
// out.
func (c *Core) SetStickHalted(stick bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stickHalted = stick
}

// SetStickReset makes resets never complete.
func (c *Core) SetStickReset(stick bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stickReset = stick
}

// SetLengthWidth sets the width of the length register, up to the widest the
// hardware supports. A width of 0 models a core built in scatter-gather mode,
// where the register does not exist.
func (c *Core) SetLengthWidth(bits uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lengthMask = uint32(uint64(1)<<bits-1) & regs.LengthMask
}

// Armed reports whether an S2MM transfer is armed, and its length.
func (c *Core) Armed() (bool, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := &c.blocks[1]
	return b.armed, b.requested
}

// ArmedAddr returns the device address of the armed S2MM transfer.
func (c *Core) ArmedAddr() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.blocks[1].addr
}

// Counters of a simulated core.
type Counters struct {
	Resets int
	Starts int
	// Lost is the number of packets injected without an armed transfer.
	Lost int
}

// Counters returns the core's counters.
func (c *Core) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Counters{Resets: c.resets, Starts: c.starts, Lost: c.lost}
}
