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
	"log/slog"
	"sync"

	"github.com/dpeckett/go-axisdma/internal/regs"
)

// Status is the state of a channel's hardware.
type Status int

const (
	// StatusIdle means the hardware has no active transfer.
	StatusIdle Status = iota
	// StatusBusy means one transfer is active.
	StatusBusy
	// StatusError means the hardware needs a reset.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusBusy:
		return "busy"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Core is an AXI DMA core in direct-register mode. A reset of the core
// affects both of its directions, so resets are serialised here.
type Core struct {
	regs    Registers
	resetMu sync.Mutex
}

// NewCore wraps the register window of a DMA core.
func NewCore(r Registers) *Core {
	return &Core{regs: r}
}

// Channel drives one direction of a DMA core.
type Channel struct {
	core      *Core
	regs      regBlock
	log       *slog.Logger
	name      string
	direction Direction
	pollIters int
	cfg       ChannelConfig
	maxLen    uint32

	mu        sync.Mutex
	status    Status
	cookie    Cookie // last assigned
	pending   []descriptor
	active    descriptor
	hasActive bool
	completed history
}

// Channel resets the core and sets up the channel for the configured
// direction. The maximum transfer length is read back from the hardware.
func (c *Core) Channel(cfg ChannelConfig) (*Channel, error) {
	cfg = cfg.withDefaults()

	ch := &Channel{
		core:      c,
		regs:      regBlock{regs: c.regs, base: cfg.Direction.blockOffset()},
		name:      "axi-dma-" + cfg.Direction.String(),
		direction: cfg.Direction,
		pollIters: cfg.PollIterations,
		cfg:       cfg,
		pending:   make([]descriptor, 0, cfg.QueueDepth),
	}
	ch.log = cfg.Logger.With(slog.String("channel", ch.name))

	if err := ch.Reset(); err != nil {
		return nil, err
	}

	// The core is halted, so writing all ones to the length register sizes it
	// without starting a transfer.
	ch.regs.write(regs.Length, 0xFFFFFFFF)
	ch.maxLen = ch.regs.read(regs.Length) & regs.LengthMask
	ch.regs.write(regs.Length, 0)

	if ch.maxLen == 0 {
		return nil, fmt.Errorf("could not determine max transfer length of %s: %w", ch.name, ErrScatterGather)
	}

	ch.regs.set(regs.Control, regs.CRIRQAll)

	ch.log.Info("Set up channel", slog.Uint64("maxTransferLength", uint64(ch.maxLen)))

	return ch, nil
}

// Name returns the channel's name.
func (ch *Channel) Name() string {
	return ch.name
}

// Direction returns the direction the channel moves data in.
func (ch *Channel) Direction() Direction {
	return ch.direction
}

// MaxTransferLength returns the largest transfer the core accepts.
func (ch *Channel) MaxTransferLength() uint32 {
	return ch.maxLen
}

// Status returns the channel's current hardware state.
func (ch *Channel) Status() Status {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.status
}

// Close disables the channel's interrupts.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.regs.clear(regs.Control, regs.CRIRQAll)

	return nil
}

// Reset resets the DMA core. Both directions of the core are reset.
// A transfer that was active is put back at the head of the pending queue.
func (ch *Channel) Reset() error {
	ch.core.resetMu.Lock()
	defer ch.core.resetMu.Unlock()

	ch.regs.set(regs.Control, regs.CRReset)

	_, err := pollUntil(func() uint32 { return ch.regs.read(regs.Control) },
		func(cr uint32) bool { return cr&regs.CRReset == 0 },
		ch.pollIters, ch.cfg.PollDelay)

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if err != nil {
		ch.log.Error("Reset timed out",
			slog.String("cr", fmt.Sprintf("%#x", ch.regs.read(regs.Control))),
			slog.String("sr", fmt.Sprintf("%#x", ch.regs.read(regs.Status))))
		ch.status = StatusError

		return fmt.Errorf("could not reset %s: %w", ch.name, err)
	}

	if ch.maxLen != 0 {
		// The reset cleared the interrupt enables.
		ch.regs.set(regs.Control, regs.CRIRQAll)
	}

	if ch.hasActive {
		ch.pending = append(ch.pending, descriptor{})
		copy(ch.pending[1:], ch.pending)
		ch.pending[0] = ch.active
		ch.hasActive = false
	}

	ch.status = StatusIdle

	return nil
}

// Submit queues a transfer and returns its cookie. It does not start the
// hardware, see IssuePending. A channel in the error state is reset first,
// and if that fails the transfer is not queued.
func (ch *Channel) Submit(req Request) (Cookie, error) {
	if req.Length == 0 || req.Length > ch.maxLen {
		return 0, fmt.Errorf("could not submit %d byte transfer to %s: %w", req.Length, ch.name, ErrInvalidLength)
	}

	if ch.Status() == StatusError {
		ch.log.Warn("Channel is in error state, attempting reset")

		if err := ch.Reset(); err != nil {
			ch.log.Error("Reset failed, channel inoperable", slog.Any("error", err))

			return 0, fmt.Errorf("%w: %w", ErrInoperable, err)
		}
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.cookie = ch.cookie.next()
	ch.pending = append(ch.pending, descriptor{
		cookie:    ch.cookie,
		addr:      req.Addr,
		requested: req.Length,
		callback:  req.Callback,
	})

	return ch.cookie, nil
}

// IssuePending starts the oldest pending transfer if the channel is idle.
func (ch *Channel) IssuePending() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.startNextLocked()
}

func (ch *Channel) startNextLocked() {
	// After a halt the active transfer may still complete, so it blocks the
	// queue until then.
	if ch.status != StatusIdle || ch.hasActive || len(ch.pending) == 0 {
		return
	}

	d := ch.pending[0]

	ch.regs.writeAddr(d.addr)

	if err := ch.hwStartLocked(); err != nil {
		return
	}

	copy(ch.pending, ch.pending[1:])
	ch.pending = ch.pending[:len(ch.pending)-1]

	ch.active = d
	ch.hasActive = true
	ch.status = StatusBusy

	// Writing the length arms the transfer.
	ch.regs.write(regs.Length, d.requested)
}

// hwStartLocked sets the run bit and waits for the core to leave the halted
// state.
func (ch *Channel) hwStartLocked() error {
	ch.regs.set(regs.Control, regs.CRRunStop)

	sr, err := pollUntil(func() uint32 { return ch.regs.read(regs.Status) },
		func(sr uint32) bool { return sr&regs.SRHalted == 0 },
		ch.pollIters, ch.cfg.PollDelay)
	if err != nil {
		ch.log.Error("Could not start channel", slog.String("sr", fmt.Sprintf("%#x", sr)))
		ch.status = StatusError

		return err
	}

	return nil
}

// Halt clears the run bit and waits for the core to halt. The S2MM core only
// reports halted once an in-flight transfer has drained, so a timeout here is
// expected while the stream is idle and is only logged. An active transfer
// is kept, as the core may still complete it, and the channel stays busy
// until it does. An error state survives the halt, so the next submission
// still resets the core.
func (ch *Channel) Halt() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.haltLocked()
}

func (ch *Channel) haltLocked() {
	ch.regs.clear(regs.Control, regs.CRRunStop)

	sr, err := pollUntil(func() uint32 { return ch.regs.read(regs.Status) },
		func(sr uint32) bool { return sr&regs.SRHalted != 0 },
		ch.pollIters, ch.cfg.PollDelay)
	if err != nil {
		ch.log.Warn("Could not halt channel", slog.String("sr", fmt.Sprintf("%#x", sr)))
	}

	if ch.status != StatusError && !ch.hasActive {
		ch.status = StatusIdle
	}
}

// TerminateAll halts the channel and forgets every pending, active and
// completed transfer. Callbacks of forgotten transfers are not invoked.
func (ch *Channel) TerminateAll() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.haltLocked()

	ch.pending = ch.pending[:0]
	ch.active = descriptor{}
	ch.hasActive = false
	ch.completed.reset()

	if ch.status != StatusError {
		ch.status = StatusIdle
	}
}

// HandleInterrupt services the channel's interrupt. It reports whether the
// channel had raised it.
func (ch *Channel) HandleInterrupt() bool {
	ch.mu.Lock()

	sr := ch.regs.read(regs.Status)
	if sr&regs.SRIRQAll == 0 {
		ch.mu.Unlock()
		return false
	}

	ch.regs.write(regs.Status, sr&regs.SRIRQAll)

	if sr&regs.SRErrIRQ != 0 {
		ch.log.Error("Channel has errors",
			slog.String("cr", fmt.Sprintf("%#x", ch.regs.read(regs.Control))),
			slog.String("sr", fmt.Sprintf("%#x", sr)))
		ch.status = StatusError
		ch.mu.Unlock()

		return true
	}

	if sr&regs.SRIOCIRQ == 0 {
		ch.mu.Unlock()
		return true
	}

	if !ch.hasActive {
		// Halting does not drain the active transfer, so it can still
		// complete after TerminateAll.
		ch.log.Error("Channel fired interrupt without an active transfer")
		ch.mu.Unlock()

		return true
	}

	d := ch.active
	outstanding := ch.regs.read(regs.Length)
	if outstanding > d.requested {
		d.failed = true
	} else {
		d.transferred = d.requested - outstanding
	}

	ch.active = descriptor{}
	ch.hasActive = false
	ch.completed.push(d)
	ch.status = StatusIdle

	ch.startNextLocked()

	ch.mu.Unlock()

	if d.callback != nil {
		d.callback(d.cookie)
	}

	return true
}

// TxStatus returns the state of the transfer identified by cookie together
// with its residue, the number of bytes not transferred. The residue is -1
// when it is unknown.
func (ch *Channel) TxStatus(cookie Cookie) (TxStatus, int64) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if !cookie.Valid() {
		return TxNotFound, -1
	}

	if ch.hasActive && ch.active.cookie == cookie {
		return TxInProgress, int64(ch.regs.read(regs.Length))
	}

	if d, ok := ch.completed.find(cookie); ok {
		if d.failed {
			return TxError, -1
		}
		return TxComplete, int64(d.requested) - int64(d.transferred)
	}

	for _, d := range ch.pending {
		if d.cookie == cookie {
			return TxInProgress, int64(d.requested)
		}
	}

	return TxNotFound, -1
}
