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
	"context"
	"fmt"
	"log/slog"
	"sync"
)

//go:generate mockgen -destination=mock_engine_test.go -package=axisdma_test . Engine

// Engine is the part of a DMA channel a Stream drives. *Channel implements it.
type Engine interface {
	Submit(req Request) (Cookie, error)
	IssuePending()
	Status() Status
	Reset() error
	TxStatus(cookie Cookie) (TxStatus, int64)
	TerminateAll()
	MaxTransferLength() uint32
}

// Stats are the monotonic counters of a stream.
type Stats struct {
	// Completed is the number of packets received.
	Completed uint64
	// CompletedBytes is the number of bytes received.
	CompletedBytes uint64
	// Dropped is the number of unread packets overwritten under backpressure.
	Dropped uint64
	// DroppedBytes is the size of the dropped packets.
	DroppedBytes uint64
	// Errors counts failed transfers, failed resubmissions and failed copies.
	Errors uint64
	// Exhausted counts completions after which no transfer could be
	// resubmitted.
	Exhausted uint64
}

// Counts is the distribution of a stream's transfers.
type Counts struct {
	Free      int
	Pending   int
	Completed int
	// Reading is the number of transfers being copied out by a read.
	Reading int
}

// Total returns the number of transfers accounted for.
func (c Counts) Total() int {
	return c.Free + c.Pending + c.Completed + c.Reading
}

// Stream receives packets through a DMA channel into a fixed pool of
// transfers and hands them, oldest first, to a single reader.
type Stream struct {
	engine Engine
	pool   *BufferPool
	log    *slog.Logger

	// ioMu serialises submissions and completions against each other and
	// against Close. It is never taken with mu held.
	ioMu sync.Mutex

	mu        sync.Mutex
	cond      *sync.Cond
	open      bool
	free      indexQueue
	pending   indexQueue
	completed indexQueue
	reading   int
	stats     Stats
}

// NewStream creates a stream over engine whose transfers live in mem.
func NewStream(engine Engine, mem Memory, cfg Config) (*Stream, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stream config: %w", err)
	}

	if max := engine.MaxTransferLength(); cfg.MaxPacketLength > max {
		return nil, fmt.Errorf("max packet length %d exceeds max transfer length %d: %w",
			cfg.MaxPacketLength, max, ErrInvalidLength)
	}

	pool, err := NewBufferPool(mem, cfg.PoolSize, cfg.MaxPacketLength)
	if err != nil {
		return nil, fmt.Errorf("could not create stream: %w", err)
	}

	s := &Stream{
		engine:    engine,
		pool:      pool,
		log:       cfg.Logger.With(slog.String("stream", "axis-reader")),
		free:      newIndexQueue(cfg.PoolSize),
		pending:   newIndexQueue(cfg.PoolSize),
		completed: newIndexQueue(cfg.PoolSize),
	}
	s.cond = sync.NewCond(&s.mu)

	for i := 0; i < pool.Len(); i++ {
		t := pool.Transfer(i)
		t.done = func(cookie Cookie) { s.complete(t, cookie) }
		s.free.push(i)
	}

	return s, nil
}

// Open starts receiving. Two transfers are queued so that the next one is
// already staged when the first completes; the stream has no buffering of
// its own. If the channel cannot be started, every transfer is returned to
// the free list and the stream stays closed.
func (s *Stream) Open() error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.Lock()
	if s.open {
		s.mu.Unlock()
		return ErrBusy
	}

	if n := s.free.len(); n < minOpenTransfers {
		s.mu.Unlock()
		s.log.Error("Could not open, not enough free transfers", slog.Int("free", n))

		return fmt.Errorf("could not open stream with %d free transfers: %w", n, ErrExhausted)
	}

	var primed [minOpenTransfers]int
	for i := range primed {
		primed[i] = s.free.pop()
		s.pending.push(primed[i])
	}
	s.open = true
	s.mu.Unlock()

	var lastErr error
	submitted := 0
	for _, idx := range primed {
		if err := s.submit(s.pool.Transfer(idx)); err != nil {
			s.log.Error("Could not submit transfer", slog.Int("transfer", idx), slog.Any("error", err))
			s.recycleFailed(idx)
			lastErr = err

			continue
		}
		submitted++
	}

	if submitted == 0 {
		s.mu.Lock()
		s.open = false
		s.mu.Unlock()

		return fmt.Errorf("could not open stream: %w", lastErr)
	}

	if err := s.start(); err != nil {
		s.engine.TerminateAll()

		s.mu.Lock()
		for s.pending.len() > 0 {
			s.free.push(s.pending.pop())
		}
		s.open = false
		s.stats.Errors++
		s.mu.Unlock()

		return fmt.Errorf("could not open stream: %w", err)
	}

	return nil
}

// start issues the pending transfers. A channel that fails to start is reset
// once and the transfers are issued again. ioMu must be held.
func (s *Stream) start() error {
	s.engine.IssuePending()
	if s.engine.Status() != StatusError {
		return nil
	}

	s.log.Warn("Channel failed to start, attempting reset")

	if err := s.engine.Reset(); err != nil {
		return fmt.Errorf("%w: %w", ErrInoperable, err)
	}

	s.engine.IssuePending()
	if s.engine.Status() == StatusError {
		return fmt.Errorf("%w: could not start channel: %w", ErrInoperable, ErrTimeout)
	}

	return nil
}

// restart is start for the completion path, where a failure is only
// recorded. The pending transfers stay queued until the stream is reopened.
func (s *Stream) restart() {
	if err := s.start(); err != nil {
		s.log.Error("Could not restart channel", slog.Any("error", err))

		s.mu.Lock()
		s.stats.Errors++
		s.mu.Unlock()
	}
}

// Close stops receiving and returns every transfer to the free list. Unread
// packets are discarded. Blocked reads return ErrNotOpen.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.open = false
	s.cond.Broadcast()
	s.mu.Unlock()

	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.engine.TerminateAll()

	s.mu.Lock()
	for s.pending.len() > 0 {
		s.free.push(s.pending.pop())
	}
	for s.completed.len() > 0 {
		s.free.push(s.completed.pop())
	}
	s.mu.Unlock()

	return nil
}

// Shutdown closes the stream and releases its memory.
func (s *Stream) Shutdown() error {
	if err := s.Close(); err != nil {
		return err
	}

	return s.pool.Close()
}

// IsOpen reports whether the stream is open.
func (s *Stream) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.open
}

// Read blocks until a packet is available and copies it into p. It returns
// ErrInterrupted if ctx is done first, and ErrBufferTooSmall, without
// consuming the packet, if p cannot hold it.
func (s *Stream) Read(ctx context.Context, p []byte) (int, error) {
	return s.ReadFunc(ctx, false, len(p), func(pkt []byte) error {
		copy(p, pkt)
		return nil
	})
}

// TryRead is Read without blocking: it returns ErrWouldBlock if no packet is
// available.
func (s *Stream) TryRead(p []byte) (int, error) {
	return s.ReadFunc(context.Background(), true, len(p), func(pkt []byte) error {
		copy(p, pkt)
		return nil
	})
}

// ReadFunc hands the oldest packet to fn, provided it is at most max bytes
// long. fn runs without the stream locked and must not retain pkt. If fn
// fails the packet is lost and ErrIO is returned.
func (s *Stream) ReadFunc(ctx context.Context, nonblock bool, max int, fn func(pkt []byte) error) (int, error) {
	s.mu.Lock()

	if err := s.waitLocked(ctx, nonblock); err != nil {
		s.mu.Unlock()
		return 0, err
	}

	idx := s.completed.at(0)
	t := s.pool.Transfer(idx)
	n := int(t.completedLen)
	if max < n {
		s.mu.Unlock()
		return 0, fmt.Errorf("could not read %d byte packet into %d bytes: %w", n, max, ErrBufferTooSmall)
	}

	s.completed.pop()
	s.reading++
	s.mu.Unlock()

	err := fn(t.buf[:n])

	s.mu.Lock()
	s.reading--
	s.free.push(idx)
	if err != nil {
		s.stats.Errors++
	}
	s.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}

	return n, nil
}

// waitLocked waits for a completed transfer. mu must be held.
func (s *Stream) waitLocked(ctx context.Context, nonblock bool) error {
	if !s.open {
		return ErrNotOpen
	}

	if s.completed.len() > 0 {
		return nil
	}

	if nonblock {
		return ErrWouldBlock
	}

	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	for s.completed.len() == 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrInterrupted, err)
		}

		if !s.open {
			return ErrNotOpen
		}

		s.cond.Wait()
	}

	return nil
}

// Readable reports whether a read would return a packet without blocking.
func (s *Stream) Readable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.completed.len() > 0
}

// WaitReadable blocks until a packet is available, without consuming it.
func (s *Stream) WaitReadable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.waitLocked(ctx, false)
}

// NextLength returns the length of the oldest completed packet, or 0.
func (s *Stream) NextLength() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed.len() == 0 {
		return 0
	}

	return s.pool.Transfer(s.completed.at(0)).completedLen
}

// Stats returns a snapshot of the stream's counters.
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// Counts returns how the stream's transfers are distributed.
func (s *Stream) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Counts{
		Free:      s.free.len(),
		Pending:   s.pending.len(),
		Completed: s.completed.len(),
		Reading:   s.reading,
	}
}

// submit hands a pending transfer to the engine. mu must not be held.
func (s *Stream) submit(t *Transfer) error {
	cookie, err := s.engine.Submit(t.request())
	if err != nil {
		return err
	}

	s.mu.Lock()
	t.cookie = cookie
	s.mu.Unlock()

	return nil
}

// recycleFailed returns a pending transfer whose submission or transfer
// failed to the free list.
func (s *Stream) recycleFailed(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending.remove(idx) {
		s.free.push(idx)
	}
	s.stats.Errors++
}

// complete is the completion callback of every transfer. It runs in the
// interrupt handling goroutine.
func (s *Stream) complete(t *Transfer, cookie Cookie) {
	// Cookies are recorded with ioMu held, so holding it here guarantees
	// that t.cookie belongs to the latest submission of t.
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.Lock()
	stale := cookie != t.cookie
	s.mu.Unlock()

	if stale {
		s.log.Debug("Ignoring completion of a forgotten transfer", slog.Int("transfer", t.index))
		return
	}

	status, residue := s.engine.TxStatus(cookie)
	if status != TxComplete || residue < 0 || residue > int64(t.length) {
		s.log.Warn("Transfer finished with an error",
			slog.Int("transfer", t.index), slog.String("status", status.String()), slog.Int64("residue", residue))
		s.recycleFailed(t.index)
		s.refill()

		return
	}

	s.mu.Lock()
	if !s.open || !s.pending.remove(t.index) {
		s.mu.Unlock()
		return
	}

	t.completedLen = t.length - uint32(residue)
	s.completed.push(t.index)
	s.stats.Completed++
	s.stats.CompletedBytes += uint64(t.completedLen)
	s.cond.Broadcast()

	var next int
	switch {
	case s.free.len() > 0:
		next = s.free.pop()
	case s.completed.len() >= 2:
		// The oldest packet may already have been sized by the reader
		// through NextLength, so the second oldest is overwritten.
		next = s.completed.removeAt(1)
		s.stats.Dropped++
		s.stats.DroppedBytes += uint64(s.pool.Transfer(next).completedLen)
	default:
		s.stats.Exhausted++
		s.mu.Unlock()
		s.log.Error("Ran out of transfers")

		return
	}
	s.pending.push(next)
	s.mu.Unlock()

	if err := s.submit(s.pool.Transfer(next)); err != nil {
		s.log.Error("Could not resubmit transfer", slog.Int("transfer", next), slog.Any("error", err))
		s.recycleFailed(next)

		return
	}

	s.restart()
}

// refill tops the pending queue back up after a failed transfer. A single
// submission is attempted. ioMu must be held.
func (s *Stream) refill() {
	s.mu.Lock()
	if !s.open || s.pending.len() >= minOpenTransfers || s.free.len() == 0 {
		s.mu.Unlock()
		return
	}
	next := s.free.pop()
	s.pending.push(next)
	s.mu.Unlock()

	if err := s.submit(s.pool.Transfer(next)); err != nil {
		s.log.Error("Could not resubmit transfer", slog.Int("transfer", next), slog.Any("error", err))
		s.recycleFailed(next)

		return
	}

	s.restart()
}
