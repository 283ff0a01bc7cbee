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
	"time"
)

const (
	// DefaultMaxPacketLength is the capacity of each transfer buffer.
	DefaultMaxPacketLength = 1 << 20
	// DefaultPoolSize is the number of transfers cycled by a stream.
	DefaultPoolSize = 4
	// DefaultPollIterations bounds every register polling loop.
	DefaultPollIterations = 100000
	// DefaultPollDelay is the pause between two polls of a register.
	DefaultPollDelay = 10 * time.Microsecond
	// DefaultQueueDepth is the number of pending transfers a channel can hold
	// without growing its queue.
	DefaultQueueDepth = 16

	// historyDepth is the number of completed transfers a channel keeps for
	// status queries.
	historyDepth = 32
	// minOpenTransfers is the number of transfers primed by Open.
	minOpenTransfers = 2
)

// Config configures a Stream.
type Config struct {
	// MaxPacketLength is the largest packet, in bytes, that can be received.
	// It fixes the size of every transfer buffer.
	MaxPacketLength uint32
	// PoolSize is the number of transfer buffers. At least two are required.
	PoolSize int
	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// withDefaults returns a copy of the config with unset fields filled in.
func (c Config) withDefaults() Config {
	if c.MaxPacketLength == 0 {
		c.MaxPacketLength = DefaultMaxPacketLength
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Validate reports whether the config is usable.
func (c Config) Validate() error {
	if c.PoolSize < minOpenTransfers {
		return fmt.Errorf("pool size %d is smaller than %d", c.PoolSize, minOpenTransfers)
	}
	if c.MaxPacketLength == 0 {
		return fmt.Errorf("max packet length must be positive")
	}
	return nil
}

// ChannelConfig configures a Channel.
type ChannelConfig struct {
	// Direction selects the control block driven by the channel.
	Direction Direction
	// PollIterations bounds reset, start and halt polling.
	PollIterations int
	// PollDelay is the pause between polls.
	PollDelay time.Duration
	// QueueDepth is the initial capacity of the pending queue.
	QueueDepth int
	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

func (c ChannelConfig) withDefaults() ChannelConfig {
	if c.PollIterations <= 0 {
		c.PollIterations = DefaultPollIterations
	}
	// A negative delay polls back to back.
	if c.PollDelay == 0 {
		c.PollDelay = DefaultPollDelay
	} else if c.PollDelay < 0 {
		c.PollDelay = 0
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
