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

package axisdma_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dpeckett/go-axisdma"
	"github.com/dpeckett/go-axisdma/sim"

	"github.com/stretchr/testify/require"
)

const testPhysAddr = 0x4000_0000

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMemory(t *testing.T, size int) axisdma.Memory {
	t.Helper()

	mem, err := axisdma.AllocMemory(size, testPhysAddr)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = mem.Close()
	})

	return mem
}

// newTestChannel returns an S2MM channel driving a simulated core.
func newTestChannel(t *testing.T, mem axisdma.Memory) (*sim.Core, *axisdma.Channel) {
	t.Helper()

	core := sim.New(mem)

	ch, err := axisdma.NewCore(core).Channel(axisdma.ChannelConfig{
		Direction:      axisdma.DevToMem,
		PollIterations: 10,
		PollDelay:      -1,
		Logger:         testLogger(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, ch.Close())
	})

	return core, ch
}
