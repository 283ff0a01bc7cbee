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
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/dpeckett/go-axisdma"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFile(t *testing.T) {
	core, ch, s := newTestStream(t, axisdma.Config{MaxPacketLength: 4096})
	dev := axisdma.NewDevice(s)
	require.Same(t, s, dev.Stream())

	f, err := dev.Open(unix.O_RDONLY)
	require.NoError(t, err)

	// Only one reader at a time.
	_, err = dev.Open(unix.O_RDONLY)
	require.ErrorIs(t, err, axisdma.ErrBusy)

	require.Zero(t, f.Poll())

	arg := make([]byte, 4)
	require.NoError(t, f.Ioctl(axisdma.FIONREAD, arg))
	require.Zero(t, binary.NativeEndian.Uint32(arg))

	deliver(t, core, ch, []byte("packet"))

	require.Equal(t, int16(axisdma.PollReadable), f.Poll())
	require.NoError(t, f.WaitReadable(context.Background()))

	require.NoError(t, f.Ioctl(axisdma.FIONREAD, arg))
	require.Equal(t, uint32(6), binary.NativeEndian.Uint32(arg))

	buf := make([]byte, 64)
	n, err := f.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte("packet"), buf[:n])

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.Read(buf)
	require.ErrorIs(t, err, axisdma.ErrNotOpen)
	require.ErrorIs(t, f.Ioctl(axisdma.FIONREAD, arg), axisdma.ErrNotOpen)
	require.Zero(t, f.Poll())

	// The device can be opened again once closed.
	f, err = dev.Open(unix.O_RDONLY)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFileNonBlocking(t *testing.T) {
	_, _, s := newTestStream(t, axisdma.Config{MaxPacketLength: 4096})

	f, err := axisdma.NewDevice(s).Open(unix.O_RDONLY | unix.O_NONBLOCK)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	_, err = f.Read(make([]byte, 4096))
	require.ErrorIs(t, err, axisdma.ErrWouldBlock)
	require.Equal(t, unix.EAGAIN, axisdma.Errno(err))
}

func TestFileReadContext(t *testing.T) {
	_, _, s := newTestStream(t, axisdma.Config{MaxPacketLength: 4096})

	f, err := axisdma.NewDevice(s).Open(unix.O_RDONLY)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	t.Cleanup(cancel)

	_, err = f.ReadContext(ctx, make([]byte, 4096))
	require.ErrorIs(t, err, axisdma.ErrInterrupted)
	require.Equal(t, unix.EINTR, axisdma.Errno(err))
}

func TestFileIoctl(t *testing.T) {
	core, ch, s := newTestStream(t, axisdma.Config{MaxPacketLength: 4096})

	f, err := axisdma.NewDevice(s).Open(unix.O_RDONLY)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	for _, n := range []int{10, 20, 30} {
		deliver(t, core, ch, make([]byte, n))
	}

	arg := make([]byte, 48)
	require.NoError(t, f.Ioctl(uintptr(axisdma.AXISIOCSTATS), arg))
	require.Equal(t, axisdma.StatsArgs{
		Completed:      3,
		CompletedBytes: 60,
		Dropped:        1,
		DroppedBytes:   20,
	}, axisdma.StatsArgsFromBytes(arg))

	arg = make([]byte, 16)
	require.NoError(t, f.Ioctl(uintptr(axisdma.AXISIOCSTATUS), arg))
	require.Equal(t, axisdma.StatusArgs{Pending: 2, Completed: 2}, axisdma.StatusArgsFromBytes(arg))

	// Results that do not fit are rejected.
	err = f.Ioctl(uintptr(axisdma.AXISIOCSTATS), make([]byte, 8))
	require.ErrorIs(t, err, axisdma.ErrInvalidIoctl)

	err = f.Ioctl(0x1234, arg)
	require.ErrorIs(t, err, axisdma.ErrInvalidIoctl)
	require.Equal(t, unix.EINVAL, axisdma.Errno(err))
}

func TestFileRequestNumbers(t *testing.T) {
	require.EqualValues(t, unix.TIOCINQ, axisdma.FIONREAD)
	require.EqualValues(t, unix.POLLIN|0x40, axisdma.PollReadable)

	require.NotEqual(t, uintptr(axisdma.FIONREAD), uintptr(axisdma.AXISIOCSTATS))
	require.NotEqual(t, uintptr(axisdma.FIONREAD), uintptr(axisdma.AXISIOCSTATUS))
}
