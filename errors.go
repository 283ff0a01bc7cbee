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
	"errors"

	"golang.org/x/sys/unix"
)

var (
	// ErrTimeout is returned when the hardware did not reach the expected
	// state within the polling budget.
	ErrTimeout = errors.New("timed out waiting for hardware")
	// ErrInoperable is returned by Submit when the recovery reset of a
	// channel in the error state failed.
	ErrInoperable = errors.New("dma channel inoperable")
	// ErrInvalidLength is returned for transfers that are empty or longer than
	// the core supports.
	ErrInvalidLength = errors.New("invalid transfer length")
	// ErrScatterGather is returned when the core was built in scatter-gather
	// mode instead of direct-register mode.
	ErrScatterGather = errors.New("dma core is not in direct-register mode")

	// ErrBusy is returned when the stream is already open.
	ErrBusy = errors.New("stream already open")
	// ErrExhausted is returned by Open when fewer than two transfers are free.
	ErrExhausted = errors.New("not enough free transfers")
	// ErrNotOpen is returned when reading a stream that is not open.
	ErrNotOpen = errors.New("stream not open")
	// ErrWouldBlock is returned by non-blocking reads when no packet is ready.
	ErrWouldBlock = errors.New("no completed packet available")
	// ErrInterrupted is returned when a blocked read was cancelled.
	ErrInterrupted = errors.New("read interrupted")
	// ErrBufferTooSmall is returned when the read buffer cannot hold the next
	// packet. The packet is kept.
	ErrBufferTooSmall = errors.New("buffer too small for packet")
	// ErrIO is returned when copying a packet out failed. The packet is lost.
	ErrIO = errors.New("could not copy packet")
	// ErrInvalidIoctl is returned for unknown or malformed ioctl requests.
	ErrInvalidIoctl = errors.New("invalid ioctl request")
)

// Errno maps an error returned by this package onto the errno a character
// device would report for it.
func Errno(err error) unix.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrBusy):
		return unix.EBUSY
	case errors.Is(err, ErrExhausted):
		return unix.EFAULT
	case errors.Is(err, ErrWouldBlock):
		return unix.EAGAIN
	case errors.Is(err, ErrInterrupted):
		return unix.EINTR
	case errors.Is(err, ErrBufferTooSmall), errors.Is(err, ErrInvalidIoctl), errors.Is(err, ErrInvalidLength):
		return unix.EINVAL
	case errors.Is(err, ErrNotOpen):
		return unix.EBADF
	case errors.Is(err, ErrInoperable), errors.Is(err, ErrIO):
		// Checked before ErrTimeout, which a failed recovery reset wraps.
		return unix.EIO
	case errors.Is(err, ErrTimeout):
		return unix.EBUSY
	default:
		var errno unix.Errno
		if errors.As(err, &errno) {
			return errno
		}
		return unix.EIO
	}
}
