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
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// InterruptSource delivers the interrupts of a DMA core.
type InterruptSource interface {
	// Wait blocks until an interrupt fires or ctx is done.
	Wait(ctx context.Context) error
}

// InterruptHandler services a fired interrupt. Handlers report whether the
// interrupt was theirs.
type InterruptHandler interface {
	HandleInterrupt() bool
}

// ServeInterrupts runs the completion context: it waits for interrupts from
// src and dispatches each one to every handler, until ctx is cancelled.
func ServeInterrupts(ctx context.Context, src InterruptSource, handlers ...InterruptHandler) error {
	for {
		if err := src.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}

			return fmt.Errorf("could not wait for interrupt: %w", err)
		}

		for _, h := range handlers {
			h.HandleInterrupt()
		}
	}
}

// uioPollTimeout is how long, in milliseconds, a UIO wait sleeps before
// checking for cancellation.
const uioPollTimeout = 100

// UIO is an interrupt line exposed by the Linux userspace I/O framework
// (/dev/uioN).
type UIO struct {
	fd int
	// count is the number of interrupts seen by the kernel so far.
	count uint32
}

// OpenUIO opens a UIO device and enables its interrupt.
func OpenUIO(path string) (*UIO, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open uio device: %w", err)
	}

	u := &UIO{fd: fd}
	if err := u.enable(); err != nil {
		_ = unix.Close(fd)

		return nil, fmt.Errorf("could not enable uio interrupt: %w", err)
	}

	return u, nil
}

// Close closes the UIO device.
func (u *UIO) Close() error {
	if err := unix.Close(u.fd); err != nil {
		return fmt.Errorf("could not close uio device: %w", err)
	}

	return nil
}

// Count returns the kernel's interrupt count as of the last Wait.
func (u *UIO) Count() uint32 {
	return u.count
}

// Wait blocks until the interrupt fires, then re-arms it.
func (u *UIO) Wait(ctx context.Context) error {
	fds := []unix.PollFd{{Fd: int32(u.fd), Events: unix.POLLIN}}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.Poll(fds, uioPollTimeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}

			return fmt.Errorf("could not poll uio device: %w", err)
		}

		if n == 0 {
			continue
		}

		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return os.ErrClosed
		}

		var buf [4]byte
		if _, err := retryEINTR(func() (int, error) { return unix.Read(u.fd, buf[:]) }); err != nil {
			if errors.Is(err, unix.EAGAIN) {
				continue
			}

			return fmt.Errorf("could not read uio device: %w", err)
		}
		u.count = binary.NativeEndian.Uint32(buf[:])

		return u.enable()
	}
}

func (u *UIO) enable() error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], 1)

	_, err := retryEINTR(func() (int, error) { return unix.Write(u.fd, buf[:]) })
	return err
}
