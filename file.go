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
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Device is the consumer entry point of a stream. At most one File is open
// at a time.
type Device struct {
	stream *Stream
}

// NewDevice exposes stream through files.
func NewDevice(stream *Stream) *Device {
	return &Device{stream: stream}
}

// Stream returns the device's stream.
func (d *Device) Stream() *Stream {
	return d.stream
}

// Open opens the stream for reading. With unix.O_NONBLOCK in flags, reads
// return ErrWouldBlock instead of waiting. It fails with ErrBusy if a file
// is already open.
func (d *Device) Open(flags int) (*File, error) {
	if err := d.stream.Open(); err != nil {
		return nil, err
	}

	return &File{
		stream:   d.stream,
		nonblock: flags&unix.O_NONBLOCK != 0,
	}, nil
}

// File is an open stream.
type File struct {
	stream   *Stream
	nonblock bool
	closed   atomic.Bool
}

// Read reads one whole packet into p.
func (f *File) Read(p []byte) (int, error) {
	return f.ReadContext(context.Background(), p)
}

// ReadContext reads one whole packet into p, waiting at most until ctx is
// done.
func (f *File) ReadContext(ctx context.Context, p []byte) (int, error) {
	if f.closed.Load() {
		return 0, ErrNotOpen
	}

	return f.stream.ReadFunc(ctx, f.nonblock, len(p), func(pkt []byte) error {
		copy(p, pkt)
		return nil
	})
}

// Poll returns the poll events the file is ready for.
func (f *File) Poll() int16 {
	if !f.closed.Load() && f.stream.Readable() {
		return PollReadable
	}

	return 0
}

// WaitReadable waits for a packet without consuming it.
func (f *File) WaitReadable(ctx context.Context) error {
	if f.closed.Load() {
		return ErrNotOpen
	}

	return f.stream.WaitReadable(ctx)
}

// Ioctl performs the control request req, writing its result to arg.
func (f *File) Ioctl(req uintptr, arg []byte) error {
	if f.closed.Load() {
		return ErrNotOpen
	}

	var out []byte
	switch req {
	case FIONREAD:
		var buf [4]byte
		binary.NativeEndian.PutUint32(buf[:], f.stream.NextLength())
		out = buf[:]
	case uintptr(AXISIOCSTATS):
		args := statsArgs(f.stream.Stats())
		out = args.bytes()
	case uintptr(AXISIOCSTATUS):
		args := statusArgs(f.stream.Counts())
		out = args.bytes()
	default:
		return fmt.Errorf("unknown request %#x: %w", req, ErrInvalidIoctl)
	}

	if len(arg) < len(out) {
		return fmt.Errorf("request %#x needs %d bytes: %w", req, len(out), ErrInvalidIoctl)
	}
	copy(arg, out)

	return nil
}

// Close closes the stream. Unread packets are discarded.
func (f *File) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}

	return f.stream.Close()
}
