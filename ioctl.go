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
	"encoding/binary"
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
	"golang.org/x/sys/unix"
)

// FIONREAD reports the length of the next packet. Linux defines it as an
// alias of TIOCINQ.
const FIONREAD = unix.TIOCINQ

// PollReadable is the event mask Poll reports for a readable stream. The
// x/sys package does not export POLLRDNORM on Linux.
const PollReadable = unix.POLLIN | 0x40

// StatsArgs is the result of the AXISIOCSTATS ioctl.
type StatsArgs struct {
	Completed      uint64
	CompletedBytes uint64
	Dropped        uint64
	DroppedBytes   uint64
	Errors         uint64
	Exhausted      uint64
}

// bytes returns the byte representation of the statsArgs, suitable for passing to user space.
// Go doesn't support packed structs and binary.Write uses reflection, so the
// fields are laid out by hand.
func (s *StatsArgs) bytes() []byte {
	var buf [48]byte
	binary.NativeEndian.PutUint64(buf[0:8], s.Completed)
	binary.NativeEndian.PutUint64(buf[8:16], s.CompletedBytes)
	binary.NativeEndian.PutUint64(buf[16:24], s.Dropped)
	binary.NativeEndian.PutUint64(buf[24:32], s.DroppedBytes)
	binary.NativeEndian.PutUint64(buf[32:40], s.Errors)
	binary.NativeEndian.PutUint64(buf[40:48], s.Exhausted)

	return buf[:]
}

// StatsArgsFromBytes deserializes the result of an AXISIOCSTATS ioctl.
func StatsArgsFromBytes(buf []byte) StatsArgs {
	var s StatsArgs
	s.Completed = binary.NativeEndian.Uint64(buf[0:8])
	s.CompletedBytes = binary.NativeEndian.Uint64(buf[8:16])
	s.Dropped = binary.NativeEndian.Uint64(buf[16:24])
	s.DroppedBytes = binary.NativeEndian.Uint64(buf[24:32])
	s.Errors = binary.NativeEndian.Uint64(buf[32:40])
	s.Exhausted = binary.NativeEndian.Uint64(buf[40:48])

	return s
}

// StatusArgs is the result of the AXISIOCSTATUS ioctl.
type StatusArgs struct {
	Free      uint32
	Pending   uint32
	Completed uint32
	Reading   uint32
}

func (s *StatusArgs) bytes() []byte {
	var buf [16]byte
	binary.NativeEndian.PutUint32(buf[0:4], s.Free)
	binary.NativeEndian.PutUint32(buf[4:8], s.Pending)
	binary.NativeEndian.PutUint32(buf[8:12], s.Completed)
	binary.NativeEndian.PutUint32(buf[12:16], s.Reading)

	return buf[:]
}

// StatusArgsFromBytes deserializes the result of an AXISIOCSTATUS ioctl.
func StatusArgsFromBytes(buf []byte) StatusArgs {
	return StatusArgs{
		Free:      binary.NativeEndian.Uint32(buf[0:4]),
		Pending:   binary.NativeEndian.Uint32(buf[4:8]),
		Completed: binary.NativeEndian.Uint32(buf[8:12]),
		Reading:   binary.NativeEndian.Uint32(buf[12:16]),
	}
}

func statsArgs(s Stats) StatsArgs {
	return StatsArgs{
		Completed:      s.Completed,
		CompletedBytes: s.CompletedBytes,
		Dropped:        s.Dropped,
		DroppedBytes:   s.DroppedBytes,
		Errors:         s.Errors,
		Exhausted:      s.Exhausted,
	}
}

func statusArgs(c Counts) StatusArgs {
	return StatusArgs{
		Free:      uint32(c.Free),
		Pending:   uint32(c.Pending),
		Completed: uint32(c.Completed),
		Reading:   uint32(c.Reading),
	}
}

// I/O control calls on a stream file, beyond FIONREAD.
var (
	AXISIOCSTATS  = ioctl.IOR('X', 1, unsafe.Sizeof(StatsArgs{}))
	AXISIOCSTATUS = ioctl.IOR('X', 2, unsafe.Sizeof(StatusArgs{}))
)
