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

// Transfer is one transfer buffer of a stream together with the state of
// its latest transfer.
type Transfer struct {
	index int
	buf   []byte
	addr  uint64
	// length is the number of bytes requested from the hardware.
	length uint32
	// completedLen is the number of bytes the hardware wrote. Only
	// meaningful while the transfer is completed.
	completedLen uint32
	cookie       Cookie
	// done is handed to the channel as the completion callback. It is built
	// once so that resubmitting does not allocate.
	done func(Cookie)
}

// Index returns the transfer's slot in its pool.
func (t *Transfer) Index() int {
	return t.index
}

// Addr returns the device address of the transfer's buffer.
func (t *Transfer) Addr() uint64 {
	return t.addr
}

// Len returns the capacity of the transfer's buffer.
func (t *Transfer) Len() uint32 {
	return t.length
}

// Bytes returns the whole buffer.
func (t *Transfer) Bytes() []byte {
	return t.buf
}

func (t *Transfer) request() Request {
	return Request{Addr: t.addr, Length: t.length, Callback: t.done}
}
