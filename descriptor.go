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

// Cookie identifies a submitted transfer on its channel. Valid cookies are
// positive; they increase with every submission and wrap back to 1.
type Cookie int32

// Valid reports whether the cookie could have been assigned by a channel.
func (c Cookie) Valid() bool {
	return c > 0
}

// next returns the cookie following c.
func (c Cookie) next() Cookie {
	n := c + 1
	if n < 1 {
		n = 1
	}
	return n
}

// Request describes a single-segment transfer.
type Request struct {
	// Addr is the device-visible address of the buffer.
	Addr uint64
	// Length is the number of bytes requested.
	Length uint32
	// Callback, if set, is invoked with the transfer's cookie once the
	// transfer completes. It runs in the interrupt handling goroutine without
	// any channel lock held.
	Callback func(Cookie)
}

// TxStatus is the state of a submitted transfer.
type TxStatus int

const (
	// TxInProgress means the transfer is pending or active.
	TxInProgress TxStatus = iota
	// TxComplete means the hardware finished the transfer.
	TxComplete
	// TxError means the transfer finished with an inconsistent length.
	TxError
	// TxNotFound means the channel no longer knows about the transfer.
	TxNotFound
)

func (s TxStatus) String() string {
	switch s {
	case TxInProgress:
		return "in-progress"
	case TxComplete:
		return "complete"
	case TxError:
		return "error"
	case TxNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

type descriptor struct {
	cookie      Cookie
	addr        uint64
	requested   uint32
	transferred uint32
	// failed is set when the hardware reported more bytes outstanding than
	// were requested.
	failed   bool
	callback func(Cookie)
}

// history is a fixed ring of the most recently completed descriptors.
type history struct {
	entries [historyDepth]descriptor
	head    int // next slot to write
	n       int
}

func (h *history) push(d descriptor) {
	d.callback = nil
	h.entries[h.head] = d
	h.head = (h.head + 1) % len(h.entries)
	if h.n < len(h.entries) {
		h.n++
	}
}

// find looks a cookie up, newest entry first.
func (h *history) find(cookie Cookie) (descriptor, bool) {
	for i := 1; i <= h.n; i++ {
		idx := (h.head - i + len(h.entries)) % len(h.entries)
		if h.entries[idx].cookie == cookie {
			return h.entries[idx], true
		}
	}
	return descriptor{}, false
}

func (h *history) reset() {
	h.head = 0
	h.n = 0
}
