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

// indexQueue is a fixed-capacity FIFO of transfer indices.
type indexQueue struct {
	items []int
	head  int
	n     int
}

func newIndexQueue(capacity int) indexQueue {
	return indexQueue{items: make([]int, capacity)}
}

func (q *indexQueue) len() int {
	return q.n
}

func (q *indexQueue) push(idx int) {
	if q.n == len(q.items) {
		panic("index queue overflow")
	}
	q.items[(q.head+q.n)%len(q.items)] = idx
	q.n++
}

// at returns the i-th oldest entry.
func (q *indexQueue) at(i int) int {
	return q.items[(q.head+i)%len(q.items)]
}

func (q *indexQueue) pop() int {
	idx := q.items[q.head]
	q.head = (q.head + 1) % len(q.items)
	q.n--
	return idx
}

// removeAt removes the i-th oldest entry, keeping the others in order.
func (q *indexQueue) removeAt(i int) int {
	idx := q.at(i)
	for j := i; j < q.n-1; j++ {
		q.items[(q.head+j)%len(q.items)] = q.at(j + 1)
	}
	q.n--
	return idx
}

// remove removes idx from the queue and reports whether it was present.
func (q *indexQueue) remove(idx int) bool {
	for i := 0; i < q.n; i++ {
		if q.at(i) == idx {
			q.removeAt(i)
			return true
		}
	}
	return false
}
