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
	"errors"
	"fmt"
	"testing"

	"github.com/dpeckett/go-axisdma"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sys/unix"
)

const mockPacketLength = 4096

func newMockStream(t *testing.T) (*MockEngine, *axisdma.Stream, *[]axisdma.Request) {
	t.Helper()

	ctrl := gomock.NewController(t)
	engine := NewMockEngine(ctrl)
	engine.EXPECT().MaxTransferLength().Return(uint32(1<<23 - 1)).AnyTimes()

	s, err := axisdma.NewStream(engine, newTestMemory(t, 4*mockPacketLength), axisdma.Config{
		MaxPacketLength: mockPacketLength,
		Logger:          testLogger(),
	})
	require.NoError(t, err)

	return engine, s, new([]axisdma.Request)
}

// expectSubmit records the submitted request and assigns it cookie.
func expectSubmit(engine *MockEngine, reqs *[]axisdma.Request, cookie axisdma.Cookie) *gomock.Call {
	return engine.EXPECT().Submit(gomock.Any()).DoAndReturn(func(req axisdma.Request) (axisdma.Cookie, error) {
		*reqs = append(*reqs, req)
		return cookie, nil
	})
}

func openMockStream(t *testing.T, engine *MockEngine, s *axisdma.Stream, reqs *[]axisdma.Request) {
	t.Helper()

	gomock.InOrder(
		expectSubmit(engine, reqs, 1),
		expectSubmit(engine, reqs, 2),
		engine.EXPECT().IssuePending(),
		engine.EXPECT().Status().Return(axisdma.StatusBusy),
	)

	require.NoError(t, s.Open())
	require.Len(t, *reqs, 2)
}

func TestStreamOpenSubmitFails(t *testing.T) {
	engine, s, _ := newMockStream(t)

	errSubmit := errors.New("channel inoperable")
	engine.EXPECT().Submit(gomock.Any()).Return(axisdma.Cookie(0), errSubmit).Times(2)

	err := s.Open()
	require.ErrorIs(t, err, errSubmit)
	require.False(t, s.IsOpen())

	require.Equal(t, axisdma.Counts{Free: 4}, s.Counts())
	require.Equal(t, uint64(2), s.Stats().Errors)
}

func TestStreamOpenPartialSubmit(t *testing.T) {
	engine, s, reqs := newMockStream(t)

	gomock.InOrder(
		expectSubmit(engine, reqs, 1),
		engine.EXPECT().Submit(gomock.Any()).Return(axisdma.Cookie(0), errors.New("queue full")),
		engine.EXPECT().IssuePending(),
		engine.EXPECT().Status().Return(axisdma.StatusBusy),
	)

	require.NoError(t, s.Open())
	require.Equal(t, axisdma.Counts{Free: 3, Pending: 1}, s.Counts())
	require.Equal(t, uint64(1), s.Stats().Errors)

	req := (*reqs)[0]
	require.Equal(t, uint32(mockPacketLength), req.Length)
	require.NotNil(t, req.Callback)
}

func TestStreamOpenResetsStalledStart(t *testing.T) {
	engine, s, reqs := newMockStream(t)

	gomock.InOrder(
		expectSubmit(engine, reqs, 1),
		expectSubmit(engine, reqs, 2),
		engine.EXPECT().IssuePending(),
		engine.EXPECT().Status().Return(axisdma.StatusError),
		engine.EXPECT().Reset().Return(nil),
		engine.EXPECT().IssuePending(),
		engine.EXPECT().Status().Return(axisdma.StatusBusy),
	)

	require.NoError(t, s.Open())
	require.True(t, s.IsOpen())
	require.Equal(t, axisdma.Counts{Free: 2, Pending: 2}, s.Counts())
}

func TestStreamOpenStartFails(t *testing.T) {
	engine, s, reqs := newMockStream(t)

	errReset := fmt.Errorf("could not reset: %w", axisdma.ErrTimeout)
	gomock.InOrder(
		expectSubmit(engine, reqs, 1),
		expectSubmit(engine, reqs, 2),
		engine.EXPECT().IssuePending(),
		engine.EXPECT().Status().Return(axisdma.StatusError),
		engine.EXPECT().Reset().Return(errReset),
		engine.EXPECT().TerminateAll(),
	)

	err := s.Open()
	require.ErrorIs(t, err, axisdma.ErrInoperable)
	require.ErrorIs(t, err, errReset)
	require.Equal(t, unix.EIO, axisdma.Errno(err))

	require.False(t, s.IsOpen())
	require.Equal(t, axisdma.Counts{Free: 4}, s.Counts())
	require.Equal(t, uint64(1), s.Stats().Errors)
}

func TestStreamRestartFails(t *testing.T) {
	engine, s, reqs := newMockStream(t)
	openMockStream(t, engine, s, reqs)

	gomock.InOrder(
		engine.EXPECT().TxStatus(axisdma.Cookie(1)).Return(axisdma.TxComplete, int64(0)),
		expectSubmit(engine, reqs, 3),
		engine.EXPECT().IssuePending(),
		engine.EXPECT().Status().Return(axisdma.StatusError),
		engine.EXPECT().Reset().Return(nil),
		engine.EXPECT().IssuePending(),
		engine.EXPECT().Status().Return(axisdma.StatusError),
	)

	(*reqs)[0].Callback(1)

	// The packet is kept and the transfers stay queued for the next Open.
	require.Equal(t, axisdma.Counts{Free: 1, Pending: 2, Completed: 1}, s.Counts())

	stats := s.Stats()
	require.Equal(t, uint64(1), stats.Completed)
	require.Equal(t, uint64(1), stats.Errors)
}

func TestStreamRequests(t *testing.T) {
	engine, s, reqs := newMockStream(t)
	openMockStream(t, engine, s, reqs)

	first, second := (*reqs)[0], (*reqs)[1]
	require.Equal(t, uint64(testPhysAddr), first.Addr)
	require.Equal(t, uint64(testPhysAddr+mockPacketLength), second.Addr)
}

func TestStreamStaleCompletion(t *testing.T) {
	engine, s, reqs := newMockStream(t)
	openMockStream(t, engine, s, reqs)

	// No status query is expected for a cookie the stream did not submit.
	(*reqs)[0].Callback(99)

	require.Equal(t, axisdma.Counts{Free: 2, Pending: 2}, s.Counts())
	require.Zero(t, s.Stats().Completed)
}

func TestStreamResubmitFails(t *testing.T) {
	engine, s, reqs := newMockStream(t)
	openMockStream(t, engine, s, reqs)

	gomock.InOrder(
		engine.EXPECT().TxStatus(axisdma.Cookie(1)).Return(axisdma.TxComplete, int64(mockPacketLength-10)),
		engine.EXPECT().Submit(gomock.Any()).Return(axisdma.Cookie(0), axisdma.ErrInoperable),
	)

	(*reqs)[0].Callback(1)

	require.Equal(t, axisdma.Counts{Free: 2, Pending: 1, Completed: 1}, s.Counts())
	require.Equal(t, uint32(10), s.NextLength())

	stats := s.Stats()
	require.Equal(t, uint64(1), stats.Completed)
	require.Equal(t, uint64(10), stats.CompletedBytes)
	require.Equal(t, uint64(1), stats.Errors)
}

func TestStreamResidueOutOfRange(t *testing.T) {
	engine, s, reqs := newMockStream(t)
	openMockStream(t, engine, s, reqs)

	gomock.InOrder(
		engine.EXPECT().TxStatus(axisdma.Cookie(2)).Return(axisdma.TxComplete, int64(mockPacketLength+1)),
		expectSubmit(engine, reqs, 3),
		engine.EXPECT().IssuePending(),
		engine.EXPECT().Status().Return(axisdma.StatusBusy),
	)

	(*reqs)[1].Callback(2)

	require.Equal(t, axisdma.Counts{Free: 2, Pending: 2}, s.Counts())
	require.Equal(t, uint64(1), s.Stats().Errors)
	require.Zero(t, s.Stats().Completed)
}

func TestStreamLateCompletion(t *testing.T) {
	engine, s, reqs := newMockStream(t)
	openMockStream(t, engine, s, reqs)

	engine.EXPECT().TerminateAll()
	require.NoError(t, s.Close())

	// A completion racing Close must not resubmit anything.
	engine.EXPECT().TxStatus(axisdma.Cookie(1)).Return(axisdma.TxComplete, int64(0))
	(*reqs)[0].Callback(1)

	require.Equal(t, axisdma.Counts{Free: 4}, s.Counts())
	require.Zero(t, s.Stats().Completed)
}
