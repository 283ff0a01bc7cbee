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

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/dpeckett/go-axisdma"
	"github.com/dpeckett/go-axisdma/internal/recorder"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// statsInterval is the number of packets between two recorded snapshots.
const statsInterval = 1000

// drainGrace is how long the stream must stay empty after the producer
// finished before reading stops.
const drainGrace = 100 * time.Millisecond

// capture serves the channel's interrupts and reads packets from the stream
// until interrupted, the packet count is reached or produce, if set, has
// finished and the stream was drained.
func capture(ctx context.Context, opts *globalOptions, src axisdma.InterruptSource, ch *axisdma.Channel,
	stream *axisdma.Stream, produce func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, unix.SIGTERM)
	defer stop()

	var rec *recorder.Recorder
	if opts.record != "" {
		var err error
		rec, err = recorder.Open(opts.record, 0)
		if err != nil {
			return err
		}
		defer rec.Close()

		slog.Info("Recording statistics", slog.String("path", opts.record), slog.String("session", rec.Session()))
	}

	var out *bufio.Writer
	if opts.out != "" {
		f, err := os.OpenFile(opts.out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("could not open output file: %w", err)
		}
		defer f.Close()

		out = bufio.NewWriter(f)
		defer out.Flush()
	}

	f, err := axisdma.NewDevice(stream).Open(0)
	if err != nil {
		return fmt.Errorf("could not open stream: %w", err)
	}
	defer f.Close()

	g, ctx := errgroup.WithContext(ctx)

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	g.Go(func() error {
		return axisdma.ServeInterrupts(serveCtx, src, ch)
	})

	if produce != nil {
		g.Go(func() error {
			if err := produce(ctx); err != nil {
				return fmt.Errorf("could not produce packets: %w", err)
			}

			waitDrained(ctx, stream)
			stopReading()

			return nil
		})
	}

	g.Go(func() error {
		defer stopServing()

		var w io.Writer
		if out != nil {
			w = out
		}

		return readPackets(readCtx, f, stream, opts, w, rec)
	})

	err = g.Wait()

	stats := stream.Stats()
	slog.Info("Capture finished",
		slog.Uint64("completed", stats.Completed),
		slog.Uint64("completedBytes", stats.CompletedBytes),
		slog.Uint64("dropped", stats.Dropped),
		slog.Uint64("droppedBytes", stats.DroppedBytes),
		slog.Uint64("errors", stats.Errors),
		slog.Uint64("exhausted", stats.Exhausted))

	if rec != nil {
		if err := rec.RecordStats(stats); err != nil {
			slog.Warn("Could not record statistics", slog.Any("error", err))
		}
	}

	return err
}

func waitDrained(ctx context.Context, stream *axisdma.Stream) {
	quiet := time.Duration(0)
	for quiet < drainGrace {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}

		if stream.Readable() {
			quiet = 0
		} else {
			quiet += 10 * time.Millisecond
		}
	}
}

func readPackets(ctx context.Context, f *axisdma.File, stream *axisdma.Stream, opts *globalOptions,
	out io.Writer, rec *recorder.Recorder) error {
	buf := make([]byte, opts.maxPacketLength)

	for seq := uint64(0); opts.count == 0 || seq < opts.count; seq++ {
		n, err := f.ReadContext(ctx, buf)
		if err != nil {
			if errors.Is(err, axisdma.ErrInterrupted) && ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("could not read packet: %w", err)
		}

		slog.Debug("Received packet", slog.Uint64("seq", seq), slog.Int("length", n))

		if out != nil {
			if _, err := out.Write(buf[:n]); err != nil {
				return fmt.Errorf("could not write packet: %w", err)
			}
		}

		if rec != nil {
			if err := rec.RecordPacket(seq, n, stream.Stats()); err != nil {
				return err
			}

			if (seq+1)%statsInterval == 0 {
				if err := rec.RecordStats(stream.Stats()); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
