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
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"log/slog"
	"runtime"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/dpeckett/go-axisdma"
	"github.com/dpeckett/go-axisdma/sim"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

func main() {
	const (
		totalPackets = 100000
		packetLength = 64 * 1024
		poolSize     = axisdma.DefaultPoolSize
		// Unread packets are bounded so that the stream never has to drop.
		maxOutstandingPackets = poolSize - 2
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mem, err := axisdma.AllocMemory(poolSize*packetLength, 0x1000_0000)
	if err != nil {
		log.Fatalf("could not allocate memory: %v", err)
	}

	core := sim.New(mem)

	ch, err := axisdma.NewCore(core).Channel(axisdma.ChannelConfig{Logger: logger})
	if err != nil {
		log.Fatalf("could not set up channel: %v", err)
	}
	defer ch.Close()

	stream, err := axisdma.NewStream(ch, mem, axisdma.Config{
		MaxPacketLength: packetLength,
		PoolSize:        poolSize,
		Logger:          logger,
	})
	if err != nil {
		log.Fatalf("could not create stream: %v", err)
	}
	defer stream.Shutdown()

	if err := stream.Open(); err != nil {
		log.Fatalf("could not open stream: %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var serveGroup errgroup.Group
	serveGroup.Go(func() error {
		return axisdma.ServeInterrupts(ctx, core, ch)
	})

	sem := semaphore.NewWeighted(maxOutstandingPackets)

	bar := pb.StartNew(totalPackets)

	var g errgroup.Group

	g.Go(func() error {
		pkt := make([]byte, packetLength)

		for seq := uint64(0); seq < totalPackets; seq++ {
			if err := sem.Acquire(ctx, 1); err != nil {
				return fmt.Errorf("failed to acquire semaphore: %w", err)
			}

			for {
				if armed, _ := core.Armed(); armed {
					break
				}
				runtime.Gosched()
			}

			binary.LittleEndian.PutUint64(pkt, seq)
			if !core.Inject(pkt) {
				return fmt.Errorf("packet %d was lost", seq)
			}
		}

		return nil
	})

	start := time.Now()

	g.Go(func() error {
		buf := make([]byte, packetLength)

		for seq := uint64(0); seq < totalPackets; seq++ {
			n, err := stream.Read(ctx, buf)
			if err != nil {
				return fmt.Errorf("could not read packet: %w", err)
			}

			if n != packetLength {
				return fmt.Errorf("unexpected packet length: %d", n)
			}

			if got := binary.LittleEndian.Uint64(buf); got != seq {
				return fmt.Errorf("unexpected packet: %d (expected %d)", got, seq)
			}

			sem.Release(1)

			bar.Increment()
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("error: %v", err)
	}

	bar.Finish()

	elapsed := time.Since(start)

	cancel()
	if err := serveGroup.Wait(); err != nil {
		log.Fatalf("error: %v", err)
	}

	stats := stream.Stats()
	log.Printf("Received %d packets in %s (%.1f MiB/s), %d dropped",
		stats.Completed, elapsed, float64(stats.CompletedBytes)/elapsed.Seconds()/(1<<20), stats.Dropped)
}
