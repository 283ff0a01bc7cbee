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
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/dpeckett/go-axisdma"
	"github.com/dpeckett/go-axisdma/sim"
	"github.com/spf13/cobra"
)

// simPhysAddr is the device address the simulated memory claims to live at.
const simPhysAddr = 0x3800_0000

func newSimulateCmd(global *globalOptions) *cobra.Command {
	var (
		packets      uint64
		packetLength uint32
		interval     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Capture packets from a simulated DMA core.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()

			mem, err := axisdma.AllocMemory(global.poolSize*int(global.maxPacketLength), simPhysAddr)
			if err != nil {
				return err
			}

			core := sim.New(mem)

			ch, err := axisdma.NewCore(core).Channel(axisdma.ChannelConfig{
				Direction: axisdma.DevToMem,
				Logger:    logger,
			})
			if err != nil {
				_ = mem.Close()
				return err
			}
			defer ch.Close()

			stream, err := axisdma.NewStream(ch, mem, axisdma.Config{
				MaxPacketLength: global.maxPacketLength,
				PoolSize:        global.poolSize,
				Logger:          logger,
			})
			if err != nil {
				_ = mem.Close()
				return err
			}
			defer stream.Shutdown()

			if packetLength == 0 || packetLength > global.maxPacketLength {
				packetLength = global.maxPacketLength
			}

			produce := func(ctx context.Context) error {
				defer func() {
					counters := core.Counters()
					logger.Info("Producer finished",
						slog.Int("lost", counters.Lost), slog.Int("resets", counters.Resets))
				}()

				return producePackets(ctx, core, packets, packetLength, interval)
			}

			return capture(cmd.Context(), global, core, ch, stream, produce)
		},
	}

	flags := cmd.Flags()
	flags.Uint64Var(&packets, "packets", 1000, "Number of packets to generate")
	flags.Uint32Var(&packetLength, "packet-length", 4096, "Length of the generated packets (in bytes)")
	flags.DurationVar(&interval, "interval", time.Millisecond, "Delay between generated packets")

	return cmd
}

// producePackets injects sequence numbered packets of random content into
// the simulated core, waiting for a transfer to be armed for each.
func producePackets(ctx context.Context, core *sim.Core, packets uint64, length uint32, interval time.Duration) error {
	pkt := make([]byte, length)
	if _, err := rand.Read(pkt); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for seq := uint64(0); seq < packets; seq++ {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}

			if armed, _ := core.Armed(); armed {
				break
			}
		}

		if len(pkt) >= 8 {
			binary.LittleEndian.PutUint64(pkt, seq)
		}
		core.Inject(pkt)
	}

	return nil
}
