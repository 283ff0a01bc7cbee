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
	"fmt"
	"log/slog"

	"github.com/dpeckett/go-axisdma"
	"github.com/dpeckett/go-axisdma/internal/regs"
	"github.com/spf13/cobra"
)

func newCaptureCmd(global *globalOptions) *cobra.Command {
	var (
		uioPath    string
		regsOffset int64
		regsSize   int
		udmabuf    string
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture packets from a DMA core exposed through UIO.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()

			window, err := axisdma.MapRegisters(uioPath, regsOffset, regsSize)
			if err != nil {
				return err
			}
			defer window.Close()

			uio, err := axisdma.OpenUIO(uioPath)
			if err != nil {
				return err
			}
			defer uio.Close()

			mem, err := axisdma.OpenUDMABuf(udmabuf)
			if err != nil {
				return err
			}

			ch, err := axisdma.NewCore(window).Channel(axisdma.ChannelConfig{
				Direction: axisdma.DevToMem,
				Logger:    logger,
			})
			if err != nil {
				_ = mem.Close()
				return fmt.Errorf("could not set up dma channel: %w", err)
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

			return capture(cmd.Context(), global, uio, ch, stream, nil)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&uioPath, "uio", envString("AXIS_UIO", "/dev/uio0"), "UIO device of the DMA core")
	flags.Int64Var(&regsOffset, "regs-offset", int64(envUint("AXIS_REGS_OFFSET", 0)), "Offset of the register window within the UIO device")
	flags.IntVar(&regsSize, "regs-size", int(envUint("AXIS_REGS_SIZE", regs.WindowSize)), "Size of the register window")
	flags.StringVar(&udmabuf, "udmabuf", envString("AXIS_UDMABUF", "udmabuf0"), "u-dma-buf buffer to receive into")

	return cmd
}
