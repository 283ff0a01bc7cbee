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
	"os"
	"strconv"
	"strings"

	"github.com/dpeckett/go-axisdma"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	logFormat       string
	logLevel        string
	maxPacketLength uint32
	poolSize        int
	record          string
	out             string
	count           uint64
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:   "axisctl",
		Short: "Capture packets from an AXI DMA stream.",
		Long: `axisctl reads packets received by an AXI DMA core in ` +
			`direct-register mode, from hardware or from a simulated core, ` +
			`and optionally writes them to a file and records statistics ` +
			`into a SQLite database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.logFormat, opts.logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.logFormat, "log-format", envString("AXIS_LOG_FORMAT", "text"), "Log format (text or json)")
	flags.StringVar(&opts.logLevel, "log-level", envString("AXIS_LOG_LEVEL", "info"), "Log level")
	flags.Uint32Var(&opts.maxPacketLength, "max-packet-length",
		uint32(envUint("AXIS_MAX_PACKET_LENGTH", axisdma.DefaultMaxPacketLength)), "Largest packet that can be received (in bytes)")
	flags.IntVar(&opts.poolSize, "pool-size", axisdma.DefaultPoolSize, "Number of transfer buffers")
	flags.StringVar(&opts.record, "record", envString("AXIS_RECORD", ""), "SQLite database to record statistics into")
	flags.StringVarP(&opts.out, "out", "o", "", "File to append received packets to")
	flags.Uint64VarP(&opts.count, "count", "n", 0, "Stop after this many packets (0 for no limit)")

	rootCmd.AddCommand(newCaptureCmd(&opts), newSimulateCmd(&opts))

	return rootCmd
}

func newLogger(format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// envUint parses an unsigned environment variable, accepting 0x prefixed
// values. Malformed values fall back to def.
func envUint(key string, def uint64) uint64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	n, err := strconv.ParseUint(strings.TrimSpace(v), 0, 64)
	if err != nil {
		slog.Warn("Ignoring malformed environment variable", slog.String("key", key), slog.String("value", v))
		return def
	}

	return n
}
