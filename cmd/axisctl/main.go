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

// Command axisctl captures packets from an AXI DMA stream, either from
// hardware or from a simulated core.
package main

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/tebeka/atexit"
)

func main() {
	envFile := os.Getenv("AXIS_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	// Flag defaults come from the environment, so it is loaded first.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", envFile, err)
	}

	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
