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

// Package recorder records received packets and stream statistics into a
// SQLite database.
package recorder

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dpeckett/go-axisdma"
	"github.com/fatih/structs"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DefaultBatchSize is the number of buffered rows that triggers a flush.
const DefaultBatchSize = 10000

// Packet is a row of the packets table.
type Packet struct {
	Session  string
	Sequence int64
	Length   int64
	// Dropped and Errors are the stream's counters when the packet was read.
	Dropped int64
	Errors  int64
	// Time is in nanoseconds since the Unix epoch.
	Time int64
}

// Snapshot is a row of the snapshots table.
type Snapshot struct {
	Session        string
	Time           int64
	Completed      int64
	CompletedBytes int64
	Dropped        int64
	DroppedBytes   int64
	Errors         int64
	Exhausted      int64
}

const (
	packetsTable   = "packets"
	snapshotsTable = "snapshots"
)

// Recorder buffers rows and writes them in batches.
type Recorder struct {
	db        *sql.DB
	session   string
	batchSize int

	mu        sync.Mutex
	packets   []any
	snapshots []any
	closed    bool
}

// Open opens (or creates) the database at path and starts a new recording
// session. Buffered rows are flushed when the process exits through atexit.
func Open(path string, batchSize int) (*Recorder, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("could not open recording database: %w", err)
	}

	r := &Recorder{
		db:        db,
		session:   xid.New().String(),
		batchSize: batchSize,
	}

	for name, sample := range map[string]any{
		packetsTable:   Packet{},
		snapshotsTable: Snapshot{},
	} {
		if err := r.createTable(name, sample); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	atexit.Register(func() { _ = r.Close() })

	return r, nil
}

// Session returns the id of the recording session.
func (r *Recorder) Session() string {
	return r.session
}

func (r *Recorder) createTable(name string, sample any) error {
	columns := strings.Join(structs.Names(sample), ", ")

	if _, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS ` + name + ` (` + columns + `)`); err != nil {
		return fmt.Errorf("could not create table %s: %w", name, err)
	}

	return nil
}

// RecordPacket buffers a received packet together with the stream's
// counters at the time it was read.
func (r *Recorder) RecordPacket(seq uint64, length int, stats axisdma.Stats) error {
	return r.add(func() {
		r.packets = append(r.packets, Packet{
			Session:  r.session,
			Sequence: int64(seq),
			Length:   int64(length),
			Dropped:  int64(stats.Dropped),
			Errors:   int64(stats.Errors),
			Time:     time.Now().UnixNano(),
		})
	})
}

// RecordStats buffers a snapshot of a stream's counters.
func (r *Recorder) RecordStats(stats axisdma.Stats) error {
	return r.add(func() {
		r.snapshots = append(r.snapshots, Snapshot{
			Session:        r.session,
			Time:           time.Now().UnixNano(),
			Completed:      int64(stats.Completed),
			CompletedBytes: int64(stats.CompletedBytes),
			Dropped:        int64(stats.Dropped),
			DroppedBytes:   int64(stats.DroppedBytes),
			Errors:         int64(stats.Errors),
			Exhausted:      int64(stats.Exhausted),
		})
	})
}

func (r *Recorder) add(appendRow func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("recorder closed")
	}

	appendRow()

	if len(r.packets)+len(r.snapshots) >= r.batchSize {
		return r.flushLocked()
	}

	return nil
}

// Flush writes all buffered rows.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if len(r.packets)+len(r.snapshots) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := insert(tx, packetsTable, r.packets); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := insert(tx, snapshotsTable, r.snapshots); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	r.packets = r.packets[:0]
	r.snapshots = r.snapshots[:0]

	return nil
}

func insert(tx *sql.Tx, table string, rows []any) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := make([]string, len(structs.Names(rows[0])))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	stmt, err := tx.Prepare(`INSERT INTO ` + table + ` VALUES (` + strings.Join(placeholders, ", ") + `)`)
	if err != nil {
		return fmt.Errorf("could not prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(structs.Values(row)...); err != nil {
			return fmt.Errorf("could not insert into %s: %w", table, err)
		}
	}

	return nil
}

// Close flushes the buffered rows and closes the database. It is safe to
// call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	flushErr := r.flushLocked()

	if err := r.db.Close(); err != nil {
		return fmt.Errorf("could not close recording database: %w", err)
	}

	return flushErr
}
