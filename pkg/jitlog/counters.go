package jitlog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MarkJitlogCounter tags a counter record:
// kind byte | number int64 | count int64, little endian.
const MarkJitlogCounter byte = 0x20

// Counter kinds.
const (
	CounterBridge     byte = 'b'
	CounterLabel      byte = 'l'
	CounterEntryPoint byte = 'e'
)

// Counter counts runs of one piece of code between flushes.
type Counter struct {
	Kind   byte
	Number int64
	count  int64
}

// Inc adds one run.
func (c *Counter) Inc() { c.count++ }

// Add adds n runs.
func (c *Counter) Add(n int64) { c.count += n }

// Count returns the runs since the last flush.
func (c *Counter) Count() int64 { return c.count }

// NewCounter registers a counter that FlushCounters reports.
func (l *Logger) NewCounter(kind byte, number int64) *Counter {
	c := &Counter{Kind: kind, Number: number}
	l.counters = append(l.counters, c)
	return c
}

// FlushCounters writes one record per registered counter and resets them.
// Counters reset even when the logger is not enabled, so a later flush only
// reports the runs since this one.
func (l *Logger) FlushCounters() {
	var rec [17]byte
	for _, c := range l.counters {
		rec[0] = c.Kind
		binary.LittleEndian.PutUint64(rec[1:9], uint64(c.Number))
		binary.LittleEndian.PutUint64(rec[9:17], uint64(c.count))
		l.WriteMarked(MarkJitlogCounter, rec[:])
		c.count = 0
	}
}

// NewCounter registers a counter on the default logger.
func NewCounter(kind byte, number int64) *Counter { return Default.NewCounter(kind, number) }

// FlushCounters flushes the counters of the default logger.
func FlushCounters() { Default.FlushCounters() }

// CounterRecord is a decoded counter record.
type CounterRecord struct {
	Kind   byte
	Number int64
	Count  int64
}

// ErrUnknownRecord is returned by ReadCounterRecords for a record that is not
// a counter. Other records carry no length, so reading cannot go past one.
var ErrUnknownRecord = errors.New("unknown jitlog record")

// ReadCounterRecords decodes the counter records at the start of r. It stops
// at the end of r or at the first record that is not a counter.
func ReadCounterRecords(r io.Reader) ([]CounterRecord, error) {
	br := bufio.NewReader(r)
	var out []CounterRecord
	var rec [17]byte
	for {
		tag, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if tag != MarkJitlogCounter {
			return out, fmt.Errorf("%w: tag 0x%02x after %d counters", ErrUnknownRecord, tag, len(out))
		}
		if _, err := io.ReadFull(br, rec[:]); err != nil {
			return out, fmt.Errorf("counter record %d: %w", len(out), err)
		}
		out = append(out, CounterRecord{
			Kind:   rec[0],
			Number: int64(binary.LittleEndian.Uint64(rec[1:9])),
			Count:  int64(binary.LittleEndian.Uint64(rec[9:17])),
		})
	}
}
