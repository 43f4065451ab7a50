// Package storage provides row-indexed, column-keyed record stores that back a corpus.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Row maps column keys to cell values for one record.
type Row map[string]any

// Batch is column-major: every key maps to one value per selected row, in request order.
type Batch map[string][]any

var (
	ErrRowOutOfRange = errors.New("storage: row out of range")
	ErrUnknownKey    = errors.New("storage: unknown key")
)

// Storage is read-only, row-indexed access to a fixed set of records.
// Row count and order are stable for the lifetime of the value.
type Storage interface {
	// Keys returns the column keys in their canonical order.
	Keys() []string
	Len() int
	Get(ctx context.Context, row int) (Row, error)
	Select(ctx context.Context, rows []int) (Batch, error)
	Close() error
}

// Column returns the values of key from b, or ErrUnknownKey.
func (b Batch) Column(key string) ([]any, error) {
	values, ok := b[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return values, nil
}

// Range returns the row numbers [start, end) clipped to n.
func Range(start, end, n int) []int {
	if end > n {
		end = n
	}
	if start >= end {
		return nil
	}
	rows := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, i)
	}
	return rows
}

func checkRow(row, n int) error {
	if row < 0 || row >= n {
		return fmt.Errorf("%w: row %d, have %d rows", ErrRowOutOfRange, row, n)
	}
	return nil
}

func newBatch(keys []string, size int) Batch {
	b := make(Batch, len(keys))
	for _, k := range keys {
		b[k] = make([]any, 0, size)
	}
	return b
}

func (b Batch) append(keys []string, r Row) {
	for _, k := range keys {
		b[k] = append(b[k], r[k])
	}
}
