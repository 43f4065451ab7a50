package storage

import (
	"context"
	"fmt"
)

// MemoryStorage keeps every row in memory.
type MemoryStorage struct {
	keys []string
	rows []Row
}

// NewMemoryStorage validates that every row carries every key.
func NewMemoryStorage(keys []string, rows []Row) (*MemoryStorage, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("storage needs at least one key")
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			return nil, fmt.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}
	for i, r := range rows {
		for _, k := range keys {
			if _, ok := r[k]; !ok {
				return nil, fmt.Errorf("row %d missing key %q", i, k)
			}
		}
	}
	return &MemoryStorage{
		keys: append([]string(nil), keys...),
		rows: rows,
	}, nil
}

func (m *MemoryStorage) Keys() []string { return append([]string(nil), m.keys...) }

func (m *MemoryStorage) Len() int { return len(m.rows) }

// Get returns a copy of one row.
func (m *MemoryStorage) Get(_ context.Context, row int) (Row, error) {
	if err := checkRow(row, len(m.rows)); err != nil {
		return nil, err
	}
	out := make(Row, len(m.keys))
	for _, k := range m.keys {
		out[k] = m.rows[row][k]
	}
	return out, nil
}

// Select returns the requested rows column-major, in request order.
func (m *MemoryStorage) Select(_ context.Context, rows []int) (Batch, error) {
	b := newBatch(m.keys, len(rows))
	for _, row := range rows {
		if err := checkRow(row, len(m.rows)); err != nil {
			return nil, err
		}
		b.append(m.keys, m.rows[row])
	}
	return b, nil
}

func (m *MemoryStorage) Close() error { return nil }
