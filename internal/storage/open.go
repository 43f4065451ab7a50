package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OpenOptions carries source-specific settings for Open.
type OpenOptions struct {
	// Sheet selects the worksheet of an .xlsx source. Empty means the first sheet.
	Sheet string
}

// Open loads a record store from path. Directories are read as document collections;
// files are dispatched on their extension (.jsonl, .xlsx, .db, .sqlite).
func Open(ctx context.Context, path string, opts OpenOptions) (Storage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat corpus source: %w", err)
	}
	if info.IsDir() {
		return memory(LoadDocuments(ctx, path))
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jsonl":
		return memory(LoadJSONL(path))
	case ".xlsx":
		return memory(LoadXLSX(path, opts.Sheet))
	case ".db", ".sqlite":
		s, err := NewSQLiteStorage(path)
		if err != nil {
			return nil, err
		}
		if s.Len() == 0 {
			_ = s.Close()
			return nil, fmt.Errorf("%s has no records", path)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported corpus source: %s (supported: directory, .jsonl, .xlsx, .db, .sqlite)", ext)
	}
}

func memory(m *MemoryStorage, err error) (Storage, error) {
	if err != nil {
		return nil, err
	}
	return m, nil
}
