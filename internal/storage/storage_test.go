package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func sampleRows() ([]string, []Row) {
	keys := []string{"question", "answer", "score"}
	rows := []Row{
		{"question": "q0", "answer": "a0", "score": 0.5},
		{"question": "q1", "answer": "a1", "score": 1.0},
		{"question": "q2", "answer": "a2", "score": 2.0},
	}
	return keys, rows
}

func TestMemoryStorage(t *testing.T) {
	keys, rows := sampleRows()
	s, err := NewMemoryStorage(keys, rows)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if s.Len() != 3 {
		t.Errorf("Len=%d, want 3", s.Len())
	}
	r, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if r["answer"] != "a1" {
		t.Errorf("answer=%v, want a1", r["answer"])
	}

	b, err := s.Select(ctx, []int{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	q, err := b.Column("question")
	if err != nil {
		t.Fatal(err)
	}
	if q[0] != "q2" || q[1] != "q0" {
		t.Errorf("question=%v, want [q2 q0]", q)
	}
	if _, err := b.Column("missing"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("err=%v, want ErrUnknownKey", err)
	}

	if _, err := s.Get(ctx, 3); !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("err=%v, want ErrRowOutOfRange", err)
	}
	if _, err := s.Select(ctx, []int{0, -1}); !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("err=%v, want ErrRowOutOfRange", err)
	}
}

func TestNewMemoryStorage_Invalid(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		rows []Row
	}{
		{"no keys", nil, nil},
		{"duplicate key", []string{"a", "a"}, nil},
		{"missing key", []string{"a", "b"}, []Row{{"a": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMemoryStorage(tt.keys, tt.rows); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRange(t *testing.T) {
	got := Range(3, 10, 5)
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("Range(3, 10, 5)=%v, want [3 4]", got)
	}
	if got := Range(5, 10, 5); got != nil {
		t.Errorf("Range(5, 10, 5)=%v, want nil", got)
	}
}

func TestSQLiteStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "corpus.db")
	s, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	keys, rows := sampleRows()
	if err := s.Import(ctx, keys, rows); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Errorf("Len=%d, want 3", s.Len())
	}
	r, err := s.Get(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if r["score"] != 2.0 {
		t.Errorf("score=%v, want 2", r["score"])
	}
	if _, err := s.Get(ctx, 3); !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("err=%v, want ErrRowOutOfRange", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(ctx, path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	gotKeys := reopened.Keys()
	if len(gotKeys) != 3 || gotKeys[0] != "question" || gotKeys[2] != "score" {
		t.Errorf("Keys=%v, want %v", gotKeys, keys)
	}
	b, err := reopened.Select(ctx, []int{1})
	if err != nil {
		t.Fatal(err)
	}
	if b["answer"][0] != "a1" {
		t.Errorf("answer=%v, want a1", b["answer"])
	}
}

func TestSQLiteStorage_ImportRejectsMissingKey(t *testing.T) {
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "c.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Import(context.Background(), []string{"a"}, []Row{{"b": 1}}); err == nil {
		t.Error("expected error")
	}
	if s.Len() != 0 {
		t.Errorf("Len=%d, want 0", s.Len())
	}
}

func TestLoadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	data := `{"text": "hello", "label": 1}

{"text": "world", "label": 0}
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadJSONL(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Errorf("Len=%d, want 2", s.Len())
	}
	keys := s.Keys()
	if len(keys) != 2 || keys[0] != "label" || keys[1] != "text" {
		t.Errorf("Keys=%v, want [label text]", keys)
	}

	bad := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(bad, []byte("{\"text\": \"a\"}\n{\"other\": 1}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadJSONL(bad); err == nil {
		t.Error("expected error for row missing a key")
	}
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	values := [][]any{
		{"prompt", "target"},
		{"p0", "t0"},
		{"p1"},
	}
	for i, line := range values {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	s, err := Open(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len=%d, want 2", s.Len())
	}
	r, err := s.Get(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if r["prompt"] != "p1" || r["target"] != "" {
		t.Errorf("row=%v", r)
	}
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b.md":          "# second",
		"a.txt":         "first",
		"empty.txt":     "   ",
		"skip.bin":      "binary",
		".hidden/c.txt": "hidden",
		"nested/d.rst":  "third",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	s, err := LoadDocuments(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Select(context.Background(), Range(0, s.Len(), s.Len()))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.txt", "b.md", "nested/d.rst"}
	paths := b[DocumentPathKey]
	if len(paths) != len(want) {
		t.Fatalf("paths=%v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d]=%v, want %s", i, paths[i], want[i])
		}
	}
}

func TestOpen_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.csv")
	if err := os.WriteFile(path, []byte("a,b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(context.Background(), path, OpenOptions{}); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
