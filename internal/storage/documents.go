package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Document rows carry these keys.
const (
	DocumentPathKey = "path"
	DocumentTextKey = "text"
)

// LoadDocuments walks dir in lexical order and turns every supported file into one row
// holding its path relative to dir and its extracted text. Files with no text are skipped.
func LoadDocuments(ctx context.Context, dir string) (*MemoryStorage, error) {
	var rows []Row
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		extract, ok := extractors[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		text, err := extract(content)
		if err != nil {
			return fmt.Errorf("extract %s: %w", path, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		rows = append(rows, Row{DocumentPathKey: filepath.ToSlash(rel), DocumentTextKey: text})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no documents with text under %s", dir)
	}
	return NewMemoryStorage([]string{DocumentPathKey, DocumentTextKey}, rows)
}

var extractors = map[string]func([]byte) (string, error){
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
	".pdf":  extractPDF,
	".docx": extractDOCX,
}

// DocumentExtensions returns the file extensions LoadDocuments reads, sorted.
func DocumentExtensions() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "�"), nil
	}
	return string(content), nil
}

func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}

var docxText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// extractDOCX joins the <w:t> runs of word/document.xml with spaces.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("not a zip: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		var parts []string
		for _, m := range docxText.FindAllSubmatch(body, -1) {
			if s := strings.TrimSpace(string(m[1])); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " "), nil
	}
	return "", fmt.Errorf("word/document.xml not found")
}
