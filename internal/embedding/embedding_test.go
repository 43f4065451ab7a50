package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/hyperjump/tansaku/internal/storage"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, err := e.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "hello")
	c, _ := e.Embed(ctx, "world")

	same, differs := true, false
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			same = false
		}
		if a[i] != c[i] {
			differs = true
		}
		norm += float64(a[i]) * float64(a[i])
	}
	if !same {
		t.Error("same text produced different embeddings")
	}
	if !differs {
		t.Error("different texts produced identical embeddings")
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm^2=%v, want 1", norm)
	}
}

func TestEncode(t *testing.T) {
	e := NewMockEmbedder(8)
	m, err := Encode(context.Background(), e, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	r, c := m.Dims()
	if r != 3 || c != 8 {
		t.Errorf("Dims=(%d, %d), want (3, 8)", r, c)
	}
	want, _ := e.Embed(context.Background(), "b")
	for j := range want {
		if float32(m.At(1, j)) != want[j] {
			t.Fatalf("row 1 does not match embedding of %q", "b")
		}
	}

	if _, err := Encode(context.Background(), e, nil); err != ErrNoTexts {
		t.Errorf("err=%v, want ErrNoTexts", err)
	}
}

func TestEncodeStorage_RowOrder(t *testing.T) {
	rows := make([]storage.Row, 7)
	for i := range rows {
		rows[i] = storage.Row{"text": fmt.Sprintf("row-%d", i)}
	}
	store, err := storage.NewMemoryStorage([]string{"text"}, rows)
	if err != nil {
		t.Fatal(err)
	}
	rec := &RecordingEmbedder{Embedder: NewMockEmbedder(4)}
	transform := func(b storage.Batch) ([]string, error) {
		out := make([]string, len(b["text"]))
		for i, v := range b["text"] {
			out[i] = strings.ToUpper(v.(string))
		}
		return out, nil
	}

	m, err := EncodeStorage(context.Background(), rec, store, transform, 3)
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := m.Dims(); r != 7 {
		t.Errorf("rows=%d, want 7", r)
	}
	for i, text := range rec.Texts {
		if want := fmt.Sprintf("ROW-%d", i); text != want {
			t.Errorf("text %d=%q, want %q", i, text, want)
		}
	}
}

func TestEncodeStorage_TransformLength(t *testing.T) {
	store, err := storage.NewMemoryStorage([]string{"text"}, []storage.Row{{"text": "a"}, {"text": "b"}})
	if err != nil {
		t.Fatal(err)
	}
	short := func(storage.Batch) ([]string, error) { return []string{"only one"}, nil }
	if _, err := EncodeStorage(context.Background(), NewMockEmbedder(4), store, short, 10); err == nil {
		t.Error("expected error for short transform output")
	}
}

func TestCachedEmbedder(t *testing.T) {
	rec := &RecordingEmbedder{Embedder: NewMockEmbedder(4)}
	cached, err := WithCache(rec, 2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := cached.EmbedBatch(ctx, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	out, err := cached.EmbedBatch(ctx, []string{"b", "c", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("len=%d, want 3", len(out))
	}
	if len(rec.Texts) != 3 || rec.Texts[2] != "c" {
		t.Errorf("embedded texts=%v, want [a b c]", rec.Texts)
	}
	if cached.cache.Len() != 2 {
		t.Errorf("cache Len=%d, want 2", cached.cache.Len())
	}
}

func TestNewCache_InvalidSize(t *testing.T) {
	if _, err := NewCache(0); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestSimpleTokenizer(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, mask, types := tok.Tokenize("hello  world\tagain", 4)
	if len(ids) != 4 || len(mask) != 4 || len(types) != 4 {
		t.Fatalf("lengths=%d,%d,%d, want 4", len(ids), len(mask), len(types))
	}
	if ids[0] != clsToken {
		t.Errorf("ids[0]=%d, want [CLS]", ids[0])
	}
	if ids[3] != sepToken {
		t.Errorf("ids[3]=%d, want [SEP]", ids[3])
	}
	for i, m := range mask {
		if m != 1 {
			t.Errorf("mask[%d]=%d, want 1", i, m)
		}
	}

	ids, mask, _ = tok.Tokenize("", 8)
	if ids[1] != sepToken || mask[2] != 0 {
		t.Errorf("empty text ids=%v mask=%v", ids, mask)
	}
}

func TestNew(t *testing.T) {
	e, err := New(ProviderMock, ONNXConfig{Dimensions: 12})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimensions() != 12 {
		t.Errorf("Dimensions=%d, want 12", e.Dimensions())
	}
	if _, err := New("openai", ONNXConfig{}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := New(ProviderONNX, ONNXConfig{}); err == nil {
		t.Error("expected error without model path")
	}
}
