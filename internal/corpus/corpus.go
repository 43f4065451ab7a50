// Package corpus pairs a search index with the row-aligned record store its embeddings came from.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/tansaku/internal/embedding"
	"github.com/hyperjump/tansaku/internal/index"
	"github.com/hyperjump/tansaku/internal/storage"
)

// Separator is the token DefaultJoin places between column values.
const Separator = " [SEP] "

// ErrRowCountMismatch is returned when embeddings and storage disagree on the number of rows.
var ErrRowCountMismatch = errors.New("corpus: row count mismatch")

// JoinFunc combines the column values of one row into the text that gets embedded.
type JoinFunc func(values []string) string

// DefaultJoin joins values with Separator.
func DefaultJoin(values []string) string {
	return strings.Join(values, Separator)
}

// Corpus is an immutable pairing of a StatefulIndex and a Storage whose rows align one to one.
// Build a new Corpus to change either side.
type Corpus struct {
	index   *index.StatefulIndex
	storage storage.Storage
}

func (c *Corpus) Index() *index.StatefulIndex { return c.index }

func (c *Corpus) Storage() storage.Storage { return c.storage }

// Len returns the number of rows.
func (c *Corpus) Len() int { return c.storage.Len() }

type settings struct {
	join      JoinFunc
	batchSize int
	logger    *zap.Logger
}

// Option configures corpus construction.
type Option func(*settings)

// WithJoin replaces DefaultJoin in FromKeys.
func WithJoin(join JoinFunc) Option {
	return func(s *settings) {
		s.join = join
	}
}

// WithBatchSize sets how many rows are embedded per call.
func WithBatchSize(n int) Option {
	return func(s *settings) {
		s.batchSize = n
	}
}

// WithLogger sets the logger used while building.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

func newSettings(opts []Option) *settings {
	s := &settings{
		join:      DefaultJoin,
		batchSize: embedding.DefaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromEmbeddings builds an index over embeddings and pairs it with store.
// Row i of embeddings must describe row i of store.
func FromEmbeddings(store storage.Storage, embeddings *mat.Dense, idxOpts index.Options, opts ...Option) (*Corpus, error) {
	s := newSettings(opts)
	if embeddings == nil || embeddings.IsEmpty() {
		return nil, fmt.Errorf("%w: no embeddings for %d storage rows", index.ErrInvalidEmbedding, store.Len())
	}
	n, d := embeddings.Dims()
	if n != store.Len() {
		return nil, fmt.Errorf("%w: %d embedding rows, %d storage rows", ErrRowCountMismatch, n, store.Len())
	}

	idx, err := index.New(embeddings, idxOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}
	s.logger.Debug("corpus index built",
		zap.Int("rows", n),
		zap.Int("dims", d),
		zap.String("backend", string(idxOpts.Backend)),
		zap.String("distance", idxOpts.Distance.String()),
	)
	return &Corpus{index: index.NewStatefulIndex(idx), storage: store}, nil
}

// FromTransform embeds the output of transform over every row of store, then calls FromEmbeddings.
func FromTransform(ctx context.Context, store storage.Storage, e embedding.Embedder, transform embedding.Transform, idxOpts index.Options, opts ...Option) (*Corpus, error) {
	s := newSettings(opts)
	embeddings, err := embedding.EncodeStorage(ctx, e, store, transform, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode storage: %w", err)
	}
	s.logger.Debug("corpus encoded", zap.Int("rows", store.Len()), zap.Int("dims", e.Dimensions()))
	return FromEmbeddings(store, embeddings, idxOpts, opts...)
}

// FromKeys embeds the named columns of every row, joined in the given key order.
func FromKeys(ctx context.Context, store storage.Storage, e embedding.Embedder, keys []string, idxOpts index.Options, opts ...Option) (*Corpus, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("corpus needs at least one key")
	}
	known := make(map[string]bool)
	for _, k := range store.Keys() {
		known[k] = true
	}
	for _, k := range keys {
		if !known[k] {
			return nil, fmt.Errorf("%w: %q (available: %s)", storage.ErrUnknownKey, k, strings.Join(store.Keys(), ", "))
		}
	}

	s := newSettings(opts)
	return FromTransform(ctx, store, e, JoinColumns(keys, s.join), idxOpts, opts...)
}

// JoinColumns returns a Transform that stringifies the cells of keys with fmt.Sprint and joins them per row.
func JoinColumns(keys []string, join JoinFunc) embedding.Transform {
	return func(batch storage.Batch) ([]string, error) {
		columns := make([][]any, len(keys))
		for i, k := range keys {
			col, err := batch.Column(k)
			if err != nil {
				return nil, err
			}
			if i > 0 && len(col) != len(columns[0]) {
				return nil, fmt.Errorf("column %q has %d values, want %d", k, len(col), len(columns[0]))
			}
			columns[i] = col
		}

		texts := make([]string, len(columns[0]))
		values := make([]string, len(keys))
		for row := range texts {
			for i, col := range columns {
				values[i] = fmt.Sprint(col[row])
			}
			texts[row] = join(values)
		}
		return texts, nil
	}
}
