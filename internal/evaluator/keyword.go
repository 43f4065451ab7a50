package evaluator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/storage"
)

// KeywordEvaluator scores rows by the bleve TF-IDF relevance of their text columns to a
// fixed target query. Rows that do not match score 0.
type KeywordEvaluator struct {
	base
	target string
	rows   int
	scores map[int]float64
}

// KeywordOptions configures NewKeywordEvaluator.
type KeywordOptions struct {
	// Keys are the text columns to index.
	Keys []string
	// Target is the query every row is scored against.
	Target string
	// Fuzziness > 0 matches each target term within that edit distance.
	Fuzziness int
}

// NewKeywordEvaluator indexes the chosen columns of every row of store in memory and scores
// them once against the target.
func NewKeywordEvaluator(ctx context.Context, store storage.Storage, kopts KeywordOptions, opts ...Option) (*KeywordEvaluator, error) {
	if len(kopts.Keys) == 0 {
		return nil, fmt.Errorf("keyword evaluator needs at least one key")
	}
	if strings.TrimSpace(kopts.Target) == "" {
		return nil, fmt.Errorf("keyword evaluator needs a target query")
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// standard analyzer: lowercase and tokenize without stemming
	textFieldMapping.Analyzer = standard.Name
	for _, k := range kopts.Keys {
		docMapping.AddFieldMappingsAt(k, textFieldMapping)
	}
	im.DefaultMapping = docMapping

	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	defer idx.Close()

	n := store.Len()
	for start := 0; start < n; start += 256 {
		rows := storage.Range(start, start+256, n)
		b, err := store.Select(ctx, rows)
		if err != nil {
			return nil, err
		}
		batch := idx.NewBatch()
		for i, row := range rows {
			doc := make(map[string]string, len(kopts.Keys))
			for _, k := range kopts.Keys {
				col, err := b.Column(k)
				if err != nil {
					return nil, err
				}
				doc[k] = fmt.Sprint(col[i])
			}
			if err := batch.Index(strconv.Itoa(row), doc); err != nil {
				return nil, fmt.Errorf("failed to index row %d: %w", row, err)
			}
		}
		if err := idx.Batch(batch); err != nil {
			return nil, fmt.Errorf("failed to index rows: %w", err)
		}
	}

	var q blevequery.Query
	if kopts.Fuzziness > 0 {
		q = fuzzyQuery(kopts.Target, kopts.Fuzziness)
	} else {
		q = bleve.NewMatchQuery(kopts.Target)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = n
	results, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	scores := make(map[int]float64, len(results.Hits))
	for _, hit := range results.Hits {
		row, err := strconv.Atoi(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q: %w", hit.ID, err)
		}
		scores[row] = hit.Score
	}

	e := &KeywordEvaluator{base: newBase(opts), target: kopts.Target, rows: n, scores: scores}
	e.logger.Debug("keyword evaluator ready", zap.String("target", kopts.Target), zap.Int("rows", n), zap.Int("matches", len(scores)))
	return e, nil
}

// fuzzyQuery ORs one fuzzy term query per target word.
func fuzzyQuery(target string, fuzziness int) blevequery.Query {
	var terms []blevequery.Query
	for _, word := range strings.Fields(strings.ToLower(target)) {
		fq := bleve.NewFuzzyQuery(word)
		fq.SetFuzziness(fuzziness)
		terms = append(terms, fq)
	}
	return bleve.NewDisjunctionQuery(terms...)
}

// Evaluate looks up the precomputed relevance of each row. store must be the store the
// evaluator was built over.
func (e *KeywordEvaluator) Evaluate(_ context.Context, store storage.Storage, rows []int) ([]float64, error) {
	if store.Len() != e.rows {
		return nil, fmt.Errorf("keyword evaluator built over %d rows, store has %d", e.rows, store.Len())
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		if row < 0 || row >= e.rows {
			return nil, fmt.Errorf("%w: row %d, have %d rows", storage.ErrRowOutOfRange, row, e.rows)
		}
		out[i] = e.scores[row]
	}
	e.logger.Debug("keyword evaluated", zap.String("target", e.target), zap.Ints("rows", rows), zap.Float64s("scores", out))
	return out, nil
}
