// Package e2e runs the full pipeline from a corpus source on disk to an optimizer run.
package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/tansaku/internal/storage"
)

// Document is one corpus entry. Relevance is the score a column evaluator reads back.
type Document struct {
	Title     string
	Content   string
	Relevance float64
}

// Text is what gets embedded for a document.
func (d Document) Text() string {
	return d.Title + " [SEP] " + d.Content
}

var topics = []struct {
	title   string
	content string
}{
	{"Bayesian Optimization", "A Gaussian process surrogate guides where to sample next."},
	{"Expected Improvement", "The acquisition function trades exploration against exploitation."},
	{"Random Search", "Uniform sampling within bounds is a strong baseline for tuning."},
	{"Hyperparameter Tuning", "Learning rate and batch size dominate validation accuracy."},
	{"HNSW Graphs", "Hierarchical small world graphs answer nearest neighbor queries quickly."},
	{"Product Quantization", "Vectors are split into subspaces and encoded with codebooks."},
	{"Whitening Transform", "Centering and scaling by principal components decorrelates embeddings."},
	{"Cosine Similarity", "Unit normalized vectors compare by their dot product."},
	{"Sentence Embeddings", "Mean pooled transformer outputs represent whole sentences."},
	{"Prompt Selection", "Choosing in-context examples changes model accuracy markedly."},
	{"Few-Shot Learning", "A handful of labeled demonstrations steer the model output."},
	{"Multiple Choice Evaluation", "Each question offers options scored against reference answers."},
	{"Keyword Matching", "Inverted indexes rank documents by term frequency statistics."},
	{"Fuzzy Queries", "Edit distance tolerates misspelled search terms."},
	{"SQLite Storage", "A single file database keeps records in a durable table."},
	{"Spreadsheet Import", "Worksheet rows become records with header keys."},
	{"Sourdough Bread", "Wild yeast and long fermentation give the loaf its flavor."},
	{"Pour Over Coffee", "A slow spiral pour extracts evenly from medium ground beans."},
	{"Alpine Hiking", "Switchbacks climb toward the ridge above the tree line."},
	{"Tide Pools", "Anemones and small crabs shelter in rocky coastal basins."},
	{"Chess Openings", "Controlling the center early gives pieces room to develop."},
	{"Watercolor Washes", "Wet paper lets pigment bleed into soft gradients."},
	{"Bicycle Maintenance", "A clean chain and tuned derailleur make shifting smooth."},
	{"Jazz Harmony", "Extended chords and tritone substitutions color the progression."},
	{"Beekeeping", "Colonies store honey through summer to survive the winter."},
	{"Orbital Mechanics", "A burn at periapsis raises the opposite side of the orbit."},
	{"Volcanic Soil", "Weathered ash makes fertile ground for vineyards."},
	{"Knot Tying", "A bowline forms a fixed loop that will not slip under load."},
	{"Origami Cranes", "Precise valley and mountain folds shape the wings."},
	{"Fermented Vegetables", "Salt brine favors lactic bacteria over spoilage microbes."},
	{"Star Charts", "Right ascension and declination locate objects in the sky."},
	{"Rock Climbing", "Footwork and balance save the arms on long routes."},
	{"Ceramic Glazes", "Silica, alumina and flux melt into glass in the kiln."},
	{"Urban Gardening", "Raised beds and containers grow vegetables on balconies."},
	{"Sailing Knots", "A cleat hitch secures the line quickly to the dock."},
	{"Bird Migration", "Songbirds navigate by stars and the earth's magnetic field."},
	{"Typography", "Kerning and leading shape how easily a page reads."},
	{"Tea Ceremony", "Each gesture in preparing matcha is deliberate and calm."},
	{"Glacier Retreat", "Meltwater lakes form behind moraines as the ice thins."},
	{"Mushroom Foraging", "Spore prints help tell edible species from toxic lookalikes."},
}

// BuildDocuments returns one document per topic. The first sixteen topics are on-subject
// and carry higher relevance than the rest.
func BuildDocuments() []Document {
	docs := make([]Document, len(topics))
	for i, t := range topics {
		rel := 0.1
		if i < 16 {
			rel = 0.5 + float64(i)/32
		}
		docs[i] = Document{Title: t.title, Content: t.content, Relevance: rel}
	}
	return docs
}

func rows(docs []Document) []storage.Row {
	out := make([]storage.Row, len(docs))
	for i, d := range docs {
		out[i] = storage.Row{"title": d.Title, "content": d.Content, "relevance": d.Relevance}
	}
	return out
}

// WriteJSONL writes docs as a JSON Lines corpus.
func WriteJSONL(path string, docs []Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, r := range rows(docs) {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteXLSX writes docs to sheet with a header row of column keys.
func WriteXLSX(path, sheet string, docs []Document) error {
	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	header := []any{"title", "content", "relevance"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, d := range docs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{d.Title, d.Content, d.Relevance}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

// WriteDirectory writes each document as its own file, cycling through the document formats.
// Names sort in document order.
func WriteDirectory(dir string, docs []Document) error {
	for i, d := range docs {
		ext := SupportedFileExtensions[i%len(SupportedFileExtensions)]
		content, err := WriteMinimalFile(ext, d.Title+". "+d.Content)
		if err != nil {
			return err
		}
		name := filepath.Join(dir, fmt.Sprintf("doc-%03d%s", i, ext))
		if err := os.WriteFile(name, content, 0644); err != nil {
			return err
		}
	}
	return nil
}
