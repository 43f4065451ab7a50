package index

import (
	"math/rand"
	"testing"
)

func TestHNSW_RecallAgainstExact(t *testing.T) {
	const (
		n       = 500
		d       = 16
		k       = 10
		queries = 50
	)
	rng := rand.New(rand.NewSource(7))
	m := randomMatrix(rng, n, d)

	for _, dist := range []Distance{Euclidean, InnerProduct} {
		t.Run(string(dist), func(t *testing.T) {
			approx, err := NewHNSW(m, dist, HNSWConfig{Seed: 42}, 4)
			if err != nil {
				t.Fatal(err)
			}
			exact, err := NewExact(m, dist, 4)
			if err != nil {
				t.Fatal(err)
			}

			qs := make([][]float64, queries)
			for i := range qs {
				qs[i] = make([]float64, d)
				for j := range qs[i] {
					qs[i][j] = rng.NormFloat64()
				}
			}
			got, err := approx.Search(qs, k)
			if err != nil {
				t.Fatal(err)
			}
			want, err := exact.Search(qs, k)
			if err != nil {
				t.Fatal(err)
			}

			hits := 0
			for i := range qs {
				truth := make(map[int]bool, k)
				for _, id := range want.Indices[i] {
					truth[id] = true
				}
				for _, id := range got.Indices[i] {
					if truth[id] {
						hits++
					}
				}
			}
			recall := float64(hits) / float64(queries*k)
			if recall < 0.9 {
				t.Errorf("recall=%.3f, want >= 0.9", recall)
			}
		})
	}
}

func TestHNSW_ExactlyK(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	m := randomMatrix(rng, 40, 3)
	h, err := NewHNSW(m, Euclidean, HNSWConfig{M: 2, EfConstruction: 4, EfSearch: 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	res, err := h.Search([][]float64{{0, 0, 0}}, 40)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[int]bool)
	for _, id := range res.Indices[0] {
		seen[id] = true
	}
	if len(seen) != 40 {
		t.Errorf("got %d distinct rows, want 40", len(seen))
	}
	for j := 1; j < len(res.Distances[0]); j++ {
		if res.Distances[0][j] < res.Distances[0][j-1] {
			t.Fatalf("distances not ascending at %d: %v", j, res.Distances[0])
		}
	}
}

func TestHNSW_ConcurrentSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	h, err := NewHNSW(randomMatrix(rng, 100, 4), InnerProduct, HNSWConfig{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := h.Search([][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}}, 5)
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Error(err)
		}
	}
}
