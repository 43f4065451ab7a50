//go:build faiss && cgo
// +build faiss,cgo

package index

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"gonum.org/v1/gonum/mat"
)

// FAISS is a flat (exhaustive) FAISS index. It returns the same scale and ordering as Exact.
type FAISS struct {
	*space
	index *C.FaissIndex
	mu    sync.RWMutex
}

// NewFAISS copies the prepared rows into a FAISS IndexFlatL2 or IndexFlatIP.
func NewFAISS(embeddings *mat.Dense, distance Distance) (*FAISS, error) {
	sp, err := prepare(embeddings, distance)
	if err != nil {
		return nil, err
	}
	d := sp.Dims()

	var idx *C.FaissIndex
	var ret C.int
	if distance == InnerProduct {
		ret = C.faiss_IndexFlatIP_new_with(&idx, C.idx_t(d))
	} else {
		ret = C.faiss_IndexFlatL2_new_with(&idx, C.idx_t(d))
	}
	if ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}

	flat := make([]float32, 0, len(sp.rows)*d)
	for _, row := range sp.rows {
		flat = append(flat, row...)
	}
	if ret := C.faiss_Index_add(idx, C.idx_t(len(sp.rows)), (*C.float)(unsafe.Pointer(&flat[0]))); ret != 0 {
		C.faiss_Index_free(idx)
		return nil, fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}

	f := &FAISS{space: sp, index: idx}
	runtime.SetFinalizer(f, (*FAISS).free)
	return f, nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Search runs every query in one FAISS call. Inner-product similarities are mapped to 1 - dot.
func (f *FAISS) Search(queries [][]float64, k int) (SearchResult, error) {
	if err := f.validateQuery(queries, k); err != nil {
		return SearchResult{}, err
	}
	d := f.Dims()
	flat := make([]float32, 0, len(queries)*d)
	for _, q := range queries {
		flat = append(flat, toFloat32(q)...)
	}
	distances := make([]float32, len(queries)*k)
	labels := make([]int64, len(queries)*k)

	f.mu.RLock()
	ret := C.faiss_Index_search(
		f.index,
		C.idx_t(len(queries)),
		(*C.float)(unsafe.Pointer(&flat[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	f.mu.RUnlock()
	if ret != 0 {
		return SearchResult{}, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	res := SearchResult{
		Query:     make([][]float64, len(queries)),
		Indices:   make([][]int, len(queries)),
		Distances: make([][]float64, len(queries)),
	}
	for i, q := range queries {
		res.Query[i] = append([]float64(nil), q...)
		res.Indices[i] = make([]int, k)
		res.Distances[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			res.Indices[i][j] = int(labels[i*k+j])
			dist := float64(distances[i*k+j])
			if f.distance == InnerProduct {
				dist = 1 - dist
			}
			res.Distances[i][j] = dist
		}
	}
	return res, nil
}

func (f *FAISS) free() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
}
