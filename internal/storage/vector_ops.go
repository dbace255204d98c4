package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// SearchNearest scans every embedding in the filtered scope and ranks by
// Euclidean distance in Go. Corpora here are documentation-sized (thousands
// of chunks, not millions), so a linear scan beats maintaining an ANN index.
func (s *SQLiteStore) SearchNearest(ctx context.Context, vector []float32, filter ScopeFilter, limit int) ([]NearestResult, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM embeddings
		WHERE 1=1
	`
	args := []interface{}{}
	if filter.Package != nil {
		query += " AND package = ?"
		args = append(args, *filter.Package)
	}
	if filter.Version != nil {
		query += " AND version = ?"
		args = append(args, *filter.Version)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]NearestResult, 0, 256)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if len(rec.Vector) != len(vector) {
			continue // Dimension mismatch, skip
		}
		candidates = append(candidates, NearestResult{
			Record:   rec,
			Distance: l2Distance(vector, rec.Vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// l2Distance computes the Euclidean distance between two vectors
func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// L2Distance is an exported helper for testing
func L2Distance(a, b []float32) float64 {
	return l2Distance(a, b)
}
