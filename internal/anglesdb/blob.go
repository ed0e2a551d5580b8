package anglesdb

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// encodeGridBlob serialises a matrix row-major as little-endian float64s
// and gzips the result.
func encodeGridBlob(values [][]float64) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	scratch := make([]byte, 8)
	for _, row := range values {
		for _, v := range row {
			binary.LittleEndian.PutUint64(scratch, math.Float64bits(v))
			if _, err := zw.Write(scratch); err != nil {
				return nil, fmt.Errorf("compress grid blob: %w", err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress grid blob: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeGridBlob reverses encodeGridBlob for a dim x dim matrix.
func decodeGridBlob(blob []byte, dim int) ([][]float64, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("decompress grid blob: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress grid blob: %w", err)
	}
	if want := dim * dim * 8; len(raw) != want {
		return nil, fmt.Errorf("grid blob holds %d bytes, want %d for dim %d", len(raw), want, dim)
	}

	values := make([][]float64, dim)
	off := 0
	for r := 0; r < dim; r++ {
		row := make([]float64, dim)
		for c := 0; c < dim; c++ {
			row[c] = math.Float64frombits(binary.LittleEndian.Uint64(raw[off : off+8]))
			off += 8
		}
		values[r] = row
	}
	return values, nil
}
