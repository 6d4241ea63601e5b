package transpile

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

// TranspileResult is the outcome of one transpile run over a compilation.
type TranspileResult struct {
	// Files maps each transformed source path to its rewritten text. Excluded files are absent.
	Files map[string]string `msgpack:"f"`
	// Excluded lists the source paths left untouched.
	Excluded []string `msgpack:"x,omitempty"`
	// EditCounts is the number of committed edits per kind.
	EditCounts map[string]int `msgpack:"e"`
	// SolcVersion is the compiler version the AST was produced by, if known.
	SolcVersion string `msgpack:"v,omitempty"`
	// Cached is set when the result was loaded from storage rather than computed.
	Cached bool `msgpack:"-"`
}

// Paths returns the transformed source paths, sorted.
func (r *TranspileResult) Paths() []string {
	return slices.Sorted(maps.Keys(r.Files))
}

// TotalEdits returns the number of edits across all kinds.
func (r *TranspileResult) TotalEdits() int {
	var total int
	for _, c := range r.EditCounts {
		total += c
	}
	return total
}

func (r *TranspileResult) MarshalMsgpack() ([]byte, error) {
	type plain TranspileResult // avoid recursion into this method
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)

	var buf bytes.Buffer
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode((*plain)(r))
	return buf.Bytes(), err
}

func (r *TranspileResult) UnmarshalMsgpack(data []byte) error {
	type plain TranspileResult
	return msgpack.Unmarshal(data, (*plain)(r))
}

// encodeResult produces the stored form of a result, a zstd compressed msgpack record.
func encodeResult(r *TranspileResult) ([]byte, error) {
	raw, err := r.MarshalMsgpack()
	if err != nil {
		return nil, fmt.Errorf("error encoding result: %w", err)
	}
	return ZstdCompress(nil, raw), nil
}

func decodeResult(blob []byte) (*TranspileResult, error) {
	raw, err := ZstdDecompress(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("error decompressing result: %w", err)
	}
	var r TranspileResult
	if err := r.UnmarshalMsgpack(raw); err != nil {
		return nil, fmt.Errorf("error decoding result: %w", err)
	}
	r.Cached = true
	return &r, nil
}
