package store

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/fpang/portrait-studio/internal/perception"
)

// Stateless encoder and decoder shared by all records; EncodeAll and
// DecodeAll are safe for concurrent use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// CompressPerception encodes a perception snapshot as zstd-compressed JSON.
func CompressPerception(out *perception.Output) ([]byte, error) {
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal perception snapshot: %w", err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// DecompressPerception reverses CompressPerception. An empty blob yields nil.
func DecompressPerception(blob []byte) (*perception.Output, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress perception snapshot: %w", err)
	}
	var out perception.Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal perception snapshot: %w", err)
	}
	return &out, nil
}

// InputPerception returns the decoded input perception snapshot, if stored.
func (r *RunRecord) InputPerception() (*perception.Output, error) {
	return DecompressPerception(r.Perception)
}
