package store

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/berthelol/reference-images/internal/descriptor"
)

// Descriptors compress well (repeated keys, long prose); stored blobs are
// zstd frames of the compact JSON encoding.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// encodeDescriptor returns the compressed blob of d.
func encodeDescriptor(d *descriptor.Descriptor) ([]byte, error) {
	raw, err := d.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// decodeDescriptor decompresses and parses a blob written by encodeDescriptor.
func decodeDescriptor(blob []byte) (*descriptor.Descriptor, error) {
	raw, err := zstdDecoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress descriptor: %w", err)
	}
	return descriptor.Parse(raw)
}
