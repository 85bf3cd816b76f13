// internal/repository/payload_codec.go
package repository

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Stored payload encodings.
const (
	PayloadEncodingRaw  = "raw"
	PayloadEncodingZstd = "zstd"
)

// zstd.Encoder and zstd.Decoder are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("repository: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("repository: zstd decoder initialization failed: " + err.Error())
	}
}

// encodePayload compresses payload when enabled and worthwhile. Jobs that
// do not shrink are stored raw.
func encodePayload(payload []byte, compress bool) ([]byte, string) {
	if !compress || len(payload) == 0 {
		return payload, PayloadEncodingRaw
	}
	compressed := zstdEncoder.EncodeAll(payload, nil)
	if len(compressed) >= len(payload) {
		return payload, PayloadEncodingRaw
	}
	return compressed, PayloadEncodingZstd
}

func decodePayload(stored []byte, encoding string, size int) ([]byte, error) {
	switch encoding {
	case PayloadEncodingRaw, "":
		return stored, nil
	case PayloadEncodingZstd:
		result, err := zstdDecoder.DecodeAll(stored, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unknown payload encoding %q", encoding)
	}
}
