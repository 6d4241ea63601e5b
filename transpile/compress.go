package transpile

import (
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

// encoders and decoders are safe for concurrent EncodeAll / DecodeAll and are shared for the process lifetime
var (
	zstdEncoder = sync.OnceValue(func() *zstd.Encoder {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			panic(err) // only possible with invalid options
		}
		return encoder
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
)

// ZstdCompress compresses data with zstd, appending to dst.
func ZstdCompress(dst, data []byte) []byte {
	return zstdEncoder().EncodeAll(data, dst)
}

// ZstdDecompress decompresses zstd data, appending to dst.
func ZstdDecompress(dst, data []byte) ([]byte, error) {
	decoder, err := zstdDecoder()
	if err != nil {
		return nil, err
	}
	return decoder.DecodeAll(data, dst)
}

// SnappyCompress compresses data in the snappy format, favoring ratio over speed.
func SnappyCompress(dst, data []byte) []byte {
	return s2.EncodeSnappyBest(dst, data)
}

// SnappyDecompress decompresses snappy data, dst is used if large enough.
func SnappyDecompress(dst, data []byte) ([]byte, error) {
	return snappy.Decode(dst, data)
}
