package transport

import (
	"bytes"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names double as Content-Encoding values.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

type compressor func(data []byte) ([]byte, error)

func newCompressor(name string) (compressor, error) {
	switch name {
	case "", CompressionNone:
		return nil, nil
	case CompressionGzip:
		return compressGzip, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, errFactory.Wrap(ErrInvalidCompression, err)
		}
		return func(data []byte) ([]byte, error) {
			return enc.EncodeAll(data, nil), nil
		}, nil
	case CompressionLZ4:
		return compressLZ4, nil
	default:
		return nil, errFactory.WithData(ErrInvalidCompression, name)
	}
}

func compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// compressLZ4 writes the LZ4 frame format so receivers can stream-decode.
func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
