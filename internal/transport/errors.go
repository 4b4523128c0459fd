package transport

import "codeberg.org/mutker/coreprobe/internal/errors"

const (
	// Configuration Errors
	ErrInvalidCodec       = errors.ErrorCode("transport_invalid_codec")
	ErrInvalidCompression = errors.ErrorCode("transport_invalid_compression")
	ErrInvalidServer      = errors.ErrorCode("transport_invalid_server")

	// Payload Errors
	ErrEncodeFailed   = errors.ErrorCode("transport_encode_failed")
	ErrCompressFailed = errors.ErrorCode("transport_compress_failed")

	// Delivery Errors
	ErrSendFailed    = errors.ErrorCode("transport_send_failed")
	ErrSendCancelled = errors.ErrorCode("transport_send_cancelled")
)

var errFactory = errors.New()
