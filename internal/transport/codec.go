package transport

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// Codec serializes reports. Field names come from the json struct tags,
// which the CBOR encoder also honours.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(v any) ([]byte, error)
}

type jsonCodec struct{}

func (jsonCodec) Name() string                  { return "json" }
func (jsonCodec) ContentType() string           { return "application/json" }
func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// cborCodec uses Core Deterministic Encoding with RFC 3339 timestamps.
type cborCodec struct {
	mode cbor.EncMode
}

func newCBORCodec() (*cborCodec, error) {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano

	mode, err := opts.EncMode()
	if err != nil {
		return nil, err
	}

	return &cborCodec{mode: mode}, nil
}

func (*cborCodec) Name() string                    { return "cbor" }
func (*cborCodec) ContentType() string             { return "application/cbor" }
func (c *cborCodec) Marshal(v any) ([]byte, error) { return c.mode.Marshal(v) }

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return jsonCodec{}, nil
	case "cbor":
		c, err := newCBORCodec()
		if err != nil {
			return nil, errFactory.Wrap(ErrInvalidCodec, err)
		}
		return c, nil
	default:
		return nil, errFactory.WithData(ErrInvalidCodec, name)
	}
}
