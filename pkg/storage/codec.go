package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	encodingZstd = "zstd"
	encodingRaw  = "raw"
)

// codec compresses report payloads. Encoder and decoder are safe for
// concurrent EncodeAll/DecodeAll use.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) Compress(data []byte) []byte {
	return c.enc.EncodeAll(data, make([]byte, 0, len(data)/4))
}

// Decode returns data in plain form according to its stored encoding.
func (c *codec) Decode(data []byte, encoding string) ([]byte, error) {
	switch encoding {
	case encodingZstd:
		return c.dec.DecodeAll(data, nil)
	case encodingRaw, "":
		return data, nil
	}
	return nil, fmt.Errorf("unknown data encoding %q", encoding)
}

func (c *codec) Close() {
	c.enc.Close()
	c.dec.Close()
}
