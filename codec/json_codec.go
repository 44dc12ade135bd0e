package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var errTrailingJSON = errors.New("codec: trailing data after JSON value")

// JSONCodec writes compact JSON without HTML escaping, so addresses such as
// "Bahnhofsstrasse 27/9 & Co" travel unchanged. Decode accepts exactly one value.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errTrailingJSON
	}
	return nil
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
