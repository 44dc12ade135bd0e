package codec

import (
	"testing"

	"election-rpc/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func sampleEnvelope() *message.RPCMessage {
	return &message.RPCMessage{
		ServiceMethod: "ElectionDataService.SendElectionData",
		RequestID:     "2f1c9a0e-6b7d-4c55-9d1e-1f4e3c7a2b10",
		Payload:       []byte(`{"region":{"regionID":33123}}`),
	}
}

func TestEnvelopeCodecs(t *testing.T) {
	for _, ct := range []CodecType{CodecTypeJSON, CodecTypeBinary, CodecTypeProto} {
		t.Run(ct.String(), func(t *testing.T) {
			cdc := GetCodec(ct)
			require.Equal(t, ct, cdc.Type())

			original := sampleEnvelope()
			original.Error = "rate limit exceeded"

			data, err := cdc.Encode(original)
			require.NoError(t, err)

			var decoded message.RPCMessage
			require.NoError(t, cdc.Decode(data, &decoded))
			assert.Equal(t, *original, decoded)
		})
	}
}

func TestEnvelopeCodecsRejectOtherTypes(t *testing.T) {
	for _, cdc := range []Codec{&BinaryCodec{}, &ProtoCodec{}} {
		_, err := cdc.Encode("not an envelope")
		assert.Error(t, err)
		assert.Error(t, cdc.Decode([]byte{0, 0}, &struct{}{}))
	}
}

func TestBinaryCodecTruncated(t *testing.T) {
	cdc := &BinaryCodec{}
	data, err := cdc.Encode(sampleEnvelope())
	require.NoError(t, err)

	for _, cut := range []int{0, 1, 5, len(data) - 1} {
		var decoded message.RPCMessage
		err := cdc.Decode(data[:cut], &decoded)
		assert.Error(t, err, "cut at %d", cut)
	}
}

func TestProtoCodecSkipsUnknownFields(t *testing.T) {
	cdc := &ProtoCodec{}
	data, err := cdc.Encode(sampleEnvelope())
	require.NoError(t, err)

	data = protowire.AppendTag(data, 15, protowire.VarintType)
	data = protowire.AppendVarint(data, 7)
	data = AppendString(data, 16, "ignored")

	var decoded message.RPCMessage
	require.NoError(t, cdc.Decode(data, &decoded))
	assert.Equal(t, *sampleEnvelope(), decoded)
}

func TestProtoCodecTruncated(t *testing.T) {
	cdc := &ProtoCodec{}
	data, err := cdc.Encode(sampleEnvelope())
	require.NoError(t, err)

	var decoded message.RPCMessage
	assert.Error(t, cdc.Decode(data[:len(data)-3], &decoded))
}

func TestParseCodecType(t *testing.T) {
	for name, want := range map[string]CodecType{
		"json":     CodecTypeJSON,
		"JSON":     CodecTypeJSON,
		"binary":   CodecTypeBinary,
		"proto":    CodecTypeProto,
		"protobuf": CodecTypeProto,
	} {
		got, err := ParseCodecType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseCodecType("xml")
	assert.Error(t, err)
}

type point struct {
	X int32 `json:"x"`
}

func (p *point) MarshalWire() ([]byte, error) {
	return AppendInt32(nil, 1, p.X), nil
}

func (p *point) UnmarshalWire(data []byte) error {
	*p = point{}
	return ConsumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != 1 || typ != protowire.VarintType {
			return 0
		}
		v, n := protowire.ConsumeVarint(b)
		p.X = int32(v)
		return n
	})
}

func TestPayloadHelpers(t *testing.T) {
	for _, ct := range []CodecType{CodecTypeJSON, CodecTypeBinary, CodecTypeProto} {
		data, err := MarshalPayload(ct, &point{X: -5})
		require.NoError(t, err)

		var p point
		require.NoError(t, UnmarshalPayload(ct, data, &p))
		assert.Equal(t, int32(-5), p.X, ct.String())
	}

	raw, err := MarshalPayload(CodecTypeJSON, &point{X: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":3}`, string(raw))

	_, err = MarshalPayload(CodecTypeProto, map[string]int{"x": 1})
	assert.Error(t, err)
	assert.Error(t, UnmarshalPayload(CodecTypeProto, nil, &map[string]int{}))
}

func TestJSONCodecKeepsText(t *testing.T) {
	cdc := &JSONCodec{}
	data, err := cdc.Encode(map[string]string{"regionAddress": "Bahnhofsstrasse 27/9 & <Co>"})
	require.NoError(t, err)
	assert.Equal(t, `{"regionAddress":"Bahnhofsstrasse 27/9 & <Co>"}`, string(data))
}

func TestJSONCodecRejectsTrailingData(t *testing.T) {
	cdc := &JSONCodec{}
	var v map[string]any
	assert.NoError(t, cdc.Decode([]byte(`{"a":1}`+"\n"), &v))
	assert.ErrorIs(t, cdc.Decode([]byte(`{"a":1}{"a":2}`), &v), errTrailingJSON)
	assert.ErrorIs(t, cdc.Decode([]byte(`{"a":1}}`), &v), errTrailingJSON)
	assert.Error(t, cdc.Decode(nil, &v))
}
