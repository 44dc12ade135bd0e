package election

import (
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"testing"

	"election-rpc/codec"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestWireRoundTrip(t *testing.T) {
	cases := map[string]codec.WireMessage{
		"region": &Region{
			RegionID: -7, RegionName: "Wien Mitte", RegionAddress: "Landstraße 1",
			RegionPostalCode: "1030", FederalState: "Wien", Timestamp: "not a date",
		},
		"party":    &Party{PartyID: "KPOE", AmountVotes: -1},
		"request":  SampleRequest(),
		"response": &ElectionResponse{Status: StatusReceived},
		"empty":    &ElectionRequest{},
	}
	for name, original := range cases {
		t.Run(name, func(t *testing.T) {
			data, err := original.MarshalWire()
			require.NoError(t, err)

			decoded := newEmpty(t, original)
			require.NoError(t, decoded.UnmarshalWire(data))
			assert.Equal(t, original, decoded)
		})
	}
}

func newEmpty(t *testing.T, m codec.WireMessage) codec.WireMessage {
	switch m.(type) {
	case *Region:
		return &Region{}
	case *Party:
		return &Party{}
	case *ElectionRequest:
		return &ElectionRequest{}
	case *ElectionResponse:
		return &ElectionResponse{}
	}
	t.Fatalf("unexpected message %T", m)
	return nil
}

// The bytes a protoc-generated encoder produces for
// Party{partyID: "OEVP", amountVotes: 322}.
func TestPartyWireBytes(t *testing.T) {
	data, err := (&Party{PartyID: "OEVP", AmountVotes: 322}).MarshalWire()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x04, 'O', 'E', 'V', 'P', 0x10, 0xc2, 0x02}, data)
}

func TestWireKeepsPartyOrderAndDuplicates(t *testing.T) {
	req := &ElectionRequest{Parties: []*Party{
		{PartyID: "NEOS", AmountVotes: 1},
		{PartyID: "OEVP", AmountVotes: 2},
		{PartyID: "NEOS", AmountVotes: 3},
	}}
	data, err := req.MarshalWire()
	require.NoError(t, err)

	var decoded ElectionRequest
	require.NoError(t, decoded.UnmarshalWire(data))
	assert.Nil(t, decoded.Region)
	assert.Equal(t, req.Parties, decoded.Parties)
}

func TestWireSkipsUnknownFields(t *testing.T) {
	data, err := SampleRequest().MarshalWire()
	require.NoError(t, err)
	data = protowire.AppendTag(data, 9, protowire.Fixed64Type)
	data = protowire.AppendFixed64(data, 1)
	data = codec.AppendString(data, 10, "future field")

	var decoded ElectionRequest
	require.NoError(t, decoded.UnmarshalWire(data))
	assert.Equal(t, SampleRequest(), &decoded)
}

func TestWireRejectsTruncatedInput(t *testing.T) {
	data, err := SampleRequest().MarshalWire()
	require.NoError(t, err)

	var decoded ElectionRequest
	assert.Error(t, decoded.UnmarshalWire(data[:len(data)-2]))
}

func TestJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(SampleRequest())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"regionID":33123`)
	assert.Contains(t, string(data), `"regionPostalCode":"Linz"`)
	assert.Contains(t, string(data), `{"partyID":"GRUENE","amountVotes":211}`)
}

func TestNilAccessors(t *testing.T) {
	var req *ElectionRequest
	assert.Nil(t, req.GetRegion())
	assert.Empty(t, req.GetParties())
	assert.Zero(t, req.GetRegion().GetRegionID())
	assert.Empty(t, req.GetRegion().GetTimestamp())

	var party *Party
	assert.Empty(t, party.GetPartyID())
	assert.Zero(t, party.GetAmountVotes())
}

func TestSendElectionData(t *testing.T) {
	cases := map[string]*ElectionRequest{
		"linz bahnhof":  SampleRequest(),
		"empty parties": {Region: SampleRequest().Region},
		"no region":     {Parties: []*Party{{PartyID: "OEVP", AmountVotes: -3}}},
		"nothing":       {},
	}
	svc := NewElectionDataService(nil)
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			resp := &ElectionResponse{}
			require.NoError(t, svc.SendElectionData(req, resp))
			assert.Equal(t, StatusReceived, resp.Status)
		})
	}
}

func TestSendElectionDataLogsRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	svc := NewElectionDataService(zap.New(core))

	resp := &ElectionResponse{}
	require.NoError(t, svc.SendElectionData(SampleRequest(), resp))

	regionLogs := logs.FilterMessage("region received").All()
	require.Len(t, regionLogs, 1)
	fields := regionLogs[0].ContextMap()
	assert.Equal(t, int32(33123), fields["regionID"])
	assert.Equal(t, "Linz Bahnhof", fields["regionName"])
	assert.Equal(t, "Bahnhofsstrasse 27/9", fields["regionAddress"])
	assert.Equal(t, "Austria", fields["federalState"])
	assert.Equal(t, "2024-09-12 11:48:21", fields["timestamp"])

	partyLogs := logs.FilterMessage("party votes").All()
	require.Len(t, partyLogs, 5)
	for i, want := range SampleRequest().Parties {
		got := partyLogs[i].ContextMap()
		assert.Equal(t, want.PartyID, got["partyID"])
		assert.Equal(t, want.AmountVotes, got["amountVotes"])
	}
}

func TestSendElectionDataLogsMissingRegionAsZeroValues(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	svc := NewElectionDataService(zap.New(core))

	require.NoError(t, svc.SendElectionData(&ElectionRequest{}, &ElectionResponse{}))

	entries := logs.FilterMessage("region received").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int32(0), entries[0].ContextMap()["regionID"])
	assert.Equal(t, "", entries[0].ContextMap()["regionName"])
	assert.Zero(t, logs.FilterMessage("party votes").Len())
}

var (
	protoMessage = regexp.MustCompile(`^message (\w+) \{`)
	protoField   = regexp.MustCompile(`^\s*(?:repeated )?\w+ (\w+) = (\d+);`)
)

// protoFields reads the field numbers of every message in election.proto.
func protoFields(t *testing.T) map[string]map[string]protowire.Number {
	t.Helper()
	data, err := os.ReadFile("election.proto")
	require.NoError(t, err)

	fields := map[string]map[string]protowire.Number{}
	var current string
	for _, line := range regexp.MustCompile(`\r?\n`).Split(string(data), -1) {
		if m := protoMessage.FindStringSubmatch(line); m != nil {
			current = m[1]
			fields[current] = map[string]protowire.Number{}
			continue
		}
		if m := protoField.FindStringSubmatch(line); m != nil && current != "" {
			num, err := strconv.Atoi(m[2])
			require.NoError(t, err)
			fields[current][m[1]] = protowire.Number(num)
		}
	}
	return fields
}

func TestWireMatchesProtoFile(t *testing.T) {
	encoded := map[string]map[string]codec.WireMessage{
		"Region": {
			"regionID":         &Region{RegionID: 1},
			"regionName":       &Region{RegionName: "x"},
			"regionAddress":    &Region{RegionAddress: "x"},
			"regionPostalCode": &Region{RegionPostalCode: "x"},
			"federalState":     &Region{FederalState: "x"},
			"timestamp":        &Region{Timestamp: "x"},
		},
		"Party": {
			"partyID":     &Party{PartyID: "x"},
			"amountVotes": &Party{AmountVotes: 1},
		},
		"ElectionRequest": {
			"region":  &ElectionRequest{Region: &Region{}},
			"parties": &ElectionRequest{Parties: []*Party{{}}},
		},
		"ElectionResponse": {
			"status": &ElectionResponse{Status: "x"},
		},
	}

	declared := protoFields(t)
	require.Len(t, declared, len(encoded))
	for msg, fields := range declared {
		require.Len(t, encoded[msg], len(fields), msg)
		for name, want := range fields {
			m, ok := encoded[msg][name]
			require.True(t, ok, "%s.%s", msg, name)
			data, err := m.MarshalWire()
			require.NoError(t, err)
			num, _, n := protowire.ConsumeTag(data)
			require.Positive(t, n, "%s.%s", msg, name)
			assert.Equal(t, want, num, "%s.%s", msg, name)
		}
	}
}
