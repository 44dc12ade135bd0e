package election

import (
	"fmt"

	"election-rpc/codec"

	"google.golang.org/protobuf/encoding/protowire"
)

// Protobuf wire encoding of the election_data.proto messages. Zero values are not
// written and unknown fields are skipped, as with any proto3 message.

func (r *Region) MarshalWire() ([]byte, error) {
	return r.appendWire(nil), nil
}

func (r *Region) appendWire(b []byte) []byte {
	b = codec.AppendInt32(b, 1, r.RegionID)
	b = codec.AppendString(b, 2, r.RegionName)
	b = codec.AppendString(b, 3, r.RegionAddress)
	b = codec.AppendString(b, 4, r.RegionPostalCode)
	b = codec.AppendString(b, 5, r.FederalState)
	b = codec.AppendString(b, 6, r.Timestamp)
	return b
}

func (r *Region) UnmarshalWire(data []byte) error {
	*r = Region{}
	err := codec.ConsumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			if typ != protowire.VarintType {
				return 0
			}
			v, n := protowire.ConsumeVarint(b)
			r.RegionID = int32(v)
			return n
		}
		if typ != protowire.BytesType {
			return 0
		}
		v, n := protowire.ConsumeString(b)
		switch num {
		case 2:
			r.RegionName = v
		case 3:
			r.RegionAddress = v
		case 4:
			r.RegionPostalCode = v
		case 5:
			r.FederalState = v
		case 6:
			r.Timestamp = v
		default:
			return 0
		}
		return n
	})
	if err != nil {
		return fmt.Errorf("election: decode Region: %w", err)
	}
	return nil
}

func (p *Party) MarshalWire() ([]byte, error) {
	return p.appendWire(nil), nil
}

func (p *Party) appendWire(b []byte) []byte {
	b = codec.AppendString(b, 1, p.PartyID)
	b = codec.AppendInt32(b, 2, p.AmountVotes)
	return b
}

func (p *Party) UnmarshalWire(data []byte) error {
	*p = Party{}
	err := codec.ConsumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			p.PartyID = v
			return n
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.AmountVotes = int32(v)
			return n
		}
		return 0
	})
	if err != nil {
		return fmt.Errorf("election: decode Party: %w", err)
	}
	return nil
}

func (m *ElectionRequest) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Region != nil {
		b = codec.AppendMessage(b, 1, m.Region.appendWire(nil))
	}
	for _, p := range m.Parties {
		if p == nil {
			p = &Party{}
		}
		b = codec.AppendMessage(b, 2, p.appendWire(nil))
	}
	return b, nil
}

func (m *ElectionRequest) UnmarshalWire(data []byte) error {
	*m = ElectionRequest{}
	var decodeErr error
	err := codec.ConsumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ != protowire.BytesType || (num != 1 && num != 2) {
			return 0
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n
		}
		var nestedErr error
		if num == 1 {
			// proto3 merges repeated occurrences of a singular message field
			if m.Region == nil {
				m.Region = &Region{}
			}
			var next Region
			if nestedErr = next.UnmarshalWire(v); nestedErr == nil {
				m.Region.merge(&next)
			}
		} else {
			p := &Party{}
			if nestedErr = p.UnmarshalWire(v); nestedErr == nil {
				m.Parties = append(m.Parties, p)
			}
		}
		if nestedErr != nil && decodeErr == nil {
			decodeErr = nestedErr
		}
		return n
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return fmt.Errorf("election: decode ElectionRequest: %w", err)
	}
	return nil
}

// merge copies the non-zero fields of o into r.
func (r *Region) merge(o *Region) {
	if o.RegionID != 0 {
		r.RegionID = o.RegionID
	}
	if o.RegionName != "" {
		r.RegionName = o.RegionName
	}
	if o.RegionAddress != "" {
		r.RegionAddress = o.RegionAddress
	}
	if o.RegionPostalCode != "" {
		r.RegionPostalCode = o.RegionPostalCode
	}
	if o.FederalState != "" {
		r.FederalState = o.FederalState
	}
	if o.Timestamp != "" {
		r.Timestamp = o.Timestamp
	}
}

func (m *ElectionResponse) MarshalWire() ([]byte, error) {
	return codec.AppendString(nil, 1, m.Status), nil
}

func (m *ElectionResponse) UnmarshalWire(data []byte) error {
	*m = ElectionResponse{}
	err := codec.ConsumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != 1 || typ != protowire.BytesType {
			return 0
		}
		v, n := protowire.ConsumeString(b)
		m.Status = v
		return n
	})
	if err != nil {
		return fmt.Errorf("election: decode ElectionResponse: %w", err)
	}
	return nil
}
