// Package election holds the election-results message schema and the
// ElectionDataService endpoint that both transports serve.
package election

// Region is the administrative unit that reports results.
type Region struct {
	RegionID         int32  `json:"regionID,omitempty"`
	RegionName       string `json:"regionName,omitempty"`
	RegionAddress    string `json:"regionAddress,omitempty"`
	RegionPostalCode string `json:"regionPostalCode,omitempty"`
	FederalState     string `json:"federalState,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"` // free-form, not parsed
}

// Party is a party code with its vote count inside one region.
type Party struct {
	PartyID     string `json:"partyID,omitempty"`
	AmountVotes int32  `json:"amountVotes,omitempty"`
}

// ElectionRequest carries the results of one region. Parties keep insertion order
// and may repeat.
type ElectionRequest struct {
	Region  *Region  `json:"region,omitempty"`
	Parties []*Party `json:"parties,omitempty"`
}

type ElectionResponse struct {
	Status string `json:"status,omitempty"`
}

// Accessors are nil-safe, so a request without a region reads as zero values.

func (r *Region) GetRegionID() int32 {
	if r == nil {
		return 0
	}
	return r.RegionID
}

func (r *Region) GetRegionName() string {
	if r == nil {
		return ""
	}
	return r.RegionName
}

func (r *Region) GetRegionAddress() string {
	if r == nil {
		return ""
	}
	return r.RegionAddress
}

func (r *Region) GetRegionPostalCode() string {
	if r == nil {
		return ""
	}
	return r.RegionPostalCode
}

func (r *Region) GetFederalState() string {
	if r == nil {
		return ""
	}
	return r.FederalState
}

func (r *Region) GetTimestamp() string {
	if r == nil {
		return ""
	}
	return r.Timestamp
}

func (p *Party) GetPartyID() string {
	if p == nil {
		return ""
	}
	return p.PartyID
}

func (p *Party) GetAmountVotes() int32 {
	if p == nil {
		return 0
	}
	return p.AmountVotes
}

func (m *ElectionRequest) GetRegion() *Region {
	if m == nil {
		return nil
	}
	return m.Region
}

func (m *ElectionRequest) GetParties() []*Party {
	if m == nil {
		return nil
	}
	return m.Parties
}

func (m *ElectionResponse) GetStatus() string {
	if m == nil {
		return ""
	}
	return m.Status
}

// SampleRequest returns the Linz Bahnhof results the command line client sends.
func SampleRequest() *ElectionRequest {
	return &ElectionRequest{
		Region: &Region{
			RegionID:         33123,
			RegionName:       "Linz Bahnhof",
			RegionAddress:    "Bahnhofsstrasse 27/9",
			RegionPostalCode: "Linz",
			FederalState:     "Austria",
			Timestamp:        "2024-09-12 11:48:21",
		},
		Parties: []*Party{
			{PartyID: "OEVP", AmountVotes: 322},
			{PartyID: "SPOE", AmountVotes: 301},
			{PartyID: "FPOE", AmountVotes: 231},
			{PartyID: "GRUENE", AmountVotes: 211},
			{PartyID: "NEOS", AmountVotes: 182},
		},
	}
}
