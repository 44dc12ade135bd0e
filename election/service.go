package election

import (
	"go.uber.org/zap"
)

// StatusReceived is the only status the endpoint ever returns.
const StatusReceived = "Election data received successfully"

// ElectionDataService is the server side of SendElectionData. It keeps no state
// between calls and is safe for concurrent use.
type ElectionDataService struct {
	logger *zap.Logger
}

func NewElectionDataService(logger *zap.Logger) *ElectionDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ElectionDataService{logger: logger.Named("election")}
}

// SendElectionData logs the region and every party tally of req and acknowledges it.
// Nothing is validated: a missing region logs zero values, negative or duplicate
// tallies are logged as received.
func (s *ElectionDataService) SendElectionData(req *ElectionRequest, resp *ElectionResponse) error {
	region := req.GetRegion()
	s.logger.Info("region received",
		zap.Int32("regionID", region.GetRegionID()),
		zap.String("regionName", region.GetRegionName()),
		zap.String("regionAddress", region.GetRegionAddress()),
		zap.String("regionPostalCode", region.GetRegionPostalCode()),
		zap.String("federalState", region.GetFederalState()),
		zap.String("timestamp", region.GetTimestamp()),
	)
	for _, party := range req.GetParties() {
		s.logger.Info("party votes",
			zap.Int32("regionID", region.GetRegionID()),
			zap.String("partyID", party.GetPartyID()),
			zap.Int32("amountVotes", party.GetAmountVotes()),
		)
	}

	resp.Status = StatusReceived
	return nil
}
