// Package message defines the envelope exchanged between election-rpc clients and servers.
//
// An RPCMessage is serialized by the codec layer and wrapped in a protocol frame
// before it goes on the wire.
package message

// RPCMessage carries one request or one response.
//
//   - On request:  ServiceMethod and RequestID are set, Payload holds the encoded args.
//   - On response: ServiceMethod and RequestID are echoed, Payload holds the encoded reply,
//     Error is non-empty if the call failed.
type RPCMessage struct {
	ServiceMethod string `json:"serviceMethod"` // "ServiceName.MethodName", e.g. "ElectionDataService.SendElectionData"
	RequestID     string `json:"requestId,omitempty"`
	Error         string `json:"error,omitempty"`
	Payload       []byte `json:"payload,omitempty"`
}

// Failed reports whether the message carries an error.
func (m *RPCMessage) Failed() bool {
	return m.Error != ""
}

// ErrorReply builds a response that only carries an error string.
func ErrorReply(req *RPCMessage, errText string) *RPCMessage {
	reply := &RPCMessage{Error: errText}
	if req != nil {
		reply.ServiceMethod = req.ServiceMethod
		reply.RequestID = req.RequestID
	}
	return reply
}
