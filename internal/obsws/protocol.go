// Package obsws is a client for the obs-websocket v5 protocol.
// Types mirror the wire protocol; nothing here knows about the mirror
// built on top of it.
package obsws

import "encoding/json"

// RPCVersion is the obs-websocket RPC version this client speaks.
const RPCVersion = 1

// OpCode identifies the kind of websocket message.
type OpCode int

const (
	OpHello                OpCode = 0
	OpIdentify             OpCode = 1
	OpIdentified           OpCode = 2
	OpReidentify           OpCode = 3
	OpEvent                OpCode = 5
	OpRequest              OpCode = 6
	OpRequestResponse      OpCode = 7
	OpRequestBatch         OpCode = 8
	OpRequestBatchResponse OpCode = 9
)

// Message is the envelope for all websocket messages.
type Message struct {
	Op   OpCode          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// EventSubscription is the Identify bitmask selecting event categories.
type EventSubscription uint32

const (
	SubscribeGeneral     EventSubscription = 1 << 0
	SubscribeConfig      EventSubscription = 1 << 1
	SubscribeScenes      EventSubscription = 1 << 2
	SubscribeInputs      EventSubscription = 1 << 3
	SubscribeTransitions EventSubscription = 1 << 4
	SubscribeFilters     EventSubscription = 1 << 5
	SubscribeOutputs     EventSubscription = 1 << 6
	SubscribeSceneItems  EventSubscription = 1 << 7
	SubscribeMediaInputs EventSubscription = 1 << 8
	SubscribeVendors     EventSubscription = 1 << 9
	SubscribeUI          EventSubscription = 1 << 10

	// SubscribeAll is every non high-volume category.
	SubscribeAll = SubscribeGeneral | SubscribeConfig | SubscribeScenes | SubscribeInputs |
		SubscribeTransitions | SubscribeFilters | SubscribeOutputs | SubscribeSceneItems |
		SubscribeMediaInputs | SubscribeVendors | SubscribeUI
)

// HelloPayload is sent by the server right after the socket opens.
type HelloPayload struct {
	OBSWebSocketVersion string         `json:"obsWebSocketVersion"`
	RPCVersion          int            `json:"rpcVersion"`
	Authentication      *Authorization `json:"authentication,omitempty"`
}

// Authorization carries the challenge when the server requires a password.
type Authorization struct {
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
}

// IdentifyPayload answers Hello.
type IdentifyPayload struct {
	RPCVersion         int               `json:"rpcVersion"`
	Authentication     string            `json:"authentication,omitempty"`
	EventSubscriptions EventSubscription `json:"eventSubscriptions"`
}

// IdentifiedPayload confirms the session.
type IdentifiedPayload struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

// EventPayload is an unsolicited server notification.
type EventPayload struct {
	EventType   string          `json:"eventType"`
	EventIntent int             `json:"eventIntent"`
	EventData   json.RawMessage `json:"eventData,omitempty"`
}

// RequestPayload is a single request.
type RequestPayload struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

// RequestStatus reports whether a request succeeded.
type RequestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

// Request status codes used by this client.
const (
	StatusSuccess          = 100
	StatusMissingRequest   = 203
	StatusResourceNotFound = 600
)

// ResponsePayload answers a RequestPayload.
type ResponsePayload struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus RequestStatus   `json:"requestStatus"`
	ResponseData  json.RawMessage `json:"responseData,omitempty"`
}

// BatchExecution selects how the server runs a batch.
type BatchExecution int

const (
	ExecutionSerialRealtime BatchExecution = 0
	ExecutionSerialFrame    BatchExecution = 1
	ExecutionParallel       BatchExecution = 2
)

// BatchPayload is a batch of requests sent in one round trip.
type BatchPayload struct {
	RequestID     string           `json:"requestId"`
	HaltOnFailure bool             `json:"haltOnFailure"`
	ExecutionType BatchExecution   `json:"executionType"`
	Requests      []RequestPayload `json:"requests"`
}

// BatchResponsePayload answers a BatchPayload. Results are in request
// order.
type BatchResponsePayload struct {
	RequestID string            `json:"requestId"`
	Results   []ResponsePayload `json:"results"`
}

// Request is one entry of a CallBatch.
type Request struct {
	Type string
	Data any
}

// Response is one result of a CallBatch.
type Response struct {
	Type   string
	Status RequestStatus
	Data   json.RawMessage
}

// Err returns a *RemoteError when the request failed.
func (r Response) Err() error {
	if r.Status.Result {
		return nil
	}
	return &RemoteError{RequestType: r.Type, Code: r.Status.Code, Comment: r.Status.Comment}
}
