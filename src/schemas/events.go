package schemas

// Wire-level event types for the party transport. One connection per party;
// every frame is a JSON object with a "type" discriminator.

// Inbound event types (party -> service).
const (
	EventRegister       = "register"
	EventRequestSession = "request_session"
	EventAcceptSession  = "accept_session"
	EventRejectSession  = "reject_session"
	EventEndSession     = "end_session"
)

// Outbound event types (service -> party).
const (
	EventSessionRequested  = "session_requested"
	EventIncomingRequest   = "incoming_request"
	EventSessionRejected   = "session_rejected"
	EventSessionActivated  = "session_activated"
	EventSessionTerminated = "session_terminated"
	EventSessionError      = "session_error"
)

// InboundEvent is the flat envelope decoded from a party frame. Fields are
// populated per event type; unused ones stay empty.
type InboundEvent struct {
	Type        string `json:"type"`
	PartyID     string `json:"party_id,omitempty"`
	PartyType   string `json:"party_type,omitempty"`
	PayerID     string `json:"payer_id,omitempty"`
	ProviderID  string `json:"provider_id,omitempty"`
	SessionKind string `json:"session_kind,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// Event is the outbound envelope sent to a party handle.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// SessionRequestedData is sent to the payer once a session is created.
type SessionRequestedData struct {
	SessionID  string `json:"session_id"`
	MaxMinutes int    `json:"max_minutes"`
	IsFree     bool   `json:"is_free"`
}

// IncomingRequestData is sent to the provider for a new request.
type IncomingRequestData struct {
	SessionID   string `json:"session_id"`
	SessionKind string `json:"session_kind"`
	PayerID     string `json:"payer_id"`
	PayerName   string `json:"payer_name,omitempty"`
}

// SessionRejectedData carries a human-readable rejection reason.
type SessionRejectedData struct {
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason"`
}

// SessionActivatedData is sent to both parties on acceptance.
type SessionActivatedData struct {
	SessionID  string `json:"session_id"`
	MaxMinutes int    `json:"max_minutes"`
}

// SessionTerminatedData is sent on every terminal transition.
type SessionTerminatedData struct {
	SessionID       string `json:"session_id"`
	Reason          string `json:"reason"`
	DurationSeconds int    `json:"duration_seconds"`
	Cost            string `json:"cost"`
}

// SessionErrorData carries a human-readable failure explanation; a party
// never receives a bare failure.
type SessionErrorData struct {
	Message string `json:"message"`
}

func NewSessionRequested(sessionID string, maxMinutes int, isFree bool) Event {
	return Event{Type: EventSessionRequested, Data: SessionRequestedData{SessionID: sessionID, MaxMinutes: maxMinutes, IsFree: isFree}}
}

func NewIncomingRequest(sessionID, kind, payerID, payerName string) Event {
	return Event{Type: EventIncomingRequest, Data: IncomingRequestData{SessionID: sessionID, SessionKind: kind, PayerID: payerID, PayerName: payerName}}
}

func NewSessionRejected(sessionID, reason string) Event {
	return Event{Type: EventSessionRejected, Data: SessionRejectedData{SessionID: sessionID, Reason: reason}}
}

func NewSessionActivated(sessionID string, maxMinutes int) Event {
	return Event{Type: EventSessionActivated, Data: SessionActivatedData{SessionID: sessionID, MaxMinutes: maxMinutes}}
}

func NewSessionTerminated(sessionID, reason string, durationSeconds int, cost string) Event {
	return Event{Type: EventSessionTerminated, Data: SessionTerminatedData{SessionID: sessionID, Reason: reason, DurationSeconds: durationSeconds, Cost: cost}}
}

func NewSessionError(message string) Event {
	return Event{Type: EventSessionError, Data: SessionErrorData{Message: message}}
}
