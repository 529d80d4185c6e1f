package core

import (
	"github.com/goccy/go-json"

	"github.com/dkeye/signalroom/internal/domain"
)

type EventType string

// Inbound.
const (
	EventCreateSession EventType = "create_session"
	EventJoin          EventType = "join"
	EventLeave         EventType = "leave"
	EventPing          EventType = "ping"
)

// Relayed in both directions.
const (
	EventOffer        EventType = "offer"
	EventAnswer       EventType = "answer"
	EventICECandidate EventType = "ice-candidate"
)

// Outbound.
const (
	EventSessionCreated    EventType = "session_created"
	EventExistingPeers     EventType = "existing_peers"
	EventPeerJoined        EventType = "peer_joined"
	EventPeerLeft          EventType = "peer_left"
	EventTargetUnavailable EventType = "target_unavailable"
	EventPong              EventType = "pong"
	EventError             EventType = "error"
)

// Event is one named message with its payload, the unit the Router emits
// and a Conn delivers.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

type SessionCreated struct {
	SessionID domain.SessionID `json:"session_id"`
}

type ExistingPeers struct {
	Peers []domain.ConnID `json:"peers"`
}

type PeerJoined struct {
	SID  domain.ConnID `json:"sid"`
	Name string        `json:"name"`
}

type PeerLeft struct {
	SID domain.ConnID `json:"sid"`
}

// SDPRelay is the outbound shape of offer and answer. SDP is never inspected.
type SDPRelay struct {
	From domain.ConnID   `json:"from"`
	SDP  json.RawMessage `json:"sdp"`
}

type CandidateRelay struct {
	From      domain.ConnID   `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

type TargetUnavailable struct {
	Target domain.ConnID `json:"target"`
}

type ErrorData struct {
	Msg string `json:"msg"`
}

type Pong struct{}

// JoinRequest is the payload of an inbound join.
type JoinRequest struct {
	Session string `json:"session"`
	Name    string `json:"name"`
}

// LeaveRequest is the payload of an inbound leave.
type LeaveRequest struct {
	Session string `json:"session"`
}

// RelayRequest is the payload of inbound offer, answer and ice-candidate.
type RelayRequest struct {
	Target    domain.ConnID   `json:"target"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func NewError(msg string) Event {
	return Event{Type: EventError, Data: ErrorData{Msg: msg}}
}
