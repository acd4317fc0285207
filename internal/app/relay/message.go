/*
Package relay translates between front-end WebSocket clients and the session core.

This file defines the named-event envelope exchanged with front-end clients
and the payload structures for each event type.
*/
package relay

import (
	"encoding/json"

	"warelay/internal/app/store"
)

// Inbound event names (front-end client to relay).
const (
	EventAuth        = "auth"
	EventSendMessage = "sendMessage"
	EventListGroups  = "listGroups"
)

// Outbound event names (relay to front-end client).
const (
	EventQR            = "qr"
	EventStatus        = "status"
	EventMessage       = "message"
	EventGroups        = "groups"
	EventMessageStatus = "messageStatus"
	EventError         = "error"
)

// Envelope is the wire format for every event in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthPayload starts or attaches a session for a user.
type AuthPayload struct {
	UserID string `json:"userId"`
}

// SendMessagePayload forwards a text message to a chat or group.
type SendMessagePayload struct {
	GroupID string `json:"groupId"`
	Message string `json:"message"`
}

// StatusPayload reports a session status change.
type StatusPayload struct {
	Status string `json:"status"`
}

// MessageStatusPayload acknowledges a sendMessage command.
type MessageStatusPayload struct {
	Status string `json:"status"`
}

// ErrorPayload carries an error description to the client.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// GroupsPayload carries the cached group listing.
type GroupsPayload struct {
	Groups []store.ChatRecord `json:"groups"`
}

// newEnvelope marshals a payload into an outbound envelope.
func newEnvelope(event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	return json.Marshal(Envelope{Event: event, Payload: raw})
}
