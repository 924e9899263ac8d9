package models

import "time"

// InboundEmail is a raw inbound mail archived by the email ingress.
// Archival happens before any credit check so nothing is ever dropped.
type InboundEmail struct {
	ID           string    `json:"id"`
	SourceID     string    `json:"source_id,omitempty"` // empty when the routing token resolved to nothing
	RoutingToken string    `json:"routing_token"`
	MessageID    string    `json:"message_id"`
	Subject      string    `json:"subject"`
	RawBody      string    `json:"raw_body"`
	ReceivedAt   time.Time `json:"received_at"`
}
