package model

import "time"

// Response is the externally visible result of answering one message.
// Confidence is nil when no meaningful score could be computed.
// Sources holds the deduplicated identifiers of the documents the
// answer was grounded on; order is not significant.
type Response struct {
	Text       string   `json:"response"`
	Confidence *float64 `json:"confidence,omitempty"`
	Sources    []string `json:"sources,omitempty"`
}

// NewResponse builds a Response with a concrete confidence value.
func NewResponse(text string, confidence float64, sources []string) *Response {
	return &Response{
		Text:       text,
		Confidence: &confidence,
		Sources:    sources,
	}
}

// InboundMessage is a user message received from the messaging gateway.
type InboundMessage struct {
	SID        string    `json:"message_sid"`
	From       string    `json:"from_number"`
	To         string    `json:"to_number"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"timestamp"`
}
