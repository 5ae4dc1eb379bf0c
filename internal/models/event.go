package models

import "time"

// SubmittedEvent is one validated item of a POST /event body.
type SubmittedEvent struct {
	EventType    string `json:"event_type"`
	EventPayload string `json:"event_payload"`
}

// Event is a persisted event record. EventPayload holds the decoded form
// of the stored payload text.
type Event struct {
	ID           int64     `json:"id"`
	EventType    string    `json:"event_type"`
	EventPayload any       `json:"event_payload"`
	ReceivedAt   time.Time `json:"received_at"`
}

// StatusResponse is returned by the health endpoints.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SubmitResponse is returned after a batch has been persisted.
type SubmitResponse struct {
	Status   string `json:"status"`
	Received int    `json:"received"`
}

// ListResponse wraps the full event history.
type ListResponse struct {
	Status string  `json:"status"`
	Events []Event `json:"events"`
}

// ErrorResponse carries a client or server failure message.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
