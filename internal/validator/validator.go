// Package validator decides whether a decoded POST /event body is a
// well-formed event or batch of events.
package validator

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/telhawk-systems/event-relay/internal/models"
)

// Kind identifies a category of client input error.
type Kind int

const (
	KindInvalidJSON Kind = iota + 1
	KindNotObjectOrArray
	KindItemNotObject
	KindMissingField
	KindWrongFieldType
)

// String returns a stable label for metrics and logs.
func (k Kind) String() string {
	switch k {
	case KindInvalidJSON:
		return "invalid_json"
	case KindNotObjectOrArray:
		return "not_object_or_array"
	case KindItemNotObject:
		return "item_not_object"
	case KindMissingField:
		return "missing_field"
	case KindWrongFieldType:
		return "wrong_field_type"
	default:
		return "unknown"
	}
}

// Error is a client input error. Index is the position of the offending
// item in the batch, or -1 when the failure concerns the whole body.
type Error struct {
	Kind    Kind
	Index   int
	Message string

	cause error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error of the same Kind, so the sentinel
// values below match with errors.Is regardless of Index.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidJSON      = &Error{Kind: KindInvalidJSON, Index: -1, Message: "Request body must be valid JSON"}
	ErrNotObjectOrArray = &Error{Kind: KindNotObjectOrArray, Index: -1, Message: "Payload must be an object or array of objects"}
	ErrItemNotObject    = &Error{Kind: KindItemNotObject, Index: -1, Message: "Each item must be an object"}
	ErrMissingField     = &Error{Kind: KindMissingField, Index: -1, Message: "Missing event_type or event_payload"}
	ErrWrongFieldType   = &Error{Kind: KindWrongFieldType, Index: -1, Message: "event_type and event_payload must be strings"}
)

func itemError(sentinel *Error, index int) *Error {
	return &Error{Kind: sentinel.Kind, Index: index, Message: sentinel.Message}
}

const (
	fieldEventType    = "event_type"
	fieldEventPayload = "event_payload"
)

type shape int

const (
	shapeNeither shape = iota
	shapeSingle
	shapeArray
)

func classify(raw any) (shape, []any) {
	switch v := raw.(type) {
	case map[string]any:
		return shapeSingle, []any{v}
	case []any:
		return shapeArray, v
	default:
		return shapeNeither, nil
	}
}

// Decode reads one JSON value from r. Numbers are kept as json.Number.
// Anything other than exactly one JSON value yields an error matching
// ErrInvalidJSON; the underlying read error stays reachable with errors.As.
func Decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &Error{Kind: KindInvalidJSON, Index: -1, Message: ErrInvalidJSON.Message, cause: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &Error{Kind: KindInvalidJSON, Index: -1, Message: ErrInvalidJSON.Message, cause: err}
	}
	return raw, nil
}

// Validate normalizes raw into an ordered batch of events. A single object
// is a batch of one. The first violation fails the whole call; no partial
// batch is ever returned.
func Validate(raw any) ([]models.SubmittedEvent, error) {
	kind, items := classify(raw)
	if kind == shapeNeither {
		return nil, ErrNotObjectOrArray
	}

	events := make([]models.SubmittedEvent, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, itemError(ErrItemNotObject, i)
		}

		rawType, hasType := obj[fieldEventType]
		rawPayload, hasPayload := obj[fieldEventPayload]
		if !hasType || !hasPayload {
			return nil, itemError(ErrMissingField, i)
		}

		eventType, typeOK := rawType.(string)
		eventPayload, payloadOK := rawPayload.(string)
		if !typeOK || !payloadOK {
			return nil, itemError(ErrWrongFieldType, i)
		}

		events = append(events, models.SubmittedEvent{
			EventType:    eventType,
			EventPayload: eventPayload,
		})
	}
	return events, nil
}
