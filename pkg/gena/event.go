// Package gena implements the UPnP eventing server: a minimal HTTP/1.0-style
// server that serves byte ranges of provider resources and turns SUBSCRIBE,
// UNSUBSCRIBE and SOAP POST requests into events for a Sink.
package gena

import (
	"context"
	"errors"
)

// EventKind identifies an Event variant.
type EventKind string

const (
	KindSubscribeRequest  EventKind = "subscribe_request"
	KindSubscribeAccepted EventKind = "subscribe_accepted"
	KindUnsubscribe       EventKind = "unsubscribe"
	KindAction            EventKind = "action"
)

// Event is the message crossing from the server to its Sink and from the
// device manager to the application.
type Event interface {
	Kind() EventKind
}

// SubscribeRequest is an initial SUBSCRIBE (NT set, SID empty) or a renewal
// (NT empty, SID set).
type SubscribeRequest struct {
	Path     string
	Host     string
	NT       string
	Callback string
	SID      string
	Timeout  string
}

func (SubscribeRequest) Kind() EventKind { return KindSubscribeRequest }

// Renewal reports whether the request renews an existing subscription.
func (r SubscribeRequest) Renewal() bool { return r.NT == "" }

// SubscribeAccepted follows a SubscribeRequest once its 200 response was sent.
type SubscribeAccepted struct {
	Path     string
	SID      string
	Callback string
	Renewal  bool
}

func (SubscribeAccepted) Kind() EventKind { return KindSubscribeAccepted }

// Unsubscribe drops a subscription.
type Unsubscribe struct {
	Path string
	Host string
	SID  string
}

func (Unsubscribe) Kind() EventKind { return KindUnsubscribe }

// ActionRequest is a SOAP action invocation. UDN and ServiceID are filled in
// by the device manager when it forwards the event to the application.
type ActionRequest struct {
	Path        string
	Host        string
	ServiceType string
	ActionName  string
	Body        []byte

	UDN       string
	ServiceID string
}

func (ActionRequest) Kind() EventKind { return KindAction }

// Reply carries what the sink wants sent back to the peer.
type Reply struct {
	// SID is the subscription identifier for SubscribeRequest replies.
	SID string

	// Body is the response document for ActionRequest replies.
	Body []byte
}

// Sink consumes events produced by the server.
type Sink interface {
	HandleEvent(ctx context.Context, ev Event) (*Reply, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) (*Reply, error)

func (f SinkFunc) HandleEvent(ctx context.Context, ev Event) (*Reply, error) { return f(ctx, ev) }

var (
	// ErrPreconditionFailed makes the server answer 412.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrNotFound is returned by providers for unknown paths.
	ErrNotFound = errors.New("resource not found")

	// ErrReadOnly is returned when writing to a read-only resource.
	ErrReadOnly = errors.New("resource is read-only")
)

// Fault is implemented by sink errors that carry a response body, such as a
// SOAP fault document. The server sends it with status 500.
type Fault interface {
	error
	FaultBody() []byte
}
