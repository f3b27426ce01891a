// Package transport models the key-value data channel between the phone and
// the watch: named items written under a path and change notifications
// delivered to the peers' listeners.
//
// Delivery is at-least-once to connected peers. There is no ordering across
// paths, and repeated writes to the same path are last-write-wins: a listener
// may only see the newest value.
package transport

import (
	"context"
	"errors"
)

// ErrNotConnected is returned when a write is attempted without a connection.
var ErrNotConnected = errors.New("transport not connected")

// EventKind tells whether an item was written or removed.
type EventKind int

const (
	EventChanged EventKind = iota + 1
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventChanged:
		return "changed"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is one change notification.
type Event struct {
	Path   string
	Kind   EventKind
	Data   DataMap
	Source string // id of the writing node, if known
}

// Listener receives change notifications in batches.
type Listener interface {
	OnDataChanged(events []Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(events []Event)

// OnDataChanged implements Listener.
func (f ListenerFunc) OnDataChanged(events []Event) { f(events) }

// PutRequest is a write of Data under Path. Urgent asks for expedited
// delivery.
type PutRequest struct {
	Path   string
	Data   DataMap
	Urgent bool
}

// Transport is one endpoint of the data channel. A connection is owned by
// whoever created the Transport and is not shared.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	// Put writes an item. It never blocks on delivery; the returned Result
	// resolves once the channel has accepted or rejected the write.
	Put(ctx context.Context, req PutRequest) *Result
	// Delete removes the item under path.
	Delete(ctx context.Context, path string) *Result

	// AddListener subscribes l to change notifications; the returned func
	// unsubscribes it.
	AddListener(l Listener) (remove func())
}

// ConnectionWatcher is implemented by transports whose connection can drop
// without a Disconnect call.
type ConnectionWatcher interface {
	// NotifyLost registers fn to run each time the current connection is
	// lost. fn may run on any goroutine; the returned func unregisters it.
	NotifyLost(fn func(err error)) (remove func())
}
