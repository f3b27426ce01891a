// Package transporttest provides a recording Transport for tests.
package transporttest

import (
	"context"
	"sync"

	"github.com/i474232898/weather-watch-sync/internal/transport"
)

// Fake is a Transport that records writes and lets tests push events to its
// listeners. Events are delivered synchronously by Emit.
type Fake struct {
	// ConnectErr, when set, is returned by every Connect call.
	ConnectErr error
	// PutErr resolves every write's Result.
	PutErr error

	listeners transport.Listeners

	mu          sync.Mutex
	connected   bool
	connects    int
	disconnects int
	puts        []transport.PutRequest
	deletes     []string
	lostNext    int
	lost        map[int]func(error)
}

var (
	_ transport.Transport         = (*Fake)(nil)
	_ transport.ConnectionWatcher = (*Fake)(nil)
)

// Connect implements transport.Transport.
func (f *Fake) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connects++
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	return nil
}

// Disconnect implements transport.Transport.
func (f *Fake) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disconnects++
	f.connected = false
	return nil
}

// IsConnected implements transport.Transport.
func (f *Fake) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// SetConnectErr changes ConnectErr while other goroutines may be connecting.
func (f *Fake) SetConnectErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConnectErr = err
}

// SetConnected forces the connection state without counting a Connect.
func (f *Fake) SetConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

// Put implements transport.Transport.
func (f *Fake) Put(_ context.Context, req transport.PutRequest) *transport.Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.connected {
		return transport.Completed(transport.ErrNotConnected)
	}
	req.Data = req.Data.Clone()
	f.puts = append(f.puts, req)
	return transport.Completed(f.PutErr)
}

// Delete implements transport.Transport.
func (f *Fake) Delete(_ context.Context, path string) *transport.Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.connected {
		return transport.Completed(transport.ErrNotConnected)
	}
	f.deletes = append(f.deletes, path)
	return transport.Completed(f.PutErr)
}

// AddListener implements transport.Transport.
func (f *Fake) AddListener(l transport.Listener) func() {
	return f.listeners.Add(l)
}

// NotifyLost implements transport.ConnectionWatcher.
func (f *Fake) NotifyLost(fn func(err error)) (remove func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lost == nil {
		f.lost = make(map[int]func(error))
	}
	id := f.lostNext
	f.lostNext++
	f.lost[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.lost, id)
	}
}

// Drop simulates a lost connection: the Fake reports disconnected and every
// NotifyLost callback runs on the caller's goroutine.
func (f *Fake) Drop(err error) {
	f.mu.Lock()
	f.connected = false
	fns := make([]func(error), 0, len(f.lost))
	for _, fn := range f.lost {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
}

// Emit delivers events to the registered listeners on the caller's goroutine.
func (f *Fake) Emit(events ...transport.Event) {
	f.listeners.Dispatch(events)
}

// Puts returns the recorded writes.
func (f *Fake) Puts() []transport.PutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.PutRequest(nil), f.puts...)
}

// PutsTo returns the recorded writes under path.
func (f *Fake) PutsTo(path string) []transport.PutRequest {
	var out []transport.PutRequest
	for _, p := range f.Puts() {
		if p.Path == path {
			out = append(out, p)
		}
	}
	return out
}

// Connects returns how many times Connect was called.
func (f *Fake) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Disconnects returns how many times Disconnect was called.
func (f *Fake) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// ListenerCount returns the number of subscribed listeners.
func (f *Fake) ListenerCount() int {
	return f.listeners.Len()
}
