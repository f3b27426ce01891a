package transport

import (
	"context"
	"sync"
	"time"
)

// Item is the last value written under a path.
type Item struct {
	Path      string
	Data      DataMap
	Source    string
	UpdatedAt time.Time
}

// Hub is an in-process data channel. Each Node is one endpoint; a write from
// one node is delivered to the listeners of every other connected node.
type Hub struct {
	mu    sync.Mutex
	items map[string]Item
	nodes map[string]*Node
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		items: make(map[string]Item),
		nodes: make(map[string]*Node),
	}
}

// Node returns the endpoint with the given id, creating it if needed.
func (h *Hub) Node(id string) *Node {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n, ok := h.nodes[id]; ok {
		return n
	}
	n := &Node{hub: h, id: id}
	h.nodes[id] = n
	return n
}

// Item returns the current item under path.
func (h *Hub) Item(path string) (Item, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	it, ok := h.items[path]
	if !ok {
		return Item{}, false
	}
	it.Data = it.Data.Clone()
	return it, true
}

func (h *Hub) write(from string, ev Event) {
	h.mu.Lock()
	if ev.Kind == EventDeleted {
		delete(h.items, ev.Path)
	} else {
		h.items[ev.Path] = Item{Path: ev.Path, Data: ev.Data.Clone(), Source: from, UpdatedAt: time.Now().UTC()}
	}
	peers := make([]*Node, 0, len(h.nodes))
	for id, n := range h.nodes {
		if id != from {
			peers = append(peers, n)
		}
	}
	h.mu.Unlock()

	for _, n := range peers {
		e := ev
		e.Data = ev.Data.Clone()
		n.enqueue(e)
	}
}

// Node is one endpoint of a Hub. It implements Transport.
type Node struct {
	hub       *Hub
	id        string
	listeners Listeners

	mu        sync.Mutex
	connected bool
	pending   []Event
	wake      chan struct{}
	stop      chan struct{}
}

var _ Transport = (*Node)(nil)

// ID returns the node id.
func (n *Node) ID() string { return n.id }

// Connect starts delivering changes to this node's listeners.
func (n *Node) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.connected {
		return nil
	}
	n.connected = true
	n.wake = make(chan struct{}, 1)
	n.stop = make(chan struct{})
	go n.dispatch(n.wake, n.stop)
	return nil
}

// Disconnect stops delivery and drops undelivered changes.
func (n *Node) Disconnect() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.connected {
		return nil
	}
	n.connected = false
	n.pending = nil
	close(n.stop)
	return nil
}

// IsConnected reports whether the node is connected.
func (n *Node) IsConnected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

// Put writes an item and fans it out to the other connected nodes.
func (n *Node) Put(ctx context.Context, req PutRequest) *Result {
	if err := ctx.Err(); err != nil {
		return Completed(err)
	}
	if !n.IsConnected() {
		return Completed(ErrNotConnected)
	}
	n.hub.write(n.id, Event{Path: req.Path, Kind: EventChanged, Data: req.Data.Clone(), Source: n.id})
	return Completed(nil)
}

// Delete removes an item and notifies the other connected nodes.
func (n *Node) Delete(ctx context.Context, path string) *Result {
	if err := ctx.Err(); err != nil {
		return Completed(err)
	}
	if !n.IsConnected() {
		return Completed(ErrNotConnected)
	}
	n.hub.write(n.id, Event{Path: path, Kind: EventDeleted, Source: n.id})
	return Completed(nil)
}

// AddListener implements Transport.
func (n *Node) AddListener(l Listener) func() {
	return n.listeners.Add(l)
}

// enqueue queues ev for delivery, replacing an undelivered event for the
// same path.
func (n *Node) enqueue(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.connected {
		return
	}
	replaced := false
	for i := range n.pending {
		if n.pending[i].Path == ev.Path {
			n.pending[i] = ev
			replaced = true
			break
		}
	}
	if !replaced {
		n.pending = append(n.pending, ev)
	}

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *Node) dispatch(wake <-chan struct{}, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-wake:
		}

		n.mu.Lock()
		batch := n.pending
		n.pending = nil
		n.mu.Unlock()

		if len(batch) > 0 {
			n.listeners.Dispatch(batch)
		}
	}
}
