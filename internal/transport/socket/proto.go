// Package socket carries the data channel between processes: a relay Server
// that stores items and fans out changes, and a Client implementing
// transport.Transport against it. Frames are newline-delimited JSON.
package socket

import (
	"strings"

	"github.com/i474232898/weather-watch-sync/internal/transport"
)

const (
	frameHello  = "hello"
	framePut    = "put"
	frameDelete = "delete"
	frameAck    = "ack"
	frameEvent  = "event"
)

// frame is one line on the wire.
type frame struct {
	Type   string         `json:"type"`             // hello, put, delete, ack, event
	ID     string         `json:"id,omitempty"`     // write id, echoed by ack
	Node   string         `json:"node,omitempty"`   // sender node id
	Path   string         `json:"path,omitempty"`   // item path
	Kind   string         `json:"kind,omitempty"`   // changed, deleted
	Urgent bool           `json:"urgent,omitempty"` // expedited delivery
	Data   map[string]any `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func kindFromWire(s string) transport.EventKind {
	if s == transport.EventDeleted.String() {
		return transport.EventDeleted
	}
	return transport.EventChanged
}

// ParseAddress extracts network type and address from a relay URL.
// Supported formats:
//   - "unix:///path/to/socket" -> ("unix", "/path/to/socket")
//   - "tcp://host:port"        -> ("tcp", "host:port")
//   - "host:port"              -> ("tcp", "host:port")
func ParseAddress(url string) (network, address string) {
	if strings.HasPrefix(url, "unix://") {
		return "unix", strings.TrimPrefix(url, "unix://")
	}
	if strings.HasPrefix(url, "tcp://") {
		return "tcp", strings.TrimPrefix(url, "tcp://")
	}
	return "tcp", url
}
