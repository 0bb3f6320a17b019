package modbusmgr

import (
	"strings"
	"time"
)

// ClientEndpoint describes one Modbus/TCP peer the Manager should own.
//
// A Host of "test", "debug" or "none" (case-insensitive) binds Name to a
// dummy client instead of a real TCP connection: useful for tests and for
// configuring a system with no data manager.
type ClientEndpoint struct {
	Name           string
	Host           string
	Port           int
	Timeout        time.Duration
	ReconnectDelay time.Duration
}

// IsDummy reports whether this endpoint should be bound to a dummy client.
func (e ClientEndpoint) IsDummy() bool {
	switch strings.ToLower(e.Host) {
	case "test", "debug", "none":
		return true
	default:
		return false
	}
}

// DefaultTimeout is the per-request Modbus timeout used when an endpoint
// doesn't specify one.
const DefaultTimeout = 5 * time.Second

// DefaultReconnectDelay is the nominal per-connection reconnect backoff. The
// original add-on configured this as the string "10.0"; this package
// normalises it to a duration. The Manager itself never reconnects and reads
// neither this constant nor ClientEndpoint.ReconnectDelay.
const DefaultReconnectDelay = 10 * time.Second
