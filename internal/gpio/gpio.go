// Package gpio drives the physical bell relay.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Relay switches the bell circuit.
type Relay interface {
	// Ring energizes the relay for d. A ring during a ring extends it.
	Ring(d time.Duration) error

	// Close de-energizes the relay and releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering)
const (
	DefaultPinBell = 17
	DefaultPulse   = 3 * time.Second
)
