//go:build linux

package gpio

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealRelay drives a relay from a GPIO output line.
type RealRelay struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	mu    sync.Mutex
	timer *time.Timer
}

// NewRealRelay requests pin as an output, initially off.
func NewRealRelay(pin int) (*RealRelay, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request bell pin %d: %w", pin, err)
	}

	return &RealRelay{chip: chip, line: line}, nil
}

// Ring drives the line high for d.
func (r *RealRelay) Ring(d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.line.SetValue(1); err != nil {
		return fmt.Errorf("set bell pin: %w", err)
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(d, r.release)
	return nil
}

func (r *RealRelay) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.line.SetValue(0); err != nil {
		log.Printf("gpio: release bell pin: %v", err)
	}
	r.timer = nil
}

// Close releases GPIO resources.
// Drives the line low and reconfigures it to input with pull-down (matching Pi
// boot defaults) before closing so the relay cannot latch across a reboot.
func (r *RealRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.line != nil {
		if err := r.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear bell pin: %w", err))
		}
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure bell pin: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bell pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
