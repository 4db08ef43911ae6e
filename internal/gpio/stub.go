//go:build !linux

package gpio

import (
	"errors"
	"fmt"
)

var errNoGPIO = errors.New("gpio: the button needs the Linux GPIO character device")

// RealReader stands in on platforms without GPIO; set button_pin = -1 there.
type RealReader struct{}

// NewRealReader always fails off Linux.
func NewRealReader(pin int) (*RealReader, error) {
	return nil, fmt.Errorf("button pin %d: %w", pin, errNoGPIO)
}

func (r *RealReader) Read() (bool, error) {
	return false, errNoGPIO
}

func (r *RealReader) Close() error {
	return nil
}
