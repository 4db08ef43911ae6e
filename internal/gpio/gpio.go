// Package gpio reads the physical start/stop button with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the button state.
type Reader interface {
	// Read reports whether the button is currently held down.
	// The button pulls the line to ground, so raw low = pressed.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// PinButton is the default button line (BCM numbering).
const PinButton = 17
