package logic

// Button turns a polled button level into press events.
type Button struct {
	pressed  bool
	observed bool
}

// Process takes the current level and reports whether it is a new press
// (released -> pressed). A button held down at startup is not a press.
func (b *Button) Process(pressed bool) bool {
	if !b.observed {
		b.observed = true
		b.pressed = pressed
		return false
	}
	edge := pressed && !b.pressed
	b.pressed = pressed
	return edge
}
