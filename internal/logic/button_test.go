package logic

import "testing"

func TestButtonPressEdges(t *testing.T) {
	var b Button

	levels := []bool{false, true, true, false, false, true, false}
	want := []bool{false, true, false, false, false, true, false}
	for i, level := range levels {
		if got := b.Process(level); got != want[i] {
			t.Errorf("sample %d (level %v): press=%v, want %v", i, level, got, want[i])
		}
	}
}

func TestButtonHeldAtStartupIsNotPress(t *testing.T) {
	var b Button
	if b.Process(true) {
		t.Error("button held at startup should not count as a press")
	}
	if b.Process(true) {
		t.Error("held button should not repeat")
	}
	b.Process(false)
	if !b.Process(true) {
		t.Error("expected press after release")
	}
}
