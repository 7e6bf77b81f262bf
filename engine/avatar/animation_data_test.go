package avatar

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-avatar/common"
)

func frames(n int) []common.Frame {
	out := make([]common.Frame, n)
	for i := range out {
		out[i] = common.Frame{Format: common.FormatRGBA, Width: 1, Height: 1, Data: []byte{byte(i), 0, 0, 255}}
	}
	return out
}

func TestNewAnimationData(t *testing.T) {
	tests := []struct {
		name   string
		frames int
		delays int
		want   error
	}{
		{"ok", 3, 3, nil},
		{"mismatch", 3, 2, ErrFrameDelayMismatch},
		{"single frame", 1, 1, ErrTooFewFrames},
		{"empty", 0, 0, ErrTooFewFrames},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAnimationData(frames(tt.frames), make([]time.Duration, tt.delays))
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewAnimationData() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAnimationDataAccessors(t *testing.T) {
	delays := []time.Duration{100 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	data, err := NewAnimationData(frames(3), delays)
	if err != nil {
		t.Fatal(err)
	}
	delays[0] = 0

	if data.Len() != 3 {
		t.Fatalf("Len() = %d", data.Len())
	}
	if data.Delay(0) != 100*time.Millisecond {
		t.Errorf("data shares the caller's delay slice")
	}
	if data.Frame(4).Data[0] != 1 || data.Frame(-1).Data[0] != 2 {
		t.Errorf("Frame index does not wrap")
	}
	if data.Duration() != 150*time.Millisecond {
		t.Errorf("Duration() = %v, want 150ms", data.Duration())
	}
	got := data.Delays()
	got[1] = 0
	if data.Delay(1) != 20*time.Millisecond {
		t.Errorf("Delays() exposes internal storage")
	}
}
