package presenter

import (
	"testing"
	"time"

	"github.com/waypaperd/waypaperd/internal/framechan"
)

func TestClockSteadyPacingSleepsFullDuration(t *testing.T) {
	c := NewClock()
	base := time.Unix(0, 0)

	sleep, reset := c.Advance(framechan.Frame{DurationMS: 40}, base)
	if reset {
		t.Fatal("first frame should never be an epoch reset")
	}
	if sleep != 40*time.Millisecond {
		t.Fatalf("expected 40ms sleep on first frame, got %v", sleep)
	}

	// Second frame arrives exactly on schedule.
	sleep, reset = c.Advance(framechan.Frame{DurationMS: 40}, base.Add(40*time.Millisecond))
	if reset {
		t.Fatal("steady playback should not trigger an epoch reset")
	}
	if sleep != 40*time.Millisecond {
		t.Fatalf("expected another 40ms sleep, got %v", sleep)
	}
}

func TestClockLargeStallResnaps(t *testing.T) {
	c := NewClock()
	base := time.Unix(0, 0)
	c.Advance(framechan.Frame{DurationMS: 33}, base)

	// Wall clock jumps far ahead (a 5s stall), way more than 2x duration.
	stalledNow := base.Add(5 * time.Second)
	sleep, _ := c.Advance(framechan.Frame{DurationMS: 33}, stalledNow)
	if sleep < 0 {
		t.Fatalf("expected resnapped clock to not report deeply negative sleep, got %v", sleep)
	}
}

func TestClockEpochResetAfterThreshold(t *testing.T) {
	c := NewClock()
	base := time.Unix(0, 0)
	now := base

	var sawReset bool
	for i := 0; i < epochResetThreshold+5; i++ {
		now = now.Add(time.Millisecond)
		_, reset := c.Advance(framechan.Frame{DurationMS: framechan.DefaultDurationMS}, now)
		if reset {
			sawReset = true
			if i+1 <= epochResetThreshold {
				t.Fatalf("epoch reset fired too early at frame %d (threshold %d)", i+1, epochResetThreshold)
			}
		}
	}
	if !sawReset {
		t.Fatal("expected an epoch reset once the default-duration run count exceeded the threshold")
	}
}

func TestClockNoEpochResetForNonDefaultDuration(t *testing.T) {
	c := NewClock()
	base := time.Unix(0, 0)
	now := base
	for i := 0; i < epochResetThreshold+20; i++ {
		now = now.Add(time.Millisecond)
		_, reset := c.Advance(framechan.Frame{DurationMS: 40}, now)
		if reset {
			t.Fatalf("non-default duration (40ms) must never trigger the loop-seam heuristic, frame %d", i)
		}
	}
}

func TestShouldDropLate(t *testing.T) {
	base := time.Unix(0, 0)
	next := base
	if ShouldDropLate(base, next, 33) {
		t.Fatal("on-time arrival must not be dropped")
	}
	late := base.Add(100 * time.Millisecond) // > 2*33ms
	if !ShouldDropLate(late, next, 33) {
		t.Fatal("arrival past next_frame_time + 2x duration must be dropped")
	}
	slightlyLate := base.Add(40 * time.Millisecond) // < 2*33ms
	if ShouldDropLate(slightlyLate, next, 33) {
		t.Fatal("arrival within 2x duration must not be dropped")
	}
}
