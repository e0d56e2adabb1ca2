package framechan

import (
	"testing"
	"time"
)

func TestClampDuration(t *testing.T) {
	cases := []struct {
		name     string
		delta    float64
		hadPrior bool
		want     int
	}{
		{"no prior pts", 0.1, false, DefaultDurationMS},
		{"normal 30fps", 1.0 / 30.0, true, 33},
		{"too small clamps to default", 0.0001, true, DefaultDurationMS},
		{"too large clamps to default", 5.0, true, DefaultDurationMS},
		{"boundary low", 0.001, true, 1},
		{"boundary high", 0.999, true, 999},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ClampDuration(c.delta, c.hadPrior)
			if got != c.want {
				t.Fatalf("ClampDuration(%v, %v) = %d, want %d", c.delta, c.hadPrior, got, c.want)
			}
			if got < minDurationMS || got > maxDurationMS {
				t.Fatalf("result %d escapes [%d, %d]", got, minDurationMS, maxDurationMS)
			}
		})
	}
}

func TestFrameValid(t *testing.T) {
	good := Frame{Data: make([]byte, 64*4*2), Width: 64, Height: 2, Stride: 256}
	if !good.Valid() {
		t.Fatal("expected valid frame")
	}
	bad := Frame{Data: make([]byte, 10), Width: 64, Height: 2, Stride: 256}
	if bad.Valid() {
		t.Fatal("expected invalid frame (short buffer)")
	}
	badStride := Frame{Data: make([]byte, 64*2*2), Width: 64, Height: 2, Stride: 100}
	if badStride.Valid() {
		t.Fatal("expected invalid frame (stride != width*4)")
	}
}

func TestChannelFIFOAndBackpressure(t *testing.T) {
	c := New(2)
	cancel := make(chan struct{})

	if !c.Send(Frame{Index: 0}, cancel) {
		t.Fatal("send 0 should not block")
	}
	if !c.Send(Frame{Index: 1}, cancel) {
		t.Fatal("send 1 should not block")
	}

	done := make(chan struct{})
	go func() {
		if !c.Send(Frame{Index: 2}, cancel) {
			t.Error("send 2 should eventually succeed")
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("send 2 should have blocked while channel is full")
	case <-time.After(20 * time.Millisecond):
	}

	f, ok := c.Recv()
	if !ok || f.Index != 0 {
		t.Fatalf("expected frame 0 first (FIFO), got %+v ok=%v", f, ok)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send 2 never unblocked after a receive freed space")
	}

	f, ok = c.Recv()
	if !ok || f.Index != 1 {
		t.Fatalf("expected frame 1 second, got %+v", f)
	}
	f, ok = c.Recv()
	if !ok || f.Index != 2 {
		t.Fatalf("expected frame 2 third, got %+v", f)
	}
}

func TestChannelCancelUnblocksSend(t *testing.T) {
	c := New(1)
	cancel := make(chan struct{})
	if !c.Send(Frame{}, cancel) {
		t.Fatal("first send should not block")
	}

	result := make(chan bool, 1)
	go func() {
		result <- c.Send(Frame{}, cancel)
	}()

	close(cancel)
	select {
	case ok := <-result:
		if ok {
			t.Fatal("send should report failure once cancelled")
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not unblock a stalled send")
	}
}

func TestChannelCloseSignalsEndOfStream(t *testing.T) {
	c := New(4)
	cancel := make(chan struct{})
	c.Send(Frame{Index: 7}, cancel)
	c.Close()

	f, ok := c.Recv()
	if !ok || f.Index != 7 {
		t.Fatalf("expected buffered frame before EOS, got %+v ok=%v", f, ok)
	}
	_, ok = c.Recv()
	if ok {
		t.Fatal("expected end-of-stream after drain")
	}
}
