package decode

import (
	"testing"

	"github.com/waypaperd/waypaperd/internal/pipeline"
)

func TestCandidatesAutoUsesFullProbeOrder(t *testing.T) {
	got := candidates(pipeline.Hints{HWAccel: pipeline.HWAccelNone})
	if len(got) != len(probeOrder) {
		t.Fatalf("expected full probe order (%d backends), got %d", len(probeOrder), len(got))
	}
	if got[0] != pipeline.HWAccelVAAPI {
		t.Fatalf("expected VAAPI first per spec preference order, got %v", got[0])
	}
}

func TestCandidatesForcedNoneIsSoftwareOnly(t *testing.T) {
	got := candidates(pipeline.Hints{HWAccel: pipeline.HWAccelNone, ForceHW: true})
	if len(got) != 0 {
		t.Fatalf("expected no hardware candidates when forced to none, got %v", got)
	}
}

func TestCandidatesSpecificBackendTriesOnlyThatOne(t *testing.T) {
	got := candidates(pipeline.Hints{HWAccel: pipeline.HWAccelCUDA})
	if len(got) != 1 || got[0] != pipeline.HWAccelCUDA {
		t.Fatalf("expected exactly [CUDA], got %v", got)
	}
}

func TestFlagsCancelIsIdempotentAndObservable(t *testing.T) {
	f := NewFlags()
	if f.Cancelled() {
		t.Fatal("expected fresh Flags to be uncancelled")
	}
	f.Cancel()
	f.Cancel() // must not panic on double-close
	if !f.Cancelled() {
		t.Fatal("expected Cancelled() true after Cancel()")
	}
	select {
	case <-f.Done():
	default:
		t.Fatal("expected Done() channel to be closed after Cancel()")
	}
}

func TestFlagsPauseToggle(t *testing.T) {
	f := NewFlags()
	if f.Paused() {
		t.Fatal("expected fresh Flags to be unpaused")
	}
	f.SetPaused(true)
	if !f.Paused() {
		t.Fatal("expected Paused() true after SetPaused(true)")
	}
	f.SetPaused(false)
	if f.Paused() {
		t.Fatal("expected Paused() false after SetPaused(false)")
	}
}
