// Copyright 2025 James Ross
package breaker

import (
	"testing"
	"time"
)

func TestOpensAfterFailureThreshold(t *testing.T) {
	cb := New(time.Minute, 50*time.Millisecond, 0.5, 4)
	for i := 0; i < 4; i++ {
		if !cb.Allow() {
			t.Fatalf("call %d should be allowed while closed", i)
		}
		cb.Record(false)
	}
	if cb.State() != Open {
		t.Fatalf("expected Open after sustained failures, got %v", cb.State())
	}
	if cb.Allow() {
		t.Fatalf("expected Allow to deny calls while Open and within cooldown")
	}
}

func TestHalfOpenProbeRecoversToClosed(t *testing.T) {
	cb := New(time.Minute, 10*time.Millisecond, 0.5, 2)
	cb.Record(false)
	cb.Record(false)
	if cb.State() != Open {
		t.Fatalf("expected Open, got %v", cb.State())
	}
	time.Sleep(20 * time.Millisecond)
	if !cb.Allow() {
		t.Fatalf("expected a single probe to be allowed after cooldown")
	}
	if cb.State() != HalfOpen {
		t.Fatalf("expected HalfOpen after probe admitted, got %v", cb.State())
	}
	cb.Record(true)
	if cb.State() != Closed {
		t.Fatalf("expected Closed after successful probe, got %v", cb.State())
	}
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	cb := New(time.Minute, 10*time.Millisecond, 0.5, 2)
	cb.Record(false)
	cb.Record(false)
	time.Sleep(20 * time.Millisecond)
	cb.Allow()
	cb.Record(false)
	if cb.State() != Open {
		t.Fatalf("expected Open after failed probe, got %v", cb.State())
	}
}

func TestStaysClosedBelowMinSamples(t *testing.T) {
	cb := New(time.Minute, time.Second, 0.1, 10)
	cb.Record(false)
	cb.Record(false)
	if cb.State() != Closed {
		t.Fatalf("expected Closed below minSamples, got %v", cb.State())
	}
}
