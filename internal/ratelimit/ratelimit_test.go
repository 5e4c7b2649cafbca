package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_BurstAdmitsExactlyN(t *testing.T) {
	l := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Check("1.2.3.4") {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}
	if l.Check("1.2.3.4") {
		t.Error("request 4 should be rejected")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	l := New(2, time.Minute)

	base := time.Unix(1000, 0)
	l.now = func() time.Time { return base }

	l.Check("a")
	l.Check("a")
	if l.Check("a") {
		t.Fatal("third request in window should be rejected")
	}

	// After the window passes, a new request is admitted again.
	l.now = func() time.Time { return base.Add(61 * time.Second) }
	if !l.Check("a") {
		t.Error("request after window should be admitted")
	}
}

func TestLimiter_IdentifiersIndependent(t *testing.T) {
	l := New(1, time.Minute)

	if !l.Check("a") {
		t.Fatal("first for a")
	}
	if !l.Check("b") {
		t.Error("first for b should be admitted regardless of a")
	}
	if l.Check("a") {
		t.Error("second for a should be rejected")
	}
}
