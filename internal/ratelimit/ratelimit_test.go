package ratelimit

import (
	"testing"
	"time"
)

func TestAllowCapWithinWindow(t *testing.T) {
	l := New()
	now := time.Unix(1700000000, 0)
	l.SetClock(func() time.Time { return now })

	for i := 0; i < DefaultMaxHits; i++ {
		now = now.Add(time.Second)
		if !l.Allow("551199990000") {
			t.Fatalf("call %d unexpectedly rejected", i+1)
		}
	}

	now = now.Add(time.Second)
	if l.Allow("551199990000") {
		t.Fatal("11th call within window was admitted")
	}
}

func TestAllowResumesAfterWindowRolls(t *testing.T) {
	l := New()
	base := time.Unix(1700000000, 0)
	now := base
	l.SetClock(func() time.Time { return now })

	for i := 0; i < DefaultMaxHits; i++ {
		if !l.Allow("sender") {
			t.Fatalf("call %d unexpectedly rejected", i+1)
		}
		now = now.Add(time.Second)
	}
	if l.Allow("sender") {
		t.Fatal("over-cap call admitted")
	}

	// Roll the window past the first admission.
	now = base.Add(DefaultWindow + time.Second)
	if !l.Allow("sender") {
		t.Fatal("admission did not resume after window rolled")
	}
}

func TestAllowIsPerIdentity(t *testing.T) {
	l := New()
	now := time.Unix(1700000000, 0)
	l.SetClock(func() time.Time { return now })

	for i := 0; i < DefaultMaxHits; i++ {
		l.Allow("a")
	}
	if l.Allow("a") {
		t.Fatal("identity a over cap admitted")
	}
	if !l.Allow("b") {
		t.Fatal("identity b rejected despite clean history")
	}
}
