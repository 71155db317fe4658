package models

import (
	"testing"
	"time"
)

func TestOneTimeCodeUsable(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	code := OneTimeCode{ExpiresAt: now.Add(10 * time.Minute)}
	if !code.Usable(now) {
		t.Fatal("expected an unconsumed, unexpired code to be usable")
	}

	consumed := OneTimeCode{ExpiresAt: now.Add(10 * time.Minute), Consumed: true}
	if consumed.Usable(now) {
		t.Fatal("expected a consumed code to be unusable")
	}

	expired := OneTimeCode{ExpiresAt: now.Add(-time.Second)}
	if expired.Usable(now) {
		t.Fatal("expected an expired code to be unusable")
	}

	boundary := OneTimeCode{ExpiresAt: now}
	if boundary.Usable(now) {
		t.Fatal("expected a code expiring exactly now to be unusable")
	}
}
