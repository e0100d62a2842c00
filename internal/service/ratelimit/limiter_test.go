package ratelimit

import "testing"

func TestLimiterBurstThenDeny(t *testing.T) {
	l := New(3, 0.0001) // effectively no refill within the test

	for i := 0; i < 3; i++ {
		if !l.Allow("EURUSD") {
			t.Fatalf("burst request %d denied", i)
		}
	}
	if l.Allow("EURUSD") {
		t.Fatal("request past burst capacity allowed")
	}
}

func TestLimiterIsolatesSymbols(t *testing.T) {
	l := New(1, 0.0001)

	if !l.Allow("EURUSD") {
		t.Fatal("first EURUSD denied")
	}
	if l.Allow("EURUSD") {
		t.Fatal("second EURUSD allowed")
	}
	if !l.Allow("XAUUSD") {
		t.Fatal("XAUUSD must have its own bucket")
	}
}
