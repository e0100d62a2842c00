package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeUnixMilli(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).UnixMilli()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UnixMilli() != ts {
		t.Fatalf("unexpected millis %v", got.UnixMilli())
	}
}

func TestClampInt(t *testing.T) {
	if got := ClampInt(0, 200, 50, 10000); got != 200 {
		t.Fatalf("default: got %d", got)
	}
	if got := ClampInt(5, 200, 50, 10000); got != 50 {
		t.Fatalf("min: got %d", got)
	}
	if got := ClampInt(50000, 200, 50, 10000); got != 10000 {
		t.Fatalf("max: got %d", got)
	}
}
