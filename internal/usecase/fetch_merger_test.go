package usecase

import (
	"testing"

	"ChartPulse/internal/domain/models"
)

func mkBar(t int64, c float64) models.Bar {
	return models.Bar{T: t, O: c, H: c, L: c, C: c, V: 1}
}

func TestMergeFetchFirstFetchIsFull(t *testing.T) {
	res := MergeFetch(nil, []models.Bar{mkBar(100, 1.10), mkBar(160, 1.11)}, false, 2000)
	if res.Classification != ClassificationFull {
		t.Fatalf("expected full, got %s", res.Classification)
	}
	if res.NoOp || len(res.Bars) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestMergeFetchSubsequentFetchIsIncremental(t *testing.T) {
	existing := []models.Bar{mkBar(100, 1.10), mkBar(160, 1.11)}
	fetched := []models.Bar{mkBar(100, 1.13), mkBar(160, 1.11), mkBar(220, 1.12)}

	res := MergeFetch(existing, fetched, true, 2000)
	if res.Classification != ClassificationIncremental {
		t.Fatalf("expected incremental, got %s", res.Classification)
	}
	if len(res.Bars) != 3 {
		t.Fatalf("expected 3 merged bars, got %d", len(res.Bars))
	}
	if res.Bars[0].C != 1.13 {
		t.Fatalf("fetched bar must win at t=100, got c=%v", res.Bars[0].C)
	}
}

func TestMergeFetchEmptyIsNoOp(t *testing.T) {
	existing := []models.Bar{mkBar(100, 1.10)}

	res := MergeFetch(existing, nil, true, 2000)
	if !res.NoOp || res.Classification != ClassificationNoBars {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Bars) != 1 || res.Bars[0].C != 1.10 {
		t.Fatal("existing bars must be untouched by an empty fetch")
	}
}

func TestMergeFetchRespectsMaxBars(t *testing.T) {
	var fetched []models.Bar
	for i := int64(0); i < 8; i++ {
		fetched = append(fetched, mkBar(100+i*60, float64(i)))
	}

	res := MergeFetch(nil, fetched, false, 5)
	if len(res.Bars) != 5 {
		t.Fatalf("expected cap at 5 bars, got %d", len(res.Bars))
	}
	if res.Bars[0].T != 100+3*60 {
		t.Fatalf("expected oldest bars dropped, first t=%d", res.Bars[0].T)
	}
}
