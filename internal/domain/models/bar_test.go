package models

import "testing"

func bar(t int64, c float64) Bar {
	return Bar{T: t, O: c, H: c, L: c, C: c, V: 1}
}

func TestMergeSeriesFetchedWinsOnEqualTimestamp(t *testing.T) {
	existing := []Bar{bar(100, 1.10), bar(160, 1.11)}
	fetched := []Bar{bar(100, 1.13), bar(220, 1.12)}

	out := MergeSeries(existing, fetched, 0)
	if len(out) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(out))
	}
	if out[0].T != 100 || out[0].C != 1.13 {
		t.Fatalf("expected fetched bar to win at t=100, got c=%v", out[0].C)
	}
	if out[1].T != 160 || out[2].T != 220 {
		t.Fatalf("expected ascending order, got %v %v", out[1].T, out[2].T)
	}
}

func TestMergeSeriesIdempotent(t *testing.T) {
	fetched := []Bar{bar(100, 1.0), bar(160, 2.0)}

	once := MergeSeries(nil, fetched, 0)
	twice := MergeSeries(once, fetched, 0)
	if len(once) != len(twice) {
		t.Fatalf("re-merge changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("re-merge changed bar %d: %v vs %v", i, once[i], twice[i])
		}
	}
}

func TestMergeSeriesTruncatesToMostRecent(t *testing.T) {
	var fetched []Bar
	for i := int64(0); i < 10; i++ {
		fetched = append(fetched, bar(100+i*60, float64(i)))
	}

	out := MergeSeries(nil, fetched, 4)
	if len(out) != 4 {
		t.Fatalf("expected 4 bars, got %d", len(out))
	}
	if out[0].T != 100+6*60 {
		t.Fatalf("expected oldest bars dropped, first t=%d", out[0].T)
	}
}

func TestTailBars(t *testing.T) {
	bars := []Bar{bar(1, 1), bar(2, 2), bar(3, 3)}

	tail := TailBars(bars, 2)
	if len(tail) != 2 || tail[0].T != 2 {
		t.Fatalf("unexpected tail: %v", tail)
	}
	if got := TailBars(bars, 0); len(got) != 3 {
		t.Fatalf("n<=0 should return whole series, got %d", len(got))
	}

	tail[0].C = 99
	if bars[1].C == 99 {
		t.Fatal("tail must not alias the source slice")
	}
}
