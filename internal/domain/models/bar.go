package models

import "sort"

// Bar represents one OHLCV bar. Timestamps are epoch milliseconds and are
// strictly increasing and unique within any series.
type Bar struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

// HistoryResult is what the broker-history provider returns for one fetch.
type HistoryResult struct {
	OK          bool   `json:"ok"`
	Bars        []Bar  `json:"bars"`
	FetchedAtMs int64  `json:"fetchedAtMs"`
	BrokerID    string `json:"brokerId,omitempty"`
	AccountID   string `json:"accountId,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Tick is a single live quote update pushed by the broker bridge.
type Tick struct {
	Symbol  string  `json:"symbol"`
	TimeMsc int64   `json:"time_msc"`
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	Last    float64 `json:"last"`
	Volume  float64 `json:"volume"`
}

// CopyBars returns an independent copy so callers cannot alias a session's
// bar slice.
func CopyBars(bars []Bar) []Bar {
	if bars == nil {
		return nil
	}
	out := make([]Bar, len(bars))
	copy(out, bars)
	return out
}

// TailBars returns the most recent n bars (the whole series when n <= 0 or
// n >= len).
func TailBars(bars []Bar, n int) []Bar {
	if n <= 0 || n >= len(bars) {
		return CopyBars(bars)
	}
	return CopyBars(bars[len(bars)-n:])
}

// MergeSeries folds fetched bars into an existing series. On equal
// timestamps the fetched bar wins, which lets a provider correct a
// still-forming bar. The result is sorted ascending and truncated to the
// most recent maxBars entries (maxBars <= 0 means unbounded).
func MergeSeries(existing, fetched []Bar, maxBars int) []Bar {
	byTs := make(map[int64]Bar, len(existing)+len(fetched))
	for _, b := range existing {
		byTs[b.T] = b
	}
	for _, b := range fetched {
		byTs[b.T] = b
	}

	merged := make([]Bar, 0, len(byTs))
	for _, b := range byTs {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].T < merged[j].T })

	if maxBars > 0 && len(merged) > maxBars {
		merged = merged[len(merged)-maxBars:]
	}
	return merged
}
