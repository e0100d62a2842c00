package models

import "fmt"

// CacheKey identifies one shared-cache entry. Partition isolates accounts,
// so keys never collide across broker logins.
type CacheKey struct {
	Partition string `json:"partition"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Partition, k.Symbol, k.Timeframe)
}

// CacheEntry holds a fetched bar range for one key. The covered range
// [minTs, maxTs] never shrinks except through an explicit clear.
type CacheEntry struct {
	Key                      CacheKey `json:"key"`
	Bars                     []Bar    `json:"bars"`
	UpdatedAtMs              int64    `json:"updatedAtMs"`
	LastHistoryFetchAtMs     int64    `json:"lastHistoryFetchAtMs"`
	LastFullHistoryFetchAtMs int64    `json:"lastFullHistoryFetchAtMs"`
}

// MinTs returns the first covered timestamp, 0 when empty.
func (e *CacheEntry) MinTs() int64 {
	if len(e.Bars) == 0 {
		return 0
	}
	return e.Bars[0].T
}

// MaxTs returns the last covered timestamp, 0 when empty.
func (e *CacheEntry) MaxTs() int64 {
	if len(e.Bars) == 0 {
		return 0
	}
	return e.Bars[len(e.Bars)-1].T
}

// SnapshotVersion guards the persisted format; hydrate ignores snapshots
// written by a different version.
const SnapshotVersion = 1

// PersistedSnapshot is the durable image of the shared history cache,
// written as one JSON value into a key-value slot.
type PersistedSnapshot struct {
	Version   int                   `json:"version"`
	SavedAtMs int64                 `json:"savedAtMs"`
	Entries   map[string]CacheEntry `json:"entries"`
}
