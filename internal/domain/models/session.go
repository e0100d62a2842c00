package models

// HealthSource tells a host surface where a session's bars last came from.
type HealthSource string

const (
	SourceCache   HealthSource = "cache"
	SourceNetwork HealthSource = "network"
	SourceError   HealthSource = "error"
)

// SessionHealth is the per-session staleness indicator.
type SessionHealth struct {
	Source    HealthSource `json:"source"`
	LastError string       `json:"lastError,omitempty"`
}

// Session is one actively tracked (symbol, timeframe) bar series. Bars are
// mutated only by the engine's merge step; nothing outside the engine holds
// a reference to the slice.
type Session struct {
	ID                       string
	Symbol                   string
	Timeframe                string
	PartitionKey             string
	Bars                     []Bar
	BackfillBars             int
	LastHistoryFetchAtMs     int64
	LastFullHistoryFetchAtMs int64
	Health                   SessionHealth
}

// SessionSnapshot is the read-only view handed to callers.
type SessionSnapshot struct {
	SessionID string        `json:"sessionId"`
	Symbol    string        `json:"symbol"`
	Timeframe string        `json:"timeframe"`
	BarCount  int           `json:"barCount"`
	BarsTail  []Bar         `json:"barsTail"`
	Health    SessionHealth `json:"health"`
}
