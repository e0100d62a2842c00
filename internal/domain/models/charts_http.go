package models

// Requests for the chart-session HTTP endpoints. Defined in domain for consistency and reuse.

type StartSessionRequest struct {
	Symbol       string `json:"symbol" validate:"required"`
	Timeframe    string `json:"timeframe" default:"1h"`
	BackfillBars int    `json:"backfill_bars" default:"300" validate:"gte=1,lte=10000"`
}

type SnapshotRequest struct {
	Bars int `query:"bars" json:"bars" default:"200" validate:"gte=1,lte=10000"`
}

type RefreshRequest struct {
	Symbol     string   `json:"symbol" validate:"required"`
	Timeframes []string `json:"timeframes"`
	Force      bool     `json:"force"`
}

type AddWatchRequest struct {
	Symbol       string `json:"symbol" validate:"required"`
	Timeframe    string `json:"timeframe" default:"1h"`
	BackfillBars int    `json:"backfill_bars" default:"300" validate:"gte=1,lte=10000"`
}

type ClearCacheRequest struct {
	DropSessionBars bool `json:"drop_session_bars"`
}

type ClearCacheResult struct {
	OK             bool `json:"ok"`
	EntriesCleared int  `json:"entriesCleared"`
}

type StartSessionResult struct {
	SessionID string        `json:"sessionId"`
	Health    SessionHealth `json:"health"`
	BarCount  int           `json:"barCount"`
}
