package models

import "time"

// Quote is a point-in-time price for an underlying.
// Estimated is set when no real source answered and the price was synthesized.
type Quote struct {
	Ticker        string    `json:"ticker"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Open          float64   `json:"open,omitempty"`
	High          float64   `json:"high,omitempty"`
	Low           float64   `json:"low,omitempty"`
	Volume        int64     `json:"volume,omitempty"`
	Source        string    `json:"source"`
	Estimated     bool      `json:"estimated"`
	Timestamp     time.Time `json:"timestamp"`
}

// Tick is a single trade print from a live feed.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"` // unix seconds
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
}
