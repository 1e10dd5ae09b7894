package models

import "time"

// RowError describes why one CSV data row was rejected. Row is 1-based and
// does not count the header line.
type RowError struct {
	Row    int       `json:"row"`
	Kind   ErrorKind `json:"kind"`
	Field  string    `json:"field,omitempty"`
	Reason string    `json:"reason"`
}

// IngestReport summarises one CSV upload.
type IngestReport struct {
	BatchID     string     `json:"batch_id"`
	Filename    string     `json:"filename,omitempty"`
	Accepted    int        `json:"accepted"`
	Rejected    int        `json:"rejected"`
	Errors      []RowError `json:"errors"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at"`
}

// TradesIngestedEvent is published after a batch stored at least one trade.
type TradesIngestedEvent struct {
	BatchID      string    `json:"batch_id"`
	Accepted     int       `json:"accepted"`
	Rejected     int       `json:"rejected"`
	BaseCoins    []string  `json:"base_coins"`
	FirstTradeAt time.Time `json:"first_trade_at"`
	LastTradeAt  time.Time `json:"last_trade_at"`
	Timestamp    time.Time `json:"timestamp"`
}
