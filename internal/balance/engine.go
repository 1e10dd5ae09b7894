// Package balance replays the trade ledger up to a cutoff and nets the
// traded amounts per base coin.
package balance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trades-api/internal/models"
)

// TradeFinder is the read side of the ledger the engine needs.
type TradeFinder interface {
	FindUpTo(ctx context.Context, cutoff time.Time) ([]models.Trade, error)
}

// Engine computes point-in-time balances. It keeps no state between calls,
// so one Engine can serve concurrent queries.
type Engine struct {
	finder TradeFinder
}

func NewEngine(finder TradeFinder) *Engine {
	return &Engine{finder: finder}
}

// cutoffLayouts are tried in order; layouts without a zone are read as UTC.
var cutoffLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseCutoff parses the timestamp of a balance query.
func ParseCutoff(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: timestamp is required", models.ErrInput)
	}
	for _, layout := range cutoffLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid timestamp format %q", models.ErrInput, raw)
}

// ComputeAt parses raw and computes balances at that instant. Nothing is
// read from the ledger when raw is not a valid timestamp.
func (e *Engine) ComputeAt(ctx context.Context, raw string) (models.Balances, error) {
	cutoff, err := ParseCutoff(raw)
	if err != nil {
		return nil, err
	}
	return e.Compute(ctx, cutoff)
}

// Compute returns the net position of every base coin traded at or before
// cutoff. BUY adds the amount, SELL subtracts it, anything else adds zero
// but still marks the coin as traded.
func (e *Engine) Compute(ctx context.Context, cutoff time.Time) (models.Balances, error) {
	trades, err := e.finder.FindUpTo(ctx, cutoff)
	if err != nil {
		if errors.Is(err, models.ErrRetrieval) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrRetrieval, err)
	}

	balances := make(models.Balances)
	for _, trade := range trades {
		balances.Add(trade.BaseCoin, trade.Delta())
	}
	return balances, nil
}
