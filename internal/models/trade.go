package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation is the trade side as written in the export.
type Operation string

const (
	OperationBuy  Operation = "BUY"
	OperationSell Operation = "SELL"
)

// IsKnown reports whether the operation moves a balance.
func (o Operation) IsKnown() bool {
	return o == OperationBuy || o == OperationSell
}

// MarketSeparator splits a pair such as "BTC/USDT" into base and quote coin.
const MarketSeparator = "/"

// Trade is one immutable ledger entry. Amount is always a non-negative
// magnitude; the sign comes from Operation.
type Trade struct {
	UTCTime   time.Time       `json:"utc_time"`
	Operation Operation       `json:"operation"`
	Market    string          `json:"market"`
	BaseCoin  string          `json:"base_coin"`
	QuoteCoin string          `json:"quote_coin"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
}

// Delta returns the signed contribution of the trade to its base coin balance.
// Operations other than BUY and SELL contribute zero.
func (t Trade) Delta() decimal.Decimal {
	switch t.Operation {
	case OperationBuy:
		return t.Amount
	case OperationSell:
		return t.Amount.Neg()
	default:
		return decimal.Zero
	}
}
