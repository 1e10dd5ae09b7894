package models

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Balances maps a base coin to its signed net quantity. A coin that was
// never traded is absent; a coin that nets out to zero is present.
type Balances map[string]decimal.Decimal

// Add accumulates delta into the balance of coin.
func (b Balances) Add(coin string, delta decimal.Decimal) {
	b[coin] = b[coin].Add(delta)
}

// Coins returns the tracked coins in lexical order.
func (b Balances) Coins() []string {
	coins := make([]string, 0, len(b))
	for coin := range b {
		coins = append(coins, coin)
	}
	sort.Strings(coins)
	return coins
}

// MarshalJSON writes balances as JSON numbers keyed by coin, in coin order.
func (b Balances) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, coin := range b.Coins() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(coin)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(b[coin].String())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts both numeric and quoted decimal values.
func (b *Balances) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Balances, len(raw))
	for coin, value := range raw {
		var d decimal.Decimal
		if err := d.UnmarshalJSON(value); err != nil {
			return err
		}
		out[coin] = d
	}
	*b = out
	return nil
}
