// Package normalizer turns raw CSV trade rows into validated ledger trades.
package normalizer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trades-api/internal/models"
)

// Column names of the trade export.
const (
	ColumnUTCTime   = "UTC_Time"
	ColumnOperation = "Operation"
	ColumnMarket    = "Market"
	ColumnAmount    = "Buy/Sell Amount"
	ColumnPrice     = "Price"
)

// RequiredColumns lists every column a trade export must carry.
var RequiredColumns = []string{ColumnUTCTime, ColumnOperation, ColumnMarket, ColumnAmount, ColumnPrice}

// TimeLayout is the DD-MM-YY HH:mm format of the UTC_Time column.
const TimeLayout = "02-01-06 15:04"

// Bounds on amounts and prices. They match what a Decimal128 ledger column
// can hold, so every accepted value can be stored by every ledger driver.
const (
	MaxSignificantDigits = 34
	MinExponent          = -6176
	MaxExponent          = 6111
)

// time.Parse accepts a single-digit hour for "15", so the shape is checked first.
var timePattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{2} \d{2}:\d{2}$`)

// Row is one CSV record keyed by column name.
type Row map[string]string

// Normalizer converts rows into trades. With Strict set, operations other
// than BUY and SELL are rejected instead of being stored with zero weight.
type Normalizer struct {
	Strict bool
}

// BatchResult holds the outcome of a batch: trades ready for insertion and
// the diagnostics of every rejected row.
type BatchResult struct {
	Trades []models.Trade
	Errors []models.RowError
}

// Accepted returns the number of normalized trades.
func (b BatchResult) Accepted() int { return len(b.Trades) }

// Rejected returns the number of rejected rows.
func (b BatchResult) Rejected() int { return len(b.Errors) }

// NormalizeRow converts a row with the lenient operation policy.
func NormalizeRow(row Row) (*models.Trade, error) {
	return Normalizer{}.NormalizeRow(row)
}

// NormalizeRow validates row and builds a trade from it.
func (n Normalizer) NormalizeRow(row Row) (*models.Trade, error) {
	utcTime, err := ParseTradeTime(row[ColumnUTCTime])
	if err != nil {
		return nil, err
	}

	market := strings.TrimSpace(row[ColumnMarket])
	baseCoin, quoteCoin, err := SplitMarket(market)
	if err != nil {
		return nil, err
	}

	amount, err := parseMagnitude(ColumnAmount, row[ColumnAmount])
	if err != nil {
		return nil, err
	}

	price, err := parseMagnitude(ColumnPrice, row[ColumnPrice])
	if err != nil {
		return nil, err
	}

	operation := models.Operation(strings.TrimSpace(row[ColumnOperation]))
	if n.Strict && !operation.IsKnown() {
		return nil, &FieldError{Field: ColumnOperation, Err: fmt.Errorf("%w: unsupported operation %q", models.ErrValue, operation)}
	}

	return &models.Trade{
		UTCTime:   utcTime,
		Operation: operation,
		Market:    market,
		BaseCoin:  baseCoin,
		QuoteCoin: quoteCoin,
		Amount:    amount,
		Price:     price,
	}, nil
}

// NormalizeBatch normalizes every row independently. Row numbers in the
// diagnostics are 1-based positions in rows.
func (n Normalizer) NormalizeBatch(rows []Row) BatchResult {
	result := BatchResult{
		Trades: make([]models.Trade, 0, len(rows)),
		Errors: []models.RowError{},
	}
	for i, row := range rows {
		trade, err := n.NormalizeRow(row)
		if err != nil {
			result.Errors = append(result.Errors, NewRowError(i+1, err))
			continue
		}
		result.Trades = append(result.Trades, *trade)
	}
	return result
}

// ParseTradeTime parses a UTC_Time value. The value has no zone and is read as UTC.
func ParseTradeTime(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if !timePattern.MatchString(value) {
		return time.Time{}, &FieldError{Field: ColumnUTCTime, Err: fmt.Errorf("%w: %q does not match DD-MM-YY HH:mm", models.ErrParse, raw)}
	}
	t, err := time.ParseInLocation(TimeLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, &FieldError{Field: ColumnUTCTime, Err: fmt.Errorf("%w: %q: %v", models.ErrParse, raw, err)}
	}
	return t, nil
}

// SplitMarket splits a pair into base and quote coin.
func SplitMarket(market string) (string, string, error) {
	if strings.Count(market, models.MarketSeparator) != 1 {
		return "", "", &FieldError{Field: ColumnMarket, Err: fmt.Errorf("%w: market %q must contain exactly one %q", models.ErrFormat, market, models.MarketSeparator)}
	}
	parts := strings.SplitN(market, models.MarketSeparator, 2)
	base, quote := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if base == "" || quote == "" {
		return "", "", &FieldError{Field: ColumnMarket, Err: fmt.Errorf("%w: market %q has an empty side", models.ErrFormat, market)}
	}
	return base, quote, nil
}

func parseMagnitude(field, raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, &FieldError{Field: field, Err: fmt.Errorf("%w: empty value", models.ErrValue)}
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, &FieldError{Field: field, Err: fmt.Errorf("%w: %q is not a decimal number", models.ErrValue, raw)}
	}
	if d.IsNegative() {
		return decimal.Zero, &FieldError{Field: field, Err: fmt.Errorf("%w: %q is negative", models.ErrValue, raw)}
	}
	if digits := len(d.Coefficient().String()); digits > MaxSignificantDigits {
		return decimal.Zero, &FieldError{Field: field, Err: fmt.Errorf("%w: %q has %d digits, at most %d are supported", models.ErrValue, raw, digits, MaxSignificantDigits)}
	}
	if exp := d.Exponent(); exp < MinExponent || exp > MaxExponent {
		return decimal.Zero, &FieldError{Field: field, Err: fmt.Errorf("%w: %q is out of range", models.ErrValue, raw)}
	}
	return d, nil
}
