package models

import "errors"

// Error kinds shared by the normalizer, the balance engine and the ledger
// store adapters. Callers wrap them with fmt.Errorf("%w: ...") and match
// with errors.Is.
var (
	ErrParse     = errors.New("parse error")
	ErrFormat    = errors.New("format error")
	ErrValue     = errors.New("value error")
	ErrInput     = errors.New("input error")
	ErrRetrieval = errors.New("retrieval error")
	ErrStorage   = errors.New("storage error")
)

// ErrorKind is the error name reported to API clients.
type ErrorKind string

const (
	KindParse     ErrorKind = "parse_error"
	KindFormat    ErrorKind = "format_error"
	KindValue     ErrorKind = "value_error"
	KindInput     ErrorKind = "input_error"
	KindRetrieval ErrorKind = "retrieval_error"
	KindStorage   ErrorKind = "storage_error"
	KindInternal  ErrorKind = "internal_error"
)

// KindOf maps an error chain to its wire kind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrFormat):
		return KindFormat
	case errors.Is(err, ErrValue):
		return KindValue
	case errors.Is(err, ErrInput):
		return KindInput
	case errors.Is(err, ErrRetrieval):
		return KindRetrieval
	case errors.Is(err, ErrStorage):
		return KindStorage
	default:
		return KindInternal
	}
}
