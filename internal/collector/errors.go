package collector

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCalendarUnavailable means the calendar source returned no data at all.
	// The tracker cannot run without a listing set.
	ErrCalendarUnavailable = errors.New("ipo calendar unavailable")
	// ErrInsufficientHistory marks a symbol with too few valid bars to score.
	ErrInsufficientHistory = errors.New("insufficient price history")
	// ErrPennyStock marks a symbol whose lowest close is under the penny floor.
	ErrPennyStock = errors.New("penny stock excluded")
)

// FetchError is a failed price request for one symbol. The cycle skips the symbol and continues.
type FetchError struct {
	Symbol     string
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: fetch %s: status %d (%s): %v", e.Source, e.Symbol, e.StatusCode, http.StatusText(e.StatusCode), e.Err)
	}
	return fmt.Sprintf("%s: fetch %s: %v", e.Source, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// statusError is returned by sources for a non-200 response.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d, body: %s", e.StatusCode, e.Body)
}

// IsSkip reports whether err is a per-symbol condition rather than a cycle failure.
func IsSkip(err error) bool {
	var fe *FetchError
	return errors.Is(err, ErrInsufficientHistory) || errors.Is(err, ErrPennyStock) || errors.As(err, &fe)
}
