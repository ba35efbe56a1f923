package shield

import (
	"errors"
	"fmt"

	"github.com/madetocreate/ai-shield/internal/scanner"
)

// ErrBlocked matches any BlockedError with errors.Is.
var ErrBlocked = errors.New("shield: request blocked")

// BlockedError carries the result of a blocked scan for callers that prefer
// error-style control flow at their boundary.
type BlockedError struct {
	Result scanner.ScanResult
}

func (e *BlockedError) Error() string {
	if len(e.Result.Violations) == 0 {
		return ErrBlocked.Error()
	}
	v := e.Result.Violations[0]
	return fmt.Sprintf("%s: %s (%d violations)", ErrBlocked, v.Type, len(e.Result.Violations))
}

func (e *BlockedError) Unwrap() error { return ErrBlocked }

// AsError returns a *BlockedError when res is a block and nil otherwise.
func AsError(res scanner.ScanResult) error {
	if res.Decision != scanner.DecisionBlock {
		return nil
	}
	return &BlockedError{Result: res}
}
