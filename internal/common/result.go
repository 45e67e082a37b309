package common

import (
	"errors"
	"fmt"
	"strings"
)

// BatchResult reports the outcome of a batch where every item is applied
// independently. A failing item adds a message to Errors and does not stop
// the remaining items.
type BatchResult struct {
	Success   bool
	Processed int
	Errors    []string
}

// NewBatchResult returns an empty, successful result.
func NewBatchResult() BatchResult {
	return BatchResult{Success: true}
}

// Fail records a failed item.
func (r *BatchResult) Fail(format string, args ...any) {
	r.Success = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Done records a successfully applied item.
func (r *BatchResult) Done() {
	r.Processed++
}

// Err folds the recorded failures into one error, nil on success.
func (r BatchResult) Err() error {
	if r.Success {
		return nil
	}
	return errors.New(strings.Join(r.Errors, "; "))
}
