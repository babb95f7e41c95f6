package kb

import (
	"errors"
	"fmt"
)

// ErrLoadFailure is matched by every error returned from a failed load.
var ErrLoadFailure = errors.New("knowledge base load failed")

var errEmptyGraph = errors.New("source contains no concepts")

// LoadError reports a graph source that could not be turned into a Store.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load knowledge base %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrLoadFailure) match any LoadError.
func (e *LoadError) Is(target error) bool { return target == ErrLoadFailure }
