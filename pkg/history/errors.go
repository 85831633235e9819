package history

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by a KV when the key does not exist.
var ErrNotFound = errors.New("history: key not found")

// PersistenceError reports a failed read or write against a backend.
type PersistenceError struct {
	Op      string
	Backend string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history %s (%s): %v", e.Op, e.Backend, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
