package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies failures synthesized by the dispatcher itself.
// Payload-raised execution errors are passed through unchanged and carry no
// kind.
type ErrorKind string

const (
	// KindForbidden: submission attempted while intake is closed.
	KindForbidden ErrorKind = "forbidden"
	// KindTimeout: item aged past the item timeout while still queued.
	KindTimeout ErrorKind = "timeout"
	// KindAborted: item removed by abort, flush, or shutdown while queued.
	KindAborted ErrorKind = "aborted"
)

// Error is a structured dispatcher failure. Eviction and abort are terminal
// for the item; nothing is retried automatically.
type Error struct {
	Kind        ErrorKind `json:"kind"`
	Description string    `json:"description"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

func errForbidden() *Error {
	return &Error{Kind: KindForbidden, Description: "dispatcher is not accepting new transactions"}
}

func errTimeout(maxAge time.Duration) *Error {
	return &Error{Kind: KindTimeout, Description: fmt.Sprintf("transaction expired after waiting more than %v in queue", maxAge)}
}

func errAborted() *Error {
	return &Error{Kind: KindAborted, Description: "transaction aborted before execution"}
}

// IsKind reports whether err is a dispatcher Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
