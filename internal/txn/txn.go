// Package txn defines the transaction contract the dispatcher executes.
//
// A transaction is opaque to the dispatcher: it exposes an asynchronous
// Execute operation, callable at most once per dispatch, and a Describe
// projection used for events, logging, and state display. The dispatcher
// never inspects anything else.
package txn

import (
	"context"
	"encoding/json"
)

// Transaction is one unit of work.
type Transaction interface {
	// Execute runs the transaction. It is called at most once per dispatch
	// and must return either a result or an error.
	Execute(ctx context.Context) (any, error)

	// Describe returns an opaque JSON projection of the transaction for
	// observability. It must not reveal execution state.
	Describe() json.RawMessage
}

// Func adapts a plain function into a Transaction.
type Func struct {
	Name string
	Run  func(ctx context.Context) (any, error)
}

func (f Func) Execute(ctx context.Context) (any, error) {
	return f.Run(ctx)
}

func (f Func) Describe() json.RawMessage {
	b, _ := json.Marshal(struct {
		Type string `json:"type"`
		Name string `json:"name,omitempty"`
	}{Type: "func", Name: f.Name})
	return b
}
