// Package dispatch implements the sequential transaction dispatcher.
//
// The dispatcher accepts asynchronous transactions, holds them in a FIFO
// queue, and guarantees that at most one executes at any instant, in
// submission order. A self-rescheduling sweep evicts items that age out of
// the queue before they get a turn.
//
// Key behaviors:
//   - Serial FIFO dispatch (one transaction at a time)
//   - Trampolined drain: each settlement claims the next head without
//     recursion, so long backlogs never grow the stack
//   - Timeout sweep: every poll interval, all items older than the item
//     timeout are evicted as one batch and failed with a timeout error
//   - Cancellation is advisory-at-boundary: Abort, AbortAll, and Shutdown
//     only remove items still waiting in queue, never the one in flight
//   - Every settlement path fires exactly one completion callback and one
//     success/error event
//
// State model:
//   - Open gates intake: submissions while closed fail with a forbidden
//     error and are never enqueued
//   - Stopped pauses dequeues: the queue keeps filling, nothing starts
//     executing until resumed
//   - Busy is derived from the executing slot, which is either empty or
//     holds exactly one item
//
// Shutdown closes intake, aborts everything still queued, and stops the
// sweep. It is idempotent; re-opening a shut-down dispatcher is undefined.
package dispatch
