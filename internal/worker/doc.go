// Package worker implements the client side of the worker event protocol:
// polling the runtime for nodes about to execute, claiming them, and pushing
// computed results back with causal ordering information.
//
// Each event moves through
//
//	Idle -> Notified -> Acknowledged -> Responded -> Idle
//
// and is keyed by its (branch, counter) pair. A Session drives one file;
// a Worker runs the loop and dispatches claimed events to handlers.
//
// An event left Acknowledged because the process stopped before responding
// is not recovered here. Requeueing is the runtime's responsibility.
package worker
