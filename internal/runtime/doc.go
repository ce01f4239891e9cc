/*
Package runtime is the client for the execution runtime: the service that
owns graph state, executes nodes, and hands work for custom nodes to
external workers.

The runtime is reached over gRPC. Messages are JSON encoded (the "json"
content-subtype) and may optionally be zstd compressed. A Client is safe for
concurrent use; all calls share one connection.

Construction never touches the network. Start launches the runtime when a
Launcher is configured and then waits, on a fixed interval, until the
runtime accepts connections. Failures after startup are returned to the
caller as *RuntimeError and are never retried.
*/
package runtime
