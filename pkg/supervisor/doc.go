// Package supervisor owns the lifecycle of every managed device's upstream
// session, local listener, and queue processor, and publishes a
// human-readable status map the external admin UI reads.
//
// StartAll fans out device startup with golang.org/x/sync/errgroup, one
// goroutine per enabled device, mirroring the teacher's one-manager-per-
// connection concurrency model (pkg/connection.Manager is likewise one
// instance per connection, each with its own goroutines).
package supervisor
