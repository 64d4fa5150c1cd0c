// Package queue implements the durable command queue: commands that could
// not be run inline against a device's upstream session (because it was
// disconnected, or the attempt failed transiently) are persisted to SQLite
// and replayed by a background processor once the session is live again.
//
// The store is grounded on the teacher's SQLite persistence layer
// (cmd/mash-web/api/store.go): same database/sql + mattn/go-sqlite3
// pairing, same migrate-on-open pattern, same sql.NullString/NullTime
// scanning idiom. SQLite has no cross-process row-level locking, so
// claiming a batch of rows for processing uses a BEGIN IMMEDIATE
// transaction to serialize claims instead.
package queue
