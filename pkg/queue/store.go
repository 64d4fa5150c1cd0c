package queue

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store provides SQLite-backed persistence for the durable command queue.
type Store struct {
	dbPath string
	db     *sql.DB
}

// NewStore opens (and migrates) the queue database at dbPath. Use
// ":memory:" for an ephemeral, process-local queue.
//
// The DSN carries _txlock=immediate so that every sql.Tx (including the one
// ClaimBatch uses) opens with SQLite's BEGIN IMMEDIATE rather than the
// driver's default deferred BEGIN, which is what makes claims safe across
// concurrent writers.
func NewStore(dbPath string) (*Store, error) {
	dsn := dbPath + "?_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("queue: open database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: configure database: %w", err)
	}

	s := &Store{dbPath: dbPath, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL,
		sentence BLOB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_commands_device_status
		ON commands(device_id, status, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reconnect closes and reopens the underlying database connection pool,
// used by the admin reconnect_db operation to recover from a durable-store
// outage without restarting the process.
func (s *Store) Reconnect() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("queue: reconnect close: %w", err)
	}
	dsn := s.dbPath + "?_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("queue: reconnect open: %w", err)
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return fmt.Errorf("queue: reconnect configure: %w", err)
	}
	s.db = db
	if err := s.migrate(); err != nil {
		return fmt.Errorf("queue: reconnect migrate: %w", err)
	}
	return nil
}

// Enqueue persists a new pending command for deviceID.
func (s *Store) Enqueue(deviceID int64, sentence []byte) (int64, error) {
	now := time.Now()
	res, err := s.db.Exec(`
		INSERT INTO commands (device_id, sentence, status, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`, deviceID, sentence, StatusPending, now, now)
	if err != nil {
		return 0, fmt.Errorf("queue: enqueue: %w", err)
	}
	return res.LastInsertId()
}

// ClaimBatch atomically selects up to limit claimable commands for a device
// (status pending or failed-awaiting-retry, retry_count below MaxRetries,
// oldest first so per-device FIFO order is preserved) and marks them
// processing, returning them to the caller. SQLite's driver-level mutex
// already serializes writers within this process, but the store opens its
// connection with _txlock=immediate so the same claim logic stays correct
// if this database file is ever shared across processes.
func (s *Store) ClaimBatch(deviceID int64, limit int) ([]Command, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("queue: begin claim: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, device_id, sentence, status, retry_count, last_error, created_at, updated_at
		FROM commands
		WHERE device_id = ? AND status IN (?, ?) AND retry_count < ?
		ORDER BY id ASC
		LIMIT ?
	`, deviceID, StatusPending, StatusFailed, MaxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("queue: claim select: %w", err)
	}

	var claimed []Command
	for rows.Next() {
		var c Command
		var lastError sql.NullString
		if err := rows.Scan(&c.ID, &c.DeviceID, &c.Sentence, &c.Status, &c.RetryCount, &lastError, &c.CreatedAt, &c.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("queue: claim scan: %w", err)
		}
		c.LastError = lastError.String
		claimed = append(claimed, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	now := time.Now()
	for _, c := range claimed {
		if _, err := tx.Exec(`UPDATE commands SET status = ?, updated_at = ? WHERE id = ?`, StatusProcessing, now, c.ID); err != nil {
			return nil, fmt.Errorf("queue: claim mark processing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("queue: claim commit: %w", err)
	}

	for i := range claimed {
		claimed[i].Status = StatusProcessing
	}
	return claimed, nil
}

// Complete deletes a successfully delivered command. Completion has no
// terminal status of its own: absence of the row IS the terminal state.
func (s *Store) Complete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM commands WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("queue: complete: %w", err)
	}
	return nil
}

// Fail records a failed delivery attempt. If final is true (the device
// logically refused the command, or retry_count has now reached
// MaxRetries), the row is deleted; otherwise its retry_count is
// incremented, last_error recorded, and status reset to StatusFailed so a
// later ClaimBatch can pick it back up.
func (s *Store) Fail(id int64, cause error, final bool) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	if final {
		res, err := s.db.Exec(`DELETE FROM commands WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("queue: fail (final) delete: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ErrNotFound
		}
		return nil
	}

	res, err := s.db.Exec(`
		UPDATE commands
		SET status = ?, retry_count = retry_count + 1, last_error = ?, updated_at = ?
		WHERE id = ?
	`, StatusFailed, msg, time.Now(), id)
	if err != nil {
		return fmt.Errorf("queue: fail update: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Reset reverts every command for a device stuck in StatusProcessing back
// to StatusPending. The processor's idle guard calls it to hand back a
// batch it claimed while the device still had recent client activity. This
// can reorder a device's queue relative to strict FIFO, which spec.md accepts.
func (s *Store) Reset(deviceID int64) error {
	_, err := s.db.Exec(`
		UPDATE commands SET status = ?, updated_at = ? WHERE device_id = ? AND status = ?
	`, StatusPending, time.Now(), deviceID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("queue: reset: %w", err)
	}
	return nil
}

// ClearAll deletes every queued command for a device, regardless of status.
func (s *Store) ClearAll(deviceID int64) error {
	_, err := s.db.Exec(`DELETE FROM commands WHERE device_id = ?`, deviceID)
	if err != nil {
		return fmt.Errorf("queue: clear: %w", err)
	}
	return nil
}

// ClearEverything deletes every queued command across every device, used
// by the admin clear_queue operation.
func (s *Store) ClearEverything() error {
	_, err := s.db.Exec(`DELETE FROM commands`)
	if err != nil {
		return fmt.Errorf("queue: clear everything: %w", err)
	}
	return nil
}

// ListAll returns every queued command across every device, newest first,
// paginated, for the admin list_queue operation. page is 1-indexed.
func (s *Store) ListAll(page, perPage int) ([]Command, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM commands`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("queue: list all count: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT id, device_id, sentence, status, retry_count, last_error, created_at, updated_at
		FROM commands ORDER BY id DESC LIMIT ? OFFSET ?
	`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("queue: list all: %w", err)
	}
	defer rows.Close()

	var out []Command
	for rows.Next() {
		var c Command
		var lastError sql.NullString
		if err := rows.Scan(&c.ID, &c.DeviceID, &c.Sentence, &c.Status, &c.RetryCount, &lastError, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("queue: list all scan: %w", err)
		}
		c.LastError = lastError.String
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// List returns every command queued for a device, most recent first, for
// the admin API's inspection surface.
func (s *Store) List(deviceID int64) ([]Command, error) {
	rows, err := s.db.Query(`
		SELECT id, device_id, sentence, status, retry_count, last_error, created_at, updated_at
		FROM commands WHERE device_id = ? ORDER BY id DESC
	`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("queue: list: %w", err)
	}
	defer rows.Close()

	var out []Command
	for rows.Next() {
		var c Command
		var lastError sql.NullString
		if err := rows.Scan(&c.ID, &c.DeviceID, &c.Sentence, &c.Status, &c.RetryCount, &lastError, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("queue: list scan: %w", err)
		}
		c.LastError = lastError.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// PendingCount returns the number of pending-or-processing-or-failed
// (awaiting retry) commands for a device, used by the admin API's
// QueueDepth.
func (s *Store) PendingCount(deviceID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM commands WHERE device_id = ? AND status IN (?, ?, ?)
	`, deviceID, StatusPending, StatusProcessing, StatusFailed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("queue: pending count: %w", err)
	}
	return count, nil
}
