// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: journal.go — SQLite journal of delivered mailbox traffic
//
// Purpose:
//   - Records every payload a side's handler received, keyed by session and
//     sequence, so a run can be audited after the fact.
//
// Notes:
//   - One journal is shared by both side goroutines; seq and the insert are
//     serialized by a mutex and the pool is limited to one connection.
//   - SenderTag is stored as its int64 bit pattern; SQLite has no unsigned
//     64-bit integer.
// ─────────────────────────────────────────────────────────────────────────────

package journal

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"mailbox/image"
	"mailbox/types"
)

// Kinds of journal entries.
const (
	KindRequest  = "request"
	KindResponse = "response"
)

// Entry is one journalled payload.
type Entry struct {
	Seq     uint64
	Side    string
	Kind    string
	Digest  string
	Payload types.Payload
}

// Journal appends payloads to a SQLite database.
type Journal struct {
	db *sql.DB

	mu      sync.Mutex
	session uuid.UUID
	seq     uint64

	insertSessionStmt *sql.Stmt
	insertMessageStmt *sql.Stmt
}

// Open creates or opens the journal at path and starts a new session.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db}
	if err := j.configure(); err != nil {
		db.Close()
		return nil, err
	}
	if err := j.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := j.prepareStatements(); err != nil {
		j.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	if _, err := j.NewSession(); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := j.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

func (j *Journal) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		session_id  TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		side        TEXT NOT NULL,
		kind        TEXT NOT NULL,
		service_id  INTEGER NOT NULL,
		command_id  INTEGER NOT NULL,
		sender_tag  INTEGER NOT NULL,
		digest      TEXT NOT NULL,
		payload     BLOB NOT NULL,
		recorded_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_side ON messages(session_id, side);`

	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

func (j *Journal) prepareStatements() error {
	var err error
	j.insertSessionStmt, err = j.db.Prepare(`
		INSERT INTO sessions (id, started_at) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	j.insertMessageStmt, err = j.db.Prepare(`
		INSERT INTO messages
		(session_id, seq, side, kind, service_id, command_id, sender_tag, digest, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	return err
}

// NewSession starts numbering entries under a fresh session id. The
// simulator calls it after every mailbox reset.
func (j *Journal) NewSession() (uuid.UUID, error) {
	id := uuid.New()

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.insertSessionStmt.Exec(id.String(), time.Now().UnixNano()); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert session: %w", err)
	}
	j.session = id
	j.seq = 0
	return id, nil
}

// Session returns the current session id.
func (j *Journal) Session() uuid.UUID {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.session
}

// Record appends p as received by side.
func (j *Journal) Record(side image.Side, kind string, p types.Payload) error {
	raw := p.Bytes()
	digest := p.Digest()

	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	_, err := j.insertMessageStmt.Exec(
		j.session.String(), j.seq, side.String(), kind,
		p.ServiceID, p.CommandID, int64(p.SenderTag),
		hex.EncodeToString(digest[:]), raw[:], time.Now().UnixNano(),
	)
	if err != nil {
		j.seq--
		return fmt.Errorf("failed to record %s %s: %w", side, kind, err)
	}
	return nil
}

// Count returns the number of entries recorded under session.
func (j *Journal) Count(session uuid.UUID) (int, error) {
	var n int
	err := j.db.QueryRow("SELECT COUNT(*) FROM messages WHERE session_id = ?", session.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

// Messages returns the entries of session in sequence order.
func (j *Journal) Messages(session uuid.UUID) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT seq, side, kind, digest, payload
		FROM messages
		WHERE session_id = ?
		ORDER BY seq`, session.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var raw []byte
		if err := rows.Scan(&e.Seq, &e.Side, &e.Kind, &e.Digest, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		e.Payload = types.Decode(raw)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal iteration error: %w", err)
	}
	return entries, nil
}

// Close releases statements and the database.
func (j *Journal) Close() error {
	if j.insertSessionStmt != nil {
		j.insertSessionStmt.Close()
	}
	if j.insertMessageStmt != nil {
		j.insertMessageStmt.Close()
	}
	return j.db.Close()
}
