package sink

import (
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/optrace/record"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS operations (
	seq        INTEGER PRIMARY KEY,
	token      TEXT NOT NULL,
	tab_type   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS triggers (
	seq     INTEGER PRIMARY KEY REFERENCES operations(seq),
	payload TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS mutation_batches (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	seq       INTEGER NOT NULL REFERENCES operations(seq),
	timestamp INTEGER NOT NULL,
	max_level INTEGER NOT NULL,
	changes   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mutation_batches_seq ON mutation_batches(seq);
CREATE TABLE IF NOT EXISTS network_records (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	seq        INTEGER NOT NULL REFERENCES operations(seq),
	type       TEXT NOT NULL,
	request_id TEXT NOT NULL,
	url        TEXT,
	method     TEXT,
	status     INTEGER,
	mime_type  TEXT,
	frame_id   TEXT,
	timestamp  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_network_records_seq ON network_records(seq);
CREATE TABLE IF NOT EXISTS snapshots (
	seq       INTEGER PRIMARY KEY REFERENCES operations(seq),
	html      BLOB NOT NULL,
	html_hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS screenshots (
	seq     INTEGER NOT NULL REFERENCES operations(seq),
	phase   TEXT NOT NULL,
	png     BLOB NOT NULL,
	locator TEXT NOT NULL,
	PRIMARY KEY (seq, phase)
);
`

// SQLite persists the trace in a single SQLite database, one row per
// record. Suited for sessions that are queried afterwards rather than
// tailed as files.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and applies
// the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sink: open sqlite %s: %w", path, err)
	}
	// Single writer: the tracer is the only process touching this file.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) CreateOperation(seq uint64, tabType string, kind record.Kind) (OperationSink, error) {
	_, err := s.db.Exec(
		`INSERT INTO operations (seq, token, tab_type, kind, created_at) VALUES (?,?,?,?,?)`,
		seq, Token(seq, kind), tabType, string(kind), time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("sink: insert operation %d: %w", seq, err)
	}
	return &sqliteOperation{db: s.db, seq: seq}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// DB exposes the underlying handle for read-side consumers.
func (s *SQLite) DB() *sql.DB { return s.db }

type sqliteOperation struct {
	db  *sql.DB
	seq uint64
}

func (o *sqliteOperation) WriteTrigger(t record.Trigger) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("sink: marshal trigger: %w", err)
	}
	_, err = o.db.Exec(`INSERT OR REPLACE INTO triggers (seq, payload) VALUES (?,?)`, o.seq, string(payload))
	if err != nil {
		return fmt.Errorf("sink: write trigger: %w", err)
	}
	return nil
}

func (o *sqliteOperation) AppendMutationBatch(b record.MutationBatch) error {
	changes, err := json.Marshal(b.Changes)
	if err != nil {
		return fmt.Errorf("sink: marshal changes: %w", err)
	}
	_, err = o.db.Exec(
		`INSERT INTO mutation_batches (seq, timestamp, max_level, changes) VALUES (?,?,?,?)`,
		o.seq, b.Timestamp, b.MaxLevel, string(changes))
	if err != nil {
		return fmt.Errorf("sink: append mutation batch: %w", err)
	}
	return nil
}

func (o *sqliteOperation) AppendNetworkRecord(r record.NetworkRecord) error {
	_, err := o.db.Exec(
		`INSERT INTO network_records (seq, type, request_id, url, method, status, mime_type, frame_id, timestamp)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		o.seq, string(r.Type), r.RequestID, r.URL, r.Method, r.Status, r.MimeType, r.FrameID, r.Timestamp)
	if err != nil {
		return fmt.Errorf("sink: append network record: %w", err)
	}
	return nil
}

func (o *sqliteOperation) WriteSnapshot(html []byte) error {
	hash := fmt.Sprintf("%x", sha256.Sum256(html))
	_, err := o.db.Exec(`INSERT OR REPLACE INTO snapshots (seq, html, html_hash) VALUES (?,?,?)`,
		o.seq, html, hash)
	if err != nil {
		return fmt.Errorf("sink: write snapshot: %w", err)
	}
	return nil
}

func (o *sqliteOperation) WriteScreenshot(phase string, png []byte) (string, error) {
	locator := fmt.Sprintf("screenshots/%d/%s", o.seq, phase)
	_, err := o.db.Exec(`INSERT OR REPLACE INTO screenshots (seq, phase, png, locator) VALUES (?,?,?,?)`,
		o.seq, phase, png, locator)
	if err != nil {
		return "", fmt.Errorf("sink: write screenshot: %w", err)
	}
	return locator, nil
}
