package storage

import (
	"database/sql"
	"fmt"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Begin() (*sql.Tx, error)
	Close() error
}

type Store struct{ db DB }

// OpenSQLite opens the database with a single connection so writes from the
// webhook goroutines and cron jobs are serialized.
func OpenSQLite(dsn string) (DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func InitSchema(db DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages(
			chat_id INTEGER, user_id INTEGER, text TEXT, ts INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS sessions(
			chat_id    INTEGER PRIMARY KEY,
			stage      INTEGER NOT NULL DEFAULT 0,
			answers    TEXT NOT NULL DEFAULT '[]',
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS nav_cache(
			code       TEXT PRIMARY KEY,
			body       BLOB NOT NULL,
			fetched_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS schemes(
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schemes_name ON schemes(name)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func NewStore(db DB) *Store { return &Store{db: db} }

func (s *Store) SaveMessage(chatID, userID int64, text string, ts int64) error {
	_, err := s.db.Exec(`INSERT INTO messages(chat_id,user_id,text,ts) VALUES(?,?,?,?)`,
		chatID, userID, text, ts)
	return err
}

func (s *Store) FetchMessages(chatID int64, since int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT text FROM messages WHERE chat_id=? AND ts>=? ORDER BY ts ASC`,
		chatID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err == nil && t != "" {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}
