package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mfGuruBot/internal/finance"
)

// GetNAV returns a cached mfapi payload younger than maxAge.
func (s *Store) GetNAV(code string, maxAge time.Duration) ([]byte, bool, error) {
	var (
		body    []byte
		fetched int64
	)
	err := s.db.QueryRow(`SELECT body, fetched_at FROM nav_cache WHERE code=?`, code).Scan(&body, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get nav %s: %w", code, err)
	}
	if time.Since(time.Unix(fetched, 0)) > maxAge {
		return nil, false, nil
	}
	return body, true, nil
}

// PutNAV stores a raw mfapi payload.
func (s *Store) PutNAV(code string, body []byte) error {
	_, err := s.db.Exec(`INSERT INTO nav_cache(code, body, fetched_at) VALUES(?,?,?)
		ON CONFLICT(code) DO UPDATE SET body=excluded.body, fetched_at=excluded.fetched_at`,
		code, body, time.Now().Unix())
	return err
}

// PurgeNAV deletes cache rows fetched before the cutoff.
func (s *Store) PurgeNAV(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM nav_cache WHERE fetched_at < ?`, before.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReplaceSchemes swaps the scheme catalogue in a single transaction.
func (s *Store) ReplaceSchemes(schemes []finance.Scheme) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM schemes`); err != nil {
		return fmt.Errorf("clear schemes: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO schemes(code, name) VALUES(?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, sc := range schemes {
		if _, err := stmt.Exec(sc.Code, sc.Name); err != nil {
			return fmt.Errorf("insert scheme %s: %w", sc.Code, err)
		}
	}
	return tx.Commit()
}

// SchemeName looks up a scheme's catalogue name.
func (s *Store) SchemeName(code string) (string, bool, error) {
	var name string
	err := s.db.QueryRow(`SELECT name FROM schemes WHERE code=?`, code).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

// SearchSchemes matches every whitespace-separated term against scheme names.
func (s *Store) SearchSchemes(query string, limit int) ([]finance.Scheme, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	where := make([]string, len(terms))
	args := make([]any, 0, len(terms)+1)
	for i, t := range terms {
		where[i] = "LOWER(name) LIKE ?"
		args = append(args, "%"+t+"%")
	}
	args = append(args, limit)
	rows, err := s.db.Query(`SELECT code, name FROM schemes WHERE `+strings.Join(where, " AND ")+` ORDER BY name LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []finance.Scheme
	for rows.Next() {
		var sc finance.Scheme
		if err := rows.Scan(&sc.Code, &sc.Name); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// CountSchemes returns the catalogue size.
func (s *Store) CountSchemes() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM schemes`).Scan(&n)
	return n, err
}
