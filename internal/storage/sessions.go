package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Session is the per-chat progress through the questionnaire. Answers holds the
// raw replies in question order.
type Session struct {
	ChatID    int64
	Stage     int
	Answers   []string
	UpdatedAt time.Time
}

// LoadSession returns the chat's session, or a fresh stage-0 session if none exists.
func (s *Store) LoadSession(chatID int64) (Session, error) {
	var (
		stage   int
		answers string
		updated int64
	)
	err := s.db.QueryRow(`SELECT stage, answers, updated_at FROM sessions WHERE chat_id=?`, chatID).
		Scan(&stage, &answers, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{ChatID: chatID}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session %d: %w", chatID, err)
	}
	sess := Session{ChatID: chatID, Stage: stage, UpdatedAt: time.Unix(updated, 0)}
	if err := json.Unmarshal([]byte(answers), &sess.Answers); err != nil {
		return Session{}, fmt.Errorf("decode session %d answers: %w", chatID, err)
	}
	return sess, nil
}

// SaveSession upserts the session and stamps UpdatedAt.
func (s *Store) SaveSession(sess Session) error {
	answers := sess.Answers
	if answers == nil {
		answers = []string{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode session answers: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO sessions(chat_id, stage, answers, updated_at) VALUES(?,?,?,?)
		ON CONFLICT(chat_id) DO UPDATE SET stage=excluded.stage, answers=excluded.answers, updated_at=excluded.updated_at`,
		sess.ChatID, sess.Stage, string(data), time.Now().Unix())
	return err
}

// ResetSession drops the chat's progress.
func (s *Store) ResetSession(chatID int64) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE chat_id=?`, chatID)
	return err
}

// PruneSessions deletes sessions untouched since before.
func (s *Store) PruneSessions(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE updated_at < ?`, before.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
