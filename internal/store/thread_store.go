package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/logging"
)

// ThreadStore persists chat threads and their user/assistant messages.
type ThreadStore struct {
	db  *DB
	log *logging.Logger
}

// NewThreadStore creates a thread store backed by the given database.
func NewThreadStore(db *DB, log *logging.Logger) *ThreadStore {
	return &ThreadStore{db: db, log: log.Sub("thread-store")}
}

// Create inserts a new thread. Messages on t are stored as its initial history.
func (s *ThreadStore) Create(ctx context.Context, t domain.Thread) error {
	err := s.db.inTx(ctx, "create thread", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO threads (id, owner_id, title, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			t.ID, t.OwnerID, t.Title, toMillis(t.CreatedAt), toMillis(t.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting thread: %w", err)
		}
		return insertMessages(ctx, tx, t.ID, t.Messages)
	})
	if err != nil {
		return err
	}

	s.log.Debug().Str("threadId", t.ID).Str("owner", t.OwnerID).Msg("thread created")
	return nil
}

// Get returns the thread with its full message history, or
// domain.ErrThreadNotFound.
func (s *ThreadStore) Get(ctx context.Context, id string) (*domain.Thread, error) {
	var t domain.Thread
	var created, updated int64
	err := s.db.sql.QueryRowContext(ctx, `
		SELECT id, owner_id, title, created_at, updated_at
		FROM threads WHERE id = ?`, id,
	).Scan(&t.ID, &t.OwnerID, &t.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread: %w", err)
	}
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)

	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT role, content, timestamp
		FROM thread_messages WHERE thread_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting thread messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Message
		var ts int64
		if err := rows.Scan(&m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scanning thread message: %w", err)
		}
		m.Timestamp = fromMillis(ts)
		t.Messages = append(t.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thread messages: %w", err)
	}
	return &t, nil
}

// AppendMessages adds messages to a thread and bumps its updated time.
func (s *ThreadStore) AppendMessages(ctx context.Context, id string, msgs []domain.Message, updatedAt time.Time) error {
	return s.db.inTx(ctx, "append messages", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE threads SET updated_at = ? WHERE id = ?", toMillis(updatedAt), id)
		if err != nil {
			return fmt.Errorf("touching thread: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrThreadNotFound
		}
		return insertMessages(ctx, tx, id, msgs)
	})
}

// ListByOwner returns summaries of the owner's threads, most recently
// updated first.
func (s *ThreadStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.ThreadSummary, error) {
	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM threads WHERE owner_id = ?
		ORDER BY updated_at DESC, created_at DESC`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	var out []domain.ThreadSummary
	for rows.Next() {
		var ts domain.ThreadSummary
		var created, updated int64
		if err := rows.Scan(&ts.ID, &ts.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		ts.CreatedAt = fromMillis(created)
		ts.UpdatedAt = fromMillis(updated)
		out = append(out, ts)
	}
	return out, rows.Err()
}

// Delete removes a thread and its messages. Deleting a missing thread
// returns domain.ErrThreadNotFound.
func (s *ThreadStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.sql.ExecContext(ctx, "DELETE FROM threads WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrThreadNotFound
	}
	s.log.Debug().Str("threadId", id).Msg("thread deleted")
	return nil
}

func insertMessages(ctx context.Context, tx *sql.Tx, threadID string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO thread_messages (thread_id, role, content, timestamp)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing message insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		if _, err := stmt.ExecContext(ctx, threadID, m.Role, m.Content, toMillis(m.Timestamp)); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
