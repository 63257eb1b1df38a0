package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/soyeahso/sprout/internal/agent"
	"github.com/soyeahso/sprout/internal/logging"
)

// CheckpointStore is a durable agent.Checkpointer. The message state is
// stored as gzip-compressed JSON.
type CheckpointStore struct {
	db  *DB
	log *logging.Logger
}

var _ agent.Checkpointer = (*CheckpointStore)(nil)

// NewCheckpointStore creates a checkpoint store backed by the given database.
func NewCheckpointStore(db *DB, log *logging.Logger) *CheckpointStore {
	return &CheckpointStore{db: db, log: log.Sub("checkpoint-store")}
}

// Get returns the checkpoint for a thread, or nil when none is stored.
func (s *CheckpointStore) Get(ctx context.Context, threadID string) (*agent.Checkpoint, error) {
	var (
		cp        agent.Checkpoint
		completed int
		state     []byte
		updated   int64
	)
	err := s.db.sql.QueryRowContext(ctx, `
		SELECT thread_id, next_node, step, turn_start, completed, state_gz, updated_at
		FROM checkpoints WHERE thread_id = ?`, threadID,
	).Scan(&cp.ThreadID, &cp.Next, &cp.Step, &cp.TurnStart, &completed, &state, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting checkpoint: %w", err)
	}

	raw, err := gunzip(state)
	if err != nil {
		return nil, fmt.Errorf("decompressing checkpoint %s: %w", threadID, err)
	}
	if err := json.Unmarshal(raw, &cp.Messages); err != nil {
		return nil, fmt.Errorf("decoding checkpoint %s: %w", threadID, err)
	}
	cp.Completed = completed != 0
	cp.UpdatedAt = fromMillis(updated)
	return &cp, nil
}

// Put replaces the checkpoint for cp.ThreadID. A busy or locked database
// is retried once.
func (s *CheckpointStore) Put(ctx context.Context, cp agent.Checkpoint) error {
	raw, err := json.Marshal(cp.Messages)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	state, err := gzipBytes(raw)
	if err != nil {
		return fmt.Errorf("compressing checkpoint: %w", err)
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}

	write := func() error {
		_, err := s.db.sql.ExecContext(ctx, `
			INSERT INTO checkpoints (thread_id, next_node, step, turn_start, completed, state_gz, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(thread_id) DO UPDATE SET
				next_node = excluded.next_node,
				step = excluded.step,
				turn_start = excluded.turn_start,
				completed = excluded.completed,
				state_gz = excluded.state_gz,
				updated_at = excluded.updated_at`,
			cp.ThreadID, cp.Next, cp.Step, cp.TurnStart, boolInt(cp.Completed), state, toMillis(cp.UpdatedAt),
		)
		return err
	}

	err = write()
	if IsConflictError(err) {
		s.log.Debug().Str("threadId", cp.ThreadID).Msg("checkpoint write conflicted, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
		err = write()
	}
	if err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// Delete removes a thread's checkpoint. Missing checkpoints are not an error.
func (s *CheckpointStore) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.sql.ExecContext(ctx, "DELETE FROM checkpoints WHERE thread_id = ?", threadID); err != nil {
		return fmt.Errorf("deleting checkpoint: %w", err)
	}
	return nil
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzip(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
