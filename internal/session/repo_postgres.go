package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pharmacy-voice-agent/internal/classifier"
)

// PostgresRepo persists call sessions keyed by the provider call id.
// Request, recording and verdict are stored as JSONB; there is no foreign
// key to destinations, so dangling destination_id values are tolerated.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// EnsureSchema creates the call_sessions table if it does not exist.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS call_sessions (
    seq             BIGSERIAL,
    id              TEXT PRIMARY KEY,
    destination_id  TEXT NOT NULL,
    request         JSONB NOT NULL,
    state           TEXT NOT NULL,
    recording       JSONB,
    transcript      TEXT NOT NULL DEFAULT '',
    verdict         JSONB,
    created_at      TIMESTAMPTZ NOT NULL,
    last_updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS call_sessions_state_idx ON call_sessions (state)
`
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("session: ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Create(ctx context.Context, s CallSession) error {
	req, rec, ver, err := encodeSessionJSON(s)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO call_sessions (id, destination_id, request, state, recording, transcript, verdict, created_at, last_updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	_, err = r.db.ExecContext(ctx, q,
		s.ID, s.DestinationID, req, string(s.State), rec, s.Transcript, ver, s.CreatedAt, s.LastUpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Save(ctx context.Context, s CallSession) error {
	req, rec, ver, err := encodeSessionJSON(s)
	if err != nil {
		return err
	}
	const q = `
UPDATE call_sessions
SET destination_id = $2, request = $3, state = $4, recording = $5, transcript = $6, verdict = $7, last_updated_at = $8
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		s.ID, s.DestinationID, req, string(s.State), rec, s.Transcript, ver, s.LastUpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (CallSession, error) {
	const q = selectSessions + ` WHERE id = $1`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallSession{}, ErrNotFound
		}
		return CallSession{}, err
	}
	return s, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]CallSession, error) {
	return r.query(ctx, selectSessions+` ORDER BY seq`)
}

func (r *PostgresRepo) ListByState(ctx context.Context, state State) ([]CallSession, error) {
	return r.query(ctx, selectSessions+` WHERE state = $1 ORDER BY seq`, string(state))
}

func (r *PostgresRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	const q = `DELETE FROM call_sessions WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

const selectSessions = `
SELECT id, destination_id, request, state, recording, transcript, verdict, created_at, last_updated_at
FROM call_sessions`

func (r *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]CallSession, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (CallSession, error) {
	var s CallSession
	var state string
	var req []byte
	var rec, ver sql.NullString
	if err := row.Scan(
		&s.ID,
		&s.DestinationID,
		&req,
		&state,
		&rec,
		&s.Transcript,
		&ver,
		&s.CreatedAt,
		&s.LastUpdatedAt,
	); err != nil {
		return CallSession{}, err
	}
	s.State = State(state)
	if err := json.Unmarshal(req, &s.Request); err != nil {
		return CallSession{}, fmt.Errorf("session: decode request for %s: %w", s.ID, err)
	}
	if rec.Valid && rec.String != "" {
		var r Recording
		if err := json.Unmarshal([]byte(rec.String), &r); err != nil {
			return CallSession{}, fmt.Errorf("session: decode recording for %s: %w", s.ID, err)
		}
		s.Recording = &r
	}
	if ver.Valid && ver.String != "" {
		var v classifier.Verdict
		if err := json.Unmarshal([]byte(ver.String), &v); err != nil {
			return CallSession{}, fmt.Errorf("session: decode verdict for %s: %w", s.ID, err)
		}
		s.Verdict = &v
	}
	return s, nil
}

func encodeSessionJSON(s CallSession) (req []byte, rec, ver any, err error) {
	req, err = json.Marshal(s.Request)
	if err != nil {
		return nil, nil, nil, err
	}
	if s.Recording != nil {
		b, err := json.Marshal(s.Recording)
		if err != nil {
			return nil, nil, nil, err
		}
		rec = string(b)
	}
	if s.Verdict != nil {
		b, err := json.Marshal(s.Verdict)
		if err != nil {
			return nil, nil, nil, err
		}
		ver = string(b)
	}
	return req, rec, ver, nil
}
