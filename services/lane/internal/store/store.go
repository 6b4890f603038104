// Package store persists project fact logs in Postgres. The table is
// append-only: events are inserted once, never updated, and the (project,
// seq) primary key makes duplicate appends fail loudly.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"mainlane/pkg/drl"
)

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// Migrate creates the schema when missing. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lane_projects (
  project_id  text PRIMARY KEY,
  created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS drl_events (
  project_id   text NOT NULL REFERENCES lane_projects(project_id),
  seq          bigint NOT NULL,
  event_type   text NOT NULL,
  prev_hash    text NOT NULL,
  payload_hash text NOT NULL,
  event_hash   text NOT NULL,
  -- Stored as text: payload_hash covers the exact canonical bytes, and
  -- jsonb would re-serialize them.
  payload      text NOT NULL,
  appended_at  timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (project_id, seq)
);
`)
	return err
}

func (s *Store) CreateProject(ctx context.Context, projectID string) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO lane_projects(project_id) VALUES($1)`, projectID)
	return err
}

func (s *Store) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT project_id FROM lane_projects ORDER BY created_at ASC, project_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AppendEvent implements drl.Sink. The log calls it before committing to
// memory, so a failed insert leaves both sides unchanged.
func (s *Store) AppendEvent(ctx context.Context, e drl.Event) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO drl_events(project_id,seq,event_type,prev_hash,payload_hash,event_hash,payload)
VALUES($1,$2,$3,$4,$5,$6,$7)
`, e.ProjectID, int64(e.Seq), string(e.Type), e.PrevHash, e.PayloadHash, e.EventHash, string(e.Payload))
	if err != nil {
		return fmt.Errorf("append event seq %d for %s: %w", e.Seq, e.ProjectID, err)
	}
	return nil
}

// LoadEvents reads a project's full history in seq order.
func (s *Store) LoadEvents(ctx context.Context, projectID string) ([]drl.Event, error) {
	rows, err := s.DB.Query(ctx, `
SELECT seq,event_type,prev_hash,payload_hash,event_hash,payload
FROM drl_events
WHERE project_id=$1
ORDER BY seq ASC
`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []drl.Event
	for rows.Next() {
		var e drl.Event
		var seq int64
		var typ string
		var payload []byte
		if err := rows.Scan(&seq, &typ, &e.PrevHash, &e.PayloadHash, &e.EventHash, &payload); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.Type = drl.EventType(typ)
		e.ProjectID = projectID
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}
