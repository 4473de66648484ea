// Package postgres provides a pgx-backed aggregate.TaskStore.
//
// The table shape follows ent/schema/task.go: a handful of well-known
// scalar columns (uuid, task_num, state, actual_runtime, first_started)
// plus an attributes JSONB column holding everything else the field
// policy table produces. The store is hand-written directly over pgx
// rather than through a generated Ent client, since the schema's dynamic
// attribute set doesn't fit a fixed generated field list. The Schema
// constant below is the DDL that migrations apply; ent/schema/task.go
// documents the same table shape.
package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "aggregatord.io/aggregator/internal/pkg/errors"

	"aggregatord.io/aggregator/internal/aggregate"
)

// knownColumns are the scalar fields stored in their own columns; every
// other key in a task record is folded into the attributes JSONB blob.
var knownColumns = map[string]struct{}{
	"uuid":           {},
	"task_num":       {},
	"state":          {},
	"actual_runtime": {},
	"first_started":  {},
}

// Store is a pgxpool-backed aggregate.TaskStore.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool as a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Schema is the DDL for the table this store expects. Callers run this
// (or an Atlas/ent-migrate equivalent derived from ent/schema/task.go)
// before using the store.
const Schema = `
CREATE TABLE IF NOT EXISTS tasks (
	uuid           TEXT PRIMARY KEY,
	task_num       INTEGER NOT NULL,
	state          TEXT,
	actual_runtime DOUBLE PRECISION,
	first_started  DOUBLE PRECISION,
	attributes     JSONB NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS tasks_state_idx ON tasks (state);
`

// Exists reports whether uuid has a stored task record.
func (s *Store) Exists(ctx context.Context, uuid string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE uuid = $1)`, uuid).Scan(&exists)
	return exists, err
}

// Get returns the task record for uuid.
func (s *Store) Get(ctx context.Context, uuid string) (aggregate.TaskRecord, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT uuid, task_num, state, actual_runtime, first_started, attributes FROM tasks WHERE uuid = $1`,
		uuid)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return task, true, nil
}

// Insert stores a new task record. uuid must not already exist.
func (s *Store) Insert(ctx context.Context, task aggregate.TaskRecord) (aggregate.TaskRecord, error) {
	uuid, _ := task["uuid"].(string)
	taskNum, _ := task["task_num"].(int)

	attrs, err := json.Marshal(attributesOf(task))
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tasks (uuid, task_num, state, actual_runtime, first_started, attributes) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid, taskNum, task["state"], task["actual_runtime"], task["first_started"], attrs)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) && pgErr.SQLState() == "23505" { // unique_violation
		return nil, apperrors.ErrTaskAlreadyExistsf(uuid)
	}
	if err != nil {
		return nil, err
	}

	stored, _, err := s.Get(ctx, uuid)
	return stored, err
}

// Update applies delta onto the row for uuid inside a transaction, so
// concurrent updates to the same task serialize on the row lock. uuid
// must already exist.
func (s *Store) Update(ctx context.Context, uuid string, delta aggregate.ChangeSet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT uuid, task_num, state, actual_runtime, first_started, attributes FROM tasks WHERE uuid = $1 FOR UPDATE`,
		uuid)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrTaskNotFoundf(uuid)
	}
	if err != nil {
		return err
	}

	for k, v := range delta {
		task[k] = v
	}

	attrs, err := json.Marshal(attributesOf(task))
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE tasks SET state = $2, actual_runtime = $3, first_started = $4, attributes = $5, updated_at = now() WHERE uuid = $1`,
		uuid, task["state"], task["actual_runtime"], task["first_started"], attrs)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListIncomplete returns every task whose actual_runtime is unset or whose
// state is a member of the incomplete runstate set.
func (s *Store) ListIncomplete(ctx context.Context, states aggregate.RunStates) ([]aggregate.TaskRecord, error) {
	stateList := make([]string, 0, len(states.Incomplete))
	for state := range states.Incomplete {
		stateList = append(stateList, state)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT uuid, task_num, state, actual_runtime, first_started, attributes
		 FROM tasks
		 WHERE actual_runtime IS NULL OR state = ANY($1)`,
		stateList)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []aggregate.TaskRecord
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// rowScanner abstracts pgx.Row and pgx.Rows, which both implement Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (aggregate.TaskRecord, error) {
	var (
		uuid          string
		taskNum       int
		state         *string
		actualRuntime *float64
		firstStarted  *float64
		attrsRaw      []byte
	)
	if err := row.Scan(&uuid, &taskNum, &state, &actualRuntime, &firstStarted, &attrsRaw); err != nil {
		return nil, err
	}

	var attrs map[string]any
	if len(attrsRaw) > 0 {
		if err := json.Unmarshal(attrsRaw, &attrs); err != nil {
			return nil, err
		}
	}

	task := make(aggregate.TaskRecord, len(attrs)+5)
	for k, v := range attrs {
		task[k] = v
	}
	task["uuid"] = uuid
	task["task_num"] = taskNum
	if state != nil {
		task["state"] = *state
	}
	if actualRuntime != nil {
		task["actual_runtime"] = *actualRuntime
	}
	if firstStarted != nil {
		task["first_started"] = *firstStarted
	}
	return task, nil
}

// attributesOf returns the subset of task not stored in its own column.
func attributesOf(task aggregate.TaskRecord) map[string]any {
	attrs := make(map[string]any, len(task))
	for k, v := range task {
		if _, known := knownColumns[k]; known {
			continue
		}
		attrs[k] = v
	}
	return attrs
}
