package plan

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jingkaihe/plugdoc/pkg/db"
	"github.com/jingkaihe/plugdoc/pkg/db/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Record is one row of plan history
type Record struct {
	ID        string    `db:"id" json:"id"`
	Command   string    `db:"command" json:"command"`
	Arguments string    `db:"arguments" json:"arguments"`
	Path      string    `db:"path" json:"path"`
	StepCount int       `db:"step_count" json:"step_count"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Body      string    `db:"body" json:"-"`
}

// Plan decodes the stored plan body
func (r *Record) Plan() (*Plan, error) {
	var p Plan
	if err := json.Unmarshal([]byte(r.Body), &p); err != nil {
		return nil, errors.Wrapf(err, "failed to decode plan %s", r.ID)
	}
	return &p, nil
}

// History stores every written plan in SQLite
type History struct {
	db *sqlx.DB
}

// OpenHistory opens the history database at path and migrates it
func OpenHistory(ctx context.Context, path string) (*History, error) {
	conn, err := db.OpenAndMigrate(ctx, path, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open plan history")
	}
	return &History{db: conn}, nil
}

// Close closes the underlying database
func (h *History) Close() error {
	return h.db.Close()
}

// Record stores a written plan
func (h *History) Record(ctx context.Context, p *Plan, path string) error {
	body, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "failed to marshal plan")
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO plan_history (id, command, arguments, path, step_count, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Command, p.Arguments, path, len(p.Steps), string(body), p.CreatedAt.UTC())
	return errors.Wrap(err, "failed to record plan")
}

// List returns the most recent plans, optionally filtered by command
func (h *History) List(ctx context.Context, command string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, command, arguments, path, step_count, created_at, body FROM plan_history`
	args := []any{}
	if command != "" {
		query += ` WHERE command = ?`
		args = append(args, command)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	var records []Record
	if err := h.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list plans")
	}
	return records, nil
}

// Get returns the plan whose ID is id or starts with id
func (h *History) Get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, errors.New("plan id is required")
	}

	var records []Record
	err := h.db.SelectContext(ctx, &records, `
		SELECT id, command, arguments, path, step_count, created_at, body
		FROM plan_history WHERE id = ? OR id LIKE ? || '%' LIMIT 2
	`, id, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "failed to get plan")
	}

	switch len(records) {
	case 0:
		return nil, errors.Errorf("plan '%s' not found", id)
	case 1:
		return &records[0], nil
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, errors.Errorf("plan id '%s' is ambiguous", id)
}
