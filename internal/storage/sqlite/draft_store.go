package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/affinityhq/affinity/internal/apply"
)

// DraftStore implements draft persistence backed by SQLite.
type DraftStore struct {
	db *DB
}

// NewDraftStore creates a SQLite-backed draft store.
func NewDraftStore(db *DB) *DraftStore {
	return &DraftStore{db: db}
}

// Save persists a draft (insert or update). One draft exists per
// (plan, email); saving over an existing pair replaces it.
func (s *DraftStore) Save(draft *apply.Draft) error {
	values, err := json.Marshal(draft.Values)
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO drafts (id, plan_id, email, values_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(plan_id, email) DO UPDATE SET
			values_json=excluded.values_json, updated_at=excluded.updated_at`,
		draft.ID, draft.PlanID, draft.Email, string(values),
		draft.CreatedAt, draft.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

// Find retrieves the draft for a plan and email.
func (s *DraftStore) Find(planID int64, email string) (*apply.Draft, error) {
	row := s.db.QueryRow(`
		SELECT id, plan_id, email, values_json, created_at, updated_at
		FROM drafts WHERE plan_id = ? AND email = ?`, planID, email)
	return scanDraft(row)
}

// Delete removes a draft by id.
func (s *DraftStore) Delete(id string) error {
	result, err := s.db.Exec("DELETE FROM drafts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apply.ErrDraftNotFound
	}
	return nil
}

// List returns all drafts, most recently updated first.
func (s *DraftStore) List() ([]*apply.Draft, error) {
	rows, err := s.db.Query(`
		SELECT id, plan_id, email, values_json, created_at, updated_at
		FROM drafts ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*apply.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*apply.Draft, error) {
	var draft apply.Draft
	var values string
	err := row.Scan(&draft.ID, &draft.PlanID, &draft.Email, &values,
		&draft.CreatedAt, &draft.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apply.ErrDraftNotFound
		}
		return nil, fmt.Errorf("scan draft: %w", err)
	}
	if err := json.Unmarshal([]byte(values), &draft.Values); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	return &draft, nil
}

// Ensure the SQLite store implements the workflow's storage interface.
var _ apply.DraftStore = (*DraftStore)(nil)
