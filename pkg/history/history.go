// Package history persists applied revisions so any injection can be
// reverted, and keeps the per-provider outcome counters the selection logic
// consults.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sergi/go-diff/diffmatchpatch"
	_ "modernc.org/sqlite"

	"github.com/inlay-dev/inlay/pkg/llm"
)

// Revision is one applied patch as stored.
type Revision struct {
	ID           string
	PatchID      string
	TargetPath   string
	OriginalText string
	NewText      string
	Strategy     string
	Provider     string
	CreatedAt    time.Time
	Reverted     bool
}

// Store is the SQLite-backed revision and stats store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS revisions (
		id            TEXT PRIMARY KEY,
		patch_id      TEXT NOT NULL,
		target_path   TEXT NOT NULL,
		original_text TEXT NOT NULL,
		new_text      TEXT NOT NULL,
		strategy      TEXT NOT NULL,
		provider      TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		reverted      INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_revisions_target ON revisions(target_path, created_at DESC);

	CREATE TABLE IF NOT EXISTS provider_outcomes (
		provider TEXT NOT NULL,
		outcome  TEXT NOT NULL,
		count    INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (provider, outcome)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordApplied stores one applied patch as a revision. It implements
// patch.Recorder.
func (s *Store) RecordApplied(patchID, targetPath, originalText, newText, strategy, provider string) error {
	_, err := s.db.Exec(
		`INSERT INTO revisions (id, patch_id, target_path, original_text, new_text, strategy, provider, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ulid.Make().String(), patchID, targetPath, originalText, newText, strategy, provider,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record revision for %s: %w", targetPath, err)
	}
	return nil
}

// Revisions lists the stored revisions for a target, newest first. A zero
// limit means all.
func (s *Store) Revisions(targetPath string, limit int) ([]Revision, error) {
	q := `SELECT id, patch_id, target_path, original_text, new_text, strategy, provider, created_at, reverted
	      FROM revisions WHERE target_path = ? ORDER BY created_at DESC`
	args := []any{targetPath}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list revisions for %s: %w", targetPath, err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var r Revision
		var created string
		var reverted int
		if err := rows.Scan(&r.ID, &r.PatchID, &r.TargetPath, &r.OriginalText, &r.NewText,
			&r.Strategy, &r.Provider, &created, &reverted); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		r.Reverted = reverted != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get fetches one revision by ID.
func (s *Store) Get(revisionID string) (*Revision, error) {
	row := s.db.QueryRow(
		`SELECT id, patch_id, target_path, original_text, new_text, strategy, provider, created_at, reverted
		 FROM revisions WHERE id = ?`, revisionID)
	var r Revision
	var created string
	var reverted int
	err := row.Scan(&r.ID, &r.PatchID, &r.TargetPath, &r.OriginalText, &r.NewText,
		&r.Strategy, &r.Provider, &created, &reverted)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("revision %s not found", revisionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load revision %s: %w", revisionID, err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	r.Reverted = reverted != 0
	return &r, nil
}

// Revert writes the revision's original text back to its target file and
// marks the revision reverted.
func (s *Store) Revert(revisionID string) error {
	r, err := s.Get(revisionID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(r.TargetPath, []byte(r.OriginalText), 0o644); err != nil {
		return fmt.Errorf("revert %s to %s: %w", revisionID, r.TargetPath, err)
	}
	if _, err := s.db.Exec(`UPDATE revisions SET reverted = 1 WHERE id = ?`, revisionID); err != nil {
		return fmt.Errorf("mark revision %s reverted: %w", revisionID, err)
	}
	return nil
}

// Diff renders a revision as a unified-style diff for display.
func (s *Store) Diff(revisionID string) (string, error) {
	r, err := s.Get(revisionID)
	if err != nil {
		return "", err
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(r.OriginalText, r.NewText, true)
	dmp.DiffCleanupSemantic(diffs)
	patches := dmp.PatchMake(r.OriginalText, diffs)
	return dmp.PatchToText(patches), nil
}

// RecordOutcome bumps the counter for one provider outcome. Implements
// llm.StatsStore.
func (s *Store) RecordOutcome(provider string, outcome llm.Outcome) error {
	_, err := s.db.Exec(
		`INSERT INTO provider_outcomes (provider, outcome, count) VALUES (?, ?, 1)
		 ON CONFLICT(provider, outcome) DO UPDATE SET count = count + 1`,
		provider, string(outcome),
	)
	if err != nil {
		return fmt.Errorf("record outcome for %s: %w", provider, err)
	}
	return nil
}

// ProviderAccuracy returns applied / total for a provider, zero when no
// history exists. Implements llm.StatsStore.
func (s *Store) ProviderAccuracy(provider string) (float64, error) {
	rows, err := s.db.Query(
		`SELECT outcome, count FROM provider_outcomes WHERE provider = ?`, provider)
	if err != nil {
		return 0, fmt.Errorf("load outcomes for %s: %w", provider, err)
	}
	defer rows.Close()

	applied, total := 0, 0
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return 0, fmt.Errorf("scan outcome: %w", err)
		}
		total += count
		if llm.Outcome(outcome) == llm.OutcomeApplied {
			applied += count
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return float64(applied) / float64(total), nil
}
