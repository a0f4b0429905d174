// Package repository persists the backend copy of the tunnel document and
// the log of section saves applied to it.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"amneziawg-webui/internal/database"
	"amneziawg-webui/internal/tunnel"
)

// ErrNotFound is returned when no document or revision exists.
var ErrNotFound = errors.New("not found")

// SectionImport labels revisions written by Import.
const SectionImport tunnel.Section = "import"

// Finalizer runs on the merged document inside the save transaction. It may
// fill derived fields and returns warnings to record with the revision.
type Finalizer func(cfg *tunnel.Config) []string

// Revision is one recorded section save.
type Revision struct {
	ID       string         `json:"id"`
	Section  tunnel.Section `json:"section"`
	SavedAt  int64          `json:"savedAt"`
	Warnings []string       `json:"warnings"`
	Document *tunnel.Config `json:"document,omitempty"`
}

// Store reads and writes the document in SQLite.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// NewStore creates a store backed by an existing SQLite handle.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	return &Store{db: db, now: time.Now, newID: uuid.NewString}, nil
}

// Load returns the stored document, or ErrNotFound before the first save.
func (s *Store) Load(ctx context.Context) (tunnel.Config, error) {
	return loadDocument(ctx, s.db)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadDocument(ctx context.Context, q queryer) (tunnel.Config, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT document FROM tunnel_config WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return tunnel.Config{}, ErrNotFound
	}
	if err != nil {
		return tunnel.Config{}, err
	}
	return decodeConfig(raw)
}

func decodeConfig(raw string) (tunnel.Config, error) {
	cfg := tunnel.Defaults()
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return tunnel.Config{}, fmt.Errorf("decode stored document: %w", err)
	}
	if cfg.Peers == nil {
		cfg.Peers = []tunnel.Peer{}
	}
	if cfg.Policy.Routes == nil {
		cfg.Policy.Routes = []tunnel.PolicyRoute{}
	}
	if cfg.Policy.Marks == nil {
		cfg.Policy.Marks = []tunnel.MarkRule{}
	}
	return cfg, nil
}

// Save applies the section of incoming onto the stored document (or the
// defaults when none is stored yet), runs finalize, and writes both the
// document and a revision row in one transaction.
func (s *Store) Save(ctx context.Context, section tunnel.Section, incoming tunnel.Config, finalize Finalizer) (Revision, error) {
	return s.save(ctx, section, func(cfg *tunnel.Config) {
		section.Apply(cfg, incoming)
	}, finalize)
}

// Import applies every section of an imported document except policy,
// recorded as a single revision.
func (s *Store) Import(ctx context.Context, incoming tunnel.Config, finalize Finalizer) (Revision, error) {
	return s.save(ctx, SectionImport, func(cfg *tunnel.Config) {
		for _, section := range []tunnel.Section{tunnel.SectionBasic, tunnel.SectionObfs, tunnel.SectionAdvanced} {
			section.Apply(cfg, incoming)
		}
	}, finalize)
}

// Prune drops revisions past the retention window.
func (s *Store) Prune() error {
	return database.Cleanup(s.db)
}

func (s *Store) save(ctx context.Context, label tunnel.Section, apply func(*tunnel.Config), finalize Finalizer) (Revision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Revision{}, err
	}
	defer tx.Rollback()

	current, err := loadDocument(ctx, tx)
	if errors.Is(err, ErrNotFound) {
		current = tunnel.Defaults()
	} else if err != nil {
		return Revision{}, err
	}
	apply(&current)

	var warnings []string
	if finalize != nil {
		warnings = finalize(&current)
	}
	if warnings == nil {
		warnings = []string{}
	}

	encoded, err := json.Marshal(current)
	if err != nil {
		return Revision{}, err
	}
	savedAt := s.now().UTC().Unix()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tunnel_config (id, document, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
	`, string(encoded), savedAt); err != nil {
		return Revision{}, err
	}

	rev := Revision{
		ID:       s.newID(),
		Section:  label,
		SavedAt:  savedAt,
		Warnings: warnings,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO revisions (id, section, saved_at, document)
		VALUES (?, ?, ?, ?)
	`, rev.ID, string(rev.Section), rev.SavedAt, string(encoded)); err != nil {
		return Revision{}, err
	}
	for i, message := range warnings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO revision_warnings (revision_id, position, message)
			VALUES (?, ?, ?)
		`, rev.ID, i, message); err != nil {
			return Revision{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Revision{}, err
	}
	rev.Document = &current
	return rev, nil
}

// Revisions lists recent revisions, newest first, without their documents.
func (s *Store) Revisions(ctx context.Context, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, section, saved_at
		FROM revisions
		ORDER BY saved_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revisions := make([]Revision, 0)
	for rows.Next() {
		var rev Revision
		var section string
		if err := rows.Scan(&rev.ID, &section, &rev.SavedAt); err != nil {
			return nil, err
		}
		rev.Section = tunnel.Section(section)
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range revisions {
		warnings, err := s.warnings(ctx, revisions[i].ID)
		if err != nil {
			return nil, err
		}
		revisions[i].Warnings = warnings
	}
	return revisions, nil
}

// Revision returns one revision including the document it produced.
func (s *Store) Revision(ctx context.Context, id string) (Revision, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Revision{}, ErrNotFound
	}
	var (
		rev     Revision
		section string
		raw     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, section, saved_at, document
		FROM revisions
		WHERE id = ?
	`, id).Scan(&rev.ID, &section, &rev.SavedAt, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, ErrNotFound
	}
	if err != nil {
		return Revision{}, err
	}
	rev.Section = tunnel.Section(section)
	cfg, err := decodeConfig(raw)
	if err != nil {
		return Revision{}, err
	}
	rev.Document = &cfg
	if rev.Warnings, err = s.warnings(ctx, rev.ID); err != nil {
		return Revision{}, err
	}
	return rev, nil
}

func (s *Store) warnings(ctx context.Context, revisionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message FROM revision_warnings
		WHERE revision_id = ?
		ORDER BY position ASC
	`, revisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var message string
		if err := rows.Scan(&message); err != nil {
			return nil, err
		}
		out = append(out, message)
	}
	return out, rows.Err()
}
