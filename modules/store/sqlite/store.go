package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/tabllm/internal/store"
)

// Store is a store.ReadWriter persisted in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.ReadWriter = (*Store)(nil)

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() string {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return now().UTC().Format(time.RFC3339Nano)
}

// seed writes the built-in catalog into the default tier.
func (s *Store) seed(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range store.DefaultModels {
		m.Tier = store.TierDefault
		if err := putModel(ctx, tx, m); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit seed: %w", err)
	}
	return nil
}

// ResolveModel returns the user record for name, else the default record.
func (s *Store) ResolveModel(ctx context.Context, name string) (store.Model, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, tier, model, provider, context_window, max_output_tokens
		FROM models
		WHERE name = ?
		ORDER BY CASE tier WHEN 'user' THEN 0 ELSE 1 END
		LIMIT 1`,
		name,
	)
	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Model{}, fmt.Errorf("model %q: %w", name, store.ErrNotFound)
	}
	return m, err
}

// ResolveSecret returns the secret stored for provider.
func (s *Store) ResolveSecret(ctx context.Context, provider string) (string, error) {
	var secret string
	err := s.db.QueryRowContext(ctx, "SELECT secret FROM secrets WHERE provider = ?", provider).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("secret for %q: %w", provider, store.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: resolve secret: %w", err)
	}
	return secret, nil
}

// ResolvePrompt returns a prompt version, project scope first. A nil
// version selects the highest one.
func (s *Store) ResolvePrompt(ctx context.Context, name string, version *int) (store.Prompt, error) {
	query := `
		SELECT scope, name, version, text, created_at
		FROM prompts
		WHERE name = ?`
	args := []any{name}
	if version != nil {
		query += " AND version = ?"
		args = append(args, *version)
	}
	query += `
		ORDER BY CASE scope WHEN 'project' THEN 0 ELSE 1 END, version DESC
		LIMIT 1`

	p, err := scanPrompt(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Prompt{}, fmt.Errorf("prompt %q: %w", name, store.ErrNotFound)
	}
	return p, err
}

// PutModel creates or replaces a model record. An empty tier means user.
func (s *Store) PutModel(ctx context.Context, m store.Model) error {
	if m.Tier == "" {
		m.Tier = store.TierUser
	}
	if err := store.ValidateModel(m); err != nil {
		return err
	}
	return putModel(ctx, s.db, m)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putModel(ctx context.Context, db execer, m store.Model) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO models (name, tier, model, provider, context_window, max_output_tokens)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Name, string(m.Tier), m.Model, m.Provider, m.ContextWindow, m.MaxOutputTokens,
	)
	if err != nil {
		return fmt.Errorf("sqlite: put model: %w", err)
	}
	return nil
}

// DeleteModel removes a user model record.
func (s *Store) DeleteModel(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM models WHERE name = ? AND tier = ?", name, string(store.TierUser))
	if err != nil {
		return fmt.Errorf("sqlite: delete model: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("model %q: %w", name, store.ErrNotFound)
	}
	return nil
}

// PutPrompt appends a new version of name in scope. Version numbers are
// allocated inside the insert so concurrent writers never collide.
func (s *Store) PutPrompt(ctx context.Context, scope store.PromptScope, name, text string) (int, error) {
	if !store.ValidScope(scope) {
		return 0, fmt.Errorf("unknown prompt scope %q", scope)
	}
	if name == "" {
		return 0, errors.New("prompt name is required")
	}

	var version int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO prompts (scope, name, version, text, created_at)
		VALUES (?, ?, COALESCE((SELECT MAX(version) FROM prompts WHERE scope = ? AND name = ?), 0) + 1, ?, ?)
		RETURNING version`,
		string(scope), name, string(scope), name, text, s.timestamp(),
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("sqlite: put prompt: %w", err)
	}
	return version, nil
}

// PutSecret creates or replaces the secret for provider.
func (s *Store) PutSecret(ctx context.Context, provider, secret string) error {
	if provider == "" {
		return errors.New("provider is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO secrets (provider, secret, updated_at)
		VALUES (?, ?, ?)`,
		provider, secret, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put secret: %w", err)
	}
	return nil
}

// ListModels returns every record, user tier first, sorted by name.
func (s *Store) ListModels(ctx context.Context) ([]store.Model, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, tier, model, provider, context_window, max_output_tokens
		FROM models
		ORDER BY CASE tier WHEN 'user' THEN 0 ELSE 1 END, name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list models: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list models rows: %w", err)
	}
	return out, nil
}

// ListPrompts returns every version, project scope first.
func (s *Store) ListPrompts(ctx context.Context) ([]store.Prompt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, name, version, text, created_at
		FROM prompts
		ORDER BY CASE scope WHEN 'project' THEN 0 ELSE 1 END, name, version`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list prompts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list prompts rows: %w", err)
	}
	return out, nil
}

// Maintain checkpoints the WAL and refreshes query planner statistics.
func (s *Store) Maintain(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("sqlite: wal checkpoint: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("sqlite: optimize: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanModel(row scanner) (store.Model, error) {
	var (
		m    store.Model
		tier string
	)
	if err := row.Scan(&m.Name, &tier, &m.Model, &m.Provider, &m.ContextWindow, &m.MaxOutputTokens); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Model{}, err
		}
		return store.Model{}, fmt.Errorf("sqlite: scan model: %w", err)
	}
	m.Tier = store.ModelTier(tier)
	return m, nil
}

func scanPrompt(row scanner) (store.Prompt, error) {
	var (
		p         store.Prompt
		scope     string
		createdAt string
	)
	if err := row.Scan(&scope, &p.Name, &p.Version, &p.Text, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Prompt{}, err
		}
		return store.Prompt{}, fmt.Errorf("sqlite: scan prompt: %w", err)
	}
	p.Scope = store.PromptScope(scope)
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return store.Prompt{}, fmt.Errorf("sqlite: parse created_at %q: %w", createdAt, err)
	}
	p.CreatedAt = t
	return p, nil
}
