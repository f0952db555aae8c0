// Package postgres provides the Postgres-backed article store.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/article-rewriter/internal/article"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

const columns = `id, title, original_url, original_content, published_date, status,
	updated_content, "references", error, created_at, updated_at`

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxIface interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// ArticleStore implements article.Store on a pgx pool.
type ArticleStore struct {
	pool pgxIface
	now  func() time.Time
}

// NewArticleStore connects to Postgres using the provided config.
func NewArticleStore(ctx context.Context, cfg Config) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewArticleStoreWithPool(pool)
}

// NewArticleStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewArticleStoreWithPool(pool pgxIface) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ArticleStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Ping checks that the database is reachable.
func (s *ArticleStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate applies the embedded schema files in name order. Every statement is idempotent.
func (s *ArticleStore) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		script, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(script)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// Create inserts a new article.
func (s *ArticleStore) Create(ctx context.Context, a article.Article) (article.Article, error) {
	if a.ID == "" {
		return article.Article{}, fmt.Errorf("article id is required")
	}
	if a.Status == "" {
		a.Status = article.StatusPending
	}
	if a.References == nil {
		a.References = []article.Reference{}
	}
	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	refs, err := json.Marshal(a.References)
	if err != nil {
		return article.Article{}, fmt.Errorf("marshal references: %w", err)
	}

	query := `INSERT INTO articles (` + columns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err = s.pool.Exec(ctx, query,
		a.ID,
		a.Title,
		a.OriginalURL,
		a.OriginalContent,
		a.PublishedDate,
		string(a.Status),
		a.UpdatedContent,
		refs,
		a.Error,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return article.Article{}, article.ErrDuplicateURL
		}
		return article.Article{}, fmt.Errorf("insert article: %w", err)
	}
	return a, nil
}

// ExistsByURL reports whether an article with the URL is stored.
func (s *ArticleStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM articles WHERE original_url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check article url: %w", err)
	}
	return exists, nil
}

// Get fetches an article by ID.
func (s *ArticleStore) Get(ctx context.Context, id string) (article.Article, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+columns+` FROM articles WHERE id = $1`, id)
	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return article.Article{}, article.ErrNotFound
		}
		return article.Article{}, fmt.Errorf("get article: %w", err)
	}
	return a, nil
}

// List returns every article, newest first.
func (s *ArticleStore) List(ctx context.Context) ([]article.Article, error) {
	return s.query(ctx, `SELECT `+columns+` FROM articles ORDER BY created_at DESC, id DESC`)
}

// ListByStatus returns articles in the status, oldest first. A non-positive limit means all.
func (s *ArticleStore) ListByStatus(ctx context.Context, status article.Status, limit int) ([]article.Article, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	return s.query(ctx,
		`SELECT `+columns+` FROM articles WHERE status = $1 ORDER BY created_at ASC, id ASC LIMIT $2`,
		string(status), lim,
	)
}

// Update replaces the editable fields of an existing article.
func (s *ArticleStore) Update(ctx context.Context, a article.Article) (article.Article, error) {
	if a.References == nil {
		a.References = []article.Reference{}
	}
	refs, err := json.Marshal(a.References)
	if err != nil {
		return article.Article{}, fmt.Errorf("marshal references: %w", err)
	}
	a.UpdatedAt = s.now()

	query := `UPDATE articles SET
	title = $2, original_url = $3, original_content = $4, published_date = $5, status = $6,
	updated_content = $7, "references" = $8, error = $9, updated_at = $10
WHERE id = $1
RETURNING created_at`
	err = s.pool.QueryRow(ctx, query,
		a.ID,
		a.Title,
		a.OriginalURL,
		a.OriginalContent,
		a.PublishedDate,
		string(a.Status),
		a.UpdatedContent,
		refs,
		a.Error,
		a.UpdatedAt,
	).Scan(&a.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return article.Article{}, article.ErrNotFound
		case isUniqueViolation(err):
			return article.Article{}, article.ErrDuplicateURL
		default:
			return article.Article{}, fmt.Errorf("update article: %w", err)
		}
	}
	return a, nil
}

// SaveResult persists the outcome fields of a rewrite.
func (s *ArticleStore) SaveResult(ctx context.Context, a article.Article) error {
	refs := a.References
	if refs == nil {
		refs = []article.Reference{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("marshal references: %w", err)
	}
	query := `UPDATE articles SET
	status = $2, updated_content = $3, "references" = $4, error = $5, updated_at = $6
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, a.ID, string(a.Status), a.UpdatedContent, refsJSON, a.Error, s.now())
	if err != nil {
		return fmt.Errorf("save article result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return article.ErrNotFound
	}
	return nil
}

// Delete removes an article.
func (s *ArticleStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return article.ErrNotFound
	}
	return nil
}

// DeleteAll removes every article and returns how many were deleted.
func (s *ArticleStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM articles`)
	if err != nil {
		return 0, fmt.Errorf("delete articles: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *ArticleStore) query(ctx context.Context, query string, args ...any) ([]article.Article, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var out []article.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}
	return out, nil
}

func scanArticle(row pgx.Row) (article.Article, error) {
	var (
		a      article.Article
		status string
		refs   []byte
	)
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.OriginalURL,
		&a.OriginalContent,
		&a.PublishedDate,
		&status,
		&a.UpdatedContent,
		&refs,
		&a.Error,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return article.Article{}, err
	}
	a.Status = article.Status(status)
	a.References = []article.Reference{}
	if len(refs) > 0 {
		if err := json.Unmarshal(refs, &a.References); err != nil {
			return article.Article{}, fmt.Errorf("decode references: %w", err)
		}
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
