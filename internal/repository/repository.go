package repository

import (
	"FlatComments/internal/models"
	"context"
	"database/sql"
	"errors"
	"fmt"
	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/nasermirzaei89/env"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"go.uber.org/zap"
	"path/filepath"
	"time"
)

const (
	tableComments     = "comments"
	tableContentTypes = "content_types"
)

var (
	retryStrategy = retry.Strategy{
		Attempts: 5,
		Delay:    time.Millisecond,
		Backoff:  2,
	}

	commentColumns     = []string{"id", "content_type_id", "object_pk", "user_id", "comment", "is_public", "submit_date"}
	contentTypeColumns = []string{"id", "app_label", "model"}
)

// executor is the subset of *dbpg.DB the repository needs.
type executor interface {
	ExecWithRetry(ctx context.Context, strategy retry.Strategy, query string, args ...interface{}) (sql.Result, error)
	QueryWithRetry(ctx context.Context, strategy retry.Strategy, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowWithRetry(ctx context.Context, strategy retry.Strategy, query string, args ...interface{}) (*sql.Row, error)
}

type Repository struct {
	db  executor
	sb  sq.StatementBuilderType
	log *zap.Logger
}

func NewRepository(masterDSN string, slaveDSNs []string, log *zap.Logger) (*Repository, error) {
	opts := dbpg.Options{
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, &opts)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Starting database migrations")

	if err := runMigrations(masterDSN); err != nil {
		log.Error("Failed to run migrations", zap.Error(err))
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	log.Info("Successfully migrated database")

	return newRepository(db, sq.Dollar, log), nil
}

func newRepository(db executor, placeholder sq.PlaceholderFormat, log *zap.Logger) *Repository {
	return &Repository{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(placeholder),
		log: log.Named("repository"),
	}
}

func scanComment(row sq.RowScanner) (*models.Comment, error) {
	var c models.Comment
	if err := row.Scan(&c.ID, &c.ContentTypeID, &c.ObjectPK, &c.UserID, &c.Comm, &c.IsPublic, &c.SubmitDate); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID returns a comment in any moderation state.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	return r.getComment(ctx, sq.Eq{"id": id})
}

// CommentByID returns a live (public) comment.
func (r *Repository) CommentByID(ctx context.Context, id int64) (*models.Comment, error) {
	return r.getComment(ctx, sq.Eq{"id": id, "is_public": true})
}

func (r *Repository) getComment(ctx context.Context, where sq.Eq) (*models.Comment, error) {
	query, args, err := r.sb.Select(commentColumns...).From(tableComments).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build comment query: %w", err)
	}

	row, err := r.db.QueryRowWithRetry(ctx, retryStrategy, query, args...)
	if err != nil {
		r.log.Error("Failed to get comment", zap.Any("where", where), zap.Error(err))
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	c, err := scanComment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("comment %v: %w", where["id"], models.ErrNotFound)
		}
		r.log.Error("Failed to scan comment", zap.Any("where", where), zap.Error(err))
		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}
	return c, nil
}

// CommentsByIDs returns the live comments among ids in the order of ids.
// Unknown or non-public ids are omitted.
func (r *Repository) CommentsByIDs(ctx context.Context, ids []int64) ([]*models.Comment, error) {
	if len(ids) == 0 {
		return []*models.Comment{}, nil
	}

	query, args, err := r.sb.Select(commentColumns...).
		From(tableComments).
		Where(sq.Eq{"id": ids, "is_public": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build comments query: %w", err)
	}

	rows, err := r.db.QueryWithRetry(ctx, retryStrategy, query, args...)
	if err != nil {
		r.log.Error("Failed to get comments by ids", zap.Int("ids", len(ids)), zap.Error(err))
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]*models.Comment, len(ids))
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			r.log.Error("Failed to scan comment", zap.Error(err))
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		found[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	comments := make([]*models.Comment, 0, len(found))
	for _, id := range ids {
		if c, ok := found[id]; ok {
			comments = append(comments, c)
		}
	}
	return comments, nil
}

// LiveIDs lists the public comment ids attached to an object, oldest first.
func (r *Repository) LiveIDs(ctx context.Context, contentTypeID int64, objectPK string) ([]int64, error) {
	query, args, err := r.sb.Select("id").
		From(tableComments).
		Where(sq.Eq{"content_type_id": contentTypeID, "object_pk": objectPK, "is_public": true}).
		OrderBy("submit_date ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build live ids query: %w", err)
	}

	rows, err := r.db.QueryWithRetry(ctx, retryStrategy, query, args...)
	if err != nil {
		r.log.Error("Failed to list live comment ids", zap.Int64("content_type_id", contentTypeID), zap.String("object_pk", objectPK), zap.Error(err))
		return nil, fmt.Errorf("failed to list live comment ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan comment id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return ids, nil
}

func (r *Repository) insertComment(ctx context.Context, c *models.Comment) error {
	query, args, err := r.sb.Insert(tableComments).
		Columns(commentColumns[1:]...).
		Values(c.ContentTypeID, c.ObjectPK, c.UserID, c.Comm, c.IsPublic, c.SubmitDate).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	row, err := r.db.QueryRowWithRetry(ctx, retryStrategy, query, args...)
	if err != nil {
		r.log.Error("Failed to create comment in DB", zap.Error(err))
		return fmt.Errorf("failed to create comment: %w", err)
	}
	if err := row.Scan(&c.ID); err != nil {
		r.log.Error("Failed to read new comment id", zap.Error(err))
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (r *Repository) setPublic(ctx context.Context, id int64, public bool) error {
	query, args, err := r.sb.Update(tableComments).Set("is_public", public).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	if _, err := r.db.ExecWithRetry(ctx, retryStrategy, query, args...); err != nil {
		r.log.Error("Failed to update comment visibility", zap.Int64("id", id), zap.Bool("public", public), zap.Error(err))
		return fmt.Errorf("failed to update comment %d: %w", id, err)
	}
	return nil
}

func (r *Repository) deleteComment(ctx context.Context, id int64) error {
	query, args, err := r.sb.Delete(tableComments).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := r.db.ExecWithRetry(ctx, retryStrategy, query, args...); err != nil {
		r.log.Error("Failed to delete comment", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete comment %d: %w", id, err)
	}
	return nil
}

func (r *Repository) ContentTypeByID(ctx context.Context, id int64) (*models.ContentType, error) {
	return r.getContentType(ctx, sq.Eq{"id": id})
}

func (r *Repository) ContentTypeByTag(ctx context.Context, appLabel, model string) (*models.ContentType, error) {
	return r.getContentType(ctx, sq.Eq{"app_label": appLabel, "model": model})
}

func (r *Repository) getContentType(ctx context.Context, where sq.Eq) (*models.ContentType, error) {
	query, args, err := r.sb.Select(contentTypeColumns...).From(tableContentTypes).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build content type query: %w", err)
	}

	row, err := r.db.QueryRowWithRetry(ctx, retryStrategy, query, args...)
	if err != nil {
		r.log.Error("Failed to get content type", zap.Any("where", where), zap.Error(err))
		return nil, fmt.Errorf("failed to get content type: %w", err)
	}
	var ct models.ContentType
	if err := row.Scan(&ct.ID, &ct.AppLabel, &ct.Model); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("content type %v: %w", where, models.ErrNotFound)
		}
		r.log.Error("Failed to scan content type", zap.Error(err))
		return nil, fmt.Errorf("failed to scan content type: %w", err)
	}
	return &ct, nil
}

// EnsureContentType registers a content type if it is not known yet and returns it.
func (r *Repository) EnsureContentType(ctx context.Context, appLabel, model string) (*models.ContentType, error) {
	query, args, err := r.sb.Insert(tableContentTypes).
		Columns("app_label", "model").
		Values(appLabel, model).
		Suffix("ON CONFLICT (app_label, model) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build content type insert: %w", err)
	}
	if _, err := r.db.ExecWithRetry(ctx, retryStrategy, query, args...); err != nil {
		r.log.Error("Failed to register content type", zap.String("app_label", appLabel), zap.String("model", model), zap.Error(err))
		return nil, fmt.Errorf("failed to register content type: %w", err)
	}
	return r.ContentTypeByTag(ctx, appLabel, model)
}

func runMigrations(connStr string) error {
	dir, err := filepath.Abs(env.GetString("MIGRATE_PATH", "./migrations"))
	if err != nil {
		return fmt.Errorf("failed to resolve migrations dir: %w", err)
	}
	m, err := migrate.New("file://"+filepath.ToSlash(dir), connStr)
	if err != nil {
		return fmt.Errorf("failed to start migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
