package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"comment-moderation/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

var commentColumns = []string{
	"id", "collection", "seq", "author", "avatar", "text",
	"safe", "reason", "confidence", "created_at", "approval_state",
}

// nextSeq keeps insertion order across both collections.
var nextSeq = sq.Expr("(SELECT COALESCE(MAX(seq), 0) + 1 FROM comments)")

type commentRow struct {
	models.Comment
	Collection models.Collection `db:"collection"`
	Seq        int64             `db:"seq"`
}

type dialect struct {
	name        string
	placeholder sq.PlaceholderFormat
	// writeLock runs first in every write transaction, "" for none.
	writeLock     string
	migrationsDir string
	migrateDriver func(*sql.DB) (database.Driver, error)
}

var (
	sqliteDialect = dialect{
		name:          "sqlite",
		placeholder:   sq.Question,
		migrationsDir: "migrations/sqlite",
		migrateDriver: func(db *sql.DB) (database.Driver, error) {
			return sqlite.WithInstance(db, &sqlite.Config{})
		},
	}
	postgresDialect = dialect{
		name:          "postgres",
		placeholder:   sq.Dollar,
		writeLock:     "SELECT pg_advisory_xact_lock(hashtext('comments'))",
		migrationsDir: "migrations/postgres",
		migrateDriver: func(db *sql.DB) (database.Driver, error) {
			return postgres.WithInstance(db, &postgres.Config{})
		},
	}
)

// SQLStore implements CommentStore on SQLite or PostgreSQL.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	sb      sq.StatementBuilderType
	logger  *zap.Logger
}

// NewSQLStore opens a SQLite database and applies embedded migrations. The
// default DSN ":memory:" keeps everything in process memory.
func NewSQLStore(dsn string, logger *zap.Logger) (*SQLStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database exists per connection, and
	// SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)

	return newSQLStore(db, sqliteDialect, logger)
}

// NewPostgresStore connects to PostgreSQL and applies embedded migrations.
func NewPostgresStore(dsn string, logger *zap.Logger) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres storage requires a dsn")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newSQLStore(db, postgresDialect, logger)
}

func newSQLStore(db *sqlx.DB, d dialect, logger *zap.Logger) (*SQLStore, error) {
	if err := migrateDB(db, d, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Comment store initialized", zap.String("driver", d.name))

	return &SQLStore{
		db:      db,
		dialect: d,
		sb:      sq.StatementBuilder.PlaceholderFormat(d.placeholder),
		logger:  logger,
	}, nil
}

func migrateDB(db *sqlx.DB, d dialect, logger *zap.Logger) error {
	src, err := iofs.New(migrationsFS, d.migrationsDir)
	if err != nil {
		return fmt.Errorf("couldn't open embedded migrations: %w", err)
	}
	// m.Close would also close db, so only the source is released.
	defer src.Close()

	driver, err := d.migrateDriver(db.DB)
	if err != nil {
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, d.name, driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	logger.Debug("Database migration was run successfully", zap.String("driver", d.name))
	return nil
}

// Append inserts comment at the end of collection.
func (s *SQLStore) Append(ctx context.Context, collection models.Collection, comment *models.Comment) error {
	if err := validCollection(collection); err != nil {
		return err
	}

	query, args, err := s.sb.Insert("comments").
		Columns(commentColumns...).
		Values(
			comment.ID, string(collection), nextSeq, comment.Author, comment.Avatar, comment.Text,
			comment.Safe, comment.Reason, comment.Confidence, comment.CreatedAt.UTC(), string(comment.ApprovalState),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to save comment: %w", err)
		}
		return nil
	})
}

// Remove deletes id from collection and returns the deleted record.
func (s *SQLStore) Remove(ctx context.Context, collection models.Collection, id string) (*models.Comment, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}

	var removed *models.Comment
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.getRow(ctx, tx, collection, id)
		if err != nil {
			return err
		}

		query, args, err := s.sb.Delete("comments").
			Where(sq.Eq{"id": id, "collection": string(collection)}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build delete: %w", err)
		}
		if err := execOne(ctx, tx, query, args); err != nil {
			return fmt.Errorf("failed to delete comment: %w", err)
		}

		removed = &row.Comment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Move updates the record's collection and order in one transaction.
func (s *SQLStore) Move(ctx context.Context, id string, from, to models.Collection, mutate func(*models.Comment)) (*models.Comment, error) {
	if err := validCollection(from); err != nil {
		return nil, err
	}
	if err := validCollection(to); err != nil {
		return nil, err
	}

	var moved *models.Comment
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.getRow(ctx, tx, from, id)
		if err != nil {
			return err
		}

		comment := row.Comment
		if mutate != nil {
			mutate(&comment)
		}

		query, args, err := s.sb.Update("comments").
			SetMap(map[string]interface{}{
				"collection":     string(to),
				"seq":            nextSeq,
				"author":         comment.Author,
				"avatar":         comment.Avatar,
				"text":           comment.Text,
				"safe":           comment.Safe,
				"reason":         comment.Reason,
				"confidence":     comment.Confidence,
				"approval_state": string(comment.ApprovalState),
			}).
			Where(sq.Eq{"id": id, "collection": string(from)}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update: %w", err)
		}
		if err := execOne(ctx, tx, query, args); err != nil {
			return fmt.Errorf("failed to move comment: %w", err)
		}

		moved = &comment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// List returns collection ordered by insertion.
func (s *SQLStore) List(ctx context.Context, collection models.Collection) ([]*models.Comment, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}

	query, args, err := s.sb.Select(commentColumns...).
		From("comments").
		Where(sq.Eq{"collection": string(collection)}).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	var rows []commentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}

	comments := make([]*models.Comment, 0, len(rows))
	for i := range rows {
		c := rows[i].Comment
		comments = append(comments, &c)
	}
	return comments, nil
}

// Count returns the number of records in collection.
func (s *SQLStore) Count(ctx context.Context, collection models.Collection) (int, error) {
	if err := validCollection(collection); err != nil {
		return 0, err
	}

	query, args, err := s.sb.Select("COUNT(*)").
		From("comments").
		Where(sq.Eq{"collection": string(collection)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count: %w", err)
	}

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if s.dialect.writeLock != "" {
		if _, err := tx.ExecContext(ctx, s.dialect.writeLock); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to lock comments: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) getRow(ctx context.Context, tx *sqlx.Tx, collection models.Collection, id string) (*commentRow, error) {
	query, args, err := s.sb.Select(commentColumns...).
		From("comments").
		Where(sq.Eq{"id": id, "collection": string(collection)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	var row commentRow
	if err := tx.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return &row, nil
}

// execOne runs a statement that must touch exactly one row.
func execOne(ctx context.Context, tx *sqlx.Tx, query string, args []interface{}) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}
