package repository

import (
	"context"
	"errors"
	"fmt"

	"comment-moderation/internal/models"

	"go.uber.org/zap"
)

// ErrNotFound indicates no record with the given id exists in the collection.
var ErrNotFound = errors.New("comment not found")

// CommentStore holds the approved and pending collections. Each record lives
// in exactly one collection. Remove and Move return ErrNotFound for unknown ids.
type CommentStore interface {
	Append(ctx context.Context, collection models.Collection, comment *models.Comment) error
	Remove(ctx context.Context, collection models.Collection, id string) (*models.Comment, error)
	// Move removes id from one collection and appends it to the other as a
	// single step; mutate may edit the record in between.
	Move(ctx context.Context, id string, from, to models.Collection, mutate func(*models.Comment)) (*models.Comment, error)
	// List returns a snapshot in insertion order.
	List(ctx context.Context, collection models.Collection) ([]*models.Comment, error)
	Count(ctx context.Context, collection models.Collection) (int, error)
	Close() error
}

// NewCommentStore opens the store selected by driver ("memory", "sqlite" or "postgres").
func NewCommentStore(driver, dsn string, logger *zap.Logger) (CommentStore, error) {
	switch driver {
	case "memory", "":
		logger.Info("Comment store initialized", zap.String("driver", "memory"))
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLStore(dsn, logger)
	case "postgres":
		return NewPostgresStore(dsn, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

func validCollection(c models.Collection) error {
	switch c {
	case models.CollectionApproved, models.CollectionPending:
		return nil
	default:
		return fmt.Errorf("unknown collection %q", c)
	}
}
