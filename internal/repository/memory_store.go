package repository

import (
	"context"
	"sync"

	"comment-moderation/internal/models"
)

// MemoryStore implements CommentStore with two slices behind one lock.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[models.Collection][]*models.Comment
}

// NewMemoryStore constructs an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: map[models.Collection][]*models.Comment{
			models.CollectionApproved: nil,
			models.CollectionPending:  nil,
		},
	}
}

// Append adds a copy of comment to the end of collection.
func (m *MemoryStore) Append(_ context.Context, collection models.Collection, comment *models.Comment) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = append(m.collections[collection], comment.Clone())
	return nil
}

// Remove deletes the record with id from collection.
func (m *MemoryStore) Remove(_ context.Context, collection models.Collection, id string) (*models.Comment, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(collection, id)
}

// Move relocates id between collections under a single lock.
func (m *MemoryStore) Move(_ context.Context, id string, from, to models.Collection, mutate func(*models.Comment)) (*models.Comment, error) {
	if err := validCollection(from); err != nil {
		return nil, err
	}
	if err := validCollection(to); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	comment, err := m.removeLocked(from, id)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(comment)
	}
	m.collections[to] = append(m.collections[to], comment)
	return comment.Clone(), nil
}

// List returns copies of the records in insertion order.
func (m *MemoryStore) List(_ context.Context, collection models.Collection) ([]*models.Comment, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*models.Comment, 0, len(m.collections[collection]))
	for _, c := range m.collections[collection] {
		items = append(items, c.Clone())
	}
	return items, nil
}

// Count returns the collection size.
func (m *MemoryStore) Count(_ context.Context, collection models.Collection) (int, error) {
	if err := validCollection(collection); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection]), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) removeLocked(collection models.Collection, id string) (*models.Comment, error) {
	items := m.collections[collection]
	for i, c := range items {
		if c.ID != id {
			continue
		}
		m.collections[collection] = append(items[:i:i], items[i+1:]...)
		return c, nil
	}
	return nil, ErrNotFound
}
