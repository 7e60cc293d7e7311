package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"comment-moderation/internal/models"
	"comment-moderation/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when approve or reject names a comment that is
	// no longer pending.
	ErrNotFound = errors.New("comment not found or already handled")
	// ErrInvalidInput is the parent of every submission validation error.
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmptyComment   = fmt.Errorf("%w: comment text is empty", ErrInvalidInput)
	ErrCommentTooLong = fmt.Errorf("%w: comment text is too long", ErrInvalidInput)
)

// Classifier screens one comment. Implementations never fail: an unreachable
// backend yields a safe verdict.
type Classifier interface {
	Classify(ctx context.Context, text string, rules []string) models.Verdict
}

// Notifier is told about comments that need a moderator.
type Notifier interface {
	NotifyPending(ctx context.Context, comment *models.Comment) error
}

// NopNotifier drops every notification.
type NopNotifier struct{}

// NotifyPending implements Notifier.
func (NopNotifier) NotifyPending(context.Context, *models.Comment) error { return nil }

// Moderator routes submissions through the classifier into the approved
// feed or the review queue and applies moderator decisions.
type Moderator struct {
	classifier Classifier
	store      repository.CommentStore
	compliance *ComplianceRules
	notifier   Notifier
	logger     *zap.Logger

	maxLength int
	identity  IdentityFunc
	newID     func() string

	// decisions serialises approve and reject.
	decisions sync.Mutex
}

// NewModerator creates a new moderation engine
func NewModerator(
	classifier Classifier,
	store repository.CommentStore,
	compliance *ComplianceRules,
	notifier Notifier,
	maxLength int,
	logger *zap.Logger,
) *Moderator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Moderator{
		classifier: classifier,
		store:      store,
		compliance: compliance,
		notifier:   notifier,
		logger:     logger,
		maxLength:  maxLength,
		identity:   RandomIdentity,
		newID:      func() string { return uuid.New().String() },
	}
}

// Submit classifies text and stores the resulting record. The returned
// record is already visible in exactly one collection.
func (m *Moderator) Submit(ctx context.Context, author, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if m.maxLength > 0 && utf8.RuneCountInString(text) > m.maxLength {
		return nil, fmt.Errorf("%w (max %d characters)", ErrCommentTooLong, m.maxLength)
	}

	id := m.identity()
	if author = strings.TrimSpace(author); author != "" {
		id.Author = author
	}

	verdict := m.classifier.Classify(ctx, text, m.compliance.Active())

	comment := &models.Comment{
		ID:         m.newID(),
		Author:     id.Author,
		Avatar:     id.Avatar,
		Text:       text,
		Safe:       verdict.Safe,
		Reason:     verdict.Reason,
		Confidence: verdict.Confidence,
		CreatedAt:  verdict.Timestamp,
	}

	collection := models.CollectionApproved
	comment.ApprovalState = models.StateApproved
	if !verdict.Safe {
		collection = models.CollectionPending
		comment.ApprovalState = models.StatePending
	}

	if err := m.store.Append(ctx, collection, comment); err != nil {
		return nil, fmt.Errorf("failed to store comment: %w", err)
	}

	m.logger.Info("Comment submitted",
		zap.String("id", comment.ID),
		zap.String("author", comment.Author),
		zap.String("state", string(comment.ApprovalState)),
		zap.String("reason", comment.Reason),
		zap.Float64("confidence", comment.Confidence))

	if collection == models.CollectionPending {
		go m.notifyPending(comment.Clone())
	}

	return comment, nil
}

func (m *Moderator) notifyPending(comment *models.Comment) {
	if err := m.notifier.NotifyPending(context.Background(), comment); err != nil {
		m.logger.Error("Failed to notify moderators",
			zap.String("id", comment.ID),
			zap.Error(err))
	}
}

// Approve moves a pending comment into the approved feed. Every field other
// than the approval state is kept.
func (m *Moderator) Approve(ctx context.Context, id string) (*models.Comment, error) {
	m.decisions.Lock()
	defer m.decisions.Unlock()

	comment, err := m.store.Move(ctx, id, models.CollectionPending, models.CollectionApproved, func(c *models.Comment) {
		c.ApprovalState = models.StateApproved
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to approve comment: %w", err)
	}

	m.logger.Info("Comment approved", zap.String("id", id))
	return comment, nil
}

// Reject discards a pending comment. Nothing about it is kept.
func (m *Moderator) Reject(ctx context.Context, id string) error {
	m.decisions.Lock()
	defer m.decisions.Unlock()

	if _, err := m.store.Remove(ctx, models.CollectionPending, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to reject comment: %w", err)
	}

	m.logger.Info("Comment rejected", zap.String("id", id))
	return nil
}

// ListApproved returns approved comments in the order they were approved.
func (m *Moderator) ListApproved(ctx context.Context) ([]*models.Comment, error) {
	return m.store.List(ctx, models.CollectionApproved)
}

// ListPending returns the review queue in arrival order.
func (m *Moderator) ListPending(ctx context.Context) ([]*models.Comment, error) {
	return m.store.List(ctx, models.CollectionPending)
}

// Feed returns comments newest first. The public feed holds approved
// comments only; the moderator view adds the pending ones.
func (m *Moderator) Feed(ctx context.Context, includePending bool) ([]models.FeedItem, error) {
	approved, err := m.ListApproved(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]models.FeedItem, 0, len(approved))
	for _, c := range approved {
		items = append(items, models.FeedItem{Comment: c, Status: models.StateApproved})
	}

	if includePending {
		pending, err := m.ListPending(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range pending {
			items = append(items, models.FeedItem{Comment: c, Status: models.StatePending})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Stats counts both collections.
func (m *Moderator) Stats(ctx context.Context) (*models.Stats, error) {
	approved, err := m.store.Count(ctx, models.CollectionApproved)
	if err != nil {
		return nil, err
	}
	pending, err := m.store.Count(ctx, models.CollectionPending)
	if err != nil {
		return nil, err
	}
	rules := m.compliance.Snapshot()
	return &models.Stats{
		Approved:         approved,
		Pending:          pending,
		ComplianceActive: rules.Enabled,
		ComplianceRules:  len(rules.Rules),
	}, nil
}

// ComplianceRules returns the current rule set.
func (m *Moderator) ComplianceRules() models.ComplianceConfig {
	return m.compliance.Snapshot()
}

// SetComplianceRules applies the fields present in update. RulesText wins
// over Rules when both are set.
func (m *Moderator) SetComplianceRules(update models.ComplianceUpdate) models.ComplianceConfig {
	if update.Enabled != nil {
		m.compliance.SetEnabled(*update.Enabled)
	}
	switch {
	case update.RulesText != nil:
		m.compliance.SetRulesText(*update.RulesText)
	case update.Rules != nil:
		m.compliance.SetRules(update.Rules)
	}

	snapshot := m.compliance.Snapshot()
	m.logger.Info("Compliance rules updated",
		zap.Bool("enabled", snapshot.Enabled),
		zap.Int("rules", len(snapshot.Rules)))
	return snapshot
}
