package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"comment-moderation/internal/classifier"
	"comment-moderation/internal/models"
	"comment-moderation/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedProvider struct {
	resp      *classifier.Response
	err       error
	gotRules  []string
	callCount int
}

func (p *scriptedProvider) Guard(_ context.Context, _ string, rules []string) (*classifier.Response, error) {
	p.callCount++
	p.gotRules = rules
	return p.resp, p.err
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) Close() error { return nil }

func finding(safe bool, score float64, category, method string) *classifier.Response {
	return &classifier.Response{Findings: []classifier.Finding{{
		IsSafe:   &safe,
		Score:    &score,
		Category: category,
		Method:   method,
	}}}
}

type recordingNotifier struct {
	got chan *models.Comment
}

func (n *recordingNotifier) NotifyPending(_ context.Context, c *models.Comment) error {
	n.got <- c
	return nil
}

type fixture struct {
	moderator  *Moderator
	provider   *scriptedProvider
	store      repository.CommentStore
	compliance *ComplianceRules
	notifier   *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	provider := &scriptedProvider{resp: finding(true, 0.9, "generic", "x")}
	store := repository.NewMemoryStore()
	compliance := NewComplianceRules(true, nil)
	notifier := &recordingNotifier{got: make(chan *models.Comment, 16)}
	gateway := classifier.NewGateway(provider, time.Second, zap.NewNop())

	m := NewModerator(gateway, store, compliance, notifier, 500, zap.NewNop())
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("c%d", n)
	}
	m.identity = func() Identity { return Identity{Author: "@user1234", Avatar: "🔵"} }

	return &fixture{
		moderator:  m,
		provider:   provider,
		store:      store,
		compliance: compliance,
		notifier:   notifier,
	}
}

func TestSubmitSafeGoesToApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	comment, err := f.moderator.Submit(ctx, "alice", "hello")
	require.NoError(t, err)

	assert.True(t, comment.Safe)
	assert.Equal(t, 0.9, comment.Confidence)
	assert.Equal(t, "generic (x)", comment.Reason)
	assert.Equal(t, models.StateApproved, comment.ApprovalState)
	assert.Equal(t, "alice", comment.Author)
	assert.False(t, comment.CreatedAt.IsZero())

	approved, err := f.moderator.ListApproved(ctx)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, comment.ID, approved[0].ID)

	pending, err := f.moderator.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmitUnsafeThenApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.resp = finding(false, 0.8, "hate", "y")

	comment, err := f.moderator.Submit(ctx, "", "bad")
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, comment.ApprovalState)
	assert.Equal(t, "hate (y)", comment.Reason)
	assert.Equal(t, "@user1234", comment.Author)
	assert.Equal(t, "🔵", comment.Avatar)

	select {
	case notified := <-f.notifier.got:
		assert.Equal(t, comment.ID, notified.ID)
	case <-time.After(time.Second):
		t.Fatal("moderators were not notified")
	}

	approved, err := f.moderator.Approve(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateApproved, approved.ApprovalState)
	assert.True(t, approved.CreatedAt.Equal(comment.CreatedAt))
	assert.False(t, approved.Safe)
	assert.Equal(t, "hate (y)", approved.Reason)
	assert.Equal(t, 0.8, approved.Confidence)

	list, err := f.moderator.ListApproved(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, comment.ID, list[0].ID)

	_, err = f.moderator.Approve(ctx, comment.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitFailsOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.resp = nil
	f.provider.err = fmt.Errorf("%w: no safety list", classifier.ErrMalformedResponse)

	comment, err := f.moderator.Submit(ctx, "bob", "x")
	require.NoError(t, err)
	assert.True(t, comment.Safe)
	assert.Equal(t, models.ReasonParseError, comment.Reason)
	assert.Equal(t, 0.0, comment.Confidence)
	assert.Equal(t, models.StateApproved, comment.ApprovalState)

	approved, err := f.moderator.ListApproved(ctx)
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.resp = finding(false, 0.7, "spam", "llm")

	comment, err := f.moderator.Submit(ctx, "eve", "buy now")
	require.NoError(t, err)

	require.NoError(t, f.moderator.Reject(ctx, comment.ID))

	pending, err := f.moderator.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	approved, err := f.moderator.ListApproved(ctx)
	require.NoError(t, err)
	assert.Empty(t, approved)

	assert.ErrorIs(t, f.moderator.Reject(ctx, comment.ID), ErrNotFound)
	_, err = f.moderator.Approve(ctx, comment.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecisionsOnApprovedCommentAreNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	comment, err := f.moderator.Submit(ctx, "alice", "hello")
	require.NoError(t, err)

	_, err = f.moderator.Approve(ctx, comment.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.moderator.Reject(ctx, comment.ID), ErrNotFound)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.moderator.Submit(ctx, "alice", "   \n ")
	assert.ErrorIs(t, err, ErrEmptyComment)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.moderator.Submit(ctx, "alice", strings.Repeat("é", 501))
	assert.ErrorIs(t, err, ErrCommentTooLong)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.moderator.Submit(ctx, "alice", strings.Repeat("é", 500))
	assert.NoError(t, err)

	assert.Equal(t, 1, f.provider.callCount, "invalid input never reaches the classifier")
}

func TestSubmitPassesRulesOnlyWhenEnabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.compliance.SetRules([]string{" no links ", "", "no politics"})
	_, err := f.moderator.Submit(ctx, "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"no links", "no politics"}, f.provider.gotRules)

	f.compliance.SetEnabled(false)
	_, err = f.moderator.Submit(ctx, "alice", "hello")
	require.NoError(t, err)
	assert.Nil(t, f.provider.gotRules)
}

func TestListApprovedKeepsSubmissionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.moderator.Submit(ctx, "alice", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	approved, err := f.moderator.ListApproved(ctx)
	require.NoError(t, err)
	require.Len(t, approved, 5)
	for i, c := range approved {
		assert.Equal(t, fmt.Sprintf("msg %d", i), c.Text)
	}
}

func TestFeedIsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	add := func(collection models.Collection, id string, offset time.Duration) {
		require.NoError(t, store.Append(ctx, collection, &models.Comment{ID: id, CreatedAt: base.Add(offset)}))
	}
	add(models.CollectionApproved, "a1", 0)
	add(models.CollectionPending, "p1", time.Minute)
	add(models.CollectionApproved, "a2", 2*time.Minute)

	m := NewModerator(nil, store, NewComplianceRules(true, nil), nil, 500, zap.NewNop())

	public, err := m.Feed(ctx, false)
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, "a2", public[0].ID)
	assert.Equal(t, "a1", public[1].ID)

	all, err := m.Feed(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a2", all[0].ID)
	assert.Equal(t, "p1", all[1].ID)
	assert.Equal(t, models.StatePending, all[1].Status)
	assert.Equal(t, "a1", all[2].ID)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.moderator.Submit(ctx, "alice", "hello")
	require.NoError(t, err)
	f.provider.resp = finding(false, 0.8, "hate", "y")
	_, err = f.moderator.Submit(ctx, "alice", "bad")
	require.NoError(t, err)
	_, err = f.moderator.Submit(ctx, "alice", "worse")
	require.NoError(t, err)
	f.compliance.SetRules([]string{"no links"})

	stats, err := f.moderator.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.Stats{Approved: 1, Pending: 2, ComplianceActive: true, ComplianceRules: 1}, stats)
}

func TestSetComplianceRules(t *testing.T) {
	f := newFixture(t)

	disabled := false
	got := f.moderator.SetComplianceRules(models.ComplianceUpdate{
		Enabled: &disabled,
		Rules:   []string{"a", "  ", "b"},
	})
	assert.Equal(t, models.ComplianceConfig{Enabled: false, Rules: []string{"a", "b"}}, got)

	text := "first\n\n  second  \n"
	got = f.moderator.SetComplianceRules(models.ComplianceUpdate{RulesText: &text, Rules: []string{"ignored"}})
	assert.Equal(t, models.ComplianceConfig{Enabled: false, Rules: []string{"first", "second"}}, got)

	assert.Equal(t, got, f.moderator.ComplianceRules())
}

func TestConcurrentDecisionsKeepExclusivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.resp = finding(false, 0.8, "hate", "y")

	comment, err := f.moderator.Submit(ctx, "alice", "bad")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(approve bool) {
			defer wg.Done()
			if approve {
				_, err := f.moderator.Approve(ctx, comment.ID)
				results <- err
				return
			}
			results <- f.moderator.Reject(ctx, comment.ID)
		}(i%2 == 0)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 1, succeeded)

	pending, err := f.moderator.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
