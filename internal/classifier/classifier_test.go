package classifier

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"comment-moderation/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	resp      *Response
	err       error
	panicWith any
	block     bool
	calls     int
	gotText   string
	gotRules  []string
}

func (f *fakeProvider) Guard(ctx context.Context, text string, rules []string) (*Response, error) {
	f.calls++
	f.gotText = text
	f.gotRules = rules
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Close() error { return nil }

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func TestGatewayClassify(t *testing.T) {
	testCases := []struct {
		name       string
		findings   []Finding
		safe       bool
		reason     string
		confidence float64
	}{
		{
			name:       "safe finding",
			findings:   []Finding{{IsSafe: boolPtr(true), Score: floatPtr(0.9), Category: "generic", Method: "x"}},
			safe:       true,
			reason:     "generic (x)",
			confidence: 0.9,
		},
		{
			name:       "unsafe finding",
			findings:   []Finding{{IsSafe: boolPtr(false), Score: floatPtr(0.8), Category: "hate", Method: "y"}},
			safe:       false,
			reason:     "hate (y)",
			confidence: 0.8,
		},
		{
			name:       "only the first finding counts",
			findings:   []Finding{{IsSafe: boolPtr(true), Score: floatPtr(0.7), Category: "generic", Method: "a"}, {IsSafe: boolPtr(false), Score: floatPtr(1), Category: "hate", Method: "b"}},
			safe:       true,
			reason:     "generic (a)",
			confidence: 0.7,
		},
		{
			name:       "empty findings are safe with default metadata",
			findings:   nil,
			safe:       true,
			reason:     "generic (unknown)",
			confidence: 0.0,
		},
		{
			name:       "missing safe flag defaults to safe",
			findings:   []Finding{{Score: floatPtr(0.4), Category: "pii", Method: "en"}},
			safe:       true,
			reason:     "pii (en)",
			confidence: 0.4,
		},
		{
			name:       "missing score on safe finding defaults to zero",
			findings:   []Finding{{IsSafe: boolPtr(true), Category: "generic", Method: "m"}},
			safe:       true,
			reason:     "generic (m)",
			confidence: 0.0,
		},
		{
			name:       "missing score on unsafe finding defaults to one",
			findings:   []Finding{{IsSafe: boolPtr(false), Category: "violence", Method: "m"}},
			safe:       false,
			reason:     "violence (m)",
			confidence: 1.0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{resp: &Response{Findings: tc.findings}}
			gateway := NewGateway(provider, time.Second, zap.NewNop())

			verdict := gateway.Classify(context.Background(), "hello", nil)

			assert.Equal(t, tc.safe, verdict.Safe)
			assert.Equal(t, tc.reason, verdict.Reason)
			assert.InDelta(t, tc.confidence, verdict.Confidence, 1e-9)
			assert.False(t, verdict.Timestamp.IsZero())
			assert.Equal(t, 1, provider.calls)
		})
	}
}

func TestGatewayFailOpen(t *testing.T) {
	testCases := []struct {
		name     string
		provider *fakeProvider
		reason   string
	}{
		{
			name:     "malformed response",
			provider: &fakeProvider{err: fmt.Errorf("%w: missing data", ErrMalformedResponse)},
			reason:   models.ReasonParseError,
		},
		{
			name:     "nil response",
			provider: &fakeProvider{},
			reason:   models.ReasonParseError,
		},
		{
			name:     "unsupported operation",
			provider: &fakeProvider{err: fmt.Errorf("%w: no guard", ErrUnsupported)},
			reason:   models.ReasonMethodError,
		},
		{
			name:     "network error",
			provider: &fakeProvider{err: errors.New("connection refused")},
			reason:   models.ReasonAPIError,
		},
		{
			name:     "panic",
			provider: &fakeProvider{panicWith: "boom"},
			reason:   models.ReasonAPIError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway := NewGateway(tc.provider, time.Second, zap.NewNop())

			verdict := gateway.Classify(context.Background(), "x", nil)

			assert.True(t, verdict.Safe)
			assert.Equal(t, tc.reason, verdict.Reason)
			assert.Zero(t, verdict.Confidence)
			assert.False(t, verdict.Timestamp.IsZero())
		})
	}
}

func TestGatewayTimeoutFailsOpen(t *testing.T) {
	provider := &fakeProvider{block: true}
	gateway := NewGateway(provider, 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	verdict := gateway.Classify(context.Background(), "slow", nil)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, verdict.Safe)
	assert.Equal(t, models.ReasonAPIError, verdict.Reason)
}

func TestGatewayPassesRules(t *testing.T) {
	provider := &fakeProvider{resp: &Response{}}
	gateway := NewGateway(provider, time.Second, zap.NewNop())

	gateway.Classify(context.Background(), "text", []string{"no medical advice"})
	require.Equal(t, []string{"no medical advice"}, provider.gotRules)
	assert.Equal(t, "text", provider.gotText)

	gateway.Classify(context.Background(), "text", nil)
	assert.Nil(t, provider.gotRules)
}
