package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"comment-moderation/internal/models"

	"go.uber.org/zap"
)

var (
	// ErrMalformedResponse marks a provider reply that could not be parsed.
	ErrMalformedResponse = errors.New("malformed classifier response")
	// ErrUnsupported marks a provider that cannot serve the request at all.
	ErrUnsupported = errors.New("unsupported classifier operation")
)

const (
	defaultCategory = "generic"
	defaultMethod   = "unknown"
	defaultTimeout  = 10 * time.Second
)

// Finding is one per-category safety result. Optional fields stay nil when
// the provider omitted them.
type Finding struct {
	IsSafe   *bool
	Score    *float64
	Category string
	Method   string
}

// Response is the raw provider reply.
type Response struct {
	Findings []Finding
}

// Provider is any external text-safety service.
type Provider interface {
	// Guard classifies text. rules is nil when compliance checks are off.
	Guard(ctx context.Context, text string, rules []string) (*Response, error)
	Name() string
	Close() error
}

// Gateway turns provider replies into verdicts and never returns an error:
// any provider failure yields a safe verdict whose reason names the failure.
type Gateway struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewGateway creates a gateway around provider
func NewGateway(provider Provider, timeout time.Duration, logger *zap.Logger) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gateway{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Classify calls the provider exactly once and normalizes its reply.
func (g *Gateway) Classify(ctx context.Context, text string, rules []string) (verdict models.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Classifier panicked, failing open",
				zap.String("provider", g.provider.Name()),
				zap.Any("panic", r))
			verdict = g.failOpen(models.ReasonAPIError)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.provider.Guard(callCtx, text, rules)
	if err != nil {
		reason := FailureReason(err)
		g.logger.Warn("Classification failed, failing open",
			zap.String("provider", g.provider.Name()),
			zap.String("reason", reason),
			zap.Error(err))
		return g.failOpen(reason)
	}
	if resp == nil {
		g.logger.Warn("Classifier returned no response, failing open",
			zap.String("provider", g.provider.Name()))
		return g.failOpen(models.ReasonParseError)
	}

	return g.fromFinding(resp.Findings)
}

// Name returns the underlying provider name.
func (g *Gateway) Name() string {
	return g.provider.Name()
}

// Close releases the provider.
func (g *Gateway) Close() error {
	return g.provider.Close()
}

func (g *Gateway) fromFinding(findings []Finding) models.Verdict {
	var f Finding
	if len(findings) > 0 {
		f = findings[0]
	}

	safe := true
	if f.IsSafe != nil {
		safe = *f.IsSafe
	}

	// Missing scores default by direction: 0.0 when safe, 1.0 when not.
	score := 0.0
	if !safe {
		score = 1.0
	}
	if f.Score != nil {
		score = *f.Score
	}

	category := f.Category
	if category == "" {
		category = defaultCategory
	}
	method := f.Method
	if method == "" {
		method = defaultMethod
	}

	return models.Verdict{
		Safe:       safe,
		Reason:     fmt.Sprintf("%s (%s)", category, method),
		Confidence: score,
		Timestamp:  g.now(),
	}
}

func (g *Gateway) failOpen(reason string) models.Verdict {
	return models.Verdict{
		Safe:       true,
		Reason:     reason,
		Confidence: 0.0,
		Timestamp:  g.now(),
	}
}

// FailureReason maps a provider error to the reason recorded on the verdict.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return models.ReasonParseError
	case errors.Is(err, ErrUnsupported):
		return models.ReasonMethodError
	default:
		return models.ReasonAPIError
	}
}
