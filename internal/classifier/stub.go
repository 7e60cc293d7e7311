package classifier

import (
	"context"
	"strings"
)

// StubClient is an offline provider for demos and local runs. A comment is
// unsafe when it contains one of the configured terms or compliance rules.
type StubClient struct {
	terms []string
}

// NewStubClient normalizes terms to lower case and drops blanks.
func NewStubClient(terms []string) *StubClient {
	normalized := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		normalized = append(normalized, strings.ToLower(term))
	}
	return &StubClient{terms: normalized}
}

// Guard reports one finding.
func (c *StubClient) Guard(ctx context.Context, text string, rules []string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(text)
	for _, term := range c.terms {
		if strings.Contains(lower, term) {
			return unsafeFinding("keyword"), nil
		}
	}
	for _, rule := range rules {
		if rule != "" && strings.Contains(lower, strings.ToLower(rule)) {
			return unsafeFinding("compliance"), nil
		}
	}

	safe, score := true, 0.95
	return &Response{Findings: []Finding{{
		IsSafe:   &safe,
		Score:    &score,
		Category: "generic",
		Method:   "stub",
	}}}, nil
}

func unsafeFinding(category string) *Response {
	safe, score := false, 0.9
	return &Response{Findings: []Finding{{
		IsSafe:   &safe,
		Score:    &score,
		Category: category,
		Method:   "stub",
	}}}
}

// Name identifies the provider.
func (c *StubClient) Name() string {
	return "stub"
}

// Close is a no-op.
func (c *StubClient) Close() error {
	return nil
}
