package service

import (
	"strings"
	"sync"

	"comment-moderation/internal/models"
)

// ComplianceRules is the operator-edited policy list. Rules are sent to the
// classifier only while the set is enabled.
type ComplianceRules struct {
	mu      sync.RWMutex
	enabled bool
	rules   []string
}

// NewComplianceRules creates a rule set with the given initial state.
func NewComplianceRules(enabled bool, rules []string) *ComplianceRules {
	return &ComplianceRules{
		enabled: enabled,
		rules:   normalizeRules(rules),
	}
}

// SetEnabled toggles whether the rules are applied.
func (c *ComplianceRules) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

// SetRules replaces the rule list. Blank entries are dropped, order is kept.
func (c *ComplianceRules) SetRules(rules []string) {
	normalized := normalizeRules(rules)
	c.mu.Lock()
	c.rules = normalized
	c.mu.Unlock()
}

// SetRulesText replaces the rule list from one newline-separated string.
func (c *ComplianceRules) SetRulesText(text string) {
	c.SetRules(strings.Split(text, "\n"))
}

// Snapshot returns a copy of the current state.
func (c *ComplianceRules) Snapshot() models.ComplianceConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rules := make([]string, len(c.rules))
	copy(rules, c.rules)
	return models.ComplianceConfig{Enabled: c.enabled, Rules: rules}
}

// Active returns the rules to pass to the classifier, or nil when disabled.
func (c *ComplianceRules) Active() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.enabled {
		return nil
	}
	rules := make([]string, len(c.rules))
	copy(rules, c.rules)
	return rules
}

func normalizeRules(rules []string) []string {
	out := make([]string, 0, len(rules))
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule != "" {
			out = append(out, rule)
		}
	}
	return out
}
