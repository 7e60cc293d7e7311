package classifier

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemInstruction is shared by the LLM-backed providers.
const SystemInstruction = `You are a content-safety classifier for a live video chat.
Classify the user comment and answer with JSON only, no prose, in this exact shape:
{"safety": [{"safety": "<category>", "isSafe": <true|false>, "score": <number 0..1>, "method": "llm"}]}

Categories: generic, hate, harassment, sexual, violence, self-harm, spam, pii, compliance.
When isSafe is true, score is your confidence that the comment is safe.
When isSafe is false, score is your confidence that the comment is harmful.
Put the most relevant category first.`

// BuildPrompt renders the user prompt for one comment.
func BuildPrompt(text string, rules []string) string {
	var b strings.Builder
	if len(rules) > 0 {
		b.WriteString("The operator requires these compliance rules. A comment that breaks any of them is unsafe with category \"compliance\":\n")
		for i, rule := range rules {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
		}
		b.WriteString("\n")
	}
	b.WriteString("Comment:\n")
	b.WriteString(text)
	return b.String()
}

// wireFinding is the JSON shape of one safety finding.
type wireFinding struct {
	Category string   `json:"safety"`
	IsSafe   *bool    `json:"isSafe"`
	Score    *float64 `json:"score"`
	Method   string   `json:"method"`
}

func (w wireFinding) finding() Finding {
	return Finding{
		IsSafe:   w.IsSafe,
		Score:    w.Score,
		Category: w.Category,
		Method:   w.Method,
	}
}

func toResponse(in []wireFinding) *Response {
	resp := &Response{Findings: make([]Finding, 0, len(in))}
	for _, w := range in {
		resp.Findings = append(resp.Findings, w.finding())
	}
	return resp
}

// parseFindings decodes the JSON an LLM returned, tolerating markdown fences.
func parseFindings(raw string) (*Response, error) {
	clean := cleanMarkdown(raw)

	var envelope struct {
		Safety *[]wireFinding `json:"safety"`
	}
	if err := json.Unmarshal([]byte(clean), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if envelope.Safety == nil {
		return nil, fmt.Errorf("%w: missing safety list", ErrMalformedResponse)
	}
	return toResponse(*envelope.Safety), nil
}

// cleanMarkdown removes markdown code blocks if present.
func cleanMarkdown(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
