package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chatServer(t *testing.T, content string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		resp := map[string]any{
			"id": "cmpl-1",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatGuard(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, "```json\n{\"safety\":[{\"safety\":\"compliance\",\"isSafe\":false,\"score\":0.7,\"method\":\"llm\"}]}\n```", &seen)

	client, err := NewChatClient(GroqConfig("k", "", srv.URL), zap.NewNop())
	require.NoError(t, err)

	resp, err := client.Guard(context.Background(), "what pills should I take", []string{"reject medical questions"})
	require.NoError(t, err)
	require.Len(t, resp.Findings, 1)
	assert.Equal(t, "compliance", resp.Findings[0].Category)
	assert.False(t, *resp.Findings[0].IsSafe)

	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.True(t, strings.Contains(seen.Messages[1].Content, "reject medical questions"))
	assert.Equal(t, "llama-3.3-70b-versatile", seen.Model)
}

func TestChatGuardUnparseableContent(t *testing.T) {
	srv := chatServer(t, "I think this comment is fine.", nil)

	client, err := NewChatClient(OpenRouterConfig("k", "", srv.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = client.Guard(context.Background(), "hello", nil)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestParseFindings(t *testing.T) {
	resp, err := parseFindings(`{"safety":[]}`)
	require.NoError(t, err)
	assert.Empty(t, resp.Findings)

	_, err = parseFindings(`{"verdict":"ok"}`)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "Comment:\nhi", BuildPrompt("hi", nil))

	prompt := BuildPrompt("hi", []string{"a", "b"})
	assert.Contains(t, prompt, "1. a\n2. b\n")
	assert.True(t, strings.HasSuffix(prompt, "Comment:\nhi"))
}
