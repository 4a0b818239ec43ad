package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"go-party/internal/history"
)

func completionServer(t *testing.T, content string, inspect func(body string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		if inspect != nil {
			inspect(string(body))
		}
		resp, _ := json.Marshal(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(resp)
	}))
}

func TestClientRespondParsesReplyAndScores(t *testing.T) {
	t.Parallel()

	srv := completionServer(t, `{"reply":"You two are trouble.","scores":{"m1":3,"m2":-2}}`, func(body string) {
		assert.Equal(t, "test-model", gjson.Get(body, "model").String())
		msgs := gjson.Get(body, "messages").Array()
		require.Len(t, msgs, 3)
		assert.Equal(t, "system", msgs[0].Get("role").String())
		assert.Equal(t, "user", msgs[1].Get("role").String())
		assert.Equal(t, "ana: hello", msgs[1].Get("content").String())
		assert.Contains(t, msgs[2].Get("content").String(), `"sender_id":"m2"`)
	})
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "test-model"})
	got, err := c.Respond(context.Background(), Request{
		RecipientName: "Luna",
		Persona:       Challenge,
		Messages: []Message{
			{SenderID: "m1", SenderName: "ana", Text: "hi"},
			{SenderID: "m2", SenderName: "bo", Text: "hey"},
		},
		History: []history.Entry{{Role: history.FromMember, Speaker: "ana", Text: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "You two are trouble.", got.Text)
	assert.Equal(t, map[string]int{"m1": 3, "m2": -2}, got.Scores)
}

func TestClientRespondToleratesGarbageScores(t *testing.T) {
	t.Parallel()

	srv := completionServer(t, "Sure!\n```json\n{\"reply\":\"ok\",\"scores\":{\"m1\":\"lots\",\"m2\":2.6}}\n```", nil)
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test"})
	req := Request{Messages: []Message{{SenderID: "m1"}, {SenderID: "m2"}}}
	got, err := c.Respond(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"m2": 3}, got.Scores)

	clean := Sanitize(req, got)
	assert.Equal(t, map[string]int{"m1": 0, "m2": 3}, clean.Scores)
}

func TestClientRespondUsesPlainTextAsReply(t *testing.T) {
	t.Parallel()

	srv := completionServer(t, "Not tonight, sweetie.", nil)
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test"})
	got, err := c.Respond(context.Background(), Request{Messages: []Message{{SenderID: "m1"}}})
	require.NoError(t, err)
	assert.Equal(t, "Not tonight, sweetie.", got.Text)
	assert.Empty(t, got.Scores)
}

func TestClientRespondReportsStatusErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.Respond(context.Background(), Request{Messages: []Message{{SenderID: "m1"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestClientRespondRejectsEmptyBatch(t *testing.T) {
	t.Parallel()

	c := NewClient(ClientConfig{})
	_, err := c.Respond(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestClientEvaluateProposal(t *testing.T) {
	t.Parallel()

	srv := completionServer(t, `{"accepted": true, "reply": "Let's go."}`, nil)
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test"})
	got, err := c.EvaluateProposal(context.Background(), ProposalRequest{ProposerName: "ana", Text: "leave with me"})
	require.NoError(t, err)
	assert.Equal(t, Verdict{Accepted: true, Text: "Let's go."}, got)
}

func TestParseVerdictFallsBackToDecisionLine(t *testing.T) {
	t.Parallel()

	got, err := parseVerdict("DECISION: reject\nRESPONSE: nope")
	require.NoError(t, err)
	assert.False(t, got.Accepted)

	_, err = parseVerdict("who knows")
	assert.True(t, errors.Is(err, ErrMalformedOutput))
}

func TestParseReplyRejectsEmptyObject(t *testing.T) {
	t.Parallel()

	_, err := parseReply(`{"mood":"meh"}`)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestOfflineScoresEverySender(t *testing.T) {
	t.Parallel()

	o := NewOffline(1)
	req := Request{Persona: Romantic, Messages: []Message{{SenderID: "a"}, {SenderID: "b"}}}
	got, err := o.Respond(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, got.Scores, 2)
	for _, s := range got.Scores {
		assert.GreaterOrEqual(t, s, -1)
		assert.LessOrEqual(t, s, 3)
	}
	assert.NotEmpty(t, got.Text)
}
