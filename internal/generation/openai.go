package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"go-party/internal/history"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	maxResponseBytes = 1 << 20
	maxErrorBytes    = 4096
)

// ClientConfig configures an OpenAI-compatible chat completions endpoint.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Client talks to any server implementing the chat completions API.
type Client struct {
	cfg ClientConfig
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &Client{cfg: cfg}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) Respond(ctx context.Context, req Request) (Reply, error) {
	if len(req.Messages) == 0 {
		return Reply{}, ErrEmptyBatch
	}

	lines, err := json.Marshal(req.Messages)
	if err != nil {
		return Reply{}, fmt.Errorf("marshal batch: %w", err)
	}
	system := fmt.Sprintf(`You are %s, a character at a bar. Personality: %s.
Several people may talk to you at once. Answer all of them with ONE short reply (1-2 sentences), in character.
Score each person's message from %d to %d by how much your personality likes it, considering their current
relationship level (-50..100).
Respond with a JSON object: {"reply": string, "scores": {"<sender_id>": integer}}.`,
		req.RecipientName, req.Persona.Brief(), MinScore, MaxScore)

	msgs := append(historyMessages(req.History), chatMessage{Role: "user", Content: string(lines)})
	content, err := c.complete(ctx, system, msgs, 300)
	if err != nil {
		return Reply{}, err
	}
	return parseReply(content)
}

func (c *Client) EvaluateProposal(ctx context.Context, req ProposalRequest) (Verdict, error) {
	system := fmt.Sprintf(`You are %s, a character at a bar. Personality: %s.
%s has impressed you (relationship level %d/100) and is now making their final move.
Decide whether you accept, true to your personality, and answer in 1-2 sentences.
Respond with a JSON object: {"accepted": boolean, "reply": string}.`,
		req.RecipientName, req.Persona.Brief(), req.ProposerName, req.Reputation)

	msgs := append(historyMessages(req.History), chatMessage{
		Role:    "user",
		Content: fmt.Sprintf("%s's proposal: %q", req.ProposerName, req.Text),
	})
	content, err := c.complete(ctx, system, msgs, 200)
	if err != nil {
		return Verdict{}, err
	}
	return parseVerdict(content)
}

func (c *Client) complete(ctx context.Context, system string, msgs []chatMessage, maxTokens int) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":           c.cfg.Model,
		"max_tokens":      maxTokens,
		"messages":        append([]chatMessage{{Role: "system", Content: system}}, msgs...),
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBytes))
		return "", fmt.Errorf("completion request status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("decode completion response: %w", ErrMalformedOutput)
	}
	content := strings.TrimSpace(gjson.GetBytes(raw, "choices.0.message.content").String())
	if content == "" {
		return "", fmt.Errorf("completion has no content: %w", ErrMalformedOutput)
	}
	return content, nil
}

func historyMessages(entries []history.Entry) []chatMessage {
	out := make([]chatMessage, 0, len(entries))
	for _, e := range entries {
		if e.Role == history.FromRecipient {
			out = append(out, chatMessage{Role: "assistant", Content: e.Text})
			continue
		}
		out = append(out, chatMessage{Role: "user", Content: e.Speaker + ": " + e.Text})
	}
	return out
}

// jsonObject returns the outermost {...} span of s, which tolerates prose or
// code fences wrapped around the object.
func jsonObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	obj := s[start : end+1]
	return obj, gjson.Valid(obj)
}

// parseReply extracts text and scores. Anything that is not a number is left
// out of Scores so Sanitize defaults it to neutral. Content without a JSON
// object is used verbatim as the reply.
func parseReply(content string) (Reply, error) {
	obj, ok := jsonObject(content)
	if !ok {
		return Reply{Text: content, Scores: map[string]int{}}, nil
	}

	reply := Reply{
		Text:   strings.TrimSpace(gjson.Get(obj, "reply").String()),
		Scores: make(map[string]int),
	}
	gjson.Get(obj, "scores").ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.Number {
			reply.Scores[k.String()] = int(math.Round(v.Float()))
		}
		return true
	})
	if reply.Text == "" && len(reply.Scores) == 0 {
		return Reply{}, ErrMalformedOutput
	}
	return reply, nil
}

var decisionPattern = regexp.MustCompile(`(?i)DECISION:\s*(ACCEPT|REJECT)`)

func parseVerdict(content string) (Verdict, error) {
	if obj, ok := jsonObject(content); ok {
		accepted := gjson.Get(obj, "accepted")
		if accepted.Type == gjson.True || accepted.Type == gjson.False {
			return Verdict{
				Accepted: accepted.Bool(),
				Text:     strings.TrimSpace(gjson.Get(obj, "reply").String()),
			}, nil
		}
	}
	if m := decisionPattern.FindStringSubmatch(content); m != nil {
		return Verdict{Accepted: strings.EqualFold(m[1], "ACCEPT")}, nil
	}
	return Verdict{}, ErrMalformedOutput
}
