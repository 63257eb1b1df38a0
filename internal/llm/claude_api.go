package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/sprout/internal/version"
)

const (
	defaultClaudeEndpoint = "https://api.anthropic.com/v1/messages"
	claudeAPIVersion      = "2023-06-01"
	defaultClaudeMaxToken = 4096
)

// ClaudeAPIClient is a direct HTTP client for the Claude Messages API with
// native tool use.
type ClaudeAPIClient struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewClaudeAPIClient creates a new Claude API client. An empty endpoint
// selects the public API.
func NewClaudeAPIClient(apiKey, model, endpoint string) *ClaudeAPIClient {
	if endpoint == "" {
		endpoint = defaultClaudeEndpoint
	}
	return &ClaudeAPIClient{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the provider name.
func (c *ClaudeAPIClient) Name() string {
	return "claude"
}

// Complete sends a non-streaming completion request to the Claude API.
func (c *ClaudeAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	payload, err := json.Marshal(c.buildRequestBody(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", claudeAPIVersion)
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ProviderError{Provider: c.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: c.Name(),
			Message:  apiErrorMessage(respBody),
			Code:     resp.StatusCode,
		}
	}

	var result claudeAPIResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result.toCompletion(time.Since(start)), nil
}

func (c *ClaudeAPIClient) buildRequestBody(req CompletionRequest) claudeAPIRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxToken
	}

	body := claudeAPIRequest{
		Model:       model,
		System:      req.System,
		Messages:    messagesToClaude(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, claudeTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schemaOrEmpty(t.InputSchema),
		})
	}
	return body
}

// messagesToClaude maps the flat message list onto Claude's content-block
// format. Consecutive tool results are folded into one user message, which
// is what the API expects after an assistant turn with several tool_use blocks.
func messagesToClaude(msgs []Message) []claudeMessage {
	var out []claudeMessage
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			continue
		case RoleTool:
			block := claudeContentBlock{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.Content,
			}
			if n := len(out); n > 0 && out[n-1].Role == RoleUser && isToolResultMessage(out[n-1]) {
				out[n-1].Content = append(out[n-1].Content, block)
				continue
			}
			out = append(out, claudeMessage{Role: RoleUser, Content: []claudeContentBlock{block}})
		case RoleAssistant:
			var blocks []claudeContentBlock
			if m.Content != "" {
				blocks = append(blocks, claudeContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, claudeContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: toolInputJSON(tc.Input),
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, claudeMessage{Role: RoleAssistant, Content: blocks})
		default:
			out = append(out, claudeMessage{
				Role:    RoleUser,
				Content: []claudeContentBlock{{Type: "text", Text: m.Content}},
			})
		}
	}
	return out
}

func isToolResultMessage(m claudeMessage) bool {
	return len(m.Content) > 0 && m.Content[0].Type == "tool_result"
}

// toolInputJSON returns the call input as raw JSON, substituting an empty
// object when the model produced something that is not valid JSON.
func toolInputJSON(input string) json.RawMessage {
	if input == "" || !json.Valid([]byte(input)) {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(input)
}

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// schemaOrEmpty returns schema when it is a JSON object. The API requires
// input_schema on every tool.
func schemaOrEmpty(schema json.RawMessage) json.RawMessage {
	if len(schema) == 0 || !json.Valid(schema) || bytes.TrimSpace(schema)[0] != '{' {
		return emptyObjectSchema
	}
	return schema
}

// apiErrorMessage extracts error.message from an API error body, falling
// back to the raw body.
func apiErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func (r *claudeAPIResponse) toCompletion(duration time.Duration) *CompletionResponse {
	var content strings.Builder
	var toolCalls []ToolCall

	for _, block := range r.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			input := string(block.Input)
			if input == "" {
				input = "{}"
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: r.StopReason,
		ToolCalls:  toolCalls,
		Usage: Usage{
			InputTokens:  r.Usage.InputTokens,
			OutputTokens: r.Usage.OutputTokens,
		},
		Model:    r.Model,
		Duration: duration,
	}
}

// API request/response structures

type claudeAPIRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
	Tools       []claudeTool    `json:"tools,omitempty"`
}

type claudeMessage struct {
	Role    string               `json:"role"`
	Content []claudeContentBlock `json:"content"`
}

type claudeTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type claudeAPIResponse struct {
	ID         string               `json:"id"`
	Type       string               `json:"type"`
	Role       string               `json:"role"`
	Content    []claudeContentBlock `json:"content"`
	Model      string               `json:"model"`
	StopReason string               `json:"stop_reason"`
	Usage      claudeUsage          `json:"usage"`
}

type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
