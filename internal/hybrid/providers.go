package hybrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openAIChatURL      = "https://api.openai.com/v1/chat/completions"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAIProvider invokes OpenAI Chat Completions.
type OpenAIProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIProvider constructs the primary provider. An empty model
// selects a sensible default.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if strings.TrimSpace(model) == "" {
		model = openAIDefaultModel
	}
	return &OpenAIProvider{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		baseURL:    openAIChatURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OpenAIProvider) Name() string    { return "openai" }
func (p *OpenAIProvider) Priority() int   { return 1 }
func (p *OpenAIProvider) Available() bool { return p.apiKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) Invoke(ctx context.Context, req Request) (any, error) {
	payload, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPromptFor(req.Type)},
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("openai error: %s", decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai status %d", resp.StatusCode)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("openai returned no content")
	}
	return decoded.Choices[0].Message.Content, nil
}

func systemPromptFor(reqType string) string {
	switch reqType {
	case TypeMaterialAnalysis:
		return "You analyze document material and answer with a concise assessment."
	case TypeGeneration:
		return "You generate well-structured content for the user's request."
	case TypeTextProcessing:
		return "You clean up and transform the provided text exactly as asked."
	default:
		return "You are a helpful assistant."
	}
}

// RuleBasedProvider is the last-resort fallback: deterministic local
// processing that always answers, so a dispatch degrades instead of
// failing outright when no remote provider is reachable.
type RuleBasedProvider struct{}

// NewRuleBasedProvider constructs the fallback provider.
func NewRuleBasedProvider() *RuleBasedProvider {
	return &RuleBasedProvider{}
}

func (p *RuleBasedProvider) Name() string    { return "rule_based" }
func (p *RuleBasedProvider) Priority() int   { return 100 }
func (p *RuleBasedProvider) Available() bool { return true }

func (p *RuleBasedProvider) Invoke(ctx context.Context, req Request) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := strings.Join(strings.Fields(req.Prompt), " ")
	if text == "" {
		return nil, fmt.Errorf("empty prompt")
	}

	switch req.Type {
	case TypeTextProcessing:
		return text, nil
	case TypeMaterialAnalysis:
		return map[string]any{
			"summary":   truncateText(text, 200),
			"wordCount": len(strings.Fields(text)),
			"degraded":  true,
		}, nil
	default:
		return map[string]any{
			"result":   truncateText(text, 500),
			"degraded": true,
		}, nil
	}
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
