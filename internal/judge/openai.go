package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/searchlab/search-eval/internal/pkg/errors"
)

const (
	// maxContentRunes truncates document content before prompting.
	maxContentRunes = 2000

	systemPrompt = "You are a search quality expert. Always respond in valid JSON format."

	promptTemplate = `You are a search quality evaluation expert. Rate the relevance of the document for the given search query.

Grading scale:
- 2 (highly relevant): the document directly and completely answers the query
- 1 (partially relevant): the document is related to the query but not a complete answer
- 0 (not relevant): the document is unrelated to the query

Search query:
%s

Document title:
%s

Document content:
%s

Instructions:
1. Weigh the relevance of the document to the query carefully
2. Respond with JSON only
3. Explain your grade briefly

Response format (JSON only):
{
  "relevance": 0 or 1 or 2,
  "reason": "one-sentence explanation"
}`
)

// OpenAIConfig configures the LLM judge.
type OpenAIConfig struct {
	// APIKey authenticates against the API; required.
	APIKey string

	// BaseURL overrides the endpoint for OpenAI-compatible servers.
	// Empty uses the official API.
	BaseURL string

	// Model is the chat model used for grading.
	Model string

	Temperature float32
	MaxTokens   int

	// RequestsPerSecond throttles classify calls. Zero disables throttling;
	// the orchestrator's concurrency bound is then the only backpressure.
	RequestsPerSecond float64
}

// OpenAI grades relevance with an OpenAI-compatible chat completion model.
type OpenAI struct {
	client  *openai.Client
	model   string
	temp    float32
	maxTok  int
	limiter *rate.Limiter
}

// NewOpenAI creates an LLM judge from explicit configuration. Credentials
// are injected here, never read from process-wide state.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.ConfigurationError("judge API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 200
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	j := &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		temp:   cfg.Temperature,
		maxTok: cfg.MaxTokens,
	}
	if cfg.RequestsPerSecond > 0 {
		j.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return j, nil
}

// Name identifies the judge for the labeled_by field.
func (j *OpenAI) Name() string {
	return "ai-" + j.model
}

// Classify grades one (query, document) pair.
func (j *OpenAI) Classify(ctx context.Context, req Request) (Result, error) {
	if j.limiter != nil {
		if err := j.limiter.Wait(ctx); err != nil {
			return Result{}, errors.ClassificationError("rate limit wait interrupted", err)
		}
	}

	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       j.model,
		Temperature: j.temp,
		MaxTokens:   j.maxTok,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
	})
	if err != nil {
		return Result{}, errors.ClassificationError("chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, errors.ClassificationError("no choices returned from API", nil)
	}

	return parseGradeResponse(resp.Choices[0].Message.Content)
}

func buildPrompt(req Request) string {
	title := req.Title
	if title == "" {
		title = "(no title)"
	}
	content := req.Content
	if content == "" {
		content = "(no content)"
	} else if runes := []rune(content); len(runes) > maxContentRunes {
		content = string(runes[:maxContentRunes])
	}
	return fmt.Sprintf(promptTemplate, req.Query, title, content)
}

// parseGradeResponse extracts and validates the JSON grade from a model
// response, tolerating fenced code blocks around the JSON body.
func parseGradeResponse(content string) (Result, error) {
	content = stripFences(strings.TrimSpace(content))

	var parsed struct {
		Relevance *int   `json:"relevance"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Result{}, errors.ClassificationError("malformed judge response", err)
	}
	if parsed.Relevance == nil {
		return Result{}, errors.ClassificationError("judge response missing relevance field", nil)
	}
	if *parsed.Relevance < 0 || *parsed.Relevance > 2 {
		return Result{}, errors.ClassificationError(
			fmt.Sprintf("invalid relevance grade: %d", *parsed.Relevance), nil)
	}

	return Result{Grade: *parsed.Relevance, Reason: parsed.Reason}, nil
}

func stripFences(content string) string {
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+len("```"):]
	} else {
		return content
	}
	if end := strings.Index(content, "```"); end >= 0 {
		content = content[:end]
	}
	return strings.TrimSpace(content)
}
