package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
	"github.com/krishrathi1/kalasarthi-match/internal/metrics"
)

const maxConcepts = 12

const expansionPrompt = `You expand buyer searches for an Indian handicraft marketplace.
Given a buyer query, reply with a JSON object:
{"expanded_query": "<query rewritten with craft synonyms, materials and techniques>",
 "concepts": ["<short lowercase concept>", ...]}
Keep the expanded query under 60 words and return at most 12 concepts.`

// Expander performs query expansion with a chat model in JSON mode.
type Expander struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewExpander creates a chat-based query expander.
func NewExpander(cfg *Config) *Expander {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{
		client: newClient(cfg.APIKey, cfg.BaseURL),
		model:  cfg.Model,
		logger: logger,
	}
}

type expansionReply struct {
	ExpandedQuery string   `json:"expanded_query"`
	Concepts      []string `json:"concepts"`
}

// Expand implements domain.Expander.
func (e *Expander) Expand(ctx context.Context, text string) (domain.Expansion, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: expansionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		metrics.ExpansionRequestsTotal.WithLabelValues(e.model, "error").Inc()
		return domain.Expansion{}, fmt.Errorf("expansion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.ExpansionRequestsTotal.WithLabelValues(e.model, "error").Inc()
		return domain.Expansion{}, fmt.Errorf("expansion returned no choices")
	}

	var reply expansionReply
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &reply); err != nil {
		metrics.ExpansionRequestsTotal.WithLabelValues(e.model, "error").Inc()
		return domain.Expansion{}, fmt.Errorf("decode expansion: %w", err)
	}

	metrics.ExpansionRequestsTotal.WithLabelValues(e.model, "success").Inc()
	return domain.Expansion{
		Expanded: strings.TrimSpace(reply.ExpandedQuery),
		Concepts: normalizeConcepts(reply.Concepts, text),
	}, nil
}

// normalizeConcepts lowercases, dedupes and caps concepts, falling back to the query terms.
func normalizeConcepts(in []string, text string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) == maxConcepts {
			break
		}
	}
	if len(out) == 0 {
		return query.Terms(text)
	}
	return out
}
