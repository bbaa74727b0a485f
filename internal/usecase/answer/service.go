// Package answer turns retrieved records into a natural-language answer via
// an OpenAI-compatible chat completion.
package answer

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/helios-eng/helios/internal/domain"
	"github.com/helios-eng/helios/internal/domain/search/result"
)

const systemPromptFormat = "You are a precise engineering assistant. " +
	"Answer based ONLY on the context provided. If the context is empty or " +
	"does not contain the answer, say so.\nContext:\n%s"

// ChatClient is the chat completion contract, satisfied by *openai.Client.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Message is one turn of prior conversation, role "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Service generates grounded answers from retrieved records.
type Service struct {
	chat   ChatClient
	model  string
	logger *zap.Logger
}

// New creates an answer service.
func New(chat ChatClient, model string, logger *zap.Logger) *Service {
	return &Service{chat: chat, model: model, logger: logger}
}

// Answer stuffs the retrieved records into the system prompt and completes
// the conversation. History is forwarded verbatim; the retrieval query is
// not rephrased from it.
func (s *Service) Answer(ctx context.Context, question string, history []Message, records []result.Result) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(systemPromptFormat, stuffContext(records)),
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})

	resp, err := s.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrAnswerProviderError, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion response", domain.ErrAnswerProviderError)
	}

	s.logger.Debug("answer generated",
		zap.String("model", s.model),
		zap.Int("context_records", len(records)),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

func stuffContext(records []result.Result) string {
	if len(records) == 0 {
		return "(no matching records)"
	}
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(r.Content())
	}
	return b.String()
}
