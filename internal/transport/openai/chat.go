package openai

import openai "github.com/sashabaranov/go-openai"

// NewChatClient creates an OpenAI-compatible chat client. The returned
// client satisfies the answer service's ChatClient contract.
func NewChatClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
