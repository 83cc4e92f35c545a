package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// promptFunc is the llmkit call shape; swapped in tests.
type promptFunc func(system, user, apiKey string, settings types.RequestSettings) (string, error)

type anthropicProvider struct {
	apiKey    string
	model     string
	maxTokens int
	prompt    promptFunc
}

func anthropicPrompt(system, user, apiKey string, settings types.RequestSettings) (string, error) {
	resp, err := anthropic.PromptWithSettings(system, user, "", apiKey, settings)
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: %v", ErrUpstream, err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("%w: no content in anthropic response", ErrMalformedResponse)
	}
	return resp.Content[0].Text, nil
}

// GeneratePost runs the llmkit call off the caller's goroutine so ctx
// cancellation is honored even though llmkit itself takes no context.
func (a *anthropicProvider) GeneratePost(ctx context.Context, r PostRequest) (GeneratedPost, error) {
	settings := types.RequestSettings{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: 0.7,
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := a.prompt(systemPrompt, UserPrompt(r), a.apiKey, settings)
		done <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return GeneratedPost{}, fmt.Errorf("%w: %v", ErrUpstream, ctx.Err())
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, ErrUpstream) || errors.Is(res.err, ErrMalformedResponse) {
				return GeneratedPost{}, res.err
			}
			return GeneratedPost{}, fmt.Errorf("%w: %v", ErrUpstream, res.err)
		}
		return Decode(res.text)
	}
}
