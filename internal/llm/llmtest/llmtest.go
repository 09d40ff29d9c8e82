// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/TobiSchelling/chronicle/internal/llm"
)

// Provider returns scripted responses and records every prompt it receives.
type Provider struct {
	// Respond computes the reply to a prompt. When nil, Response is returned.
	Respond  func(prompt string) (string, error)
	Response string
	// Down makes IsAvailable report false and Generate fail.
	Down bool

	mu      sync.Mutex
	prompts []string
}

var _ llm.Provider = (*Provider)(nil)

// Static returns a provider that always answers with response.
func Static(response string) *Provider {
	return &Provider{Response: response}
}

// Unavailable returns a provider whose backend is down.
func Unavailable() *Provider {
	return &Provider{Down: true}
}

// ByPrompt returns a provider choosing its answer by the first key (in
// order) contained in the prompt. Prompts matching no key get "".
func ByPrompt(pairs ...string) *Provider {
	return &Provider{Respond: func(prompt string) (string, error) {
		for i := 0; i+1 < len(pairs); i += 2 {
			if strings.Contains(prompt, pairs[i]) {
				return pairs[i+1], nil
			}
		}
		return "", nil
	}}
}

func (p *Provider) Generate(ctx context.Context, prompt string, _ int) (string, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	p.mu.Unlock()

	if p.Down {
		return "", llm.ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Respond != nil {
		return p.Respond(prompt)
	}
	return p.Response, nil
}

func (p *Provider) IsAvailable(context.Context) bool { return !p.Down }

func (p *Provider) Name() string { return "llmtest" }

// Calls returns the number of Generate calls so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

// Prompts returns a copy of every prompt received.
func (p *Provider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

// Reset forgets recorded prompts.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = nil
}
