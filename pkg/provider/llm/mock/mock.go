// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider to return pre-canned completion content without a live model
// and to verify which prompts were submitted.
//
// Example:
//
//	p := &mock.Provider{Responses: []string{`{"shape":"qna","confidence":0.95}`}}
//	resp, _ := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/moorline/moorline/pkg/provider/llm"
)

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the request passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Responses is a queue of completion contents returned in order by
	// successive Complete calls. When the queue is exhausted the last element
	// is repeated. An empty queue yields an empty-content response.
	Responses []string

	// Err, if non-nil, is returned as the error from every Complete call.
	Err error

	// CompleteFunc, if non-nil, overrides Responses/Err entirely.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// --- Call records ---

	// Calls records every call to Complete in order.
	Calls []CompleteCall

	next int
}

// Complete records the call and returns the next queued response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, CompleteCall{Ctx: ctx, Req: req})

	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	if p.Err != nil {
		return nil, p.Err
	}

	content := ""
	if len(p.Responses) > 0 {
		idx := p.next
		if idx >= len(p.Responses) {
			idx = len(p.Responses) - 1
		}
		content = p.Responses[idx]
		p.next++
	}
	return &llm.CompletionResponse{Content: content}, nil
}

// Reset clears all recorded calls and rewinds the response queue. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
	p.next = 0
}
