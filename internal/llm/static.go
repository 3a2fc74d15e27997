package llm

import (
	"context"
	"sync"
)

// StaticProvider is an in-process Generator that replays canned
// responses in order. Used by tests and by offline dry runs.
type StaticProvider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	next      int

	// Requests records every request received, for assertions.
	Requests []Request
}

// NewStaticProvider creates a provider that returns the given responses
// in sequence. Once exhausted it repeats the last response.
func NewStaticProvider(responses ...string) *StaticProvider {
	return &StaticProvider{responses: responses}
}

// Fail queues an error to be returned for the next call instead of a
// response.
func (p *StaticProvider) Fail(err error) *StaticProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
	return p
}

// Name returns the provider name.
func (p *StaticProvider) Name() string {
	return "static"
}

// IsAvailable always reports true.
func (p *StaticProvider) IsAvailable(ctx context.Context) bool {
	return true
}

// Generate returns the next canned response.
func (p *StaticProvider) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)

	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return "", err
	}

	if len(p.responses) == 0 {
		return "", nil
	}
	i := p.next
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	p.next++
	return p.responses[i], nil
}
