// Package fetchtest provides a scriptable fetch.Fetcher for tests.
package fetchtest

import (
	"context"
	"errors"
	"sync"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/fetch"
)

// ErrUnreachable is returned for URLs marked down.
var ErrUnreachable = domain.Wrap(domain.KindUpstreamFetch, errors.New("connection refused"), "request failed")

// Fetcher serves canned responses keyed by URL. Unknown URLs are unreachable.
type Fetcher struct {
	mu        sync.Mutex
	responses map[string]fetch.Outcome
	calls     map[string]int
}

func New() *Fetcher {
	return &Fetcher{
		responses: make(map[string]fetch.Outcome),
		calls:     make(map[string]int),
	}
}

// Serve makes url answer with code and body.
func (f *Fetcher) Serve(url string, code int, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = fetch.Outcome{Code: code, Body: body}
}

// Down makes url fail at the transport level.
func (f *Fetcher) Down(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = fetch.Outcome{Err: ErrUnreachable}
}

// Calls returns how many times url was contacted.
func (f *Fetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *Fetcher) Fetch(_ context.Context, url string) fetch.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	out, ok := f.responses[url]
	if !ok {
		return fetch.Outcome{Err: ErrUnreachable}
	}
	if out.Body != nil {
		out.Body = append([]byte(nil), out.Body...)
	}
	return out
}

func (f *Fetcher) Probe(ctx context.Context, url string) (int, error) {
	out := f.Fetch(ctx, url)
	if out.Err != nil {
		return 0, out.Err
	}
	return out.Code, nil
}
