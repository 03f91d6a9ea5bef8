package dedup

import (
	"sync"

	"github.com/suprohub/novaprox/internal/model"
)

// Filter removes endpoints that share a canonical identity
// (protocol, host, port, credential fingerprint). Two endpoints with
// different transport options or raw links still count as duplicates.
type Filter struct {
	seen map[string]struct{}
	mu   sync.Mutex
}

func New() *Filter {
	return &Filter{
		seen: make(map[string]struct{}),
	}
}

// Seen reports whether the endpoint's identity was observed before,
// recording it if not. Safe for concurrent use.
func (f *Filter) Seen(e *model.Endpoint) bool {
	key := e.Key()

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[key]; ok {
		return true
	}
	f.seen[key] = struct{}{}
	return false
}

// Apply returns the endpoints with duplicates removed, preserving
// first-seen order. Idempotent: applying it to its own output is a no-op.
func Apply(endpoints []*model.Endpoint) []*model.Endpoint {
	f := New()
	out := make([]*model.Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if !f.Seen(e) {
			out = append(out, e)
		}
	}
	return out
}
