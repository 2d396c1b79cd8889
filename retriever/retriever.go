// Package retriever defines the document retrieval contract used by the
// retrieval agent and ships a process-local keyword retriever.
//
// Only "most relevant first" ordering is guaranteed; a Retriever may return
// fewer documents than requested.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/TSGCFO/langchain-agent/core"
)

// Retriever returns documents relevant to query, most relevant first, at most
// limit of them.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]core.Document, error)
}

// Indexer is implemented by retrievers that accept new documents at runtime.
type Indexer interface {
	AddDocuments(ctx context.Context, docs []core.Document) error
}

// InMemory is a naive keyword retriever. Documents are scored by the fraction
// of query terms they contain; ties keep insertion order. Suitable for tests
// and demos; swap for a vector index for production retrieval.
type InMemory struct {
	mu   sync.RWMutex
	docs []core.Document
}

// NewInMemory creates a retriever seeded with docs.
func NewInMemory(docs ...core.Document) *InMemory {
	r := &InMemory{}
	_ = r.AddDocuments(context.Background(), docs)
	return r
}

// AddDocuments appends docs, assigning ids where missing.
func (r *InMemory) AddDocuments(_ context.Context, docs []core.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range docs {
		if d.ID == "" {
			d.ID = fmt.Sprintf("doc_%d", len(r.docs))
		}
		r.docs = append(r.docs, d)
	}
	return nil
}

// Len returns the number of indexed documents.
func (r *InMemory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Retrieve implements Retriever.
func (r *InMemory) Retrieve(ctx context.Context, query string, limit int) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := tokenize(query)
	if len(terms) == 0 || limit <= 0 {
		return []core.Document{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	scored := make([]core.Document, 0, len(r.docs))
	for _, d := range r.docs {
		words := make(map[string]bool)
		for _, w := range tokenize(d.Content) {
			words[w] = true
		}
		hits := 0
		for _, t := range terms {
			if words[t] {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		hit := d
		hit.Score = float64(hits) / float64(len(terms))
		hit.Metadata = copyMeta(d.Metadata)
		scored = append(scored, hit)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "of": true, "to": true, "in": true, "is": true,
	"a": true, "an": true, "for": true, "on": true, "what": true, "how": true,
	"are": true, "does": true, "do": true, "with": true, "it": true,
}

func copyMeta(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
