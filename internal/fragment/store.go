// Package fragment loads the per-status card templates. Each fragment is an
// HTML document whose body holds one <template> element; its content is kept
// as an inert blueprint and cloned for every rendered card.
package fragment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/arcanaland/cardwatch/internal/card"
	"github.com/arcanaland/cardwatch/internal/dom"
)

// ErrNoTemplate is returned when a fragment holds no <template> element
var ErrNoTemplate = errors.New("no template element found")

// LoadError reports which status failed to load and why
type LoadError struct {
	Status card.Status
	Ref    string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load template %s from %s: %v", e.Status, e.Ref, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Template is a parsed card blueprint. It is never mutated after Parse.
type Template struct {
	content *html.Node
}

// Parse extracts the first <template> element of an HTML fragment
func Parse(raw []byte) (*Template, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	tmpl := dom.FindElement(doc, atom.Template)
	if tmpl == nil {
		return nil, ErrNoTemplate
	}

	// Keep a detached copy so the parsed document can be dropped
	content := dom.Fragment()
	for c := tmpl.FirstChild; c != nil; c = c.NextSibling {
		content.AppendChild(dom.Clone(c))
	}
	return &Template{content: content}, nil
}

// Clone returns a fresh fragment holding a deep copy of the template content
func (t *Template) Clone() *html.Node {
	return dom.Clone(t.content)
}

// Store owns the loaded templates, keyed by status
type Store struct {
	client *http.Client

	mu        sync.RWMutex
	templates map[card.Status]*Template
}

// NewStore creates an empty store fetching remote fragments with client
func NewStore(client *http.Client) *Store {
	if client == nil {
		client = http.DefaultClient
	}
	return &Store{
		client:    client,
		templates: make(map[card.Status]*Template),
	}
}

// Load fetches and parses every ref concurrently. It succeeds only when all
// of them load; on failure the previous templates are kept.
func (s *Store) Load(ctx context.Context, refs map[card.Status]string) error {
	loaded := make(map[card.Status]*Template, len(refs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for status, ref := range refs {
		status, ref := status, ref
		g.Go(func() error {
			raw, err := Fetch(gctx, s.client, ref)
			if err != nil {
				return &LoadError{Status: status, Ref: ref, Err: err}
			}

			tmpl, err := Parse(raw)
			if err != nil {
				return &LoadError{Status: status, Ref: ref, Err: err}
			}

			mu.Lock()
			loaded[status] = tmpl
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.templates = loaded
	s.mu.Unlock()
	return nil
}

// Lookup returns the template for status
func (s *Store) Lookup(status card.Status) (*Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmpl, ok := s.templates[status]
	return tmpl, ok
}

// Len returns the number of loaded templates
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.templates)
}
