package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"scadenze/internal/core"
	ports "scadenze/internal/sheets"
)

var _ ports.Ledger = (*Store)(nil)

// Store is an in-process ledger.
type Store struct {
	mu    sync.Mutex
	items []core.Posting
}

func New() *Store {
	return &Store{}
}

// Append stores the posting and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, p core.Posting) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, p)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// ListPostings returns stored postings dated in [from, to], in date order.
func (s *Store) ListPostings(_ context.Context, from, to core.Date) ([]core.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Posting
	for _, p := range s.items {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b core.Posting) int {
		return a.Date.Compare(b.Date)
	})
	return out, nil
}

// Len reports how many postings were appended.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
