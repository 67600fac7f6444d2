package payloads

import (
	"fmt"
	"sort"
	"sync"

	"github.com/promptstrike/promptstrike/pkg/finding"
)

// Selection narrows which catalog payloads a run executes. Zero value
// means "all active payloads".
type Selection struct {
	// IDs selects exact payloads by identifier. When set, Categories is
	// ignored and inactive payloads are still eligible (the caller asked
	// for them explicitly).
	IDs []string

	// Categories filters active payloads to the given categories.
	Categories []finding.Category
}

// SelectionFromStrings builds a Selection from raw identifier and
// category strings, as received on the wire. Unknown category names are
// kept; they simply match nothing.
func SelectionFromStrings(ids, categories []string) Selection {
	sel := Selection{IDs: ids}
	for _, c := range categories {
		sel.Categories = append(sel.Categories, finding.Category(c))
	}
	return sel
}

// Catalog is an in-memory, concurrency-safe payload registry.
type Catalog struct {
	mu   sync.RWMutex
	byID map[string]Payload
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]Payload)}
}

// Add validates and registers payloads. A duplicate ID replaces the
// previous entry.
func (c *Catalog) Add(items ...Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range items {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("payload %q: %w", p.ID, err)
		}
		c.byID[p.ID] = p
	}
	return nil
}

// ByID returns the payload with the given identifier.
func (c *Catalog) ByID(id string) (Payload, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	if !ok {
		return Payload{}, fmt.Errorf("%w: %s", ErrPayloadNotFound, id)
	}
	return p, nil
}

// Len returns the number of registered payloads.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Select resolves a selection into an execution-ordered payload list:
// severity first (critical before info), then category, then ID, so runs
// attack the highest-value payloads first and the order is deterministic.
func (c *Catalog) Select(sel Selection) ([]Payload, error) {
	c.mu.RLock()
	var out []Payload
	switch {
	case len(sel.IDs) > 0:
		for _, id := range sel.IDs {
			p, ok := c.byID[id]
			if !ok {
				c.mu.RUnlock()
				return nil, fmt.Errorf("%w: %s", ErrPayloadNotFound, id)
			}
			out = append(out, p)
		}
	case len(sel.Categories) > 0:
		want := make(map[finding.Category]bool, len(sel.Categories))
		for _, cat := range sel.Categories {
			want[cat] = true
		}
		for _, p := range c.byID {
			if p.Active && want[p.Category] {
				out = append(out, p)
			}
		}
	default:
		for _, p := range c.byID {
			if p.Active {
				out = append(out, p)
			}
		}
	}
	c.mu.RUnlock()

	if len(out) == 0 {
		return nil, ErrEmptySelection
	}
	SortForExecution(out)
	return out, nil
}

// SortForExecution orders payloads severity-first, then category, then ID.
func SortForExecution(list []Payload) {
	sort.SliceStable(list, func(i, j int) bool {
		si, sj := list[i].Severity.Score(), list[j].Severity.Score()
		if si != sj {
			return si > sj
		}
		if list[i].Category != list[j].Category {
			return list[i].Category < list[j].Category
		}
		return list[i].ID < list[j].ID
	})
}
