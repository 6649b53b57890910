package filter

import (
	"context"
	"sync"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
)

// View is one rendering of the filtered list.
//
// Restore tells the client to scroll back to Position. It is false whenever
// the number of visible entries changed since the previous View, because the
// remembered position no longer points at the same card.
type View struct {
	Filter   string        `json:"filter"`
	Entries  []domain.Wine `json:"entries"`
	Restore  bool          `json:"restore"`
	Position int           `json:"position"`
}

// Engine recomputes the visible list whenever the collection or the filter
// text changes. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	entries  []domain.Wine
	text     string
	lastSize int
	position int
}

// NewEngine returns an engine with an empty collection and no filter.
func NewEngine() *Engine {
	return &Engine{}
}

// SetEntries replaces the collection and returns the new View.
func (e *Engine) SetEntries(entries []domain.Wine) View {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = entries
	return e.recompute()
}

// SetFilter replaces the filter text and returns the new View.
func (e *Engine) SetFilter(text string) View {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
	return e.recompute()
}

// SelectPosition remembers the carousel position the user last opened.
func (e *Engine) SelectPosition(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 {
		i = 0
	}
	e.position = i
}

func (e *Engine) recompute() View {
	result := Apply(e.entries, e.text)
	v := View{Filter: e.text, Entries: result, Position: e.position}

	if len(result) != e.lastSize {
		e.lastSize = len(result)
		return v
	}

	if e.position > len(result) {
		e.position = 0
	}
	v.Restore = true
	v.Position = e.position
	return v
}

// Run feeds collections and filter texts into the engine and passes every
// resulting View to out, until ctx is done or entries is closed. Nothing is
// emitted before the first collection arrives. A closed filters channel only
// stops filter updates.
func (e *Engine) Run(ctx context.Context, entries <-chan []domain.Wine, filters <-chan string, out func(View)) error {
	haveEntries := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case list, ok := <-entries:
			if !ok {
				return nil
			}
			haveEntries = true
			out(e.SetEntries(list))

		case text, ok := <-filters:
			if !ok {
				filters = nil
				continue
			}
			v := e.SetFilter(text)
			if haveEntries {
				out(v)
			}
		}
	}
}
