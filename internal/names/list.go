// internal/names/list.go
package names

import (
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/solatis/sweetbre/internal/types"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

/*
 * Ordered, case-insensitive, unique-keyed container.
 *
 * Fact lists, variable lists, rule lists, and the function registry all need
 * the same storage: lookup by name ignoring case, iteration in insertion order,
 * and rejection of duplicates. List[T] provides it once.
 *
 * Keys are normalized by trimming, Unicode case folding, and NFC composition,
 * so "Celsius", " celsius", and "CELSIUS" address the same entry. The display
 * name of an entry is the spelling it was first added with.
 *
 * Synchronization is container-level only: each method is atomic, but a
 * Get followed by a Set is not.
 */

// Normalize returns the lookup key for name.
func Normalize(name string) string {
	return norm.NFC.String(cases.Fold().String(strings.TrimSpace(name)))
}

// ChangeKind identifies the mutation reported to an observer.
type ChangeKind int

const (
	Added ChangeKind = iota
	Updated
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("change(%d)", int(k))
}

// Change describes one mutation of a List.
type Change[T any] struct {
	Kind  ChangeKind
	Name  string
	Old   T
	Value T
}

// Option configures a List.
type Option[T any] func(*List[T])

// WithObserver registers fn to be called synchronously after each mutation.
// fn runs without the list lock held and may read the list.
func WithObserver[T any](fn func(Change[T])) Option[T] {
	return func(l *List[T]) { l.observer = fn }
}

type entry[T any] struct {
	name  string
	value T
}

// List is an ordered map from case-insensitive names to values.
type List[T any] struct {
	mu       sync.RWMutex
	index    map[string]int
	entries  []entry[T]
	observer func(Change[T])
}

// New returns an empty List.
func New[T any](opts ...Option[T]) *List[T] {
	l := &List[T]{index: make(map[string]int)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add inserts a new entry. Returns ErrDuplicateName if name already exists.
func (l *List[T]) Add(name string, v T) error {
	key := Normalize(name)

	l.mu.Lock()
	if _, ok := l.index[key]; ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %q", types.ErrDuplicateName, name)
	}
	l.index[key] = len(l.entries)
	l.entries = append(l.entries, entry[T]{name: strings.TrimSpace(name), value: v})
	l.mu.Unlock()

	l.notify(Change[T]{Kind: Added, Name: name, Value: v})
	return nil
}

// Set inserts or replaces the entry for name. An existing entry keeps its
// position and display name.
func (l *List[T]) Set(name string, v T) {
	key := Normalize(name)

	l.mu.Lock()
	if i, ok := l.index[key]; ok {
		old := l.entries[i].value
		l.entries[i].value = v
		display := l.entries[i].name
		l.mu.Unlock()
		l.notify(Change[T]{Kind: Updated, Name: display, Old: old, Value: v})
		return
	}
	l.index[key] = len(l.entries)
	l.entries = append(l.entries, entry[T]{name: strings.TrimSpace(name), value: v})
	l.mu.Unlock()

	l.notify(Change[T]{Kind: Added, Name: name, Value: v})
}

// Get returns the value stored under name.
func (l *List[T]) Get(name string) (T, bool) {
	key := Normalize(name)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if i, ok := l.index[key]; ok {
		return l.entries[i].value, true
	}
	var zero T
	return zero, false
}

// Has reports whether name exists.
func (l *List[T]) Has(name string) bool {
	_, ok := l.Get(name)
	return ok
}

// Remove deletes name, reporting whether it existed.
func (l *List[T]) Remove(name string) bool {
	key := Normalize(name)

	l.mu.Lock()
	i, ok := l.index[key]
	if !ok {
		l.mu.Unlock()
		return false
	}
	removed := l.entries[i]
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	delete(l.index, key)
	for j := i; j < len(l.entries); j++ {
		l.index[Normalize(l.entries[j].name)] = j
	}
	l.mu.Unlock()

	l.notify(Change[T]{Kind: Removed, Name: removed.name, Old: removed.value})
	return true
}

// Len returns the entry count.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Names returns display names in insertion order.
func (l *List[T]) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.name
	}
	return out
}

// All iterates a snapshot of the entries in insertion order.
func (l *List[T]) All() iter.Seq2[string, T] {
	l.mu.RLock()
	snapshot := make([]entry[T], len(l.entries))
	copy(snapshot, l.entries)
	l.mu.RUnlock()

	return func(yield func(string, T) bool) {
		for _, e := range snapshot {
			if !yield(e.name, e.value) {
				return
			}
		}
	}
}

func (l *List[T]) notify(c Change[T]) {
	if l.observer != nil {
		l.observer(c)
	}
}
