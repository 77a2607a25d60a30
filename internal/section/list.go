package section

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no section has the given ID.
	ErrNotFound = errors.New("section not found")

	// ErrIndexOutOfRange is returned for positions outside the list.
	ErrIndexOutOfRange = errors.New("section index out of range")
)

// PageCounter returns the number of pages in a document.
type PageCounter func(data []byte) (int, error)

// List is an ordered, concurrency-safe list of sections with stable IDs.
// Every mutation bumps Version.
type List struct {
	mu        sync.RWMutex
	sections  []Section
	version   uint64
	callbacks []func()
}

// NewList creates an empty list.
func NewList() *List {
	return &List{}
}

// OnChange registers a callback run after every mutation.
// Callbacks run without the list lock held.
func (l *List) OnChange(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, fn)
}

// changed bumps the version and returns the callbacks to run.
// Must be called with l.mu held.
func (l *List) changed() []func() {
	l.version++
	callbacks := make([]func(), len(l.callbacks))
	copy(callbacks, l.callbacks)
	return callbacks
}

func notify(callbacks []func()) {
	for _, fn := range callbacks {
		fn()
	}
}

// Version returns the mutation counter.
func (l *List) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Len returns the number of sections.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sections)
}

// Add appends one section per source. New sections are enabled, have an
// unresolved page count, and are numbered by their position at the time
// they were added (0-based).
func (l *List) Add(sources ...Source) []Section {
	sections := make([]Section, len(sources))
	for i, src := range sources {
		sections[i] = Section{Source: src, Enabled: true}
		if src != nil {
			sections[i].Name = src.Name()
		}
	}
	return l.Append(sections...)
}

// Append adds sections to the end of the list in one mutation. IDs already
// set are kept; an empty ID is assigned a new one and an empty Number is set
// to the section's position.
func (l *List) Append(sections ...Section) []Section {
	l.mu.Lock()
	added := make([]Section, len(sections))
	base := len(l.sections)
	for i, s := range sections {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		if s.Number == "" {
			s.Number = strconv.Itoa(base + i)
		}
		added[i] = s
	}
	l.sections = append(l.sections, added...)
	callbacks := l.changed()
	l.mu.Unlock()

	notify(callbacks)
	return added
}

// Insert places s at index (0..Len). An empty ID is assigned a new one.
func (l *List) Insert(index int, s Section) (Section, error) {
	l.mu.Lock()
	if index < 0 || index > len(l.sections) {
		l.mu.Unlock()
		return Section{}, fmt.Errorf("%w: insert at %d of %d", ErrIndexOutOfRange, index, len(l.sections))
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	l.sections = append(l.sections, Section{})
	copy(l.sections[index+1:], l.sections[index:])
	l.sections[index] = s
	callbacks := l.changed()
	l.mu.Unlock()

	notify(callbacks)
	return s, nil
}

// Remove deletes the section with the given ID.
func (l *List) Remove(id string) error {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	l.sections = append(l.sections[:i], l.sections[i+1:]...)
	callbacks := l.changed()
	l.mu.Unlock()

	notify(callbacks)
	return nil
}

// Clear removes all sections and returns them.
func (l *List) Clear() []Section {
	l.mu.Lock()
	removed := l.sections
	l.sections = nil
	callbacks := l.changed()
	l.mu.Unlock()

	notify(callbacks)
	return removed
}

// Replace swaps the whole list for sections in a single mutation.
// Sections without an ID are assigned one.
func (l *List) Replace(sections []Section) {
	next := make([]Section, len(sections))
	copy(next, sections)
	for i := range next {
		if next[i].ID == "" {
			next[i].ID = uuid.New().String()
		}
	}

	l.mu.Lock()
	l.sections = next
	callbacks := l.changed()
	l.mu.Unlock()

	notify(callbacks)
}

// Move removes the section at from and reinserts it at to.
func (l *List) Move(from, to int) error {
	l.mu.Lock()
	n := len(l.sections)
	if from < 0 || from >= n || to < 0 || to >= n {
		l.mu.Unlock()
		return fmt.Errorf("%w: move %d to %d of %d", ErrIndexOutOfRange, from, to, n)
	}
	if from == to {
		l.mu.Unlock()
		return nil
	}
	s := l.sections[from]
	l.sections = append(l.sections[:from], l.sections[from+1:]...)
	l.sections = append(l.sections, Section{})
	copy(l.sections[to+1:], l.sections[to:])
	l.sections[to] = s
	callbacks := l.changed()
	l.mu.Unlock()

	notify(callbacks)
	return nil
}

// MoveUp swaps the section at index with its predecessor.
func (l *List) MoveUp(index int) error {
	return l.Move(index, index-1)
}

// MoveDown swaps the section at index with its successor.
func (l *List) MoveDown(index int) error {
	return l.Move(index, index+1)
}

// SetEnabled toggles numbering for a section.
func (l *List) SetEnabled(id string, enabled bool) error {
	return l.update(id, func(s *Section) { s.Enabled = enabled })
}

// SetNumber changes the displayed section number.
func (l *List) SetNumber(id, number string) error {
	return l.update(id, func(s *Section) { s.Number = number })
}

func (l *List) update(id string, fn func(*Section)) error {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(&l.sections[i])
	callbacks := l.changed()
	l.mu.Unlock()

	notify(callbacks)
	return nil
}

// Get returns a copy of the section with the given ID.
func (l *List) Get(id string) (Section, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.indexLocked(id)
	if i < 0 {
		return Section{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l.sections[i], nil
}

// Index returns the position of the section with the given ID, or -1.
func (l *List) Index(id string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.indexLocked(id)
}

func (l *List) indexLocked(id string) int {
	for i := range l.sections {
		if l.sections[i].ID == id {
			return i
		}
	}
	return -1
}

// Snapshot returns a copy of the ordered sections and the version it was
// taken at.
func (l *List) Snapshot() ([]Section, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Section, len(l.sections))
	copy(out, l.sections)
	return out, l.version
}

// TotalPages sums the known page counts.
func (l *List) TotalPages() int {
	sections, _ := l.Snapshot()
	return TotalPages(sections)
}

// TotalPages sums the page counts of sections, enabled or not.
func TotalPages(sections []Section) int {
	total := 0
	for _, s := range sections {
		total += s.PageCount
	}
	return total
}

// ResolvePageCounts fills in unknown page counts. A document that cannot be
// counted keeps a count of 0; the failure is logged, not returned.
// Returns the number of sections whose count changed.
func (l *List) ResolvePageCounts(ctx context.Context, count PageCounter, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sections, _ := l.Snapshot()
	counts := make(map[string]int)
	for _, s := range sections {
		if s.Source == nil || s.PageCount != 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		data, err := s.Source.Bytes(ctx)
		if err != nil {
			logger.Error("failed to read section source", "section", s.ID, "name", s.Name, "error", err)
			continue
		}
		n, err := count(data)
		if err != nil {
			logger.Error("failed to count pages", "section", s.ID, "name", s.Name, "error", err)
			continue
		}
		counts[s.ID] = n
	}

	l.mu.Lock()
	changed := 0
	for i := range l.sections {
		n, ok := counts[l.sections[i].ID]
		if ok && l.sections[i].PageCount != n {
			l.sections[i].PageCount = n
			changed++
		}
	}
	var callbacks []func()
	if changed > 0 {
		callbacks = l.changed()
	}
	l.mu.Unlock()

	notify(callbacks)
	return changed, nil
}
