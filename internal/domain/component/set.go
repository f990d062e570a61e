package component

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNoGap      = errors.New("timeline is fully covered")
	ErrUnknownKey = errors.New("unknown component key")
)

// Set is an editable collection of user components addressed by stable keys.
// Selection is tracked by key and does not depend on storage order.
type Set struct {
	next     Key
	items    map[Key]Component
	selected map[Key]struct{}
}

func NewSet(cs ...Component) (*Set, error) {
	s := &Set{items: map[Key]Component{}, selected: map[Key]struct{}{}}
	for _, c := range WithoutCompliments(cs) {
		if _, err := s.Add(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add inserts c if it does not overlap existing components and returns its key.
func (s *Set) Add(c Component) (Key, error) {
	if c.IsCompliment() {
		return 0, fmt.Errorf("%w: compliments are derived", ErrInvalidParams)
	}
	if _, err := Validate(append(Ranges(s.Components()), c.Range)); err != nil {
		return 0, err
	}
	s.next++
	c.Key = s.next
	s.items[c.Key] = c
	return c.Key, nil
}

// Propose places c into free space. With a proposed range the first gap it
// overlaps wins, otherwise the first gap is used.
func (s *Set) Propose(c Component, proposed *Range) (Key, error) {
	gaps, err := Gaps(s.Components())
	if err != nil {
		return 0, err
	}
	var (
		r  Range
		ok bool
	)
	if proposed != nil {
		r, ok = FitRange(*proposed, gaps)
	} else if len(gaps) > 0 {
		r, ok = gaps[0], true
	}
	if !ok {
		return 0, ErrNoGap
	}
	c.Range = r
	return s.Add(c)
}

// Update replaces the component stored under key, keeping the key.
func (s *Set) Update(key Key, c Component) error {
	if _, ok := s.items[key]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownKey, key)
	}
	var others []Range
	for k, it := range s.items {
		if k != key {
			others = append(others, it.Range)
		}
	}
	if _, err := Validate(append(others, c.Range)); err != nil {
		return err
	}
	c.Key = key
	s.items[key] = c
	return nil
}

func (s *Set) Get(key Key) (Component, bool) {
	c, ok := s.items[key]
	return c, ok
}

func (s *Set) Remove(key Key) bool {
	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	delete(s.selected, key)
	return true
}

func (s *Set) RemoveAll() {
	s.items = map[Key]Component{}
	s.selected = map[Key]struct{}{}
}

func (s *Set) Select(key Key) error {
	if _, ok := s.items[key]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownKey, key)
	}
	s.selected[key] = struct{}{}
	return nil
}

func (s *Set) Deselect(key Key) { delete(s.selected, key) }

func (s *Set) IsSelected(key Key) bool {
	_, ok := s.selected[key]
	return ok
}

// Selected returns selected keys in ascending order.
func (s *Set) Selected() []Key {
	out := make([]Key, 0, len(s.selected))
	for k := range s.selected {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RemoveSelected deletes every selected component and returns how many were removed.
func (s *Set) RemoveSelected() int {
	n := 0
	for _, k := range s.Selected() {
		if s.Remove(k) {
			n++
		}
	}
	return n
}

func (s *Set) Len() int { return len(s.items) }

// Components returns the user components sorted by lower bound.
func (s *Set) Components() []Component {
	out := make([]Component, 0, len(s.items))
	for _, c := range s.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.Lo != out[j].Range.Lo {
			return out[i].Range.Lo < out[j].Range.Lo
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Partition returns the components together with their constant compliments.
func (s *Set) Partition() ([]Component, error) {
	return AddConstantCompliments(s.Components())
}
