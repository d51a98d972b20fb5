package rule

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Group is a named operator shared by rules that reference it.
type Group struct {
	Name     string
	Operator Operator
	File     string
	Line     int
}

// GroupTable holds groups by case-insensitive name.
type GroupTable struct {
	groups map[string]*Group
	mu     sync.RWMutex
}

// NewGroupTable creates a table holding groups. Duplicate names are a LoadError.
func NewGroupTable(groups ...*Group) (*GroupTable, error) {
	t := &GroupTable{
		groups: make(map[string]*Group),
	}
	for _, g := range groups {
		if err := t.Add(g); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add registers a group. Names are unique ignoring case.
func (t *GroupTable) Add(g *Group) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := strings.ToLower(g.Name)
	if existing, exists := t.groups[key]; exists {
		return loadErr(g.File, g.Line, "", fmt.Errorf("%w: %s (first defined at line %d)", ErrDuplicateGroup, g.Name, existing.Line))
	}

	t.groups[key] = g
	return nil
}

// Resolve returns a group by name, ignoring case.
func (t *GroupTable) Resolve(name string) (*Group, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	g, ok := t.groups[strings.ToLower(name)]
	return g, ok
}

// Count returns the number of groups.
func (t *GroupTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.groups)
}

// Names returns all group names sorted.
func (t *GroupTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.groups))
	for _, g := range t.groups {
		names = append(names, g.Name)
	}
	sort.Strings(names)
	return names
}
