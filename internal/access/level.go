// Package access provides the authorization level type and the table of
// valid level names.
package access

import (
	"fmt"
	"sort"
	"strings"
)

// Level represents the authorization level a user holds.
// Values are persisted as integers and must stay stable across releases.
type Level int

const (
	// Default is the implicit level of a user without an explicit entry.
	Default Level = iota
	// Read allows read-only access.
	Read
	// Write allows read and write access.
	Write
	// Admin allows everything, including managing other users.
	Admin
)

// AtLeast returns true if l ranks at or above other.
func (l Level) AtLeast(other Level) bool {
	return l >= other
}

// Definition names a single level in a level table.
type Definition struct {
	Name  string
	Value Level
}

// UnknownLevelError is returned when a name or value is not part of the
// level table.
type UnknownLevelError struct {
	Name  string
	Value Level
	// ByName is true when the lookup was by name.
	ByName bool
}

func (e *UnknownLevelError) Error() string {
	if e.ByName {
		return fmt.Sprintf("unknown authorization level %q", e.Name)
	}
	return fmt.Sprintf("unknown authorization level value %d", int(e.Value))
}

// Levels is an immutable name<->value lookup table built once at startup.
type Levels struct {
	byName  map[string]Level
	byValue map[Level]string
	names   []string
	def     Level
}

// BuiltinLevels returns the level table used when no configuration
// overrides it.
func BuiltinLevels() *Levels {
	levels, err := NewLevels([]Definition{
		{Name: "DEFAULT", Value: Default},
		{Name: "READ", Value: Read},
		{Name: "WRITE", Value: Write},
		{Name: "ADMIN", Value: Admin},
	}, "DEFAULT")
	if err != nil {
		panic(err)
	}
	return levels
}

// NewLevels builds a level table. defaultName selects the sentinel level
// that stands for "no explicit entry"; it must have the lowest value.
func NewLevels(defs []Definition, defaultName string) (*Levels, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("level table is empty")
	}

	l := &Levels{
		byName:  make(map[string]Level, len(defs)),
		byValue: make(map[Level]string, len(defs)),
		names:   make([]string, 0, len(defs)),
	}

	sorted := make([]Definition, len(defs))
	copy(sorted, defs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	for _, d := range sorted {
		name := normalize(d.Name)
		if name == "" {
			return nil, fmt.Errorf("level with value %d has an empty name", int(d.Value))
		}
		if _, ok := l.byName[name]; ok {
			return nil, fmt.Errorf("duplicate level name %q", name)
		}
		if other, ok := l.byValue[d.Value]; ok {
			return nil, fmt.Errorf("levels %q and %q share value %d", other, name, int(d.Value))
		}
		l.byName[name] = d.Value
		l.byValue[d.Value] = name
		l.names = append(l.names, name)
	}

	def, ok := l.byName[normalize(defaultName)]
	if !ok {
		return nil, fmt.Errorf("default level %q is not defined", defaultName)
	}
	if def != sorted[0].Value {
		return nil, fmt.Errorf("default level %q must have the lowest value", defaultName)
	}
	l.def = def

	return l, nil
}

// Names returns every valid level name ordered by value.
func (l *Levels) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// ValueOf parses a level name. Matching ignores case and surrounding space.
func (l *Levels) ValueOf(name string) (Level, error) {
	level, ok := l.byName[normalize(name)]
	if !ok {
		return 0, &UnknownLevelError{Name: name, ByName: true}
	}
	return level, nil
}

// NameOf returns the name of a level value.
func (l *Levels) NameOf(level Level) (string, error) {
	name, ok := l.byValue[level]
	if !ok {
		return "", &UnknownLevelError{Value: level}
	}
	return name, nil
}

// Default returns the sentinel level applied to users without an entry.
func (l *Levels) Default() Level {
	return l.def
}

// IsDefault reports whether level is the default sentinel.
func (l *Levels) IsDefault(level Level) bool {
	return level == l.def
}

// Defined reports whether level is part of the table.
func (l *Levels) Defined(level Level) bool {
	_, ok := l.byValue[level]
	return ok
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
