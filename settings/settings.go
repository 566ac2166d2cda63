// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

// Package settings holds the layered key/value configuration used by the
// connector. A Settings value is a view over a shared mutable property
// store: scoped and filtered views created from it read and write the
// same store, so a write through any view is immediately visible through
// every other view and through the base.
package settings

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// store is the property backend shared by a Settings value and all views
// derived from it.
type store interface {
	get(name string) (string, bool)
	set(name, value string)
	names() []string
}

type mapStore struct {
	mu    sync.RWMutex
	props map[string]string
}

func (m *mapStore) get(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.props[name]
	return v, ok
}

func (m *mapStore) set(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.props[name] = value
}

func (m *mapStore) names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.props))
	for k := range m.props {
		out = append(out, k)
	}
	return out
}

// viewStore qualifies every property name with a prefix. It holds a
// reference to the parent store, never a copy.
type viewStore struct {
	parent store
	prefix string
}

func (v *viewStore) get(name string) (string, bool) { return v.parent.get(v.prefix + name) }
func (v *viewStore) set(name, value string)         { v.parent.set(v.prefix+name, value) }

func (v *viewStore) names() []string {
	var out []string
	for _, n := range v.parent.names() {
		if strings.HasPrefix(n, v.prefix) {
			out = append(out, strings.TrimPrefix(n, v.prefix))
		}
	}
	return out
}

// filterStore hides every property under a given prefix. Writes pass
// through to the parent untouched.
type filterStore struct {
	parent store
	prefix string
}

func (f *filterStore) get(name string) (string, bool) {
	if strings.HasPrefix(name, f.prefix) {
		return "", false
	}
	return f.parent.get(name)
}

func (f *filterStore) set(name, value string) { f.parent.set(name, value) }

func (f *filterStore) names() []string {
	var out []string
	for _, n := range f.parent.names() {
		if !strings.HasPrefix(n, f.prefix) {
			out = append(out, n)
		}
	}
	return out
}

// Settings is a handle over a property store plus the typed accessors
// components use to read their configuration.
type Settings struct {
	store  store
	logger *zap.Logger
}

// New returns empty Settings backed by a fresh store.
func New() *Settings {
	return &Settings{store: &mapStore{props: make(map[string]string)}}
}

// FromMap returns Settings seeded with the given properties.
func FromMap(props map[string]string) *Settings {
	s := New()
	s.Merge(props)
	return s
}

// WithLogger sets the logger used for deprecation warnings and returns s.
// A nil logger disables logging.
func (s *Settings) WithLogger(logger *zap.Logger) *Settings {
	s.logger = logger
	return s
}

func (s *Settings) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

// Get returns the value for name, or the empty string when unset.
func (s *Settings) Get(name string) string {
	v, _ := s.store.get(name)
	return v
}

// GetWithDefault returns the value for name, falling back to def when the
// property is unset or blank.
func (s *Settings) GetWithDefault(name, def string) string {
	if v, ok := s.store.get(name); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// Has reports whether name has a non-blank value.
func (s *Settings) Has(name string) bool {
	v, ok := s.store.get(name)
	return ok && strings.TrimSpace(v) != ""
}

// Set stores a property and returns s for chaining.
func (s *Settings) Set(name, value string) *Settings {
	s.store.set(name, value)
	return s
}

// View returns scoped Settings in which every name is qualified with
// prefix. The view shares the underlying store with s.
func (s *Settings) View(prefix string) *Settings {
	if !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}
	return &Settings{store: &viewStore{parent: s.store, prefix: prefix}, logger: s.logger}
}

// ExcludeFilter returns Settings that hide every property under prefix.
// The view shares the underlying store with s.
func (s *Settings) ExcludeFilter(prefix string) *Settings {
	if !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}
	return &Settings{store: &filterStore{parent: s.store, prefix: prefix}, logger: s.logger}
}

// Merge copies the given properties into the store. Incoming values win
// over existing ones.
func (s *Settings) Merge(props map[string]string) *Settings {
	for k, v := range props {
		s.store.set(k, v)
	}
	return s
}

// Copy returns independent Settings holding a snapshot of the properties
// visible through s. Unlike views, a copy does not share the store.
func (s *Settings) Copy() *Settings {
	return FromMap(s.AsMap()).WithLogger(s.logger)
}

// AsMap returns the properties visible through s as a plain map.
func (s *Settings) AsMap() map[string]string {
	out := make(map[string]string)
	for _, n := range s.store.names() {
		if v, ok := s.store.get(n); ok {
			out[n] = v
		}
	}
	return out
}

// Save serializes the visible properties to a flat blob suitable for
// crossing process boundaries. Load is its inverse.
func (s *Settings) Save() string {
	names := s.store.names()
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		v, _ := s.store.get(n)
		b.WriteString(escapeProp(n))
		b.WriteByte('=')
		b.WriteString(escapeProp(v))
		b.WriteByte('\n')
	}
	return b.String()
}

// Load merges properties from a blob produced by Save. Loaded values win
// over existing ones.
func (s *Settings) Load(blob string) error {
	for i, line := range strings.Split(blob, "\n") {
		if line == "" {
			continue
		}
		k, v, err := splitProp(line)
		if err != nil {
			return fmt.Errorf("settings: malformed line %d: %w", i+1, err)
		}
		s.store.set(k, v)
	}
	return nil
}

func escapeProp(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "\n", `\n`, "=", `\=`)
	return r.Replace(s)
}

func splitProp(line string) (string, string, error) {
	var key, val strings.Builder
	cur := &key
	seenSep := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			if line[i] == 'n' {
				cur.WriteByte('\n')
			} else {
				cur.WriteByte(line[i])
			}
		case c == '=' && !seenSep:
			seenSep = true
			cur = &val
		default:
			cur.WriteByte(c)
		}
	}
	if !seenSep {
		return "", "", fmt.Errorf("missing separator in %q", line)
	}
	return key.String(), val.String(), nil
}

// deprecatedKeys tracks legacy properties already warned about, so each
// distinct key warns at most once per process.
var deprecatedKeys sync.Map

// getLegacy prefers a deprecated property when set, warning once, and
// otherwise falls back to the replacement property and its default.
func (s *Settings) getLegacy(legacy, current, def string) string {
	if v := s.Get(legacy); strings.TrimSpace(v) != "" {
		if _, dup := deprecatedKeys.LoadOrStore(legacy, struct{}{}); !dup {
			s.log().Warn("configuration property has been deprecated",
				zap.String("deprecated", legacy),
				zap.String("replacement", current),
			)
		}
		return v
	}
	return s.GetWithDefault(current, def)
}
