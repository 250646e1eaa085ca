// Package dedupe tracks identifiers already seen while loading a snapshot and
// defines how repeated identifiers are handled.
package dedupe

import (
	"errors"
	"fmt"
	"strings"
)

// Policy decides what happens to a row whose identifier was already loaded.
type Policy string

const (
	// PolicyFirst keeps the first-seen row and drops later ones.
	PolicyFirst Policy = "first"
	// PolicyReject fails the load on the first repeated identifier.
	PolicyReject Policy = "reject"
)

// ErrUnknownPolicy is returned by ParsePolicy for unsupported names.
var ErrUnknownPolicy = errors.New("unknown duplicate policy")

// ParsePolicy parses a policy name (case-insensitive). Empty means PolicyFirst.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyReject:
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Deduper records seen identifiers.
type Deduper interface {
	// SeenAndRecord reports whether id was already seen and records it if not.
	SeenAndRecord(id string) bool

	// Size returns the number of distinct identifiers recorded.
	Size() int

	// Duplicates returns how many SeenAndRecord calls hit an existing id.
	Duplicates() int
}

// inMemoryDeduper implements Deduper with a plain set. Snapshot loads are
// sequential, so no locking is done.
type inMemoryDeduper struct {
	seen       map[string]struct{}
	capacity   int
	duplicates int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.capacity)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(id string) bool {
	if _, exists := d.seen[id]; exists {
		d.duplicates++
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Size() int {
	return len(d.seen)
}

func (d *inMemoryDeduper) Duplicates() int {
	return d.duplicates
}
