package domain

import (
	"fmt"
	"regexp"
)

var indexNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Index is the index name value object used across layers.
type Index struct {
	name string
}

// NewIndex validates and creates an index name.
// Name: ^[a-zA-Z0-9_-]+$, 1-64 chars.
func NewIndex(name string) (Index, error) {
	if name == "" {
		return Index{}, fmt.Errorf("index name is required")
	}
	if len(name) > 64 {
		return Index{}, fmt.Errorf("index name too long (max 64)")
	}
	if !indexNameRegex.MatchString(name) {
		return Index{}, fmt.Errorf("index name must be alphanumeric with underscores and hyphens")
	}
	return Index{name: name}, nil
}

// Name returns the index name.
func (i Index) Name() string { return i.name }
