// Package mapping persists serialized mapping documents in the key-value
// store, one key per index.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/dynamap/internal/db"
	"github.com/kailas-cloud/dynamap/internal/domain"
)

const defaultKeyPrefix = "mapping:"

// store is the consumer interface for mapping persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) (int64, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements usecase/mapping.Repository.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a mapping repository.
func New(s store) *Repo {
	return &Repo{store: s, keyPrefix: defaultKeyPrefix}
}

// WithKeyPrefix overrides the key prefix.
func (r *Repo) WithKeyPrefix(prefix string) *Repo {
	if prefix != "" {
		r.keyPrefix = prefix
	}
	return r
}

func (r *Repo) key(index string) string { return r.keyPrefix + index }

// Save stores the serialized mapping for an index.
func (r *Repo) Save(ctx context.Context, index string, mapping []byte) error {
	if err := r.store.Set(ctx, r.key(index), mapping); err != nil {
		return fmt.Errorf("save mapping %s: %w", index, err)
	}
	return nil
}

// Load retrieves the serialized mapping for an index.
func (r *Repo) Load(ctx context.Context, index string) ([]byte, error) {
	data, err := r.store.Get(ctx, r.key(index))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrIndexNotFound
		}
		return nil, fmt.Errorf("load mapping %s: %w", index, err)
	}
	return data, nil
}

// Delete removes the mapping for an index. The deleted count from DEL
// doubles as the existence check, so a missing index costs one round trip.
func (r *Repo) Delete(ctx context.Context, index string) error {
	n, err := r.store.Del(ctx, r.key(index))
	if err != nil {
		return fmt.Errorf("delete mapping %s: %w", index, err)
	}
	if n == 0 {
		return domain.ErrIndexNotFound
	}
	return nil
}

// List returns every index with a stored mapping, sorted by name.
func (r *Repo) List(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	indices := make([]string, 0, len(keys))
	for _, k := range keys {
		indices = append(indices, strings.TrimPrefix(k, r.keyPrefix))
	}
	sort.Strings(indices)
	return indices, nil
}
