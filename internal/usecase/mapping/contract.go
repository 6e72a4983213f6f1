package mapping

import "context"

// Repository is the persistence contract for serialized mappings.
type Repository interface {
	Save(ctx context.Context, index string, mapping []byte) error
	Load(ctx context.Context, index string) ([]byte, error)
	Delete(ctx context.Context, index string) error
	List(ctx context.Context) ([]string, error)
}
