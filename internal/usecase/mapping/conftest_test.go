package mapping

import "context"

type mockRepo struct {
	saveFunc   func(ctx context.Context, index string, mapping []byte) error
	loadFunc   func(ctx context.Context, index string) ([]byte, error)
	deleteFunc func(ctx context.Context, index string) error
	listFunc   func(ctx context.Context) ([]string, error)
}

func (m *mockRepo) Save(ctx context.Context, index string, mapping []byte) error {
	return m.saveFunc(ctx, index, mapping)
}

func (m *mockRepo) Load(ctx context.Context, index string) ([]byte, error) {
	return m.loadFunc(ctx, index)
}

func (m *mockRepo) Delete(ctx context.Context, index string) error {
	return m.deleteFunc(ctx, index)
}

func (m *mockRepo) List(ctx context.Context) ([]string, error) {
	return m.listFunc(ctx)
}
