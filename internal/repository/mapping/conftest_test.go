package mapping

import "context"

type mockStore struct {
	getFunc  func(ctx context.Context, key string) ([]byte, error)
	setFunc  func(ctx context.Context, key string, value []byte) error
	delFunc  func(ctx context.Context, key string) (int64, error)
	scanFunc func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	return m.getFunc(ctx, key)
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	return m.setFunc(ctx, key, value)
}

func (m *mockStore) Del(ctx context.Context, key string) (int64, error) {
	return m.delFunc(ctx, key)
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	return m.scanFunc(ctx, pattern)
}
