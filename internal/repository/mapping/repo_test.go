package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kailas-cloud/dynamap/internal/db"
	"github.com/kailas-cloud/dynamap/internal/domain"
)

func TestSave(t *testing.T) {
	var gotKey string
	var gotValue []byte
	s := &mockStore{
		setFunc: func(_ context.Context, key string, value []byte) error {
			gotKey, gotValue = key, value
			return nil
		},
	}

	err := New(s).Save(context.Background(), "articles", []byte(`{"dynamic":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if gotKey != "mapping:articles" {
		t.Errorf("key = %q, want %q", gotKey, "mapping:articles")
	}
	if string(gotValue) != `{"dynamic":true}` {
		t.Errorf("value = %s", gotValue)
	}
}

func TestSave_StoreError(t *testing.T) {
	wantErr := errors.New("connection reset")
	s := &mockStore{
		setFunc: func(context.Context, string, []byte) error { return wantErr },
	}

	err := New(s).Save(context.Background(), "articles", nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want wrapped %v", err, wantErr)
	}
}

func TestLoad(t *testing.T) {
	s := &mockStore{
		getFunc: func(_ context.Context, key string) ([]byte, error) {
			if key != "mapping:articles" {
				t.Errorf("key = %q", key)
			}
			return []byte(`{}`), nil
		},
	}

	data, err := New(s).Load(context.Background(), "articles")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{}` {
		t.Errorf("data = %s", data)
	}
}

func TestLoad_NotFound(t *testing.T) {
	s := &mockStore{
		getFunc: func(context.Context, string) ([]byte, error) {
			return nil, db.ErrKeyNotFound
		},
	}

	_, err := New(s).Load(context.Background(), "missing")
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("error = %v, want ErrIndexNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	var deleted string
	s := &mockStore{
		delFunc: func(_ context.Context, key string) (int64, error) {
			deleted = key
			return 1, nil
		},
	}

	if err := New(s).Delete(context.Background(), "articles"); err != nil {
		t.Fatal(err)
	}
	if deleted != "mapping:articles" {
		t.Errorf("deleted key = %q", deleted)
	}
}

func TestDelete_NotFound(t *testing.T) {
	// DEL of a missing key reports zero deletions
	s := &mockStore{
		delFunc: func(context.Context, string) (int64, error) { return 0, nil },
	}

	err := New(s).Delete(context.Background(), "missing")
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("error = %v, want ErrIndexNotFound", err)
	}
}

func TestDelete_StoreError(t *testing.T) {
	wantErr := errors.New("connection reset")
	s := &mockStore{
		delFunc: func(context.Context, string) (int64, error) { return 0, wantErr },
	}

	err := New(s).Delete(context.Background(), "articles")
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want wrapped %v", err, wantErr)
	}
}

func TestList(t *testing.T) {
	s := &mockStore{
		scanFunc: func(_ context.Context, pattern string) ([]string, error) {
			if pattern != "mapping:*" {
				t.Errorf("pattern = %q", pattern)
			}
			return []string{"mapping:zoo", "mapping:articles", "mapping:logs"}, nil
		},
	}

	indices, err := New(s).List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"articles", "logs", "zoo"}
	if diff := cmp.Diff(want, indices); diff != "" {
		t.Errorf("indices (-want +got):\n%s", diff)
	}
}

func TestWithKeyPrefix(t *testing.T) {
	var gotKey string
	s := &mockStore{
		setFunc: func(_ context.Context, key string, _ []byte) error {
			gotKey = key
			return nil
		},
	}

	repo := New(s).WithKeyPrefix("schemas:")
	if err := repo.Save(context.Background(), "articles", nil); err != nil {
		t.Fatal(err)
	}
	if gotKey != "schemas:articles" {
		t.Errorf("key = %q, want %q", gotKey, "schemas:articles")
	}

	// empty prefix keeps the default
	repo = New(s).WithKeyPrefix("")
	if err := repo.Save(context.Background(), "articles", nil); err != nil {
		t.Fatal(err)
	}
	if gotKey != "mapping:articles" {
		t.Errorf("key = %q, want %q", gotKey, "mapping:articles")
	}
}
