package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dynamap/internal/domain"
)

// memRepo is a map-backed Repository recording every Save.
type memRepo struct {
	*mockRepo
	data  map[string][]byte
	saves int
}

func newMemRepo() *memRepo {
	r := &memRepo{data: make(map[string][]byte)}
	r.mockRepo = &mockRepo{
		saveFunc: func(_ context.Context, index string, mapping []byte) error {
			r.saves++
			r.data[index] = mapping
			return nil
		},
		loadFunc: func(_ context.Context, index string) ([]byte, error) {
			data, ok := r.data[index]
			if !ok {
				return nil, domain.ErrIndexNotFound
			}
			return data, nil
		},
		deleteFunc: func(_ context.Context, index string) error {
			if _, ok := r.data[index]; !ok {
				return domain.ErrIndexNotFound
			}
			delete(r.data, index)
			return nil
		},
		listFunc: func(context.Context) ([]string, error) {
			indices := make([]string, 0, len(r.data))
			for k := range r.data {
				indices = append(indices, k)
			}
			return indices, nil
		},
	}
	return r
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	return New(repo, zap.NewNop())
}

func TestPutMapping_CreatesIndex(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)

	conflicts, err := svc.PutMapping(context.Background(), "articles",
		[]byte(`{"properties": {"title": {"type": "string"}}}`), false)
	if err != nil {
		t.Fatal(err)
	}
	if conflicts != nil {
		t.Errorf("conflicts = %v, want none", conflicts)
	}
	if repo.saves != 1 {
		t.Errorf("saves = %d, want 1", repo.saves)
	}
	if _, ok := repo.data["articles"]; !ok {
		t.Error("mapping not persisted")
	}
}

func TestPutMapping_SimulateOnNewIndexDoesNotPersist(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)

	conflicts, err := svc.PutMapping(context.Background(), "articles",
		[]byte(`{"properties": {"title": {"type": "string"}}}`), true)
	if err != nil {
		t.Fatal(err)
	}
	if conflicts != nil {
		t.Errorf("conflicts = %v", conflicts)
	}
	if repo.saves != 0 {
		t.Errorf("saves = %d, want 0", repo.saves)
	}
}

func TestPutMapping_ConflictRejectsWholeUpdate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.PutMapping(ctx, "articles",
		[]byte(`{"properties": {"title": {"type": "string"}}}`), false); err != nil {
		t.Fatal(err)
	}
	savesBefore := repo.saves

	conflicts, err := svc.PutMapping(ctx, "articles",
		[]byte(`{"properties": {"title": {"type": "long"}, "views": {"type": "long"}}}`), false)
	if !errors.Is(err, domain.ErrMergeConflict) {
		t.Fatalf("error = %v, want ErrMergeConflict", err)
	}
	if len(conflicts) == 0 {
		t.Error("conflict list is empty")
	}
	var mcErr *domain.MergeConflictError
	if !errors.As(err, &mcErr) {
		t.Fatal("error does not carry the conflict list")
	}
	if diff := cmp.Diff(conflicts, mcErr.Conflicts); diff != "" {
		t.Errorf("conflict lists differ:\n%s", diff)
	}
	if repo.saves != savesBefore {
		t.Errorf("saves = %d, conflicting update must not persist", repo.saves)
	}

	// the rejected update must leave the mapping untouched, including
	// its compatible parts
	if containsField(t, svc, "articles", "views") {
		t.Error("rejected update leaked fields into the mapping")
	}
}

func containsField(t *testing.T, svc *Service, index, field string) bool {
	t.Helper()
	svc.mu.Lock()
	defer svc.mu.Unlock()
	dm, ok := svc.live[index]
	if !ok {
		t.Fatalf("index %s not live", index)
	}
	_, ok = dm.FieldMapper(field)
	return ok
}

func TestPutMapping_CompatibleUpdatePersists(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.PutMapping(ctx, "articles",
		[]byte(`{"properties": {"title": {"type": "string"}}}`), false); err != nil {
		t.Fatal(err)
	}
	conflicts, err := svc.PutMapping(ctx, "articles",
		[]byte(`{"properties": {"views": {"type": "long"}}}`), false)
	if err != nil {
		t.Fatal(err)
	}
	if conflicts != nil {
		t.Errorf("conflicts = %v", conflicts)
	}
	if repo.saves != 2 {
		t.Errorf("saves = %d, want 2", repo.saves)
	}
	if !containsField(t, svc, "articles", "views") {
		t.Error("new field not merged in")
	}
}

func TestPutMapping_SimulateReportsConflictsWithoutPersisting(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.PutMapping(ctx, "articles",
		[]byte(`{"properties": {"title": {"type": "string"}}}`), false); err != nil {
		t.Fatal(err)
	}
	savesBefore := repo.saves

	conflicts, err := svc.PutMapping(ctx, "articles",
		[]byte(`{"properties": {"title": {"type": "long"}}}`), true)
	if !errors.Is(err, domain.ErrMergeConflict) {
		t.Fatalf("error = %v, want ErrMergeConflict", err)
	}
	if len(conflicts) == 0 {
		t.Error("simulate must report the conflicts")
	}
	if repo.saves != savesBefore {
		t.Error("simulate must not persist")
	}
}

func TestPutMapping_InvalidName(t *testing.T) {
	svc := newTestService(t, newMemRepo())

	_, err := svc.PutMapping(context.Background(), "bad index!", []byte(`{}`), false)
	if !errors.Is(err, domain.ErrInvalidMapping) {
		t.Errorf("error = %v, want ErrInvalidMapping", err)
	}
}

func TestPutMapping_InvalidDefinition(t *testing.T) {
	svc := newTestService(t, newMemRepo())

	_, err := svc.PutMapping(context.Background(), "articles",
		[]byte(`{"properties": {"f": {"type": "quaternion"}}}`), false)
	if !errors.Is(err, domain.ErrInvalidMapping) {
		t.Errorf("error = %v, want ErrInvalidMapping", err)
	}
}

func TestParseDocument_CreatesIndexAndGrowsMapping(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	err := svc.ParseDocument(ctx, "logs", []byte(`{"level": "info", "code": 7}`))
	if err != nil {
		t.Fatal(err)
	}
	// one save for the implicit index, one for the dynamic growth
	if repo.saves != 2 {
		t.Errorf("saves = %d, want 2", repo.saves)
	}
	if !containsField(t, svc, "logs", "level") || !containsField(t, svc, "logs", "code") {
		t.Error("dynamic fields not registered")
	}

	// same shape again: the mapping is stable, nothing to persist
	if err := svc.ParseDocument(ctx, "logs", []byte(`{"level": "warn", "code": 9}`)); err != nil {
		t.Fatal(err)
	}
	if repo.saves != 2 {
		t.Errorf("saves = %d after idempotent parse, want 2", repo.saves)
	}
}

func TestParseDocument_InvalidIndexName(t *testing.T) {
	svc := newTestService(t, newMemRepo())

	err := svc.ParseDocument(context.Background(), "no/slashes", []byte(`{}`))
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("error = %v, want ErrInvalidDocument", err)
	}
}

func TestParseDocument_ValueRejectedByMapping(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.PutMapping(ctx, "logs",
		[]byte(`{"properties": {"day": {"type": "date", "format": "yyyy-MM-dd"}}}`), false); err != nil {
		t.Fatal(err)
	}
	savesBefore := repo.saves

	// the document is at fault, not the mapping
	err := svc.ParseDocument(ctx, "logs", []byte(`{"day": "not/a-date"}`))
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("error = %v, want ErrInvalidDocument", err)
	}

	err = svc.ParseDocument(ctx, "logs", []byte(`{"day": {"nested": 1}}`))
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("error = %v, want ErrInvalidDocument", err)
	}
	if repo.saves != savesBefore {
		t.Errorf("saves = %d, rejected documents must not persist", repo.saves)
	}
}

func TestParseDocument_NonObjectDocument(t *testing.T) {
	svc := newTestService(t, newMemRepo())

	err := svc.ParseDocument(context.Background(), "logs", []byte(`[1, 2, 3]`))
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("error = %v, want ErrInvalidDocument", err)
	}
}

func TestGetMapping_HydratesFromRepository(t *testing.T) {
	repo := newMemRepo()
	repo.data["articles"] = []byte(`{"properties": {"title": {"type": "string"}}}`)
	svc := newTestService(t, repo)

	data, err := svc.GetMapping(context.Background(), "articles")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("empty mapping")
	}
	if !containsField(t, svc, "articles", "title") {
		t.Error("hydrated mapping missing its declared field")
	}
}

func TestGetMapping_NotFound(t *testing.T) {
	svc := newTestService(t, newMemRepo())

	_, err := svc.GetMapping(context.Background(), "missing")
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("error = %v, want ErrIndexNotFound", err)
	}
}

func TestDeleteIndex(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.PutMapping(ctx, "articles",
		[]byte(`{"properties": {"title": {"type": "string"}}}`), false); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteIndex(ctx, "articles"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetMapping(ctx, "articles"); !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("error after delete = %v, want ErrIndexNotFound", err)
	}
	if _, ok := repo.data["articles"]; ok {
		t.Error("mapping still in the repository")
	}
}

func TestListIndices(t *testing.T) {
	repo := newMemRepo()
	repo.data["a"] = []byte(`{}`)
	repo.data["b"] = []byte(`{}`)
	svc := newTestService(t, repo)

	indices, err := svc.ListIndices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(indices) != 2 {
		t.Errorf("indices = %v, want 2 entries", indices)
	}
}

func TestWithDefaults_DynamicOff(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	off := false
	if _, err := svc.WithDefaults(&off, nil); err != nil {
		t.Fatal(err)
	}

	if err := svc.ParseDocument(context.Background(), "logs", []byte(`{"level": "info"}`)); err != nil {
		t.Fatal(err)
	}
	// the implicit index is created, but the unknown field is skipped
	if repo.saves != 1 {
		t.Errorf("saves = %d, want 1 (creation only)", repo.saves)
	}
	if containsField(t, svc, "logs", "level") {
		t.Error("dynamic off must not register unmapped fields")
	}
}

func TestWithDefaults_InvalidDateFormat(t *testing.T) {
	svc := newTestService(t, newMemRepo())

	if _, err := svc.WithDefaults(nil, []string{"yyyy-QQ-dd"}); err == nil {
		t.Fatal("expected error for an unknown date pattern")
	}
}

func TestWithDefaults_DateFormats(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	if _, err := svc.WithDefaults(nil, []string{"yyyy/MM/dd"}); err != nil {
		t.Fatal(err)
	}

	if err := svc.ParseDocument(context.Background(), "logs",
		[]byte(`{"day": "2026/01/15"}`)); err != nil {
		t.Fatal(err)
	}
	if !containsField(t, svc, "logs", "day") {
		t.Fatal("field not registered")
	}
}
