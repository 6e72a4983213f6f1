// Package mapping is the mapping lifecycle service: it keeps one live
// document mapper per index, grows mappings as documents are parsed, and
// applies mapping updates through a simulate-first merge.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dynamap/internal/domain"
	"github.com/kailas-cloud/dynamap/internal/mapper"
	"github.com/kailas-cloud/dynamap/internal/metrics"
)

// Service manages the live mapping tree of every index.
type Service struct {
	repo   Repository
	logger *zap.Logger

	parserCtx *mapper.ParserContext

	defaultDynamic *bool
	defaultFormats []mapper.DateFormat

	mu   sync.Mutex
	live map[string]*mapper.DocumentMapper
}

// New creates the mapping service.
func New(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		logger:    logger,
		parserCtx: mapper.NewParserContext(),
		live:      make(map[string]*mapper.DocumentMapper),
	}
}

// WithDefaults sets the defaults for implicitly created indices: whether
// they accept unmapped fields and which date formats dynamic detection
// tries. A nil dynamic keeps the built-in default (dynamic on).
func (s *Service) WithDefaults(dynamic *bool, dateFormats []string) (*Service, error) {
	formats := make([]mapper.DateFormat, 0, len(dateFormats))
	for _, f := range dateFormats {
		df, err := mapper.ParseDateFormat(f)
		if err != nil {
			return nil, fmt.Errorf("default date format %q: %w", f, err)
		}
		formats = append(formats, df)
	}
	s.defaultDynamic = dynamic
	s.defaultFormats = formats
	return s, nil
}

// newDefaultMapper creates the mapping for an index seen for the first
// time, honoring the configured defaults.
func (s *Service) newDefaultMapper(index string) (*mapper.DocumentMapper, error) {
	if s.defaultDynamic == nil && len(s.defaultFormats) == 0 {
		return mapper.NewDefaultDocumentMapper(index), nil
	}
	b := mapper.NewObjectBuilder(index)
	if s.defaultDynamic != nil {
		b.Dynamic(*s.defaultDynamic)
	}
	if len(s.defaultFormats) > 0 {
		b.DateFormats(s.defaultFormats...)
	}
	root, err := b.Build(mapper.NewBuilderContext(mapper.NewContentPath(1)))
	if err != nil {
		return nil, fmt.Errorf("build default mapping for [%s]: %w", index, err)
	}
	return mapper.NewDocumentMapper(index, root.(*mapper.ObjectMapper), s.parserCtx), nil
}

// GetMapping returns the serialized mapping for an index.
func (s *Service) GetMapping(ctx context.Context, index string) ([]byte, error) {
	if _, err := domain.NewIndex(index); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexNotFound, err)
	}
	dm, err := s.lookup(ctx, index)
	if err != nil {
		return nil, err
	}
	data, err := dm.MappingJSON()
	if err != nil {
		return nil, fmt.Errorf("serialize mapping: %w", err)
	}
	return data, nil
}

// ListIndices returns every index with a stored mapping.
func (s *Service) ListIndices(ctx context.Context) ([]string, error) {
	return s.repo.List(ctx)
}

// PutMapping applies a mapping definition to an index, creating the index
// when it does not exist yet. The update is validated with a dry-run
// merge first; any conflict rejects the whole update. With simulate=true
// nothing is committed and the conflict list is returned as-is.
func (s *Service) PutMapping(ctx context.Context, index string, def []byte, simulate bool) ([]string, error) {
	if _, err := domain.NewIndex(index); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMapping, err)
	}
	incoming, err := mapper.ParseDocumentMapper(index, def, s.parserCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMapping, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.lookupLocked(ctx, index)
	if err != nil && !errors.Is(err, domain.ErrIndexNotFound) {
		return nil, err
	}

	if existing == nil {
		// first mapping for this index
		if simulate {
			return nil, nil
		}
		if err := s.persistLocked(ctx, index, incoming); err != nil {
			return nil, err
		}
		s.live[index] = incoming
		s.logger.Info("mapping created",
			zap.String("index", index),
			zap.Int("fields", len(incoming.FieldNames())),
		)
		return nil, nil
	}

	// dry run first: the conflict set of a simulated merge is identical
	// to the real one, with zero mutation
	conflicts := existing.Merge(incoming, mapper.MergeFlags{Simulate: true})
	if len(conflicts) > 0 {
		metrics.MergeConflictsTotal.WithLabelValues(index).Add(float64(len(conflicts)))
		return conflicts, domain.NewMergeConflict(conflicts)
	}
	if simulate {
		return nil, nil
	}

	existing.Merge(incoming, mapper.MergeFlags{})
	if err := s.persistLocked(ctx, index, existing); err != nil {
		return nil, err
	}
	s.logger.Info("mapping updated",
		zap.String("index", index),
		zap.Int("fields", len(existing.FieldNames())),
	)
	return nil, nil
}

// ParseDocument parses one JSON document against the index mapping,
// growing and persisting the mapping when new fields are discovered.
func (s *Service) ParseDocument(ctx context.Context, index string, doc []byte) error {
	if _, err := domain.NewIndex(index); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidDocument, err)
	}
	dm, err := s.lookupOrCreate(ctx, index)
	if err != nil {
		return err
	}

	start := time.Now()
	fieldsBefore := len(dm.FieldNames())
	changed, err := dm.ParseJSON(doc)
	metrics.DocumentParseDuration.WithLabelValues(index).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, mapper.ErrInvalidDocument) || errors.Is(err, mapper.ErrUnhandledValue) {
			return fmt.Errorf("%w: %v", domain.ErrInvalidDocument, err)
		}
		return err
	}

	if changed {
		added := len(dm.FieldNames()) - fieldsBefore
		metrics.DynamicFieldsTotal.WithLabelValues(index).Add(float64(added))
		s.mu.Lock()
		err := s.persistLocked(ctx, index, dm)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		s.logger.Info("mapping grew dynamically",
			zap.String("index", index),
			zap.Int("new_fields", added),
		)
	}
	return nil
}

// DeleteIndex removes an index mapping.
func (s *Service) DeleteIndex(ctx context.Context, index string) error {
	if _, err := domain.NewIndex(index); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexNotFound, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(ctx, index); err != nil {
		return err
	}
	delete(s.live, index)
	s.logger.Info("mapping deleted", zap.String("index", index))
	return nil
}

// lookup returns the live mapper for an index, hydrating it from the
// repository on first access.
func (s *Service) lookup(ctx context.Context, index string) (*mapper.DocumentMapper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(ctx, index)
}

func (s *Service) lookupLocked(ctx context.Context, index string) (*mapper.DocumentMapper, error) {
	if dm, ok := s.live[index]; ok {
		return dm, nil
	}
	data, err := s.repo.Load(ctx, index)
	if err != nil {
		return nil, err
	}
	dm, err := mapper.ParseDocumentMapper(index, data, s.parserCtx)
	if err != nil {
		return nil, fmt.Errorf("stored mapping for %s: %w", index, err)
	}
	s.live[index] = dm
	return dm, nil
}

// lookupOrCreate is the get-or-create used by document parsing: an
// unseen index gets a fresh dynamic mapping.
func (s *Service) lookupOrCreate(ctx context.Context, index string) (*mapper.DocumentMapper, error) {
	// optimistic read first; the common case is a hot index
	s.mu.Lock()
	defer s.mu.Unlock()
	dm, err := s.lookupLocked(ctx, index)
	if err == nil {
		return dm, nil
	}
	if !errors.Is(err, domain.ErrIndexNotFound) {
		return nil, err
	}
	dm, err = s.newDefaultMapper(index)
	if err != nil {
		return nil, err
	}
	if err := s.persistLocked(ctx, index, dm); err != nil {
		return nil, err
	}
	s.live[index] = dm
	s.logger.Info("index created dynamically", zap.String("index", index))
	return dm, nil
}

func (s *Service) persistLocked(ctx context.Context, index string, dm *mapper.DocumentMapper) error {
	data, err := dm.MappingJSON()
	if err != nil {
		return fmt.Errorf("serialize mapping: %w", err)
	}
	if err := s.repo.Save(ctx, index, data); err != nil {
		return err
	}
	metrics.MappingUpdatesTotal.WithLabelValues(index).Inc()
	return nil
}
