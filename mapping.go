// Package dynamap infers and maintains index mappings for JSON documents:
// parse a document and the mapping grows to cover every field it contains,
// with types inferred from the values and reconciled across documents.
package dynamap

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/dynamap/internal/mapper"
)

// ErrMergeConflict is returned when a mapping merge is rejected.
var ErrMergeConflict = errors.New("dynamap: merge conflict")

// MergeConflictError carries the full conflict list of a rejected merge.
type MergeConflictError struct {
	Conflicts []string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("dynamap: merge rejected with %d conflict(s): %v", len(e.Conflicts), e.Conflicts)
}

func (e *MergeConflictError) Unwrap() error { return ErrMergeConflict }

// IndexMapping is one index's mapping: a tree of typed fields that grows
// dynamically as documents are parsed against it. Safe for concurrent use;
// writers serialize per object node while readers stay lock-free.
type IndexMapping struct {
	dm *mapper.DocumentMapper
}

// MappingOption customizes a new index mapping.
type MappingOption func(*mappingConfig)

type mappingConfig struct {
	dynamic     *bool
	dateFormats []string
}

// WithDynamic controls whether unmapped fields are added on sight (true,
// the default) or silently skipped (false).
func WithDynamic(v bool) MappingOption {
	return func(c *mappingConfig) { c.dynamic = &v }
}

// WithDateFormats sets the formats tried when a string value looks like a
// date. Formats use joda-style patterns ("yyyy/MM/dd HH:mm:ss") or named
// formats ("date_optional_time"); "||" separates alternatives.
func WithDateFormats(formats ...string) MappingOption {
	return func(c *mappingConfig) { c.dateFormats = formats }
}

// NewIndexMapping creates an empty mapping for the named index.
func NewIndexMapping(name string, opts ...MappingOption) (*IndexMapping, error) {
	var cfg mappingConfig
	for _, o := range opts {
		o(&cfg)
	}

	b := mapper.NewObjectBuilder(name)
	if cfg.dynamic != nil {
		b.Dynamic(*cfg.dynamic)
	}
	for _, f := range cfg.dateFormats {
		df, err := mapper.ParseDateFormat(f)
		if err != nil {
			return nil, fmt.Errorf("dynamap: date format %q: %w", f, err)
		}
		b.DateFormats(df)
	}

	root, err := b.Build(mapper.NewBuilderContext(mapper.NewContentPath(1)))
	if err != nil {
		return nil, fmt.Errorf("dynamap: build mapping: %w", err)
	}
	dm := mapper.NewDocumentMapper(name, root.(*mapper.ObjectMapper), mapper.NewParserContext())
	return &IndexMapping{dm: dm}, nil
}

// ParseIndexMapping builds an index mapping from a serialized definition:
// the JSON object body with "properties", "dynamic_templates" and so on.
func ParseIndexMapping(name string, def []byte) (*IndexMapping, error) {
	dm, err := mapper.ParseDocumentMapper(name, def, mapper.NewParserContext())
	if err != nil {
		return nil, fmt.Errorf("dynamap: %w", err)
	}
	return &IndexMapping{dm: dm}, nil
}

// Index returns the index name.
func (m *IndexMapping) Index() string { return m.dm.Index() }

// ParseDocument parses one JSON document against the mapping, adding
// mappers for fields seen for the first time. Returns whether the mapping
// changed.
func (m *IndexMapping) ParseDocument(doc []byte) (bool, error) {
	changed, err := m.dm.ParseJSON(doc)
	if err != nil {
		return false, fmt.Errorf("dynamap: %w", err)
	}
	return changed, nil
}

// Merge folds other into this mapping. On any incompatibility the merge
// still applies everything compatible and a MergeConflictError reports
// what was rejected.
func (m *IndexMapping) Merge(other *IndexMapping) error {
	conflicts := m.dm.Merge(other.dm, mapper.MergeFlags{})
	if len(conflicts) > 0 {
		return &MergeConflictError{Conflicts: conflicts}
	}
	return nil
}

// SimulateMerge reports the conflicts a Merge with other would hit,
// without changing anything. An empty result means Merge would succeed
// cleanly.
func (m *IndexMapping) SimulateMerge(other *IndexMapping) []string {
	return m.dm.Merge(other.dm, mapper.MergeFlags{Simulate: true})
}

// Fields returns the full names of every mapped field, sorted.
func (m *IndexMapping) Fields() []string { return m.dm.FieldNames() }

// HasField reports whether a field is mapped under the given full name.
func (m *IndexMapping) HasField(fullName string) bool {
	_, ok := m.dm.FieldMapper(fullName)
	return ok
}

// JSON returns the serialized mapping definition.
func (m *IndexMapping) JSON() ([]byte, error) {
	data, err := m.dm.MappingJSON()
	if err != nil {
		return nil, fmt.Errorf("dynamap: %w", err)
	}
	return data, nil
}
