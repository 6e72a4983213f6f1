package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// DocumentMapper is the document-level aggregator: it owns the root
// object mapper, keeps the flat field-mapper index consistent with the
// tree, and is the entry point for parsing documents and merging mapping
// updates.
type DocumentMapper struct {
	index     string
	root      *ObjectMapper
	parserCtx *ParserContext

	mu           sync.RWMutex
	fieldMappers map[string]FieldMapper
}

// NewDocumentMapper wraps a root object mapper, registering every field
// mapper already present in the tree.
func NewDocumentMapper(index string, root *ObjectMapper, parserCtx *ParserContext) *DocumentMapper {
	d := &DocumentMapper{
		index:        index,
		root:         root,
		parserCtx:    parserCtx,
		fieldMappers: make(map[string]FieldMapper),
	}
	root.Traverse(d.AddFieldMapper)
	return d
}

// NewDefaultDocumentMapper creates a dynamic, enabled document mapper
// with the default date formats.
func NewDefaultDocumentMapper(index string) *DocumentMapper {
	pctx := NewParserContext()
	rootMapper, err := NewObjectBuilder(index).Build(NewBuilderContext(NewContentPath(1)))
	if err != nil {
		// the default builder has no declared children and cannot fail
		panic(err)
	}
	return NewDocumentMapper(index, rootMapper.(*ObjectMapper), pctx)
}

// ParseDocumentMapper builds a document mapper from a serialized mapping
// definition (the bare root object body).
func ParseDocumentMapper(index string, def []byte, parserCtx *ParserContext) (*DocumentMapper, error) {
	var node map[string]any
	dec := json.NewDecoder(bytes.NewReader(def))
	dec.UseNumber()
	if err := dec.Decode(&node); err != nil {
		return nil, parsingErrorf("mapping definition for [%s] is not an object: %v", index, err)
	}
	builder, err := parseObjectMapper(index, normalizeNode(node).(map[string]any), parserCtx)
	if err != nil {
		return nil, err
	}
	rootMapper, err := builder.Build(NewBuilderContext(NewContentPath(1)))
	if err != nil {
		return nil, err
	}
	return NewDocumentMapper(index, rootMapper.(*ObjectMapper), parserCtx), nil
}

// normalizeNode converts json.Number values inside a decoded mapping
// definition to plain Go numbers so definition handling never depends on
// the decoder configuration.
func normalizeNode(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNode(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNode(e)
		}
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

// Index returns the index name this mapping belongs to.
func (d *DocumentMapper) Index() string { return d.index }

// Root returns the root object mapper.
func (d *DocumentMapper) Root() *ObjectMapper { return d.root }

// ParserContext returns the shared type-parser registry.
func (d *DocumentMapper) ParserContext() *ParserContext { return d.parserCtx }

// AddFieldMapper registers a leaf mapper with the document-level field
// index. Called once per newly created leaf, including leaves nested in
// compound fields.
func (d *DocumentMapper) AddFieldMapper(fm FieldMapper) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fieldMappers[fm.FullName()] = fm
}

// FieldMapper looks a leaf mapper up by its registered name.
func (d *DocumentMapper) FieldMapper(fullName string) (FieldMapper, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fm, ok := d.fieldMappers[fullName]
	return fm, ok
}

// FieldNames returns every registered field name, sorted.
func (d *DocumentMapper) FieldNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.fieldMappers))
	for name := range d.fieldMappers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse walks one document from the token stream, lazily growing the
// mapping tree. It reports whether the mapping changed so the caller can
// persist the updated schema.
func (d *DocumentMapper) Parse(r TokenReader) (bool, error) {
	tok := r.Token()
	if tok == TokenNone {
		var err error
		if tok, err = r.Next(); err != nil {
			return false, err
		}
	}
	if tok != TokenStartObject {
		return false, fmt.Errorf("%w: expected an object, found [%s]", ErrInvalidDocument, tok)
	}
	pctx := newParseContext(r, NewContentPath(0), d)
	if err := d.root.Parse(pctx); err != nil {
		return pctx.MappingModified(), err
	}
	return pctx.MappingModified(), nil
}

// ParseJSON parses one JSON document.
func (d *DocumentMapper) ParseJSON(doc []byte) (bool, error) {
	return d.Parse(NewJSONReader(bytes.NewReader(doc)))
}

// Merge reconciles src into this mapping under the given flags and
// returns the accumulated conflicts. Callers serialize merges against
// live parsing of the same mapping generation.
func (d *DocumentMapper) Merge(src *DocumentMapper, flags MergeFlags) []string {
	mctx := NewMergeContext(d, flags)
	d.root.Merge(src.root, mctx)
	return mctx.Conflicts()
}

// Mapping returns the serialized mapping document keyed by index name.
func (d *DocumentMapper) Mapping() map[string]any {
	return map[string]any{d.index: d.root.ToMapping()}
}

// MappingJSON returns the mapping serialized as the bare root body, the
// form accepted back by ParseDocumentMapper.
func (d *DocumentMapper) MappingJSON() ([]byte, error) {
	data, err := json.Marshal(d.root.ToMapping())
	if err != nil {
		return nil, fmt.Errorf("serialize mapping for [%s]: %w", d.index, err)
	}
	return data, nil
}
