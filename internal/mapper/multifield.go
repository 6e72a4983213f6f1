package mapper

// MultiFieldContentType is the declared type of compound multi-field
// mappers.
const MultiFieldContentType = "multi_field"

// MultiFieldMapper indexes one document value under several sub-fields,
// each with its own mapping. The sub-field sharing the mapper's name is
// the default one. It is the compound shape that wins as the container
// when merged against a plain field mapper.
type MultiFieldMapper struct {
	name     string
	pathType PathType

	defaultMapper Mapper
	mappers       map[string]Mapper
}

var _ Mapper = (*MultiFieldMapper)(nil)
var _ CompoundFieldMapper = (*MultiFieldMapper)(nil)
var _ IncludeInAllMapper = (*MultiFieldMapper)(nil)

// Name returns the field name.
func (m *MultiFieldMapper) Name() string { return m.name }

// SubMappers returns the named sub-field mappers, default included.
func (m *MultiFieldMapper) SubMappers() map[string]Mapper {
	out := make(map[string]Mapper, len(m.mappers)+1)
	for k, v := range m.mappers {
		out[k] = v
	}
	if m.defaultMapper != nil {
		out[m.defaultMapper.Name()] = m.defaultMapper
	}
	return out
}

// IncludeInAll forwards the catch-all flag to every sub-field.
func (m *MultiFieldMapper) IncludeInAll(v *bool) {
	if v == nil {
		return
	}
	if im, ok := m.defaultMapper.(IncludeInAllMapper); ok {
		im.IncludeInAll(v)
	}
	for _, sub := range m.mappers {
		if im, ok := sub.(IncludeInAllMapper); ok {
			im.IncludeInAll(v)
		}
	}
}

// Parse feeds the current value to the default mapper and then to every
// other sub-field, switching the path to just-name scope for the
// sub-fields.
func (m *MultiFieldMapper) Parse(pctx *ParseContext) error {
	origPathType := pctx.Path().PathType()
	pctx.Path().SetPathType(m.pathType)
	defer pctx.Path().SetPathType(origPathType)

	if m.defaultMapper != nil {
		if err := m.defaultMapper.Parse(pctx); err != nil {
			return err
		}
	}
	pctx.Path().Add(m.name)
	defer pctx.Path().Remove()
	for _, sub := range m.mappers {
		if err := sub.Parse(pctx); err != nil {
			return err
		}
	}
	return nil
}

// Merge folds mergeWith into this compound field. A plain field mapper
// merges against the default sub-field; another multi_field merges
// sub-field by sub-field, adopting new ones when not simulating.
func (m *MultiFieldMapper) Merge(mergeWith Mapper, mctx *MergeContext) {
	switch other := mergeWith.(type) {
	case *MultiFieldMapper:
		for _, sub := range sortedMappers(other.SubMappers()) {
			if sub.Name() == m.name {
				m.mergeDefault(sub, mctx)
				continue
			}
			existing, ok := m.mappers[sub.Name()]
			if !ok {
				if !mctx.Simulate() {
					if m.mappers == nil {
						m.mappers = make(map[string]Mapper)
					}
					m.mappers[sub.Name()] = sub
					if fm, isField := sub.(FieldMapper); isField {
						mctx.DocMapper().AddFieldMapper(fm)
					}
				}
				continue
			}
			existing.Merge(sub, mctx)
		}
	case *ObjectMapper:
		mctx.AddConflict("can't merge an object mapping [%s] into a multi_field mapping [%s]", other.Name(), m.name)
	default:
		// plain field folded into the compound shape
		m.mergeDefault(mergeWith, mctx)
	}
}

func (m *MultiFieldMapper) mergeDefault(mergeWith Mapper, mctx *MergeContext) {
	if m.defaultMapper == nil {
		if !mctx.Simulate() {
			m.defaultMapper = mergeWith
			if fm, isField := mergeWith.(FieldMapper); isField {
				mctx.DocMapper().AddFieldMapper(fm)
			}
		}
		return
	}
	m.defaultMapper.Merge(mergeWith, mctx)
}

// Traverse visits every sub-field mapper.
func (m *MultiFieldMapper) Traverse(fn FieldMapperListener) {
	if m.defaultMapper != nil {
		m.defaultMapper.Traverse(fn)
	}
	for _, sub := range m.mappers {
		sub.Traverse(fn)
	}
}

// ToMapping serializes the compound definition.
func (m *MultiFieldMapper) ToMapping() map[string]any {
	fields := make(map[string]any, len(m.mappers)+1)
	if m.defaultMapper != nil {
		fields[m.defaultMapper.Name()] = m.defaultMapper.ToMapping()
	}
	for name, sub := range m.mappers {
		fields[name] = sub.ToMapping()
	}
	out := map[string]any{
		"type":   MultiFieldContentType,
		"fields": fields,
	}
	if m.pathType != DefaultPathType {
		out["path"] = m.pathType.String()
	}
	return out
}

// MultiFieldBuilder builds a MultiFieldMapper.
type MultiFieldBuilder struct {
	name     string
	pathType PathType
	builders []Builder
}

// NewMultiFieldBuilder creates a multi_field builder.
func NewMultiFieldBuilder(name string) *MultiFieldBuilder {
	return &MultiFieldBuilder{name: name, pathType: DefaultPathType}
}

// Name returns the field name.
func (b *MultiFieldBuilder) Name() string { return b.name }

// PathType sets how sub-fields are namespaced.
func (b *MultiFieldBuilder) PathType(t PathType) *MultiFieldBuilder {
	b.pathType = t
	return b
}

// Add appends a sub-field builder. The sub-field named like the
// multi_field itself becomes the default mapper.
func (b *MultiFieldBuilder) Add(sub Builder) *MultiFieldBuilder {
	b.builders = append(b.builders, sub)
	return b
}

// Build constructs the compound mapper and its sub-fields.
func (b *MultiFieldBuilder) Build(bctx *BuilderContext) (Mapper, error) {
	origPathType := bctx.Path().PathType()
	bctx.Path().SetPathType(b.pathType)

	m := &MultiFieldMapper{name: b.name, pathType: b.pathType, mappers: make(map[string]Mapper)}
	for _, sb := range b.builders {
		if sb.Name() == b.name {
			sub, err := sb.Build(bctx)
			if err != nil {
				bctx.Path().SetPathType(origPathType)
				return nil, err
			}
			m.defaultMapper = sub
			continue
		}
		bctx.Path().Add(b.name)
		sub, err := sb.Build(bctx)
		bctx.Path().Remove()
		if err != nil {
			bctx.Path().SetPathType(origPathType)
			return nil, err
		}
		m.mappers[sub.Name()] = sub
	}

	bctx.Path().SetPathType(origPathType)
	return m, nil
}

// parseMultiFieldMapper is the TypeParser for "multi_field" nodes.
func parseMultiFieldMapper(name string, node map[string]any, pctx *ParserContext) (Builder, error) {
	b := NewMultiFieldBuilder(name)
	for fieldName, fieldNode := range node {
		switch fieldName {
		case "type":
			if typ := nodeString(fieldNode); typ != MultiFieldContentType {
				return nil, parsingErrorf("trying to parse a multi_field but has a different type [%s] for [%s]", typ, name)
			}
		case "path":
			pt, err := ParsePathType(name, nodeString(fieldNode))
			if err != nil {
				return nil, err
			}
			b.PathType(pt)
		case "fields":
			fields, ok := fieldNode.(map[string]any)
			if !ok {
				return nil, parsingErrorf("[fields] must be an object on multi_field [%s]", name)
			}
			for subName, raw := range fields {
				subNode, ok := raw.(map[string]any)
				if !ok {
					return nil, parsingErrorf("field [%s] of multi_field [%s] must be an object", subName, name)
				}
				typ := nodeString(subNode["type"])
				if typ == "" {
					return nil, parsingErrorf("no type specified for field [%s] of multi_field [%s]", subName, name)
				}
				tp := pctx.TypeParser(typ)
				if tp == nil {
					return nil, parsingErrorf("no handler for type [%s] declared on field [%s]", typ, subName)
				}
				sub, err := tp(subName, subNode, pctx)
				if err != nil {
					return nil, err
				}
				b.Add(sub)
			}
		}
	}
	return b, nil
}
