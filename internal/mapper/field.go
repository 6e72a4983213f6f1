package mapper

// FieldType is the concrete type of a leaf field mapper.
type FieldType string

const (
	// TypeString is a text field.
	TypeString FieldType = "string"
	// TypeInteger is a 32-bit integer field.
	TypeInteger FieldType = "integer"
	// TypeLong is a 64-bit integer field.
	TypeLong FieldType = "long"
	// TypeFloat is a 32-bit float field.
	TypeFloat FieldType = "float"
	// TypeDouble is a 64-bit float field.
	TypeDouble FieldType = "double"
	// TypeBoolean is a boolean field.
	TypeBoolean FieldType = "boolean"
	// TypeDate is a date field bound to one date format.
	TypeDate FieldType = "date"
)

// ScalarMapper is a leaf field mapper: one scalar field's concrete type
// and indexing options. Its Parse validates the current token against the
// field type; actual index storage is owned by the indexing layer, not
// the mapping tree.
type ScalarMapper struct {
	name      string
	fullName  string
	fieldType FieldType

	store bool
	index bool

	includeInAll *bool

	// date fields only
	format DateFormat
}

var _ FieldMapper = (*ScalarMapper)(nil)
var _ IncludeInAllMapper = (*ScalarMapper)(nil)

// Name returns the leaf name.
func (m *ScalarMapper) Name() string { return m.name }

// FullName returns the registered field name, derived from the content
// path at creation time.
func (m *ScalarMapper) FullName() string { return m.fullName }

// Type returns the field's concrete type.
func (m *ScalarMapper) Type() FieldType { return m.fieldType }

// Format returns the bound date format; zero for non-date fields.
func (m *ScalarMapper) Format() DateFormat { return m.format }

// IncludeInAll stores the catch-all flag; nil leaves it unchanged.
func (m *ScalarMapper) IncludeInAll(v *bool) {
	if v == nil {
		return
	}
	m.includeInAll = v
}

// Parse validates the scalar at the reader's current position against the
// field type. Nulls are ignored.
func (m *ScalarMapper) Parse(pctx *ParseContext) error {
	r := pctx.Reader()
	switch r.Token() {
	case TokenNull:
		return nil
	case TokenBool:
		if m.fieldType == TypeBoolean {
			_, err := r.Bool()
			return err
		}
		return nil
	case TokenNumber:
		switch m.fieldType {
		case TypeInteger, TypeLong:
			_, err := r.Int64()
			return err
		case TypeFloat, TypeDouble:
			_, err := r.Float64()
			return err
		}
		return nil
	case TokenString:
		if m.fieldType == TypeDate && !m.format.Zero() {
			if _, err := m.format.Parse(r.Text()); err != nil {
				return documentErrorf("failed to parse date field [%s] with value [%s]: %v", m.fullName, r.Text(), err)
			}
		}
		return nil
	case TokenStartObject, TokenStartArray:
		return documentErrorf("field [%s] of type [%s] cannot hold a complex value", m.fullName, m.fieldType)
	default:
		return nil
	}
}

// Merge records conflicts for incompatible redefinitions: type changes,
// differing index/store options and, for dates, a different bound format.
func (m *ScalarMapper) Merge(mergeWith Mapper, mctx *MergeContext) {
	other, ok := mergeWith.(*ScalarMapper)
	if !ok {
		mctx.AddConflict("mapper [%s] cannot be changed from type [%s] to type [object]", m.fullName, m.fieldType)
		return
	}
	if other.fieldType != m.fieldType {
		mctx.AddConflict("mapper [%s] of different type, current_type [%s], merged_type [%s]", m.fullName, m.fieldType, other.fieldType)
		return
	}
	if other.store != m.store {
		mctx.AddConflict("mapper [%s] has different store values", m.fullName)
	}
	if other.index != m.index {
		mctx.AddConflict("mapper [%s] has different index values", m.fullName)
	}
	if m.fieldType == TypeDate && other.format.Format() != m.format.Format() {
		mctx.AddConflict("mapper [%s] has different date formats", m.fullName)
	}
	if !mctx.Simulate() {
		if other.includeInAll != nil {
			m.includeInAll = other.includeInAll
		}
	}
}

// Traverse visits this leaf.
func (m *ScalarMapper) Traverse(fn FieldMapperListener) { fn(m) }

// ToMapping serializes the field definition. Defaults are omitted.
func (m *ScalarMapper) ToMapping() map[string]any {
	out := map[string]any{"type": string(m.fieldType)}
	if m.store {
		out["store"] = true
	}
	if !m.index {
		out["index"] = false
	}
	if m.includeInAll != nil {
		out["include_in_all"] = *m.includeInAll
	}
	if m.fieldType == TypeDate && !m.format.Zero() {
		out["format"] = m.format.Format()
	}
	return out
}

// ScalarBuilder builds a ScalarMapper.
type ScalarBuilder struct {
	name         string
	fieldType    FieldType
	store        bool
	index        bool
	includeInAll *bool
	format       DateFormat
}

// NewScalarBuilder creates a builder for the given field type with the
// defaults: indexed, not stored.
func NewScalarBuilder(name string, t FieldType) *ScalarBuilder {
	return &ScalarBuilder{name: name, fieldType: t, index: true}
}

// NewStringBuilder creates a string field builder.
func NewStringBuilder(name string) *ScalarBuilder { return NewScalarBuilder(name, TypeString) }

// NewDateBuilder creates a date field builder.
func NewDateBuilder(name string) *ScalarBuilder { return NewScalarBuilder(name, TypeDate) }

// Name returns the field name.
func (b *ScalarBuilder) Name() string { return b.name }

// Store sets whether the raw value is stored.
func (b *ScalarBuilder) Store(v bool) *ScalarBuilder {
	b.store = v
	return b
}

// Index sets whether the field is indexed.
func (b *ScalarBuilder) Index(v bool) *ScalarBuilder {
	b.index = v
	return b
}

// IncludeInAll sets the catch-all flag.
func (b *ScalarBuilder) IncludeInAll(v bool) *ScalarBuilder {
	b.includeInAll = &v
	return b
}

// Format binds a date field to one specific format.
func (b *ScalarBuilder) Format(f DateFormat) *ScalarBuilder {
	b.format = f
	return b
}

// Build constructs the mapper, resolving the full name from the path.
func (b *ScalarBuilder) Build(bctx *BuilderContext) (Mapper, error) {
	format := b.format
	if b.fieldType == TypeDate && format.Zero() {
		format = DefaultDateFormats[0]
	}
	return &ScalarMapper{
		name:         b.name,
		fullName:     bctx.Path().PathAsText(b.name),
		fieldType:    b.fieldType,
		store:        b.store,
		index:        b.index,
		includeInAll: b.includeInAll,
		format:       format,
	}, nil
}

// scalarParser returns the TypeParser for one scalar field type.
func scalarParser(t FieldType) TypeParser {
	return func(name string, node map[string]any, _ *ParserContext) (Builder, error) {
		b := NewScalarBuilder(name, t)
		for fieldName, fieldNode := range node {
			switch fieldName {
			case "store":
				b.Store(nodeBool(fieldNode))
			case "index":
				b.Index(nodeBool(fieldNode))
			case "include_in_all":
				b.IncludeInAll(nodeBool(fieldNode))
			case "format":
				if t != TypeDate {
					return nil, parsingErrorf("[format] is only valid on date fields, found on [%s]", name)
				}
				f, err := ParseDateFormat(nodeString(fieldNode))
				if err != nil {
					return nil, err
				}
				b.Format(f)
			}
		}
		return b, nil
	}
}
