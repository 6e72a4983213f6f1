// Package mapper implements the dynamic schema-mapping tree: a
// concurrently readable tree of object and field mappers that grows as
// documents are parsed, with template-driven overrides for inferred types
// and a conflict-accumulating merge between independently built trees.
package mapper

// Mapper is a single node in the mapping tree. Object mappers contain
// named children; field mappers are leaves describing one scalar field.
type Mapper interface {
	// Name returns the node's name, unique among its siblings.
	Name() string
	// Parse consumes the current value in the token stream for this node.
	// The caller positions the stream; Parse must not read past the value.
	Parse(pctx *ParseContext) error
	// Merge reconciles mergeWith into this mapper. Incompatibilities are
	// recorded on mctx, never returned as errors.
	Merge(mergeWith Mapper, mctx *MergeContext)
	// Traverse visits every field mapper in this subtree.
	Traverse(fn FieldMapperListener)
	// ToMapping returns the node's serialized mapping body.
	ToMapping() map[string]any
}

// FieldMapper is a leaf mapper registered with the document-level index.
type FieldMapper interface {
	Mapper
	// FullName is the name the field is registered under, built from the
	// content path according to the owning object's path type.
	FullName() string
}

// FieldMapperListener receives field mappers during traversal.
type FieldMapperListener func(fm FieldMapper)

// IncludeInAllMapper is implemented by mappers that can copy their value
// into the catch-all full-text field. A nil value means "leave unchanged".
type IncludeInAllMapper interface {
	IncludeInAll(v *bool)
}

// ArrayValueParser marks mappers that consume whole arrays natively.
// The object walk delegates the entire array to such a mapper instead of
// dispatching element by element.
type ArrayValueParser interface {
	ParsesArrays()
}

// CompoundFieldMapper is implemented by mappers that carry named
// sub-fields in addition to their own value (multi_field). During merge
// the compound shape wins as the container.
type CompoundFieldMapper interface {
	SubMappers() map[string]Mapper
}

// InternalMapper marks infrastructure mappers that serialize before
// "properties" instead of inside it.
type InternalMapper interface {
	internalMapper()
}

// Builder constructs a mapper once the content path is known.
type Builder interface {
	Name() string
	Build(bctx *BuilderContext) (Mapper, error)
}

// BuilderContext carries the content path used to compute field full names
// at construction time.
type BuilderContext struct {
	path *ContentPath
}

// NewBuilderContext creates a builder context over the given path.
func NewBuilderContext(path *ContentPath) *BuilderContext {
	return &BuilderContext{path: path}
}

// Path returns the content path.
func (c *BuilderContext) Path() *ContentPath { return c.path }

// TypeParser turns a mapping definition node into a Builder for one
// declared type.
type TypeParser func(name string, node map[string]any, pctx *ParserContext) (Builder, error)

// ParserContext resolves declared mapping types to their parsers.
type ParserContext struct {
	parsers map[string]TypeParser
}

// NewParserContext creates a registry with all built-in type parsers.
func NewParserContext() *ParserContext {
	p := &ParserContext{parsers: make(map[string]TypeParser)}
	p.Register(ObjectContentType, parseObjectMapper)
	p.Register(MultiFieldContentType, parseMultiFieldMapper)
	for _, t := range []FieldType{
		TypeString, TypeInteger, TypeLong, TypeFloat, TypeDouble, TypeBoolean, TypeDate,
	} {
		p.Register(string(t), scalarParser(t))
	}
	return p
}

// Register binds a type name to its parser, replacing any previous one.
func (p *ParserContext) Register(typ string, tp TypeParser) {
	p.parsers[typ] = tp
}

// TypeParser returns the parser for typ, or nil if none is registered.
func (p *ParserContext) TypeParser(typ string) TypeParser {
	return p.parsers[typ]
}

// ParseContext is the shared state of one document parse: the token
// stream, the content path and the document-level mapper receiving new
// field registrations.
type ParseContext struct {
	reader          TokenReader
	path            *ContentPath
	doc             *DocumentMapper
	mappingModified bool
}

func newParseContext(r TokenReader, path *ContentPath, doc *DocumentMapper) *ParseContext {
	return &ParseContext{reader: r, path: path, doc: doc}
}

// Reader returns the token stream being parsed.
func (c *ParseContext) Reader() TokenReader { return c.reader }

// Path returns the shared content path stack.
func (c *ParseContext) Path() *ContentPath { return c.path }

// DocMapper returns the document-level mapper.
func (c *ParseContext) DocMapper() *DocumentMapper { return c.doc }

// MarkMappingModified records that this parse grew the mapping tree, so
// the caller can persist the updated schema.
func (c *ParseContext) MarkMappingModified() { c.mappingModified = true }

// MappingModified reports whether this parse created new mappers.
func (c *ParseContext) MappingModified() bool { return c.mappingModified }

// nodeBool coerces a mapping definition value to bool. Accepts booleans
// and the string forms used in mapping documents.
func nodeBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "yes" || t == "on" || t == "1"
	case float64:
		return t != 0
	default:
		return false
	}
}

// nodeString coerces a mapping definition value to its string form.
func nodeString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// simpleMatch reports whether pattern matches s, where '*' matches any
// run of characters, including none. This is the only wildcard supported
// in template match rules.
func simpleMatch(pattern, s string) bool {
	for {
		i := indexStar(pattern)
		if i < 0 {
			return pattern == s
		}
		if i > 0 {
			if len(s) < i || pattern[:i] != s[:i] {
				return false
			}
			pattern, s = pattern[i:], s[i:]
			continue
		}
		// pattern starts with '*': try every suffix of s
		rest := pattern[1:]
		if rest == "" {
			return true
		}
		for j := 0; j <= len(s); j++ {
			if simpleMatch(rest, s[j:]) {
				return true
			}
		}
		return false
	}
}

func indexStar(p string) int {
	for i := 0; i < len(p); i++ {
		if p[i] == '*' {
			return i
		}
	}
	return -1
}
