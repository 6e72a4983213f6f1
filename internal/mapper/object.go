package mapper

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ObjectContentType is the declared type of object mappers.
const ObjectContentType = "object"

// Object mapper defaults.
const (
	DefaultEnabled  = true
	DefaultDynamic  = true
	DefaultPathType = PathFull
)

type mapperSnapshot = map[string]Mapper

// ObjectMapper is a node in the mapping tree. Its child snapshot is read
// without locking; all snapshot replacements are serialized on the node's
// mutex and published by a single atomic pointer swap (copy-on-write).
// Dynamic field discovery becomes rare once the schema stabilizes, so the
// O(children) copy per mutation is acceptable.
type ObjectMapper struct {
	name        string
	enabled     bool
	dynamic     bool
	pathType    PathType
	dateFormats []DateFormat

	includeInAll *bool

	mappers atomic.Pointer[mapperSnapshot]

	// templates is replaced only by merge; in-flight parses may read a
	// list slightly older than the latest merge. Intentional, do not add
	// locking here.
	templates atomic.Pointer[[]*DynamicTemplate]

	// mu serializes snapshot replacement and dynamic child creation. The
	// lock is held across the recursive parse of a newly created child so
	// two threads never race to build divergent mappers for the same
	// never-seen field. That serializes the new subtree's parse behind
	// the lock as well; a known performance caveat, preserved on purpose.
	mu sync.Mutex
}

func newObjectMapper(name string, enabled, dynamic bool, pathType PathType,
	dateFormats []DateFormat, children map[string]Mapper, templates []*DynamicTemplate) *ObjectMapper {
	o := &ObjectMapper{
		name:        name,
		enabled:     enabled,
		dynamic:     dynamic,
		pathType:    pathType,
		dateFormats: dateFormats,
	}
	snap := make(mapperSnapshot, len(children))
	for k, v := range children {
		snap[k] = v
	}
	o.mappers.Store(&snap)
	if templates == nil {
		templates = []*DynamicTemplate{}
	}
	o.templates.Store(&templates)
	return o
}

// Name returns the node's name.
func (o *ObjectMapper) Name() string { return o.name }

// Dynamic reports whether unknown fields under this node are inferred.
func (o *ObjectMapper) Dynamic() bool { return o.dynamic }

// Enabled reports whether this node's subtree is indexed at all.
func (o *ObjectMapper) Enabled() bool { return o.enabled }

// Mappers returns the current child snapshot. The returned map must not
// be mutated.
func (o *ObjectMapper) Mappers() map[string]Mapper { return *o.mappers.Load() }

// Templates returns the current dynamic template list, first match wins.
func (o *ObjectMapper) Templates() []*DynamicTemplate { return *o.templates.Load() }

// Mapper returns the child with the given name from the current snapshot.
func (o *ObjectMapper) Mapper(name string) (Mapper, bool) {
	m, ok := (*o.mappers.Load())[name]
	return m, ok
}

// IncludeInAll sets the catch-all flag on this node and eagerly forwards
// it to every present child supporting the capability. A nil value means
// "leave everything unchanged". Children created later inherit the value
// current at their creation time, not a live binding.
func (o *ObjectMapper) IncludeInAll(v *bool) {
	if v == nil {
		return
	}
	o.includeInAll = v
	for _, m := range o.Mappers() {
		if im, ok := m.(IncludeInAllMapper); ok {
			im.IncludeInAll(v)
		}
	}
}

// PutMapper installs or overwrites a named child and returns the node.
// Safe against concurrent readers: they keep either the old snapshot or
// the new one, never a partial state.
func (o *ObjectMapper) PutMapper(m Mapper) *ObjectMapper {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.putMapperLocked(m)
	return o
}

// putMapperLocked is PutMapper with o.mu already held. Go mutexes are not
// reentrant, so the creation and merge paths that already own the lock
// call this directly.
func (o *ObjectMapper) putMapperLocked(m Mapper) {
	if im, ok := m.(IncludeInAllMapper); ok {
		im.IncludeInAll(o.includeInAll)
	}
	old := *o.mappers.Load()
	next := make(mapperSnapshot, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[m.Name()] = m
	o.mappers.Store(&next)
}

// Traverse visits every field mapper beneath this node.
func (o *ObjectMapper) Traverse(fn FieldMapperListener) {
	for _, m := range o.Mappers() {
		m.Traverse(fn)
	}
}

// Parse walks the object value at the reader's current position, growing
// the tree for unseen fields when the node is dynamic.
func (o *ObjectMapper) Parse(pctx *ParseContext) error {
	r := pctx.Reader()
	if !o.enabled {
		// consume and discard the whole subtree
		return r.SkipChildren()
	}

	origPathType := pctx.Path().PathType()
	pctx.Path().SetPathType(o.pathType)
	defer pctx.Path().SetPathType(origPathType)

	currentFieldName := r.CurrentName()
	tok := r.Token()
	if tok == TokenNull {
		// the object itself is null ("obj": null), nothing to do
		return nil
	}
	var err error
	if tok == TokenEndObject {
		// positioned at the end of the previous object, advance
		if tok, err = r.Next(); err != nil {
			return err
		}
	}
	if tok == TokenStartObject {
		// move past our own opening brace to the first field
		if tok, err = r.Next(); err != nil {
			return err
		}
	}
	for tok != TokenEndObject {
		switch {
		case tok == TokenStartObject:
			err = o.serializeObject(pctx, currentFieldName)
		case tok == TokenStartArray:
			err = o.serializeArray(pctx, currentFieldName)
		case tok == TokenFieldName:
			currentFieldName = r.CurrentName()
		case tok == TokenNull:
			err = o.serializeNullValue(pctx, currentFieldName)
		case tok.IsValue():
			err = o.serializeValue(pctx, currentFieldName, tok)
		case tok == TokenEOF:
			return parsingErrorf("unexpected end of document in object [%s]", o.name)
		}
		if err != nil {
			return err
		}
		if tok, err = r.Next(); err != nil {
			return err
		}
	}
	return nil
}

// serializeNullValue delegates a null to an existing child; without a
// mapping a null carries no type information and is silently ignored.
func (o *ObjectMapper) serializeNullValue(pctx *ParseContext, fieldName string) error {
	if m, ok := o.Mapper(fieldName); ok {
		return m.Parse(pctx)
	}
	return nil
}

func (o *ObjectMapper) serializeObject(pctx *ParseContext, fieldName string) error {
	pctx.Path().Add(fieldName)
	defer pctx.Path().Remove()

	if m, ok := o.Mapper(fieldName); ok {
		return m.Parse(pctx)
	}
	if !o.dynamic {
		// not dynamic, read everything up to the end of the object
		return pctx.Reader().SkipChildren()
	}

	// Locking here just prevents adding the same child twice; later
	// parses find the child in the snapshot and never reach this path.
	o.mu.Lock()
	defer o.mu.Unlock()
	if m, ok := o.Mapper(fieldName); ok {
		return m.Parse(pctx)
	}

	builder, err := o.findTemplateBuilder(pctx, fieldName, ObjectContentType, "")
	if err != nil {
		return err
	}
	if builder == nil {
		builder = NewObjectBuilder(fieldName).
			Enabled(true).
			AddTemplates(o.Templates()...).
			Dynamic(o.dynamic).
			PathType(o.pathType).
			DateFormats(o.dateFormats...)
	}
	child, err := builder.Build(NewBuilderContext(pctx.Path()))
	if err != nil {
		return err
	}
	o.putMapperLocked(child)
	if err := child.Parse(pctx); err != nil {
		return err
	}
	pctx.MarkMappingModified()
	return nil
}

func (o *ObjectMapper) serializeArray(pctx *ParseContext, fieldName string) error {
	if m, ok := o.Mapper(fieldName); ok {
		if _, whole := m.(ArrayValueParser); whole {
			return m.Parse(pctx)
		}
	}
	// arrays do not introduce field names: every element is dispatched
	// under the array's own name
	r := pctx.Reader()
	for {
		tok, err := r.Next()
		if err != nil {
			return err
		}
		switch {
		case tok == TokenEndArray:
			return nil
		case tok == TokenStartObject:
			err = o.serializeObject(pctx, fieldName)
		case tok == TokenStartArray:
			err = o.serializeArray(pctx, fieldName)
		case tok == TokenFieldName:
			fieldName = r.CurrentName()
		case tok == TokenNull:
			err = o.serializeNullValue(pctx, fieldName)
		case tok == TokenEOF:
			return parsingErrorf("unexpected end of document in array [%s]", fieldName)
		default:
			err = o.serializeValue(pctx, fieldName, tok)
		}
		if err != nil {
			return err
		}
	}
}

func (o *ObjectMapper) serializeValue(pctx *ParseContext, fieldName string, tok TokenKind) error {
	if m, ok := o.Mapper(fieldName); ok {
		return m.Parse(pctx)
	}
	if !o.dynamic {
		return nil
	}

	// Double-checked creation: re-read the snapshot under the lock in
	// case another goroutine just created the mapper for this field.
	o.mu.Lock()
	defer o.mu.Unlock()
	if m, ok := o.Mapper(fieldName); ok {
		return m.Parse(pctx)
	}

	m, err := o.newDynamicValueMapper(pctx, fieldName, tok)
	if err != nil {
		return err
	}
	o.putMapperLocked(m)
	m.Traverse(func(fm FieldMapper) {
		pctx.DocMapper().AddFieldMapper(fm)
	})
	if err := m.Parse(pctx); err != nil {
		return err
	}
	pctx.MarkMappingModified()
	return nil
}

// newDynamicValueMapper resolves the concrete mapper for a scalar with no
// existing mapping: date detection for strings, precision rules for
// numbers, template overrides everywhere.
func (o *ObjectMapper) newDynamicValueMapper(pctx *ParseContext, fieldName string, tok TokenKind) (Mapper, error) {
	bctx := NewBuilderContext(pctx.Path())
	r := pctx.Reader()

	var builder Builder
	var err error
	switch tok {
	case TokenString:
		text := r.Text()
		// cheap pre-filter: plain words like "1" should not hit the
		// date parsers
		if strings.ContainsAny(text, ":-/") {
			for _, df := range o.dateFormats {
				if _, perr := df.Parse(text); perr != nil {
					continue
				}
				builder, err = o.findTemplateBuilder(pctx, fieldName, "date", df.Format())
				if err != nil {
					return nil, err
				}
				if builder == nil {
					builder = NewDateBuilder(fieldName).Format(df)
				}
				return builder.Build(bctx)
			}
		}
		if builder, err = o.templateOrDefault(pctx, fieldName, "string", TypeString); err != nil {
			return nil, err
		}
	case TokenNumber:
		switch r.NumberKind() {
		case NumberInt:
			if r.EstimatedNumberKind() {
				builder, err = o.templateOrDefault(pctx, fieldName, "long", TypeLong)
			} else {
				builder, err = o.templateOrDefault(pctx, fieldName, "integer", TypeInteger)
			}
		case NumberLong:
			builder, err = o.templateOrDefault(pctx, fieldName, "long", TypeLong)
		case NumberFloat:
			if r.EstimatedNumberKind() {
				builder, err = o.templateOrDefault(pctx, fieldName, "double", TypeDouble)
			} else {
				builder, err = o.templateOrDefault(pctx, fieldName, "float", TypeFloat)
			}
		case NumberDouble:
			builder, err = o.templateOrDefault(pctx, fieldName, "double", TypeDouble)
		}
		if err != nil {
			return nil, err
		}
	case TokenBool:
		if builder, err = o.templateOrDefault(pctx, fieldName, "boolean", TypeBoolean); err != nil {
			return nil, err
		}
	default:
		// no default rule for this token kind: only a name-only template
		// can still claim the field
		builder, err = o.findTemplateBuilder(pctx, fieldName, "", "")
		if err != nil {
			return nil, err
		}
		if builder == nil {
			return nil, &DynamicValueError{Kind: tok, Field: fieldName}
		}
	}
	return builder.Build(bctx)
}

// templateOrDefault tries the template tag first, falling back to the
// default scalar mapper for the type.
func (o *ObjectMapper) templateOrDefault(pctx *ParseContext, fieldName, dynamicType string, ft FieldType) (Builder, error) {
	builder, err := o.findTemplateBuilder(pctx, fieldName, dynamicType, "")
	if err != nil {
		return nil, err
	}
	if builder == nil {
		builder = NewScalarBuilder(fieldName, ft)
	}
	return builder, nil
}

// findTemplateBuilder resolves the first matching template into a concrete
// builder via the type-parser registry. A declared type without a parser
// is a configuration error, surfaced immediately.
func (o *ObjectMapper) findTemplateBuilder(pctx *ParseContext, name, dynamicType, dateFormat string) (Builder, error) {
	tmpl := o.findTemplate(name, dynamicType)
	if tmpl == nil {
		return nil, nil
	}
	parserCtx := pctx.DocMapper().ParserContext()
	mappingType := tmpl.MappingType(dynamicType)
	tp := parserCtx.TypeParser(mappingType)
	if tp == nil {
		return nil, parsingErrorf("no handler for type [%s] from dynamic template matching field [%s]", mappingType, name)
	}
	return tp(name, tmpl.MappingForName(name, dynamicType, dateFormat), parserCtx)
}

func (o *ObjectMapper) findTemplate(name, dynamicType string) *DynamicTemplate {
	for _, tmpl := range o.Templates() {
		if tmpl.Match(name, dynamicType) {
			return tmpl
		}
	}
	return nil
}

// Merge reconciles mergeWith into this node. All incompatibilities are
// accumulated on mctx; simulate mode reports the identical conflict set
// with zero observable mutation.
func (o *ObjectMapper) Merge(mergeWith Mapper, mctx *MergeContext) {
	src, ok := mergeWith.(*ObjectMapper)
	if !ok {
		mctx.AddConflict("can't merge a non object mapping [%s] with an object mapping [%s]", mergeWith.Name(), o.name)
		return
	}

	if !mctx.Simulate() {
		// a template whose match rule equals an existing one replaces
		// that slot, preserving its position; new templates append
		merged := append([]*DynamicTemplate(nil), o.Templates()...)
		for _, st := range src.Templates() {
			idx := -1
			for i, t := range merged {
				if t.EqualsMatch(st) {
					idx = i
					break
				}
			}
			if idx == -1 {
				merged = append(merged, st)
			} else {
				merged[idx] = st
			}
		}
		o.templates.Store(&merged)
	}

	// The mutex is taken in simulate mode too: the scan needs a stable
	// snapshot, and the mutation calls are themselves guarded by the
	// simulate flag, not the scan.
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, srcChild := range sortedMappers(src.Mappers()) {
		dst, ok := o.Mapper(srcChild.Name())
		if !ok {
			// no mapping yet, adopt the source child with its whole subtree
			if !mctx.Simulate() {
				o.putMapperLocked(srcChild)
				srcChild.Traverse(func(fm FieldMapper) {
					mctx.DocMapper().AddFieldMapper(fm)
				})
			}
			continue
		}
		_, srcIsCompound := srcChild.(CompoundFieldMapper)
		_, dstIsCompound := dst.(CompoundFieldMapper)
		if srcIsCompound && !dstIsCompound {
			// the richer compound shape wins as the container: fold the
			// existing mapper into the source, then install the source
			srcChild.Merge(dst, mctx)
			if !mctx.Simulate() {
				o.putMapperLocked(srcChild)
				srcChild.Traverse(func(fm FieldMapper) {
					mctx.DocMapper().AddFieldMapper(fm)
				})
			}
			continue
		}
		dst.Merge(srcChild, mctx)
	}
}

// sortedMappers returns children in name order so conflict reporting is
// deterministic across runs.
func sortedMappers(m map[string]Mapper) []Mapper {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Mapper, len(names))
	for i, name := range names {
		out[i] = m[name]
	}
	return out
}

// ToMapping serializes the node. Internal mappers are emitted at the top
// level before "properties"; user fields nest under "properties".
func (o *ObjectMapper) ToMapping() map[string]any {
	out := map[string]any{
		"type":    ObjectContentType,
		"dynamic": o.dynamic,
		"enabled": o.enabled,
		"path":    o.pathType.String(),
	}
	if o.includeInAll != nil {
		out["include_in_all"] = *o.includeInAll
	}
	if templates := o.Templates(); len(templates) > 0 {
		arr := make([]any, len(templates))
		for i, t := range templates {
			arr[i] = t.Conf()
		}
		out["dynamic_templates"] = arr
	}
	if len(o.dateFormats) > 0 {
		arr := make([]any, len(o.dateFormats))
		for i, f := range o.dateFormats {
			arr[i] = f.Format()
		}
		out["date_formats"] = arr
	}

	snapshot := o.Mappers()
	var props map[string]any
	for _, m := range sortedMappers(snapshot) {
		if _, internal := m.(InternalMapper); internal {
			out[m.Name()] = m.ToMapping()
			continue
		}
		if props == nil {
			props = make(map[string]any)
		}
		props[m.Name()] = m.ToMapping()
	}
	if props != nil {
		out["properties"] = props
	}
	return out
}

// ObjectBuilder builds an ObjectMapper.
type ObjectBuilder struct {
	name           string
	enabled        bool
	dynamic        bool
	pathType       PathType
	dateFormats    []DateFormat
	noDateFormats  bool
	includeInAll   *bool
	mapperBuilders []Builder
	templates      []*DynamicTemplate
}

// NewObjectBuilder creates a builder with the defaults: enabled, dynamic,
// full path naming, default date formats.
func NewObjectBuilder(name string) *ObjectBuilder {
	return &ObjectBuilder{
		name:     name,
		enabled:  DefaultEnabled,
		dynamic:  DefaultDynamic,
		pathType: DefaultPathType,
	}
}

// Name returns the object's name.
func (b *ObjectBuilder) Name() string { return b.name }

// Enabled sets whether the subtree is indexed.
func (b *ObjectBuilder) Enabled(v bool) *ObjectBuilder {
	b.enabled = v
	return b
}

// Dynamic sets whether unknown fields are inferred.
func (b *ObjectBuilder) Dynamic(v bool) *ObjectBuilder {
	b.dynamic = v
	return b
}

// PathType sets the path naming mode for the subtree.
func (b *ObjectBuilder) PathType(t PathType) *ObjectBuilder {
	b.pathType = t
	return b
}

// DateFormats appends date-detection formats.
func (b *ObjectBuilder) DateFormats(formats ...DateFormat) *ObjectBuilder {
	b.dateFormats = append(b.dateFormats, formats...)
	return b
}

// NoDateFormats disables date detection entirely.
func (b *ObjectBuilder) NoDateFormats() *ObjectBuilder {
	b.noDateFormats = true
	b.dateFormats = nil
	return b
}

// IncludeInAll sets the catch-all flag propagated to children.
func (b *ObjectBuilder) IncludeInAll(v bool) *ObjectBuilder {
	b.includeInAll = &v
	return b
}

// AddTemplates appends dynamic templates in declaration order.
func (b *ObjectBuilder) AddTemplates(templates ...*DynamicTemplate) *ObjectBuilder {
	b.templates = append(b.templates, templates...)
	return b
}

// Add appends a child mapper builder.
func (b *ObjectBuilder) Add(child Builder) *ObjectBuilder {
	b.mapperBuilders = append(b.mapperBuilders, child)
	return b
}

// Build constructs the object and its declared children, scoping the path
// type and the object's own name around child construction.
func (b *ObjectBuilder) Build(bctx *BuilderContext) (Mapper, error) {
	dateFormats := b.dateFormats
	if !b.noDateFormats && len(dateFormats) == 0 {
		dateFormats = append([]DateFormat(nil), DefaultDateFormats...)
	}

	origPathType := bctx.Path().PathType()
	bctx.Path().SetPathType(b.pathType)
	bctx.Path().Add(b.name)

	children := make(map[string]Mapper, len(b.mapperBuilders))
	for _, cb := range b.mapperBuilders {
		m, err := cb.Build(bctx)
		if err != nil {
			bctx.Path().Remove()
			bctx.Path().SetPathType(origPathType)
			return nil, err
		}
		children[m.Name()] = m
	}

	o := newObjectMapper(b.name, b.enabled, b.dynamic, b.pathType, dateFormats, children, b.templates)

	bctx.Path().Remove()
	bctx.Path().SetPathType(origPathType)

	o.IncludeInAll(b.includeInAll)
	return o, nil
}

// parseObjectMapper is the TypeParser for "object" nodes.
func parseObjectMapper(name string, node map[string]any, pctx *ParserContext) (Builder, error) {
	b := NewObjectBuilder(name)
	for fieldName, fieldNode := range node {
		switch fieldName {
		case "dynamic":
			b.Dynamic(nodeBool(fieldNode))
		case "type":
			if typ := nodeString(fieldNode); typ != ObjectContentType {
				return nil, parsingErrorf("trying to parse an object but has a different type [%s] for [%s]", typ, name)
			}
		case "dynamic_templates":
			list, ok := fieldNode.([]any)
			if !ok {
				return nil, parsingErrorf("[dynamic_templates] must be an array on object [%s]", name)
			}
			for _, raw := range list {
				conf, ok := raw.(map[string]any)
				if !ok {
					return nil, parsingErrorf("dynamic template must be an object on [%s]", name)
				}
				tmpl, err := ParseDynamicTemplate(conf)
				if err != nil {
					return nil, err
				}
				b.AddTemplates(tmpl)
			}
		case "date_formats":
			if err := parseDateFormatsNode(b, fieldNode); err != nil {
				return nil, err
			}
		case "enabled":
			b.Enabled(nodeBool(fieldNode))
		case "path":
			pt, err := ParsePathType(name, nodeString(fieldNode))
			if err != nil {
				return nil, err
			}
			b.PathType(pt)
		case "properties":
			props, ok := fieldNode.(map[string]any)
			if !ok {
				return nil, parsingErrorf("[properties] must be an object on [%s]", name)
			}
			if err := parseProperties(b, props, pctx); err != nil {
				return nil, err
			}
		case "include_in_all":
			b.IncludeInAll(nodeBool(fieldNode))
		}
	}
	return b, nil
}

func parseDateFormatsNode(b *ObjectBuilder, fieldNode any) error {
	switch t := fieldNode.(type) {
	case []any:
		for _, raw := range t {
			f, err := ParseDateFormat(nodeString(raw))
			if err != nil {
				return err
			}
			b.DateFormats(f)
		}
	case string:
		if t == "none" {
			b.NoDateFormats()
			return nil
		}
		f, err := ParseDateFormat(t)
		if err != nil {
			return err
		}
		b.DateFormats(f)
	default:
		return parsingErrorf("[date_formats] must be an array or a string")
	}
	return nil
}

// parseProperties resolves each declared property against the type-parser
// registry, deriving the type structurally when it is not declared.
func parseProperties(b *ObjectBuilder, props map[string]any, pctx *ParserContext) error {
	for propName, raw := range props {
		propNode, ok := raw.(map[string]any)
		if !ok {
			return parsingErrorf("property [%s] must be an object", propName)
		}

		typ := nodeString(propNode["type"])
		if typ == "" {
			// derive it from the shape
			switch {
			case propNode["properties"] != nil:
				typ = ObjectContentType
			case propNode["fields"] != nil:
				typ = MultiFieldContentType
			default:
				return parsingErrorf("no type specified for property [%s]", propName)
			}
		}

		tp := pctx.TypeParser(typ)
		if tp == nil {
			return parsingErrorf("no handler for type [%s] declared on field [%s]", typ, propName)
		}
		child, err := tp(propName, propNode, pctx)
		if err != nil {
			return err
		}
		b.Add(child)
	}
	return nil
}
