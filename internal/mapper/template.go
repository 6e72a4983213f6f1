package mapper

import "strings"

// DynamicTemplate is one user-declared rule overriding default type
// inference: a match rule over the field name and/or the inferred dynamic
// type, plus the mapping definition to apply when it matches. Templates
// are evaluated in declaration order; the first match wins.
type DynamicTemplate struct {
	conf        map[string]any
	namePattern string
	typePattern string
	mapping     map[string]any
}

// ParseDynamicTemplate parses one template definition:
//
//	{
//	    "match": "*_test",
//	    "match_mapping_type": "string",
//	    "mapping": { "type": "string", "store": "yes" }
//	}
func ParseDynamicTemplate(conf map[string]any) (*DynamicTemplate, error) {
	t := &DynamicTemplate{conf: conf}
	for key, value := range conf {
		switch key {
		case "match":
			t.namePattern = nodeString(value)
		case "match_mapping_type":
			t.typePattern = nodeString(value)
		case "mapping":
			m, ok := value.(map[string]any)
			if !ok {
				return nil, parsingErrorf("dynamic template [mapping] must be an object")
			}
			t.mapping = m
		}
	}
	if t.mapping == nil {
		return nil, parsingErrorf("dynamic template has no [mapping] definition")
	}
	if t.namePattern == "" && t.typePattern == "" {
		return nil, parsingErrorf("dynamic template has neither [match] nor [match_mapping_type]")
	}
	return t, nil
}

// Match reports whether the template accepts the field. An empty
// dynamicType only matches templates without a type constraint.
func (t *DynamicTemplate) Match(name, dynamicType string) bool {
	if t.namePattern != "" && !simpleMatch(t.namePattern, name) {
		return false
	}
	if t.typePattern != "" {
		if dynamicType == "" {
			return false
		}
		if !simpleMatch(t.typePattern, dynamicType) {
			return false
		}
	}
	return true
}

// MappingType resolves the mapping type the template produces. A literal
// type in the mapping definition wins; the {dynamic_type} placeholder or
// an absent type falls back to the inferred dynamicType.
func (t *DynamicTemplate) MappingType(dynamicType string) string {
	typ := nodeString(t.mapping["type"])
	if typ == "" || typ == "{dynamic_type}" {
		return dynamicType
	}
	return typ
}

// MappingForName returns a copy of the mapping definition with the
// {name}, {dynamic_type} and {dynamic_date_format} placeholders replaced.
func (t *DynamicTemplate) MappingForName(name, dynamicType, dateFormat string) map[string]any {
	repl := strings.NewReplacer(
		"{name}", name,
		"{dynamic_type}", dynamicType,
		"{dynamic_date_format}", dateFormat,
	)
	return substituteMap(t.mapping, repl)
}

func substituteMap(src map[string]any, repl *strings.Replacer) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[repl.Replace(k)] = substituteValue(v, repl)
	}
	return out
}

func substituteValue(v any, repl *strings.Replacer) any {
	switch t := v.(type) {
	case string:
		return repl.Replace(t)
	case map[string]any:
		return substituteMap(t, repl)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = substituteValue(e, repl)
		}
		return out
	default:
		return v
	}
}

// Conf returns the original template definition, used for serialization.
func (t *DynamicTemplate) Conf() map[string]any { return t.conf }

// EqualsMatch reports structural equality of the match rule. Merge uses
// it to overwrite a template in place instead of appending a duplicate.
func (t *DynamicTemplate) EqualsMatch(other *DynamicTemplate) bool {
	return t.namePattern == other.namePattern && t.typePattern == other.typePattern
}
