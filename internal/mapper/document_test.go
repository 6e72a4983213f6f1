package mapper

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDocumentMapper_RoundTrip(t *testing.T) {
	def := `{
		"dynamic": true,
		"date_formats": ["yyyy/MM/dd"],
		"dynamic_templates": [
			{"match": "*_raw", "mapping": {"type": "string", "index": "no"}}
		],
		"properties": {
			"title": {"type": "string", "store": true},
			"created": {"type": "date", "format": "yyyy/MM/dd"},
			"author": {
				"type": "object",
				"properties": {"name": {"type": "string"}}
			},
			"name": {
				"type": "multi_field",
				"fields": {
					"name": {"type": "string"},
					"sort": {"type": "string", "index": false}
				}
			}
		}
	}`
	dm := mustParseMapping(t, "idx", def)

	first, err := dm.MappingJSON()
	if err != nil {
		t.Fatal(err)
	}
	reparsed, err := ParseDocumentMapper("idx", first, NewParserContext())
	if err != nil {
		t.Fatalf("reparse own output: %v", err)
	}
	second, err := reparsed.MappingJSON()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Errorf("serialization not stable (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(dm.FieldNames(), reparsed.FieldNames()); diff != "" {
		t.Errorf("field registry differs after round trip:\n%s", diff)
	}
}

func TestParseDocumentMapper_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  string
	}{
		{"not json", `{{`},
		{"property without type", `{"properties": {"f": {"store": true}}}`},
		{"unknown type", `{"properties": {"f": {"type": "geo_shape"}}}`},
		{"declared type not object", `{"type": "string"}`},
		{"bad path", `{"path": "sideways"}`},
		{"format on non-date", `{"properties": {"f": {"type": "string", "format": "yyyy"}}}`},
		{"multi_field sub without type", `{"properties": {"f": {"type": "multi_field", "fields": {"g": {}}}}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDocumentMapper("idx", []byte(tc.def), NewParserContext())
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidMapping) {
				t.Errorf("error = %v, want ErrInvalidMapping", err)
			}
		})
	}
}

func TestParseDocumentMapper_StructuralTypes(t *testing.T) {
	// type can be derived from the shape when not declared
	dm := mustParseMapping(t, "idx", `{
		"properties": {
			"obj": {"properties": {"leaf": {"type": "string"}}},
			"mf": {"fields": {"mf": {"type": "string"}}}
		}
	}`)
	if _, ok := dm.FieldMapper("obj.leaf"); !ok {
		t.Errorf("derived object missing its leaf, have %v", dm.FieldNames())
	}
	if _, ok := dm.FieldMapper("mf"); !ok {
		t.Errorf("derived multi_field missing its default, have %v", dm.FieldNames())
	}
}

func TestDocumentMapper_ParseRequiresObject(t *testing.T) {
	dm := NewDefaultDocumentMapper("idx")
	for _, doc := range []string{`[1, 2]`, `"scalar"`, `42`} {
		_, err := dm.ParseJSON([]byte(doc))
		if err == nil {
			t.Errorf("expected error for %s", doc)
			continue
		}
		if !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("error for %s = %v, want ErrInvalidDocument", doc, err)
		}
	}
}

func TestDocumentMapper_MultiFieldParse(t *testing.T) {
	dm := mustParseMapping(t, "idx", `{
		"properties": {
			"name": {
				"type": "multi_field",
				"fields": {
					"name": {"type": "string"},
					"raw": {"type": "string", "index": false}
				}
			}
		}
	}`)

	want := []string{"name", "name.raw"}
	if diff := cmp.Diff(want, dm.FieldNames()); diff != "" {
		t.Fatalf("field names (-want +got):\n%s", diff)
	}

	if changed := mustParseJSON(t, dm, `{"name": "ada"}`); changed {
		t.Error("declared multi_field must not grow on parse")
	}
}

func TestDocumentMapper_MappingKeyedByIndex(t *testing.T) {
	dm := NewDefaultDocumentMapper("articles")
	m := dm.Mapping()
	if _, ok := m["articles"]; !ok {
		t.Errorf("mapping not keyed by index name: %v", m)
	}
}
