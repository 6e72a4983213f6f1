package mapper

import (
	"fmt"
	"strconv"
	"testing"
)

// fakeToken is one scripted token in a fakeReader stream.
type fakeToken struct {
	kind      TokenKind
	name      string
	text      string
	boolVal   bool
	numKind   NumberKind
	estimated bool
}

// fakeReader replays a scripted token stream. JSON cannot express
// estimated numeric kinds, so inference branches that depend on them are
// exercised through this reader.
type fakeReader struct {
	tokens []fakeToken
	pos    int
	name   string
}

func newFakeReader(tokens ...fakeToken) *fakeReader {
	return &fakeReader{tokens: tokens, pos: -1}
}

func (r *fakeReader) current() fakeToken {
	if r.pos < 0 || r.pos >= len(r.tokens) {
		return fakeToken{kind: TokenEOF}
	}
	return r.tokens[r.pos]
}

func (r *fakeReader) Token() TokenKind {
	if r.pos < 0 {
		return TokenNone
	}
	return r.current().kind
}

func (r *fakeReader) Next() (TokenKind, error) {
	r.pos++
	tok := r.current()
	if tok.kind == TokenFieldName {
		r.name = tok.name
	}
	return tok.kind, nil
}

func (r *fakeReader) CurrentName() string { return r.name }

func (r *fakeReader) SkipChildren() error {
	if k := r.current().kind; k != TokenStartObject && k != TokenStartArray {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := r.Next()
		if err != nil {
			return err
		}
		switch tok {
		case TokenStartObject, TokenStartArray:
			depth++
		case TokenEndObject, TokenEndArray:
			depth--
		case TokenEOF:
			return fmt.Errorf("unexpected eof in fake stream")
		}
	}
	return nil
}

func (r *fakeReader) Text() string { return r.current().text }

func (r *fakeReader) Bool() (bool, error) { return r.current().boolVal, nil }

func (r *fakeReader) Int64() (int64, error) {
	return strconv.ParseInt(r.current().text, 10, 64)
}

func (r *fakeReader) Float64() (float64, error) {
	return strconv.ParseFloat(r.current().text, 64)
}

func (r *fakeReader) NumberKind() NumberKind { return r.current().numKind }

func (r *fakeReader) EstimatedNumberKind() bool { return r.current().estimated }

// token constructors for scripted streams

func tStartObj() fakeToken          { return fakeToken{kind: TokenStartObject} }
func tEndObj() fakeToken            { return fakeToken{kind: TokenEndObject} }
func tField(name string) fakeToken  { return fakeToken{kind: TokenFieldName, name: name} }
func tString(text string) fakeToken { return fakeToken{kind: TokenString, text: text} }

func tNumber(text string, kind NumberKind, estimated bool) fakeToken {
	return fakeToken{kind: TokenNumber, text: text, numKind: kind, estimated: estimated}
}

// mustParseJSON parses a document, failing the test on any error.
func mustParseJSON(t *testing.T, dm *DocumentMapper, doc string) bool {
	t.Helper()
	changed, err := dm.ParseJSON([]byte(doc))
	if err != nil {
		t.Fatalf("parse %s: %v", doc, err)
	}
	return changed
}

// fieldType returns the concrete type of a registered scalar field.
func fieldType(t *testing.T, dm *DocumentMapper, fullName string) FieldType {
	t.Helper()
	fm, ok := dm.FieldMapper(fullName)
	if !ok {
		t.Fatalf("field %q not registered, have %v", fullName, dm.FieldNames())
	}
	sm, ok := fm.(*ScalarMapper)
	if !ok {
		t.Fatalf("field %q is %T, not *ScalarMapper", fullName, fm)
	}
	return sm.Type()
}

// mustParseMapping builds a document mapper from a definition.
func mustParseMapping(t *testing.T, index, def string) *DocumentMapper {
	t.Helper()
	dm, err := ParseDocumentMapper(index, []byte(def), NewParserContext())
	if err != nil {
		t.Fatalf("parse mapping: %v", err)
	}
	return dm
}
