package mapper

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// TokenKind identifies the current token in a document stream.
type TokenKind int

const (
	// TokenNone is the state before the first Next call.
	TokenNone TokenKind = iota
	// TokenStartObject is the opening of an object.
	TokenStartObject
	// TokenEndObject is the closing of an object.
	TokenEndObject
	// TokenStartArray is the opening of an array.
	TokenStartArray
	// TokenEndArray is the closing of an array.
	TokenEndArray
	// TokenFieldName is a field name inside an object.
	TokenFieldName
	// TokenString is a string scalar.
	TokenString
	// TokenNumber is a numeric scalar.
	TokenNumber
	// TokenBool is a boolean scalar.
	TokenBool
	// TokenNull is an explicit null.
	TokenNull
	// TokenEOF is the end of the stream.
	TokenEOF
)

var tokenNames = map[TokenKind]string{
	TokenNone:        "none",
	TokenStartObject: "start_object",
	TokenEndObject:   "end_object",
	TokenStartArray:  "start_array",
	TokenEndArray:    "end_array",
	TokenFieldName:   "field_name",
	TokenString:      "string",
	TokenNumber:      "number",
	TokenBool:        "boolean",
	TokenNull:        "null",
	TokenEOF:         "eof",
}

func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsValue reports whether the token is a non-null scalar value.
func (k TokenKind) IsValue() bool {
	return k == TokenString || k == TokenNumber || k == TokenBool
}

// NumberKind is the declared numeric kind of a number token.
type NumberKind int

const (
	// NumberInt fits a 32-bit signed integer.
	NumberInt NumberKind = iota
	// NumberLong fits a 64-bit signed integer.
	NumberLong
	// NumberFloat is representable without loss as a 32-bit float.
	NumberFloat
	// NumberDouble is a 64-bit float.
	NumberDouble
)

// TokenReader is the token-stream view of one document. Implementations
// decode a concrete document format; the mapping tree only ever sees this
// interface.
type TokenReader interface {
	// Token returns the current token kind without advancing.
	Token() TokenKind
	// Next advances to the next token and returns it.
	Next() (TokenKind, error)
	// CurrentName returns the most recent field name.
	CurrentName() string
	// SkipChildren consumes the rest of the current object or array. A
	// no-op when the current token opens neither.
	SkipChildren() error
	// Text returns the current scalar as text.
	Text() string
	// Bool decodes the current boolean scalar.
	Bool() (bool, error)
	// Int64 decodes the current numeric scalar as an integer.
	Int64() (int64, error)
	// Float64 decodes the current numeric scalar as a float.
	Float64() (float64, error)
	// NumberKind returns the declared kind of the current number token.
	NumberKind() NumberKind
	// EstimatedNumberKind reports whether NumberKind was guessed from the
	// textual form rather than declared by the format. An estimated narrow
	// kind is widened during dynamic type inference.
	EstimatedNumberKind() bool
}

// jsonReader adapts encoding/json's token stream to TokenReader. JSON
// declares no numeric widths, so numeric kinds are derived from the text:
// integers narrow to NumberInt when they fit 32 bits, fractions narrow to
// NumberFloat when exactly representable as float32.
type jsonReader struct {
	dec  *json.Decoder
	kind TokenKind
	name string
	text string

	boolVal bool
	numKind NumberKind

	// stack of open containers, '{' or '['
	stack     []byte
	expectKey bool
}

// NewJSONReader creates a TokenReader over a JSON document.
func NewJSONReader(r io.Reader) TokenReader {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &jsonReader{dec: dec}
}

func (r *jsonReader) Token() TokenKind    { return r.kind }
func (r *jsonReader) CurrentName() string { return r.name }
func (r *jsonReader) Text() string        { return r.text }

func (r *jsonReader) Next() (TokenKind, error) {
	tok, err := r.dec.Token()
	if err == io.EOF {
		r.kind = TokenEOF
		return r.kind, nil
	}
	if err != nil {
		return TokenNone, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			r.stack = append(r.stack, '{')
			r.expectKey = true
			r.kind = TokenStartObject
		case '}':
			r.pop()
			r.kind = TokenEndObject
		case '[':
			r.stack = append(r.stack, '[')
			r.expectKey = false
			r.kind = TokenStartArray
		case ']':
			r.pop()
			r.kind = TokenEndArray
		}
	case string:
		if r.expectKey {
			r.name = t
			r.expectKey = false
			r.kind = TokenFieldName
		} else {
			r.text = t
			r.kind = TokenString
			r.valueDone()
		}
	case json.Number:
		r.text = t.String()
		r.numKind = classifyNumber(r.text)
		r.kind = TokenNumber
		r.valueDone()
	case bool:
		r.boolVal = t
		r.text = strconv.FormatBool(t)
		r.kind = TokenBool
		r.valueDone()
	case nil:
		r.text = ""
		r.kind = TokenNull
		r.valueDone()
	default:
		return TokenNone, fmt.Errorf("%w: unexpected token %v", ErrInvalidDocument, tok)
	}
	return r.kind, nil
}

// pop closes the innermost container and restores key expectation for an
// enclosing object.
func (r *jsonReader) pop() {
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
	r.valueDone()
}

// valueDone marks a completed value; inside an object the next token is a
// key again.
func (r *jsonReader) valueDone() {
	if len(r.stack) > 0 && r.stack[len(r.stack)-1] == '{' {
		r.expectKey = true
	}
}

func (r *jsonReader) SkipChildren() error {
	if r.kind != TokenStartObject && r.kind != TokenStartArray {
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
			return fmt.Errorf("%w: unexpected end of document", ErrInvalidDocument)
		}
	}
	return nil
}

func (r *jsonReader) Bool() (bool, error) {
	if r.kind != TokenBool {
		return false, fmt.Errorf("%w: token [%s] is not a boolean", ErrInvalidDocument, r.kind)
	}
	return r.boolVal, nil
}

func (r *jsonReader) Int64() (int64, error) {
	v, err := strconv.ParseInt(r.text, 10, 64)
	if err != nil {
		// fractional numbers indexed into integer fields truncate
		f, ferr := strconv.ParseFloat(r.text, 64)
		if ferr != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidDocument, r.text)
		}
		return int64(f), nil
	}
	return v, nil
}

func (r *jsonReader) Float64() (float64, error) {
	v, err := strconv.ParseFloat(r.text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidDocument, r.text)
	}
	return v, nil
}

func (r *jsonReader) NumberKind() NumberKind { return r.numKind }

// EstimatedNumberKind is always false for JSON: the kind is derived
// exactly from the full textual form, not estimated from a prefix.
func (r *jsonReader) EstimatedNumberKind() bool { return false }

func classifyNumber(text string) NumberKind {
	if !strings.ContainsAny(text, ".eE") {
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return NumberDouble
		}
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return NumberInt
		}
		return NumberLong
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return NumberDouble
	}
	if float64(float32(v)) == v {
		return NumberFloat
	}
	return NumberDouble
}
