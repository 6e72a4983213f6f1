package mapper

import "strings"

// PathType controls how a field's registered name is derived from its
// position in the document.
type PathType int

const (
	// PathFull registers fields under their full dotted path.
	PathFull PathType = iota
	// PathJustName registers fields under the leaf name only.
	PathJustName
)

// String returns the mapping-document form of the path type.
func (t PathType) String() string {
	if t == PathJustName {
		return "just_name"
	}
	return "full"
}

// ParsePathType parses the mapping-document form of a path type.
func ParsePathType(fieldName, value string) (PathType, error) {
	switch value {
	case "just_name":
		return PathJustName, nil
	case "full":
		return PathFull, nil
	default:
		return PathFull, parsingErrorf("wrong value for pathType [%s] for object [%s]", value, fieldName)
	}
}

// ContentPath is the shared path stack spanning one document parse or one
// tree construction. The path type is stacked by object mappers around
// traversal of their subtree.
type ContentPath struct {
	offset   int
	pathType PathType
	segments []string
}

// NewContentPath creates a path whose first offset segments are excluded
// from rendered paths. A root mapper is built with offset 1 so its own
// name does not prefix its fields.
func NewContentPath(offset int) *ContentPath {
	return &ContentPath{offset: offset}
}

// PathType returns the current path naming mode.
func (p *ContentPath) PathType() PathType { return p.pathType }

// SetPathType sets the path naming mode. Callers must restore the
// previous value when leaving their subtree.
func (p *ContentPath) SetPathType(t PathType) { p.pathType = t }

// Add pushes a path segment.
func (p *ContentPath) Add(name string) {
	p.segments = append(p.segments, name)
}

// Remove pops the most recent segment.
func (p *ContentPath) Remove() {
	p.segments = p.segments[:len(p.segments)-1]
}

// PathAsText renders the registered name for a field called name at the
// current position, honoring the path type.
func (p *ContentPath) PathAsText(name string) string {
	if p.pathType == PathJustName {
		return name
	}
	return p.FullPathAsText(name)
}

// FullPathAsText renders the full dotted path regardless of path type.
func (p *ContentPath) FullPathAsText(name string) string {
	if len(p.segments) <= p.offset {
		return name
	}
	var sb strings.Builder
	for _, seg := range p.segments[p.offset:] {
		sb.WriteString(seg)
		sb.WriteByte('.')
	}
	sb.WriteString(name)
	return sb.String()
}
