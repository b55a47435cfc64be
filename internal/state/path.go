// Package state implements the per-execution State Manager: a single
// JSON document addressed by JSONPath-lite expressions, with atomic
// get/set/update and change notification.
package state

import (
	"strconv"
	"strings"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// segKind distinguishes the two step kinds a path can take after $.
type segKind int

const (
	segField segKind = iota
	segIndex
)

type segment struct {
	kind  segKind
	field string
	index int
}

// parsePath compiles a JSONPath-lite expression (`$`, `.field`,
// `[i]`; no wildcards) into a segment list. The root `$` alone parses
// to an empty segment list.
func parsePath(path string) ([]segment, error) {
	if !strings.HasPrefix(path, "$") {
		return nil, domain.InvalidPath(path, "path must start with $")
	}
	rest := path[1:]
	var segs []segment
	i := 0
	for i < len(rest) {
		switch rest[i] {
		case '.':
			i++
			start := i
			for i < len(rest) && rest[i] != '.' && rest[i] != '[' {
				i++
			}
			field := rest[start:i]
			if field == "" {
				return nil, domain.InvalidPath(path, "empty field segment")
			}
			segs = append(segs, segment{kind: segField, field: field})
		case '[':
			end := strings.IndexByte(rest[i:], ']')
			if end < 0 {
				return nil, domain.InvalidPath(path, "unterminated [ in path")
			}
			inner := rest[i+1 : i+end]
			if inner == "*" {
				return nil, domain.InvalidPath(path, "wildcard indices are not supported")
			}
			idx, err := strconv.Atoi(inner)
			if err != nil || idx < 0 {
				return nil, domain.InvalidPath(path, "array index must be a non-negative integer")
			}
			segs = append(segs, segment{kind: segIndex, index: idx})
			i += end + 1
		default:
			return nil, domain.InvalidPath(path, "expected '.' or '[' after root")
		}
	}
	return segs, nil
}
