// Package jsontree addresses and manipulates decoded JSON values
// (map[string]any, []any, and scalars). Paths are dot-separated segments
// with optional bracket indexes: "record.items[2].id". A segment with no
// name ("[0]") indexes the current array.
package jsontree

import (
	"strconv"
	"strings"
)

type segment struct {
	key    string
	idx    int
	hasIdx bool
}

func parseSegment(s string) (segment, bool) {
	seg := segment{idx: -1}
	i := strings.IndexByte(s, '[')
	if i < 0 {
		if s == "" {
			return seg, false
		}
		seg.key = s
		return seg, true
	}
	if !strings.HasSuffix(s, "]") {
		return seg, false
	}
	n, err := strconv.Atoi(s[i+1 : len(s)-1])
	if err != nil || n < 0 {
		return seg, false
	}
	seg.key = s[:i]
	seg.idx = n
	seg.hasIdx = true
	return seg, true
}

// Get resolves path against tree and returns the value found, or def when
// any part of the path fails to resolve (missing key, index out of range,
// wrong container type, malformed segment).
func Get(tree any, path string, def any) any {
	if path == "" {
		return def
	}
	cur := tree
	for _, part := range strings.Split(path, ".") {
		seg, ok := parseSegment(part)
		if !ok {
			return def
		}
		if seg.key != "" {
			m, ok := cur.(map[string]any)
			if !ok {
				return def
			}
			v, ok := m[seg.key]
			if !ok {
				return def
			}
			cur = v
		}
		if seg.hasIdx {
			arr, ok := cur.([]any)
			if !ok || seg.idx >= len(arr) {
				return def
			}
			cur = arr[seg.idx]
		}
	}
	return cur
}

// Set replaces the value at path and reports whether it did. The full path
// must already resolve: a missing terminal key or out-of-range index leaves
// the tree untouched and returns false. Set never creates keys and never
// extends arrays.
func Set(tree any, path string, value any) bool {
	return setPath(tree, path, value, false)
}

// Assign is Set with one relaxation: the terminal key of an existing parent
// object may be created. Array bounds are still never extended. Used where
// an operation's purpose is introducing a new field, such as attaching a
// fetched document.
func Assign(tree any, path string, value any) bool {
	return setPath(tree, path, value, true)
}

func setPath(tree any, path string, value any, create bool) bool {
	if path == "" {
		return false
	}
	parts := strings.Split(path, ".")
	cur := tree
	for i, part := range parts {
		seg, ok := parseSegment(part)
		if !ok {
			return false
		}
		last := i == len(parts)-1
		if seg.key != "" {
			m, ok := cur.(map[string]any)
			if !ok {
				return false
			}
			if last && !seg.hasIdx {
				if _, ok := m[seg.key]; !ok && !create {
					return false
				}
				m[seg.key] = value
				return true
			}
			v, ok := m[seg.key]
			if !ok {
				return false
			}
			cur = v
		}
		if seg.hasIdx {
			arr, ok := cur.([]any)
			if !ok || seg.idx >= len(arr) {
				return false
			}
			if last {
				arr[seg.idx] = value
				return true
			}
			cur = arr[seg.idx]
		}
		if seg.key == "" && !seg.hasIdx {
			return false
		}
	}
	return false
}
