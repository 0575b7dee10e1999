package jsontree

import "strings"

type sentinel struct{}

// unique sentinel so a stored null still counts as resolved
var missing = &sentinel{}

// RewriteStrings applies fn to string values across the tree and returns the
// root. With no targets every string leaf is rewritten. With targets, each
// path is tried as given and with the conventional "record." wrapper toggled;
// the first candidate that resolves wins. A string value is rewritten in
// place through the path resolver, any other value has its string leaves
// rewritten recursively. Unresolvable targets are ignored.
func RewriteStrings(tree any, targets []string, fn func(string) string) any {
	if len(targets) == 0 {
		return WalkStrings(tree, fn)
	}
	for _, field := range targets {
		for _, path := range candidatePaths(field) {
			v := Get(tree, path, missing)
			if v == missing {
				continue
			}
			if s, ok := v.(string); ok {
				if out := fn(s); out != s {
					Set(tree, path, out)
				}
			} else {
				WalkStrings(v, fn)
			}
			break
		}
	}
	return tree
}

func candidatePaths(field string) []string {
	if rest, ok := strings.CutPrefix(field, "record."); ok {
		return []string{field, rest}
	}
	return []string{field, "record." + field}
}
