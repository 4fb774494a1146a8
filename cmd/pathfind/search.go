package main

import (
	"strings"

	"github.com/kestrel-db/kestrel/internal/btree"
)

// Find returns every indexed path matching pattern's components. The
// component tree is always case-folded, so the first-component seek is
// always caseless; ignoreCase then controls whether the remaining
// comparison also ignores case, or filters back down to exact-case
// matches the way the original's Root::Find does via originalPrefix.
func (ix *Index) Find(pattern string, ignoreCase, ordered bool) ([]string, error) {
	patternComponents := splitPath(pattern)
	if len(patternComponents) == 0 {
		return nil, nil
	}
	first := patternComponents[0]

	it, err := ix.components.FindFirst(&btree.StringKey{Value: first, IgnoreCase: true})
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var results []string
	for !it.IsFinished() {
		v, err := it.GetValue()
		if err != nil {
			return nil, err
		}
		arr := v.(*btree.ArrayValue[btree.GUID])
		for _, id := range arr.Value {
			pv, ok, err := ix.paths.Find(&btree.GuidKey{ID: id})
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			path := pv.(*btree.StringValue).Value
			if seen[path] {
				continue
			}
			if scanPattern(splitPath(path), patternComponents, ignoreCase, ordered) {
				seen[path] = true
				results = append(results, path)
			}
		}

		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// scanPattern reports whether every component in pattern occurs, in
// sequence, as a prefix of some component of path. When ordered, each
// pattern component must be found strictly after the previous match.
func scanPattern(path, pattern []string, ignoreCase, ordered bool) bool {
	start := 0
	for _, p := range pattern {
		idx := findPrefixFrom(path, start, p, ignoreCase)
		if idx < 0 {
			return false
		}
		if ordered {
			start = idx + 1
		}
	}
	return true
}

func findPrefixFrom(path []string, start int, prefix string, ignoreCase bool) int {
	for i := start; i < len(path); i++ {
		if hasComponentPrefix(path[i], prefix, ignoreCase) {
			return i
		}
	}
	return -1
}

func hasComponentPrefix(component, prefix string, ignoreCase bool) bool {
	if ignoreCase {
		return strings.HasPrefix(strings.ToLower(component), strings.ToLower(prefix))
	}
	return strings.HasPrefix(component, prefix)
}
