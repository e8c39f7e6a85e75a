package record

import "strings"

// resourceNodes are node names that never represent user-visible content.
var resourceNodes = map[string]struct{}{
	"SCRIPT":   {},
	"LINK":     {},
	"META":     {},
	"STYLE":    {},
	"NOSCRIPT": {},
}

// visibleAttributes are attribute names whose change is presumed visible.
// aria-* names outside this set are matched by prefix.
var visibleAttributes = map[string]struct{}{
	"class":    {},
	"style":    {},
	"hidden":   {},
	"disabled": {},
	"value":    {},
	"checked":  {},
	"selected": {},
	"open":     {},
	"src":      {},
	"href":     {},
	"alt":      {},
	"title":    {},
}

// Classify assigns a significance level to a DOM change. Pure, total,
// deterministic. Rules are evaluated in strict priority order; the first
// match wins:
//
//  1. noise for anything inside document head, or a childList change whose
//     nodes are all resource nodes or comments
//  2. significant for a visible attribute change
//  3. minor for a text-node-only childList change
//  4. significant for a childList change adding or removing a real element
//  5. minor for everything else
//
// Classification is additive metadata, never a filter: level 1 changes are
// still recorded, the tier only lets consumers cut volume downstream.
func Classify(c DomChange) int {
	if inHead(c.TargetPath) {
		return LevelNoise
	}

	if c.Type == ChangeChildList {
		nodes := append(append([]string{}, c.Added...), c.Removed...)
		if len(nodes) > 0 && allOf(nodes, isResourceOrComment) {
			return LevelNoise
		}
		if len(nodes) > 0 && allOf(nodes, isTextNode) {
			return LevelMinor
		}
		for _, n := range nodes {
			if !isResourceOrComment(n) && !isTextNode(n) {
				return LevelSignificant
			}
		}
		return LevelMinor
	}

	if c.Type == ChangeAttributes && isVisibleAttribute(c.Attr) {
		return LevelSignificant
	}

	return LevelMinor
}

// inHead reports whether an xpath-style target path lies within the
// document head. The check is segment-aware so /html/header is not
// mistaken for the head.
func inHead(path string) bool {
	const head = "/html/head"
	if !strings.HasPrefix(path, head) {
		return false
	}
	rest := path[len(head):]
	return rest == "" || rest[0] == '/' || rest[0] == '['
}

func isVisibleAttribute(name string) bool {
	if _, ok := visibleAttributes[name]; ok {
		return true
	}
	return strings.HasPrefix(name, "aria-")
}

func isResourceOrComment(node string) bool {
	if node == "#comment" {
		return true
	}
	_, ok := resourceNodes[strings.ToUpper(node)]
	return ok
}

func isTextNode(node string) bool {
	return node == "#text"
}

func allOf(nodes []string, pred func(string) bool) bool {
	for _, n := range nodes {
		if !pred(n) {
			return false
		}
	}
	return true
}
