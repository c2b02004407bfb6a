// Package content walks Storyblok component trees and recognises story
// identifiers inside them.
package content

import (
	"reflect"
	"sort"
	"strconv"
)

// RootPath is the path prefix given to the top of a story's content tree.
const RootPath = "content"

// skipKeys are Storyblok bookkeeping fields that never hold references.
var skipKeys = map[string]struct{}{
	"_uid":      {},
	"_editable": {},
}

// Leaf describes one string value reached during a traversal.
type Leaf struct {
	// Path locates the leaf, e.g. "content.body[0].link".
	Path string
	// Key is the object key holding the value. Empty with HasKey false
	// for array elements.
	Key    string
	HasKey bool
	Value  string
	// Parent is the map or slice directly containing the value.
	Parent any
}

// Visitor is invoked once for every string leaf.
type Visitor func(Leaf)

// identity is the structural reference of a map, slice or pointer. Two values with
// equal contents but different backing storage have different identities.
type identity struct {
	ptr  uintptr
	kind reflect.Kind
	len  int
}

// Traverse visits every string leaf reachable from node, depth first, with
// paths rooted at RootPath.
func Traverse(node any, visit Visitor) {
	TraverseAt(node, RootPath, visit)
}

// TraverseAt is Traverse with a caller-supplied root path. An empty root
// yields paths that start with the first object key.
//
// Object keys are visited in sorted order so paths come out in the same
// order on every run. Maps, slices and pointers already visited in this
// traversal are not entered again, which keeps self-referencing trees finite.
func TraverseAt(node any, root string, visit Visitor) {
	if visit == nil {
		return
	}
	w := &walker{visit: visit, seen: make(map[identity]struct{})}
	w.walk(node, root, "", false, nil)
}

type walker struct {
	visit Visitor
	seen  map[identity]struct{}
}

func (w *walker) walk(node any, path, key string, hasKey bool, parent any) {
	switch v := node.(type) {
	case nil:
		return
	case string:
		w.visit(Leaf{Path: path, Key: key, HasKey: hasKey, Value: v, Parent: parent})
	case map[string]any:
		if !w.enter(reflect.ValueOf(v)) {
			return
		}
		for _, k := range sortedKeys(v) {
			if _, skip := skipKeys[k]; skip {
				continue
			}
			w.walk(v[k], childPath(path, k), k, true, v)
		}
	case []any:
		if !w.enter(reflect.ValueOf(v)) {
			return
		}
		for i, item := range v {
			w.walk(item, indexPath(path, i), "", false, v)
		}
	default:
		w.walkReflect(reflect.ValueOf(node), path, key, hasKey, parent)
	}
}

// walkReflect handles containers that did not come from encoding/json,
// such as map[string]string or []map[string]any built in code.
func (w *walker) walkReflect(rv reflect.Value, path, key string, hasKey bool, parent any) {
	switch rv.Kind() {
	case reflect.Pointer:
		if !w.enter(rv) {
			return
		}
		w.walk(rv.Elem().Interface(), path, key, hasKey, parent)
	case reflect.Interface:
		if rv.IsNil() {
			return
		}
		w.walk(rv.Elem().Interface(), path, key, hasKey, parent)
	case reflect.String:
		w.visit(Leaf{Path: path, Key: key, HasKey: hasKey, Value: rv.String(), Parent: parent})
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || !w.enter(rv) {
			return
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		container := rv.Interface()
		for _, k := range keys {
			if _, skip := skipKeys[k]; skip {
				continue
			}
			child := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
			w.walk(child.Interface(), childPath(path, k), k, true, container)
		}
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && !w.enter(rv) {
			return
		}
		container := rv.Interface()
		for i := 0; i < rv.Len(); i++ {
			w.walk(rv.Index(i).Interface(), indexPath(path, i), "", false, container)
		}
	}
}

// enter records a container or pointer and reports whether it was unseen.
// Empty containers have no stable identity and nothing to visit, so they
// are always allowed.
func (w *walker) enter(rv reflect.Value) bool {
	if rv.IsNil() {
		return false
	}
	id := identity{ptr: uintptr(rv.UnsafePointer()), kind: rv.Kind()}
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Len() == 0 {
			return true
		}
		id.len = rv.Len()
	case reflect.Map:
		if rv.Len() == 0 {
			return true
		}
	}
	if _, ok := w.seen[id]; ok {
		return false
	}
	w.seen[id] = struct{}{}
	return true
}

func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
