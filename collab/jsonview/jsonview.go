// Package jsonview renders a subtree of a graph as plain nested maps, the
// shape a JSON encoder or a UI template wants.
//
// An object becomes a map of its live properties. The children property
// holds references: a list of object ids, or the id of an array whose
// elements are object ids. Each reference is replaced by the rendered
// child; references to objects that are gone are left out.
package jsonview

import (
	"errors"
	"fmt"

	"github.com/drpcorg/objgraph"
	"github.com/drpcorg/objgraph/op"
)

var (
	ErrRootNotFound = errors.New("no object carries that id")
	ErrCycle        = errors.New("children form a cycle")
)

const (
	DefaultKey      = "id"
	DefaultChildren = "children"
)

type View struct {
	g *objgraph.Graph
	// Key is the property that names a root.
	Key string
	// Children is the property holding child references.
	Children string
}

func New(g *objgraph.Graph) *View {
	return &View{g: g, Key: DefaultKey, Children: DefaultChildren}
}

// ByID renders the tree rooted at the object whose Key property equals id.
func (v *View) ByID(id any) (map[string]any, error) {
	root, ok := v.g.GetByProperty(v.Key, id)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrRootNotFound, id)
	}
	return v.Render(root)
}

// Render renders the tree rooted at object id.
func (v *View) Render(id op.ID) (map[string]any, error) {
	return v.render(id, make(map[op.ID]bool))
}

func (v *View) render(id op.ID, path map[op.ID]bool) (map[string]any, error) {
	if path[id] {
		return nil, fmt.Errorf("%w: %s", ErrCycle, id)
	}
	path[id] = true
	defer delete(path, id)

	ent, ok := v.g.GetByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", objgraph.ErrObjectUnknown, id)
	}
	if ent.Kind != objgraph.KindObject {
		return nil, fmt.Errorf("%w: %s", objgraph.ErrNotObject, id)
	}
	out := ent.Props
	refs, ok := out[v.Children]
	if !ok {
		return out, nil
	}
	children := []any{}
	for _, ref := range v.expand(refs) {
		child, err := v.render(ref, path)
		switch {
		case err == nil:
			children = append(children, child)
		case errors.Is(err, objgraph.ErrObjectUnknown):
		default:
			return nil, err
		}
	}
	out[v.Children] = children
	return out, nil
}

// expand turns a children value into object ids.
func (v *View) expand(refs any) (ids []op.ID) {
	switch t := refs.(type) {
	case []any:
		for _, r := range t {
			if s, ok := r.(string); ok {
				ids = append(ids, op.ID(s))
			}
		}
	case string:
		elems, err := v.g.Elements(op.ID(t))
		if err != nil {
			return nil
		}
		return v.expand(elems)
	}
	return
}
