// Package op defines the operation record, the unit of replication.
//
// An Op is a flat tagged struct: Kind says which of the fields matter.
// Ops are immutable once built; everything that crosses a replica boundary
// is an Op.
package op

import (
	"fmt"

	"github.com/drpcorg/objgraph/objgraph_errors"
)

type Kind string

const (
	CreateObject   Kind = "CREATE_OBJECT"
	DeleteObject   Kind = "DELETE_OBJECT"
	CreateProperty Kind = "CREATE_PROPERTY"
	SetProperty    Kind = "SET_PROPERTY"
	SetProperties  Kind = "SET_PROPERTIES"
	DeleteProperty Kind = "DELETE_PROPERTY"
	CreateArray    Kind = "CREATE_ARRAY"
	InsertElement  Kind = "INSERT_ELEMENT"
	DeleteElement  Kind = "DELETE_ELEMENT"
)

var Kinds = []Kind{
	CreateObject, DeleteObject,
	CreateProperty, SetProperty, SetProperties, DeleteProperty,
	CreateArray, InsertElement, DeleteElement,
}

// ID names an object, an array or an array entry. Ids minted by a replica
// are "<host>-<seq hex>", which keeps them unique across hosts.
type ID string

// Head is the predecessor of an entry inserted at the front of an array.
const Head ID = ""

type Op struct {
	Kind      Kind   `json:"kind"`
	Host      string `json:"host"`
	Timestamp int64  `json:"timestamp"`
	Seq       uint64 `json:"seq"`
	UUID      string `json:"uuid,omitempty"`

	ID     ID `json:"id,omitempty"`
	Object ID `json:"object,omitempty"`
	Array  ID `json:"array,omitempty"`

	Name  string         `json:"name,omitempty"`
	Value any            `json:"value,omitempty"`
	Props map[string]any `json:"props,omitempty"`

	EntryID       ID `json:"entry_id,omitempty"`
	PredecessorID ID `json:"predecessor_id,omitempty"`
}

func (o Op) Stamp() Stamp {
	return Stamp{Timestamp: o.Timestamp, Host: o.Host, Seq: o.Seq}
}

// Target is the entity the op acts on or inside of.
func (o Op) Target() ID {
	switch o.Kind {
	case CreateProperty, SetProperty, SetProperties, DeleteProperty:
		return o.Object
	case InsertElement, DeleteElement:
		return o.Array
	default:
		return o.ID
	}
}

// Creates tells whether applying the op may unblock waiting ops.
func (o Op) Creates() bool {
	switch o.Kind {
	case CreateObject, CreateArray, CreateProperty, SetProperties, InsertElement:
		return true
	}
	return false
}

// Validate checks the op is well-formed. Failing ops are rejected for good,
// they are never worth waiting for.
func (o Op) Validate() error {
	if o.Seq == 0 {
		return fmt.Errorf("%w: %s without a sequence number", objgraph_errors.ErrMalformed, o.Kind)
	}
	if o.Host == "" {
		return fmt.Errorf("%w: %s without a host", objgraph_errors.ErrMalformed, o.Kind)
	}
	missing := ""
	switch o.Kind {
	case CreateObject, DeleteObject, CreateArray:
		if o.ID == "" {
			missing = "id"
		}
	case CreateProperty, SetProperty, DeleteProperty:
		if o.Object == "" {
			missing = "object"
		} else if o.Name == "" {
			missing = "name"
		}
	case SetProperties:
		if o.Object == "" {
			missing = "object"
		} else if len(o.Props) == 0 {
			missing = "props"
		}
	case InsertElement, DeleteElement:
		if o.Array == "" {
			missing = "array"
		} else if o.EntryID == "" {
			missing = "entry_id"
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", objgraph_errors.ErrMalformed, o.Kind)
	}
	if missing != "" {
		return fmt.Errorf("%w: %s without %s", objgraph_errors.ErrMalformed, o.Kind, missing)
	}
	return nil
}

// Clone deep-copies Value and Props, so the copy shares nothing mutable
// with the original.
func (o Op) Clone() Op {
	o.Value = CopyValue(o.Value)
	if o.Props != nil {
		props := make(map[string]any, len(o.Props))
		for k, v := range o.Props {
			props[k] = CopyValue(v)
		}
		o.Props = props
	}
	return o
}

func (o Op) String() string {
	switch o.Kind {
	case CreateProperty, SetProperty:
		return fmt.Sprintf("%s %s.%s=%v @%s", o.Kind, o.Object, o.Name, o.Value, o.Stamp())
	case DeleteProperty:
		return fmt.Sprintf("%s %s.%s @%s", o.Kind, o.Object, o.Name, o.Stamp())
	case SetProperties:
		return fmt.Sprintf("%s %s %v @%s", o.Kind, o.Object, o.Props, o.Stamp())
	case InsertElement:
		return fmt.Sprintf("%s %s[%s after %q]=%v @%s", o.Kind, o.Array, o.EntryID, o.PredecessorID, o.Value, o.Stamp())
	case DeleteElement:
		return fmt.Sprintf("%s %s[%s] @%s", o.Kind, o.Array, o.EntryID, o.Stamp())
	default:
		return fmt.Sprintf("%s %s @%s", o.Kind, o.ID, o.Stamp())
	}
}
