package domaintools

import (
	"reflect"

	"github.com/thyra-ai/thyra/pkg/gate"
)

// Source declares that produced instances of one domain type should be
// offered for binding. The predicate filters candidate instances against the
// current execution snapshot; the zero predicate accepts everything.
type Source struct {
	typ  reflect.Type
	pred func(instance any, snap *gate.Snapshot) bool
}

// NewSource declares a binding source for T accepting every instance.
func NewSource[T any]() Source {
	return Source{typ: typeOf[T]()}
}

// NewSourceMatching declares a binding source for T gated by a predicate.
func NewSourceMatching[T any](pred func(instance T, snap *gate.Snapshot) bool) Source {
	return Source{
		typ: typeOf[T](),
		pred: func(instance any, snap *gate.Snapshot) bool {
			v, ok := instance.(T)
			if !ok {
				if p, isPtr := instance.(*T); isPtr && p != nil {
					v, ok = *p, true
				}
			}
			if !ok {
				return false
			}
			return pred(v, snap)
		},
	}
}

// Type returns the declared domain type.
func (s Source) Type() reflect.Type { return s.typ }

// TypeName returns the domain type's bare name.
func (s Source) TypeName() string {
	if s.typ == nil {
		return ""
	}
	return s.typ.Name()
}

func (s Source) accepts(v any, snap *gate.Snapshot) bool {
	if normalizeType(v) != s.typ {
		return false
	}
	if s.pred == nil {
		return true
	}
	return s.pred(v, snap)
}
