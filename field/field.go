// Package field implements §3 Field/FieldSpec and the §6.3/§9 process-wide
// FieldRegistry: a closed enumeration of built-in variant types plus a
// registry applications can extend with their own message types, grounded
// on original_source/jack_core/src/jack/fieldregistry.{h,cpp} — every
// type, built-in or custom, is just four registered callbacks
// (new/clone/equal/string), so the core never needs compile-time knowledge
// of application-defined message payloads (design note §9, "Heavy
// std::any / typeid").
package field

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind names the built-in primitive and array type names from §6.1's
// "Any-type enumeration". Custom types registered via RegisterType use
// their own name string instead of one of these constants.
type Kind string

const (
	I8     Kind = "I8"
	I16    Kind = "I16"
	I32    Kind = "I32"
	I64    Kind = "I64"
	U8     Kind = "U8"
	U16    Kind = "U16"
	U32    Kind = "U32"
	U64    Kind = "U64"
	F32    Kind = "F32"
	F64    Kind = "F64"
	Bool   Kind = "Bool"
	V2     Kind = "V2"
	String Kind = "String"
	// Message marks a field whose value is a nested message. The actual
	// payload is opaque to this package (see Value.raw) and is cloned/
	// compared/printed via the "Message" TypeFactory registered by the
	// message package to break the field<->message import cycle.
	Message Kind = "Message"
)

// ArraySuffix marks a homogeneous array of any of the above.
const ArraySuffix = "[]"

// IsArray reports whether a type name denotes an array of elemType.
func IsArray(typeName string) (elemType string, ok bool) {
	if strings.HasSuffix(typeName, ArraySuffix) {
		return strings.TrimSuffix(typeName, ArraySuffix), true
	}
	return "", false
}

// V2f is a 2D vector of f32, per §3 Field's variant list.
type V2f struct {
	X, Y float32
}

// Value is a tagged variant over the primitive set plus nested messages
// and homogeneous arrays, per §3 Field and design note §9 ("replace
// std::any with explicit pattern matching on the tagged variant").
type Value struct {
	typeName string // e.g. "I32", "String", "Message", "I32[]", or a custom name
	i        int64
	u        uint64
	f        float64
	b        bool
	v2       V2f
	s        string
	raw      any // Message payload or []Value for arrays, or custom payload
}

// TypeName returns the field-type name this value was constructed with.
func (v Value) TypeName() string { return v.typeName }

func newScalar(typeName string) Value { return Value{typeName: typeName} }

func NewI8(x int8) Value   { v := newScalar(string(I8)); v.i = int64(x); return v }
func NewI16(x int16) Value { v := newScalar(string(I16)); v.i = int64(x); return v }
func NewI32(x int32) Value { v := newScalar(string(I32)); v.i = int64(x); return v }
func NewI64(x int64) Value { v := newScalar(string(I64)); v.i = x; return v }
func NewU8(x uint8) Value  { v := newScalar(string(U8)); v.u = uint64(x); return v }
func NewU16(x uint16) Value { v := newScalar(string(U16)); v.u = uint64(x); return v }
func NewU32(x uint32) Value { v := newScalar(string(U32)); v.u = uint64(x); return v }
func NewU64(x uint64) Value { v := newScalar(string(U64)); v.u = x; return v }
func NewF32(x float32) Value { v := newScalar(string(F32)); v.f = float64(x); return v }
func NewF64(x float64) Value { v := newScalar(string(F64)); v.f = x; return v }
func NewBool(x bool) Value  { v := newScalar(string(Bool)); v.b = x; return v }
func NewV2(x, y float32) Value {
	v := newScalar(string(V2))
	v.v2 = V2f{X: x, Y: y}
	return v
}
func NewString(x string) Value { v := newScalar(string(String)); v.s = x; return v }

// NewMessage wraps an opaque message payload (concretely a
// *message.Message, but this package does not import message). The
// "Message" TypeFactory registered by the message package knows how to
// clone/compare/print it.
func NewMessage(payload any) Value {
	v := newScalar(string(Message))
	v.raw = payload
	return v
}

// NewArray builds a homogeneous array value. elemType is the element's
// type name (e.g. "I32", "String", or a custom type).
func NewArray(elemType string, items []Value) Value {
	v := newScalar(elemType + ArraySuffix)
	cp := make([]Value, len(items))
	copy(cp, items)
	v.raw = cp
	return v
}

// NewCustom builds a value of a registered custom type carrying an
// arbitrary application payload.
func NewCustom(typeName string, payload any) Value {
	v := newScalar(typeName)
	v.raw = payload
	return v
}

// Accessors. Each returns (value, ok); ok is false on a Kind mismatch —
// a recoverable error per §7, never a panic.

func (v Value) AsI64() (int64, bool) {
	switch Kind(v.typeName) {
	case I8, I16, I32, I64:
		return v.i, true
	}
	return 0, false
}

func (v Value) AsU64() (uint64, bool) {
	switch Kind(v.typeName) {
	case U8, U16, U32, U64:
		return v.u, true
	}
	return 0, false
}

func (v Value) AsF64() (float64, bool) {
	switch Kind(v.typeName) {
	case F32, F64:
		return v.f, true
	}
	return 0, false
}

func (v Value) AsBool() (bool, bool) {
	if Kind(v.typeName) == Bool {
		return v.b, true
	}
	return false, false
}

func (v Value) AsV2() (V2f, bool) {
	if Kind(v.typeName) == V2 {
		return v.v2, true
	}
	return V2f{}, false
}

func (v Value) AsString() (string, bool) {
	if Kind(v.typeName) == String {
		return v.s, true
	}
	return "", false
}

// AsMessage returns the opaque nested-message payload.
func (v Value) AsMessage() (any, bool) {
	if Kind(v.typeName) == Message {
		return v.raw, true
	}
	return nil, false
}

// AsArray returns the element slice for an array value.
func (v Value) AsArray() ([]Value, bool) {
	if _, ok := IsArray(v.typeName); ok {
		items, ok := v.raw.([]Value)
		return items, ok
	}
	return nil, false
}

// AsCustom returns the opaque payload for a custom-typed value.
func (v Value) AsCustom() (any, bool) {
	return v.raw, v.raw != nil
}

// FieldSpec is one entry in a MessageSchema: a named, typed slot.
type FieldSpec struct {
	Name string
	Type string
}

// Field is FieldSpec paired with a concrete Value (§3 Field).
type Field struct {
	Name  string
	Type  string
	Value Value
}

// TypeFactory is the four-callback contract every registered type
// (built-in or custom) must supply, per §6.3/§9.
type TypeFactory struct {
	// New returns the zero value for this type.
	New func() Value
	// Clone deep-copies v (relevant for Message and array payloads; value
	// types are copied by Go's struct assignment already).
	Clone func(v Value) Value
	// Equal reports structural equality of a and b.
	Equal func(a, b Value) bool
	// String renders v for logs and the jackd inspect CLI.
	String func(v Value) string
}

// Registry is the process-wide, thread-safe map of type name -> factory,
// per §6.3: "A single global FieldRegistry maps field-type name ->
// factory". Built-in primitives are registered when the registry is
// created; custom
// types register via RegisterType before any engine Commit* call.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]TypeFactory
}

var global = newRegistry()

func newRegistry() *Registry {
	r := &Registry{factories: make(map[string]TypeFactory)}
	r.registerBuiltins()
	return r
}

// Global returns the process-wide FieldRegistry singleton.
func Global() *Registry { return global }

// RegisterType installs a TypeFactory for typeName, overwriting any
// existing registration of the same name (matches MessageSchema commit
// semantics: re-registration overwrites).
func (r *Registry) RegisterType(typeName string, factory TypeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = factory
}

// Lookup returns the factory for typeName, synthesizing an array factory
// on demand when typeName has the "[]" suffix over a known element type.
func (r *Registry) Lookup(typeName string) (TypeFactory, bool) {
	r.mu.RLock()
	f, ok := r.factories[typeName]
	r.mu.RUnlock()
	if ok {
		return f, true
	}
	if elem, isArr := IsArray(typeName); isArr {
		if _, ok := r.Lookup(elem); ok {
			return r.arrayFactory(elem), true
		}
	}
	return TypeFactory{}, false
}

func (r *Registry) arrayFactory(elemType string) TypeFactory {
	return TypeFactory{
		New: func() Value { return NewArray(elemType, nil) },
		Clone: func(v Value) Value {
			items, _ := v.AsArray()
			cp := make([]Value, len(items))
			for i, it := range items {
				cp[i] = r.Clone(it)
			}
			return NewArray(elemType, cp)
		},
		Equal: func(a, b Value) bool {
			ai, aok := a.AsArray()
			bi, bok := b.AsArray()
			if !aok || !bok || len(ai) != len(bi) {
				return false
			}
			for i := range ai {
				if !r.Equal(ai[i], bi[i]) {
					return false
				}
			}
			return true
		},
		String: func(v Value) string {
			items, _ := v.AsArray()
			parts := make([]string, len(items))
			for i, it := range items {
				parts[i] = r.String(it)
			}
			return "[" + strings.Join(parts, ", ") + "]"
		},
	}
}

// Clone deep-copies v using its registered factory, falling back to a
// shallow Go copy for unregistered scalar types.
func (r *Registry) Clone(v Value) Value {
	if f, ok := r.Lookup(v.typeName); ok && f.Clone != nil {
		return f.Clone(v)
	}
	return v
}

// Equal reports whether a and b are structurally equal using the
// registered factory for a's type; returns false on type mismatch.
func (r *Registry) Equal(a, b Value) bool {
	if a.typeName != b.typeName {
		return false
	}
	if f, ok := r.Lookup(a.typeName); ok && f.Equal != nil {
		return f.Equal(a, b)
	}
	return defaultEqual(a, b)
}

// String renders v using its registered factory, falling back to a
// best-effort default.
func (r *Registry) String(v Value) string {
	if f, ok := r.Lookup(v.typeName); ok && f.String != nil {
		return f.String(v)
	}
	return defaultString(v)
}

func defaultEqual(a, b Value) bool {
	return a.i == b.i && a.u == b.u && a.f == b.f && a.b == b.b && a.v2 == b.v2 && a.s == b.s
}

func defaultString(v Value) string {
	switch Kind(v.typeName) {
	case I8, I16, I32, I64:
		return fmt.Sprintf("%d", v.i)
	case U8, U16, U32, U64:
		return fmt.Sprintf("%d", v.u)
	case F32, F64:
		return fmt.Sprintf("%g", v.f)
	case Bool:
		return fmt.Sprintf("%t", v.b)
	case V2:
		return fmt.Sprintf("(%g, %g)", v.v2.X, v.v2.Y)
	case String:
		return v.s
	default:
		return fmt.Sprintf("%v", v.raw)
	}
}

func (r *Registry) registerBuiltins() {
	scalar := func(k Kind) TypeFactory {
		return TypeFactory{
			New:    func() Value { return newScalar(string(k)) },
			Clone:  func(v Value) Value { return v }, // value type, Go-copied by assignment
			Equal:  defaultEqual,
			String: defaultString,
		}
	}
	for _, k := range []Kind{I8, I16, I32, I64, U8, U16, U32, U64, F32, F64, Bool, V2, String} {
		r.factories[string(k)] = scalar(k)
	}
}

// Field equality/clone/string convenience methods delegate to the global
// registry so callers rarely need to reach for field.Global() directly.

func (f Field) Clone() Field {
	return Field{Name: f.Name, Type: f.Type, Value: global.Clone(f.Value)}
}

func (f Field) Equal(other Field) bool {
	return f.Name == other.Name && f.Type == other.Type && global.Equal(f.Value, other.Value)
}

func (f Field) String() string {
	return fmt.Sprintf("%s(%s)=%s", f.Name, f.Type, global.String(f.Value))
}

// SortFieldSpecs returns a copy of specs sorted by name, used when
// comparing two schemas structurally (message.Schema equality by field
// name/type set, §3 "A Message conforms to schema S iff...").
func SortFieldSpecs(specs []FieldSpec) []FieldSpec {
	cp := make([]FieldSpec, len(specs))
	copy(cp, specs)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Name < cp[j].Name })
	return cp
}
