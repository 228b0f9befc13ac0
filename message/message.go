// Package message implements §3 MessageSchema and Message: named,
// ordered field sets and the typed records that conform to them.
package message

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jackagents/jackgo/field"
)

// ReasoningLevel annotates an action completion's BDI log severity
// (§3 Message "optional reasoning level", §6.1 BDI log levels).
type ReasoningLevel string

const (
	ReasoningNormal    ReasoningLevel = "NORMAL"
	ReasoningImportant ReasoningLevel = "IMPORTANT"
	ReasoningCritical  ReasoningLevel = "CRITICAL"
)

// Schema is a named, ordered field set (§3 MessageSchema).
type Schema struct {
	Name   string
	Fields []field.FieldSpec
}

// ConformsStructurally reports whether two schemas have the same field
// set by name and type, ignoring name and field order (§3: "A Message
// conforms to schema S iff it carries S's name and its field set is
// exactly S's fields by name and type").
func (s Schema) ConformsStructurally(other Schema) bool {
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	a := field.SortFieldSpecs(s.Fields)
	b := field.SortFieldSpecs(other.Fields)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Message is a typed record conforming to a Schema (§3 Message).
type Message struct {
	schemaName string
	fields     []field.Field // ordered, matches schema field order

	ReasoningLevel ReasoningLevel
	ReasoningText  string
}

// New builds an empty Message for schema, with each field set to its
// type's zero value.
func New(schema Schema) *Message {
	fields := make([]field.Field, len(schema.Fields))
	for i, spec := range schema.Fields {
		factory, ok := field.Global().Lookup(spec.Type)
		var v field.Value
		if ok && factory.New != nil {
			v = factory.New()
		}
		fields[i] = field.Field{Name: spec.Name, Type: spec.Type, Value: v}
	}
	return &Message{schemaName: schema.Name, fields: fields}
}

// SchemaName returns the schema this message was built against.
func (m *Message) SchemaName() string { return m.schemaName }

// Clone deep-copies m (§3 Message "clone").
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := &Message{
		schemaName:     m.schemaName,
		fields:         make([]field.Field, len(m.fields)),
		ReasoningLevel: m.ReasoningLevel,
		ReasoningText:  m.ReasoningText,
	}
	for i, f := range m.fields {
		cp.fields[i] = f.Clone()
	}
	return cp
}

// Equal reports whether m and other carry the same schema and field
// values (§3 Message "equality").
func (m *Message) Equal(other *Message) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.schemaName != other.schemaName || len(m.fields) != len(other.fields) {
		return false
	}
	for i := range m.fields {
		if !m.fields[i].Equal(other.fields[i]) {
			return false
		}
	}
	return true
}

// Get returns the named field's value. Fails (ok=false) if the field does
// not exist — a recoverable error per §7, never a panic.
func (m *Message) Get(name string) (field.Value, bool) {
	for _, f := range m.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return field.Value{}, false
}

// GetField returns the full Field (name/type/value) for name.
func (m *Message) GetField(name string) (field.Field, bool) {
	for _, f := range m.fields {
		if f.Name == name {
			return f, true
		}
	}
	return field.Field{}, false
}

// Set writes v into the named field. Fails if the field is unknown or v's
// type does not match the field's declared type (§3 Message "field...set
// by name (fails on type mismatch)").
func (m *Message) Set(name string, v field.Value) bool {
	for i, f := range m.fields {
		if f.Name == name {
			if f.Type != v.TypeName() {
				return false
			}
			m.fields[i].Value = v
			return true
		}
	}
	return false
}

// Fields returns the ordered field iteration (§3 "ordered field
// iteration"). The returned slice is a defensive copy.
func (m *Message) Fields() []field.Field {
	cp := make([]field.Field, len(m.fields))
	copy(cp, m.fields)
	return cp
}

// String renders m deterministically for logs and jackd inspect.
func (m *Message) String() string {
	parts := make([]string, len(m.fields))
	for i, f := range m.fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s{%s}", m.schemaName, strings.Join(parts, ", "))
}

// SchemaRegistry is the engine's committed-schema table (§6.2: "Committing
// a [schema] with a pre-existing name overwrites").
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: make(map[string]Schema)}
}

// Commit registers or overwrites schema by name.
func (r *SchemaRegistry) Commit(schema Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[schema.Name] = schema
}

// Get looks up a committed schema by name.
func (r *SchemaRegistry) Get(name string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// FindStructural returns a committed schema structurally equivalent to
// probe (used by BeliefContext.getMessage's "by schema object" lookup
// mode, §4.1). Schemas are held in a map, so when more than one matches,
// which of them is returned is not defined.
func (r *SchemaRegistry) FindStructural(probe Schema) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.schemas {
		if s.ConformsStructurally(probe) {
			return s, true
		}
	}
	return Schema{}, false
}

// init registers the "Message" field type so a nested message can be
// carried as a field.Value, cloned/compared/printed without field
// importing message (design note §9: custom-type callbacks break the
// std::any dependency).
func init() {
	field.Global().RegisterType(string(field.Message), field.TypeFactory{
		New: func() field.Value { return field.NewMessage((*Message)(nil)) },
		Clone: func(v field.Value) field.Value {
			payload, _ := v.AsMessage()
			msg, _ := payload.(*Message)
			return field.NewMessage(msg.Clone())
		},
		Equal: func(a, b field.Value) bool {
			pa, _ := a.AsMessage()
			pb, _ := b.AsMessage()
			ma, _ := pa.(*Message)
			mb, _ := pb.(*Message)
			return ma.Equal(mb)
		},
		String: func(v field.Value) string {
			payload, _ := v.AsMessage()
			msg, _ := payload.(*Message)
			if msg == nil {
				return "<nil message>"
			}
			return msg.String()
		},
	})
}
