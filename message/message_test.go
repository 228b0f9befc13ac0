package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackagents/jackgo/field"
)

func countDownSchema() Schema {
	return Schema{
		Name: "CountDownPercept",
		Fields: []field.FieldSpec{
			{Name: "remaining", Type: string(field.I32)},
			{Name: "label", Type: string(field.String)},
		},
	}
}

func TestNewZeroesFields(t *testing.T) {
	m := New(countDownSchema())

	v, ok := m.Get("remaining")
	require.True(t, ok)
	got, ok := v.AsI64()
	require.True(t, ok)
	assert.Equal(t, int64(0), got)
}

func TestSetRejectsTypeMismatch(t *testing.T) {
	m := New(countDownSchema())

	assert.True(t, m.Set("remaining", field.NewI32(9)))
	assert.False(t, m.Set("remaining", field.NewString("nine")), "type mismatch must fail, not panic")
	assert.False(t, m.Set("no-such-field", field.NewI32(1)))
}

func TestCloneIsDeepAndIndependent(t *testing.T) {
	m := New(countDownSchema())
	m.Set("remaining", field.NewI32(3))

	clone := m.Clone()
	assert.True(t, m.Equal(clone))

	clone.Set("remaining", field.NewI32(2))
	assert.False(t, m.Equal(clone))

	v, _ := m.Get("remaining")
	got, _ := v.AsI64()
	assert.Equal(t, int64(3), got, "cloning must not mutate the original")
}

func TestEqualComparesSchemaAndFields(t *testing.T) {
	a := New(countDownSchema())
	b := New(countDownSchema())
	assert.True(t, a.Equal(b))

	b.Set("label", field.NewString("soak"))
	assert.False(t, a.Equal(b))
}

func TestFieldsOrderedIterationIsDefensiveCopy(t *testing.T) {
	m := New(countDownSchema())
	fields := m.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "remaining", fields[0].Name)
	assert.Equal(t, "label", fields[1].Name)

	fields[0].Name = "mutated"
	again, _ := m.GetField("remaining")
	assert.Equal(t, "remaining", again.Name, "Fields() must not expose internal storage")
}

func TestSchemaConformsStructurally(t *testing.T) {
	a := countDownSchema()
	b := Schema{
		Name: "DifferentName",
		Fields: []field.FieldSpec{
			{Name: "label", Type: string(field.String)},
			{Name: "remaining", Type: string(field.I32)},
		},
	}
	assert.True(t, a.ConformsStructurally(b), "field order and schema name must not matter")

	c := Schema{Fields: []field.FieldSpec{{Name: "remaining", Type: string(field.I32)}}}
	assert.False(t, a.ConformsStructurally(c))
}

func TestSchemaRegistryCommitOverwrites(t *testing.T) {
	r := NewSchemaRegistry()
	r.Commit(Schema{Name: "Ping", Fields: []field.FieldSpec{{Name: "n", Type: string(field.I32)}}})
	r.Commit(Schema{Name: "Ping", Fields: []field.FieldSpec{{Name: "n", Type: string(field.String)}}})

	got, ok := r.Get("Ping")
	require.True(t, ok)
	assert.Equal(t, string(field.String), got.Fields[0].Type)
}

func TestSchemaRegistryFindStructural(t *testing.T) {
	r := NewSchemaRegistry()
	r.Commit(countDownSchema())

	probe := Schema{Fields: []field.FieldSpec{
		{Name: "label", Type: string(field.String)},
		{Name: "remaining", Type: string(field.I32)},
	}}
	found, ok := r.FindStructural(probe)
	require.True(t, ok)
	assert.Equal(t, "CountDownPercept", found.Name)
}

func TestMessageAsNestedFieldValueRoundTrips(t *testing.T) {
	inner := New(countDownSchema())
	inner.Set("remaining", field.NewI32(7))

	outer := field.NewMessage(inner)
	payload, ok := outer.AsMessage()
	require.True(t, ok)
	got, ok := payload.(*Message)
	require.True(t, ok)
	assert.True(t, inner.Equal(got))

	cloned := field.Global().Clone(outer)
	clonedInner, _ := cloned.AsMessage()
	clonedMsg := clonedInner.(*Message)
	assert.True(t, inner.Equal(clonedMsg))

	assert.True(t, field.Global().Equal(outer, cloned))
	assert.Contains(t, field.Global().String(outer), "CountDownPercept")
}

func TestReasoningAnnotation(t *testing.T) {
	m := New(countDownSchema())
	m.ReasoningLevel = ReasoningImportant
	m.ReasoningText = "retargeted mid-pursuit"

	clone := m.Clone()
	assert.Equal(t, ReasoningImportant, clone.ReasoningLevel)
	assert.Equal(t, "retargeted mid-pursuit", clone.ReasoningText)
}
