package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	sig, err := Parse("text -> summary, sentiment")
	require.NoError(t, err)

	require.Len(t, sig.Inputs(), 1)
	assert.Equal(t, "text", sig.Inputs()[0].Name)
	assert.Equal(t, "string", sig.Inputs()[0].Type.Describe())

	require.Len(t, sig.Outputs(), 2)
	assert.Equal(t, "summary", sig.Outputs()[0].Name)
	assert.Equal(t, "sentiment", sig.Outputs()[1].Name)
	assert.Empty(t, sig.Doc())
}

func TestParseTypedFields(t *testing.T) {
	sig, err := Parse("question, context -> answer:string, confidence:number, sources:[]string, count:integer, done:boolean")
	require.NoError(t, err)

	require.Len(t, sig.Inputs(), 2)
	require.Len(t, sig.Outputs(), 5)

	want := map[string]string{
		"answer":     "string",
		"confidence": "number",
		"sources":    "array of string",
		"count":      "integer",
		"done":       "boolean",
	}
	for name, desc := range want {
		f, ok := sig.Output(name)
		require.True(t, ok, name)
		assert.Equal(t, desc, f.Type.Describe(), name)
	}
}

func TestParseNoInputs(t *testing.T) {
	sig, err := Parse(" -> answer")
	require.NoError(t, err)
	assert.Empty(t, sig.Inputs())
	require.Len(t, sig.Outputs(), 1)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		decl string
	}{
		{"no arrow", "text summary"},
		{"two arrows", "a -> b -> c"},
		{"no outputs", "text -> "},
		{"unknown kind", "text -> x:uuid"},
		{"duplicate output", "text -> a, a"},
		{"empty field name", "text -> a, , b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.decl)
			assert.Error(t, err)
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("broken") })
	assert.NotPanics(t, func() { MustParse("a -> b") })
}
