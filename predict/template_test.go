package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/sigflow/signature"
	"github.com/BaSui01/sigflow/testutil/fixtures"
)

func TestDefaultTemplate_Layout(t *testing.T) {
	prompt, err := DefaultTemplate(fixtures.PersonSignature(), map[string]any{"text": "Alice is 25."})
	require.NoError(t, err)

	assert.Contains(t, prompt, "Extract the person mentioned in the text.")
	assert.Contains(t, prompt, "text:\nAlice is 25.")
	assert.Contains(t, prompt, "Respond with a JSON object of this shape:")
	assert.Contains(t, prompt, `"name": string,`)
	assert.Contains(t, prompt, `"age": number`)
	assert.Contains(t, prompt, "- name (string): the person's name")
	assert.Contains(t, prompt, "- age (number): the person's age in years")
	assert.Contains(t, prompt, "Respond with only the JSON object. No commentary, no code fences.")
}

func TestDefaultTemplate_DescribesCompositeOutputs(t *testing.T) {
	prompt, err := DefaultTemplate(fixtures.ReviewSignature(), map[string]any{"diff": "-a\n+b"})
	require.NoError(t, err)

	assert.Contains(t, prompt, `"verdict": enum("approve" | "reject" | "revise")`)
	assert.Contains(t, prompt, `"comments": array of string`)
	assert.Contains(t, prompt, "- score (number, optional): quality score")
}

func TestDefaultTemplate_MissingInput(t *testing.T) {
	_, err := DefaultTemplate(fixtures.ReviewSignature(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing input "diff"`)
}

func TestDefaultTemplate_OptionalInputSkipped(t *testing.T) {
	sig := signature.New("Summarize the text.").
		Input("text", signature.String(), "body to summarize").
		Input("style", signature.Optional(signature.String()), "requested tone").
		Output("summary", signature.String(), "the summary").
		MustBuild()

	prompt, err := DefaultTemplate(sig, map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.NotContains(t, prompt, "style:")

	prompt, err = DefaultTemplate(sig, map[string]any{"text": "hello", "style": "terse"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "style:\nterse")
}

func TestDefaultTemplate_StructuredInputRendersAsJSON(t *testing.T) {
	sig := signature.New("Rank the items.").
		Input("items", signature.Array(signature.String()), "items to rank").
		Output("best", signature.String(), "the winner").
		MustBuild()

	prompt, err := DefaultTemplate(sig, map[string]any{"items": []any{"a", "b"}})
	require.NoError(t, err)
	assert.Contains(t, prompt, "items:\n[\n  \"a\",\n  \"b\"\n]")
}

func TestDefaultTemplate_UndeclaredInputsIgnored(t *testing.T) {
	prompt, err := DefaultTemplate(fixtures.PersonSignature(), map[string]any{
		"text":  "Alice is 25.",
		"junk":  "should not appear",
		"extra": 7,
	})
	require.NoError(t, err)
	assert.NotContains(t, prompt, "junk")
	assert.NotContains(t, prompt, "should not appear")
}
