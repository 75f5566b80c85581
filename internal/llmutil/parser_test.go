// internal/llmutil/parser_test.go
package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decisionShape struct {
	Thought string `json:"thought"`
	Value   int    `json:"value"`
}

func TestExtractJSON(t *testing.T) {
	t.Run("bare object passes through", func(t *testing.T) {
		in := `{"thought":"ok"}`
		assert.Equal(t, in, ExtractJSON(in))
	})

	t.Run("fenced json block", func(t *testing.T) {
		in := "Here you go:\n```json\n{\"thought\":\"ok\"}\n```\nLet me know."
		assert.Equal(t, `{"thought":"ok"}`, ExtractJSON(in))
	})

	t.Run("fenced block without language tag", func(t *testing.T) {
		in := "```\n{\"a\":1}\n```"
		assert.Equal(t, `{"a":1}`, ExtractJSON(in))
	})

	t.Run("object embedded in prose takes the first balanced object", func(t *testing.T) {
		in := `Sure thing. {"a":{"b":1}} And some trailing } noise.`
		assert.Equal(t, `{"a":{"b":1}}`, ExtractJSON(in))
	})

	t.Run("braces inside string literals do not break the scan", func(t *testing.T) {
		in := `reply: {"msg":"use {curly} braces","n":1} done`
		assert.Equal(t, `{"msg":"use {curly} braces","n":1}`, ExtractJSON(in))
	})

	t.Run("array in markdown", func(t *testing.T) {
		in := "```json\n[1,2,3]\n```"
		assert.Equal(t, "[1,2,3]", ExtractJSON(in))
	})
}

func TestParseJSONResponse(t *testing.T) {
	t.Run("clean payload", func(t *testing.T) {
		got, err := ParseJSONResponse[decisionShape](`{"thought":"go","value":2}`)
		require.NoError(t, err)
		assert.Equal(t, "go", got.Thought)
		assert.Equal(t, 2, got.Value)
	})

	t.Run("wrapped payload", func(t *testing.T) {
		got, err := ParseJSONResponse[decisionShape]("I decided:\n```json\n{\"thought\":\"go\",\"value\":7}\n```")
		require.NoError(t, err)
		assert.Equal(t, 7, got.Value)
	})

	t.Run("repairs trailing comma", func(t *testing.T) {
		got, err := ParseJSONResponse[decisionShape](`{"thought":"go","value":3,}`)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Value)
	})

	t.Run("repairs single quotes", func(t *testing.T) {
		got, err := ParseJSONResponse[decisionShape](`{'thought':'go','value':4}`)
		require.NoError(t, err)
		assert.Equal(t, "go", got.Thought)
	})

	t.Run("hopeless input errors with snippet", func(t *testing.T) {
		_, err := ParseJSONResponse[decisionShape]("no structure here at all")
		require.Error(t, err)
	})
}

func TestFirstBalancedObject(t *testing.T) {
	assert.Equal(t, "", firstBalancedObject("nothing"))
	assert.Equal(t, "", firstBalancedObject(`{"never closed":`))
	assert.Equal(t, `{"a":1}`, firstBalancedObject(`xx{"a":1}yy{"b":2}`))
	assert.Equal(t, `{"s":"\"}"}`, firstBalancedObject(`{"s":"\"}"}`))
}
