package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeNullableUnion(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"note": map[string]any{
				"anyOf": []any{
					map[string]any{"type": "string"},
					map[string]any{"type": "null"},
				},
			},
		},
	}
	out := NormalizeSchemaForProvider(schema, "openai")
	note := out["properties"].(map[string]any)["note"].(map[string]any)
	require.Equal(t, "string", note["type"])
	require.Equal(t, true, note["nullable"])
	_, hasAnyOf := note["anyOf"]
	require.False(t, hasAnyOf)
}

func TestNormalizeMultiTypeUnionNoNull(t *testing.T) {
	schema := map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "number"},
		},
	}
	out := NormalizeSchemaForProvider(schema, "openai")
	types, ok := out["type"].([]any)
	require.True(t, ok)
	require.ElementsMatch(t, []any{"string", "number"}, types)
}

func TestNormalizeStripsSchemaKey(t *testing.T) {
	schema := map[string]any{"$schema": "http://json-schema.org/draft-07/schema#", "type": "object"}
	out := NormalizeSchemaForProvider(schema, "openai")
	_, ok := out["$schema"]
	require.False(t, ok)
}

func TestAnthropicPassthrough(t *testing.T) {
	schema := map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "null"},
		},
	}
	out := NormalizeSchemaForProvider(schema, "anthropic")
	_, hasAnyOf := out["anyOf"]
	require.True(t, hasAnyOf)
}
