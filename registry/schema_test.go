package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaJSONSchema(t *testing.T) {
	s := Schema{Fields: []Field{
		{Name: "type", Type: TypeString, Enum: []string{"number", "uuid", "pick"}, Required: true},
		{Name: "min", Type: TypeNumber, Description: "Minimum"},
		{Name: "items", Type: TypeArray},
	}}
	_, err := s.NarrowSchema()
	require.NoError(t, err)

	js := s.JSONSchema()
	require.Equal(t, "object", js["type"])
	require.Equal(t, []string{"type"}, js["required"])
	props := js["properties"].(map[string]any)
	require.Equal(t, []string{"number", "uuid", "pick"}, props["type"].(map[string]any)["enum"])
	require.Equal(t, "Minimum", props["min"].(map[string]any)["description"])
	require.Equal(t, map[string]any{"type": "string"}, props["items"].(map[string]any)["items"])
}

func TestSchemaNarrowRejectsUnsupportedFields(t *testing.T) {
	for _, s := range []Schema{
		{Fields: []Field{{Name: "", Type: TypeString}}},
		{Fields: []Field{{Name: "a", Type: "object"}}},
		{Fields: []Field{{Name: "a", Type: TypeString}, {Name: "a", Type: TypeNumber}}},
		{Fields: []Field{{Name: "a", Type: TypeNumber, Enum: []string{"x"}}}},
		{Fields: []Field{{Name: "a", Type: TypeArray, Items: TypeArray}}},
	} {
		_, err := s.NarrowSchema()
		require.ErrorIs(t, err, ErrInvalidSchema)
	}
}

func TestJSONSchemaDocumentNarrow(t *testing.T) {
	doc := JSONSchemaDocument(`{
		"type": "object",
		"properties": {
			"location": {"type": "string", "description": "City"},
			"unit": {"type": "string", "enum": ["celsius", "fahrenheit"]},
			"days": {"type": "integer"}
		},
		"required": ["location"]
	}`)
	s, err := doc.NarrowSchema()
	require.NoError(t, err)
	require.Len(t, s.Fields, 3)
	require.Equal(t, Field{Name: "location", Type: TypeString, Description: "City", Required: true}, s.Fields[0])
	require.Equal(t, []string{"celsius", "fahrenheit"}, s.Fields[1].Enum)
	require.Equal(t, TypeInteger, s.Fields[2].Type)
}

func TestJSONSchemaDocumentRejectsRichSchemas(t *testing.T) {
	for _, doc := range []string{
		`not json`,
		`{"type":"array"}`,
		`{"type":"object","properties":{"a":{"type":["string","null"]}}}`,
		`{"type":"object","properties":{"a":{"type":"object"}}}`,
	} {
		_, err := JSONSchemaDocument(doc).NarrowSchema()
		require.ErrorIs(t, err, ErrInvalidSchema, doc)
	}
}
