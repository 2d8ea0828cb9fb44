package registry

import (
	"fmt"
	"slices"

	"github.com/tidwall/gjson"
)

// FieldType is a primitive parameter type.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeArray:
		return true
	}
	return false
}

// Field describes one tool parameter.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool
	// Enum restricts string fields to the listed values.
	Enum []string
	// Items is the element type of array fields.
	Items FieldType
}

// Schema is the parameter schema of a tool: a flat object of primitive
// fields. Richer schema representations are narrowed into it through
// SchemaSource.
type Schema struct {
	Fields []Field
}

// SchemaSource is anything that can be narrowed into a Schema.
type SchemaSource interface {
	NarrowSchema() (Schema, error)
}

// NarrowSchema checks that every field is well formed.
func (s Schema) NarrowSchema() (Schema, error) {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return Schema{}, fmt.Errorf("%w: field without name", ErrInvalidSchema)
		}
		if seen[f.Name] {
			return Schema{}, fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, f.Name)
		}
		seen[f.Name] = true
		if !f.Type.valid() {
			return Schema{}, fmt.Errorf("%w: field %q has unsupported type %q", ErrInvalidSchema, f.Name, f.Type)
		}
		if f.Type == TypeArray && f.Items != "" && (!f.Items.valid() || f.Items == TypeArray) {
			return Schema{}, fmt.Errorf("%w: field %q has unsupported item type %q", ErrInvalidSchema, f.Name, f.Items)
		}
		if len(f.Enum) > 0 && f.Type != TypeString {
			return Schema{}, fmt.Errorf("%w: enum on non-string field %q", ErrInvalidSchema, f.Name)
		}
	}
	return s, nil
}

// JSONSchema projects the schema into a JSON Schema object.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			prop["enum"] = slices.Clone(f.Enum)
		}
		if f.Type == TypeArray {
			items := f.Items
			if items == "" {
				items = TypeString
			}
			prop["items"] = map[string]any{"type": string(items)}
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// EmptyObjectSchema is the schema advertised when a tool's schema cannot be projected.
func EmptyObjectSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// JSONSchemaDocument is a raw JSON Schema document. It narrows only flat
// object schemas whose properties have primitive types.
type JSONSchemaDocument []byte

func (d JSONSchemaDocument) NarrowSchema() (Schema, error) {
	if !gjson.ValidBytes(d) {
		return Schema{}, fmt.Errorf("%w: not valid JSON", ErrInvalidSchema)
	}
	doc := gjson.ParseBytes(d)
	if t := doc.Get("type").String(); t != "object" {
		return Schema{}, fmt.Errorf("%w: root type %q is not object", ErrInvalidSchema, t)
	}

	required := map[string]bool{}
	doc.Get("required").ForEach(func(_, v gjson.Result) bool {
		required[v.String()] = true
		return true
	})

	var (
		s   Schema
		err error
	)
	doc.Get("properties").ForEach(func(k, v gjson.Result) bool {
		typ := v.Get("type")
		if typ.Type != gjson.String {
			err = fmt.Errorf("%w: property %q has no single type", ErrInvalidSchema, k.String())
			return false
		}
		f := Field{
			Name:        k.String(),
			Type:        FieldType(typ.String()),
			Description: v.Get("description").String(),
			Required:    required[k.String()],
			Items:       FieldType(v.Get("items.type").String()),
		}
		v.Get("enum").ForEach(func(_, e gjson.Result) bool {
			f.Enum = append(f.Enum, e.String())
			return true
		})
		s.Fields = append(s.Fields, f)
		return true
	})
	if err != nil {
		return Schema{}, err
	}
	return s.NarrowSchema()
}
