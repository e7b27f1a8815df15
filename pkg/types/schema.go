// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// FieldType is the inferred JSON type of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeNull    FieldType = "null"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
	TypeUnknown FieldType = "unknown"
)

// SchemaField describes one flattened path in a schema instance. Fields are
// recomputed for every comparison and never persisted on their own.
type SchemaField struct {
	// Path is the dot/bracket path, e.g. "project.locations[0].name".
	Path string `json:"path" yaml:"path"`

	// Name is the leaf identifier without array indices.
	Name string `json:"name" yaml:"name"`

	// Type is the inferred type of the value at Path.
	Type FieldType `json:"type" yaml:"type"`

	// IsArray reports whether the value is a list.
	IsArray bool `json:"is_array" yaml:"is_array"`

	// ArrayCount is the number of elements when IsArray is set. Only the
	// first element is expanded in template mode.
	ArrayCount int `json:"array_count,omitempty" yaml:"array_count,omitempty"`

	// ParentPath is the path of the enclosing object or array, empty at the root.
	ParentPath string `json:"parent_path,omitempty" yaml:"parent_path,omitempty"`

	// Depth counts the object and array nesting levels above the field.
	Depth int `json:"depth" yaml:"depth"`

	// Children lists the paths nested directly or indirectly under this field.
	Children []string `json:"children,omitempty" yaml:"children,omitempty"`

	// SampleValue is a truncated preview of the value.
	SampleValue any `json:"sample_value,omitempty" yaml:"sample_value,omitempty"`
}
